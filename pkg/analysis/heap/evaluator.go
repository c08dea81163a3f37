// Copyright Consensys Software Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with
// the License. You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on
// an "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied. See the License for the
// specific language governing permissions and limitations under the License.
//
// SPDX-License-Identifier: Apache-2.0
package heap

import (
	"github.com/PabstMatthew/veriwasm/pkg/analysis/rsp"
	"github.com/PabstMatthew/veriwasm/pkg/config"
	"github.com/PabstMatthew/veriwasm/pkg/ir"
	"github.com/PabstMatthew/veriwasm/pkg/lattice"
	"github.com/PabstMatthew/veriwasm/pkg/state"
)

// Value is HeapValueLattice's concrete representation: a flat const lattice
// over Symbol, which (unlike StackGrowthLattice's Tuple) is a plain
// comparable type, so the generic lattice.Const works unmodified.
type Value = lattice.Const[Symbol]

// State is the per-block state of the heap analysis: VariableState<HeapValueLattice>.
type State = state.VariableState[Value]

// baseOffset decomposes an unscaled memory operand ("[R]" or "[R+imm]",
// modelled with an immediate folded into the unused index slot, mirroring
// ir.Value.IsRSPRelative's own folding convention) into a base register id
// and byte displacement. ok is false for scaled-index or dual-register
// forms, which the recognizer tables below never match against a plain
// base+disp pattern.
func baseOffset(v ir.Value) (base uint8, disp int64, ok bool) {
	switch v.Form {
	case ir.AddrBase:
		if v.Base.IsReg {
			return v.Base.Reg, v.Disp, true
		}
	case ir.AddrBaseIndexDisp:
		if v.Base.IsReg && !v.Index.IsReg {
			return v.Base.Reg, v.Disp + v.Index.Imm, true
		}

		if v.Index.IsReg && !v.Base.IsReg {
			return v.Index.Reg, v.Disp + v.Base.Imm, true
		}
	}

	return 0, 0, false
}

// widen implements sub-register write-widening rule: a
// 32-bit write keeps a better-than-bottom symbolic evaluation but otherwise
// becomes Bounded4GB; 16/8-bit writes always yield Bounded4GB/Bounded256B.
func widen(size ir.Size, v Value) Value {
	switch size {
	case ir.Size16:
		return lattice.Is(Bounded4GB)
	case ir.Size8:
		return lattice.Is(Bounded256B)
	case ir.Size32:
		if v.IsBottom() {
			return lattice.Is(Bounded4GB)
		}

		return v
	default:
		return v
	}
}

// evalMemPattern evaluates a memory operand against the compiler-specific
// recognizer tables only (the call analyzer's own "[R+8]"
// recognizers for LucetTablesBase/GuestTableBase live in pkg/analysis/call,
// since those produce CallCheckValueLattice elements, a distinct domain).
func evalMemPattern(compiler config.Compiler, cur State, v ir.Value, tracker *rsp.Tracker) Value {
	if disp, ok := v.IsRSPRelative(); ok {
		off := tracker.StackOffset(disp)
		return cur.Stack.Read(off, v.Size.Bytes())
	}

	base, disp, ok := baseOffset(v)
	if !ok {
		return lattice.Bottom[Symbol]()
	}

	sym, has := cur.Regs.Get(base).Value()
	if !has {
		return lattice.Bottom[Symbol]()
	}

	if compiler == config.Lucet {
		if disp == 0 && sym == HeapBase {
			return lattice.Is(GlobalsBase)
		}

		return lattice.Bottom[Symbol]()
	}

	switch disp {
	case 0x10:
		if sym == WamrExecEnv {
			return lattice.Is(WamrModuleInstance)
		}
	case 0x18:
		if sym == WamrExecEnv {
			return lattice.Is(GlobalsBase)
		}
	case 0x150:
		if sym == WamrModuleInstance {
			return lattice.Is(HeapBase)
		}
	case 0x28:
		if sym == WamrModuleInstance {
			return lattice.Is(WamrFuncPtrsTable)
		}
	case 0x30:
		if sym == WamrModuleInstance {
			return lattice.Is(WamrFuncTypeTable)
		}
	}

	return lattice.Bottom[Symbol]()
}

// evalSrc implements symbolic source-operand evaluation.
func evalSrc(compiler config.Compiler, meta config.Metadata, cur State, v ir.Value, tracker *rsp.Tracker) Value {
	switch v.Kind {
	case ir.KindImm:
		if compiler == config.Lucet {
			if v.ImmVal == meta.GuestTable0 {
				return lattice.Is(GuestTable0)
			}

			if v.ImmVal == meta.LucetTables {
				return lattice.Is(LucetTables)
			}
		}

		if v.ImmVal >= 0 && v.ImmVal < (1<<32) {
			return lattice.Is(Bounded4GB)
		}

		return lattice.Bottom[Symbol]()
	case ir.KindReg:
		if v.Size <= ir.Size32 {
			return lattice.Is(Bounded4GB)
		}

		return cur.Regs.Get(v.RegID)
	case ir.KindMem:
		return evalMemPattern(compiler, cur, v, tracker)
	default:
		return lattice.Bottom[Symbol]()
	}
}
