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
package call

import (
	"github.com/PabstMatthew/veriwasm/pkg/analysis/rsp"
	"github.com/PabstMatthew/veriwasm/pkg/config"
	"github.com/PabstMatthew/veriwasm/pkg/ir"
	"github.com/PabstMatthew/veriwasm/pkg/state"
)

// State is the per-block state of the call-check analysis: VariableState<CallCheckValueLattice>.
type State = state.VariableState[Value]

// baseOffset mirrors heap.baseOffset: decomposes an unscaled "[R]"/"[R+imm]"
// memory operand into a base register id and byte displacement.
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

// dualRegDisp decomposes a "[Ra + Rb + disp]" two-register memory operand,
// the shape the FnPtr recognizer below matches against.
func dualRegDisp(v ir.Value) (ra, rb uint8, disp int64, ok bool) {
	if v.Form != ir.AddrBaseIndexDisp {
		return 0, 0, 0, false
	}

	if v.Base.IsReg && v.Index.IsReg {
		return v.Base.Reg, v.Index.Reg, v.Disp, true
	}

	return 0, 0, 0, false
}

// evalMem implements the Lucet/WAMR memory-pattern recognizers.
func evalMem(compiler config.Compiler, meta config.Metadata, cur State, v ir.Value, tracker *rsp.Tracker) Value {
	if disp, ok := v.IsRSPRelative(); ok {
		off := tracker.StackOffset(disp)
		return cur.Stack.Read(off, v.Size.Bytes())
	}

	if compiler == config.Lucet {
		if base, disp, ok := baseOffset(v); ok && disp == 8 && cur.Regs.Get(base).Is(LucetTablesBase) {
			return Plain(TableSize)
		}

		if ra, rb, disp, ok := dualRegDisp(v); ok && disp == 8 {
			if fnPtrPair(cur, ra, rb) {
				return Plain(FnPtr)
			}
		}

		return Bottom()
	}

	// WAMR: ModuleInstance-rooted chain, then the generic func-idx fallback.
	if base, disp, ok := baseOffset(v); ok {
		sym := cur.Regs.Get(base)

		switch disp {
		case config.WamrModuleInstOffset:
			if sym.Is(WamrExecEnv) {
				return Plain(WamrModuleInstance)
			}
		case config.WamrFuncPtrsOffset:
			if sym.Is(WamrModuleInstance) {
				return Plain(WamrFuncPtrsTable)
			}
		case config.WamrFuncTypeOffset:
			if sym.Is(WamrModuleInstance) {
				return Plain(WamrFuncTypeTable)
			}
		}

		if sym.Is(WamrModuleInstance) && disp >= config.WamrFuncIdxThreshold {
			return Plain(WamrFuncIdx)
		}
	}

	if v.Form == ir.AddrBaseScaledIndexDisp && v.Base.IsReg && v.Index.IsReg && v.Scale == 4 &&
		cur.Regs.Get(v.Base.Reg).Is(WamrModuleInstance) && v.Disp >= config.WamrFuncIdxThreshold {
		return Plain(WamrFuncIdx)
	}

	return Bottom()
}

// fnPtrPair reports whether {ra, rb} hold {GuestTableBase, PtrOffset(Checked)}
// in either order, the recognizer for the "[Ra + Rb + 8]" FnPtr pattern.
func fnPtrPair(cur State, ra, rb uint8) bool {
	a, b := cur.Regs.Get(ra), cur.Regs.Get(rb)

	isChecked := func(v Value) bool {
		dav, ok := v.DAV()
		return ok && dav.Checked
	}

	return (a.Is(GuestTableBase) && isChecked(b)) || (b.Is(GuestTableBase) && isChecked(a))
}

// evalOperand evaluates Clear/Unop source operands and Cmp/Shl register
// reads: immediates are matched
// against the two metadata addresses, registers pass their current 64-bit
// value through unchanged (this domain has no heap-style sub-register
// widening rule), and memory operands go through evalMem.
func evalOperand(compiler config.Compiler, meta config.Metadata, cur State, v ir.Value, tracker *rsp.Tracker) Value {
	switch v.Kind {
	case ir.KindImm:
		if compiler == config.Lucet {
			if v.ImmVal == meta.GuestTable0 {
				return Plain(GuestTableBase)
			}

			if v.ImmVal == meta.LucetTables {
				return Plain(LucetTablesBase)
			}
		}

		return Bottom()
	case ir.KindReg:
		return cur.Regs.Get(v.RegID)
	case ir.KindMem:
		return evalMem(compiler, meta, cur, v, tracker)
	default:
		return Bottom()
	}
}
