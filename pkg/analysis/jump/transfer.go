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
package jump

import (
	"github.com/PabstMatthew/veriwasm/pkg/analysis/rsp"
	"github.com/PabstMatthew/veriwasm/pkg/config"
	"github.com/PabstMatthew/veriwasm/pkg/ir"
)

// Transfer applies one statement's effect on the switch-analysis state.
func Transfer(compiler config.Compiler, in State, s ir.Stmt, tracker *rsp.Tracker) State {
	switch s.Kind {
	case ir.StmtClear:
		return write(in, s.Dst, Bottom(), tracker)
	case ir.StmtUnop:
		return write(in, s.Dst, evalUnop(compiler, in, s), tracker)
	case ir.StmtBinop:
		return transferBinop(compiler, in, s, tracker)
	case ir.StmtCall:
		for _, r := range ir.CallerClobbered {
			in.Regs = in.Regs.Set(r, Bottom())
		}

		return in
	default:
		return in
	}
}

func transferBinop(compiler config.Compiler, in State, s ir.Stmt, tracker *rsp.Tracker) State {
	if s.BinOp == ir.Cmp {
		return write(in, s.Dst, transferCmp(in, s), tracker)
	}

	return write(in, s.Dst, Bottom(), tracker)
}

// transferCmp recognizes `Cmp(r, imm)` against an index register with no
// existing switch-domain value, tagging the zero flag with the pending
// bound check the way call.transferCmp tags it with CheckFlag.
func transferCmp(in State, s ir.Stmt) Value {
	if s.Src1.Kind == ir.KindReg && s.Src2.Kind == ir.KindImm && in.Regs.Get(s.Src1.RegID).IsBottom() {
		return BoundCheck(s.Src2.ImmVal, s.Src1.RegID)
	}

	if s.Src2.Kind == ir.KindReg && s.Src1.Kind == ir.KindImm && in.Regs.Get(s.Src2.RegID).IsBottom() {
		return BoundCheck(s.Src1.ImmVal, s.Src2.RegID)
	}

	return Bottom()
}

// evalUnop recognizes the jump-table-base computation: a scaled-index
// memory operand whose base is an immediate (i.e. an address computation,
// never a dereference through a symbolic base register — those belong to
// the heap/call domains) and whose index register already holds
// UpperBound(n), tagging the destination JmpTarget(base, n). Scale is
// compiler-specific: 4 for Lucet's relative-delta tables, 8 for WAMR's
// absolute tables (mirroring the heap checker's jump-table predicate).
func evalUnop(compiler config.Compiler, in State, s ir.Stmt) Value {
	v := s.Src
	if v.Kind != ir.KindMem {
		return Bottom()
	}

	wantScale := uint8(4)
	if compiler == config.WAMR {
		wantScale = 8
	}

	switch v.Form {
	case ir.AddrBaseScaledIndex, ir.AddrBaseScaledIndexDisp:
		if v.Scale != wantScale || v.Base.IsReg || v.Disp != 0 {
			return Bottom()
		}

		if !v.Index.IsReg {
			return Bottom()
		}

		if n, ok := in.Regs.Get(v.Index.Reg).UpperBoundOf(); ok {
			return JmpTarget(uint64(v.Base.Imm), n)
		}
	}

	return Bottom()
}

func write(cur State, dst ir.Value, value Value, tracker *rsp.Tracker) State {
	switch dst.Kind {
	case ir.KindReg:
		cur.Regs = cur.Regs.Set(dst.RegID, value)
	case ir.KindMem:
		if disp, ok := dst.IsRSPRelative(); ok {
			off := tracker.StackOffset(disp)
			cur.Stack = cur.Stack.Write(off, dst.Size.Bytes(), value)
		}
	}

	return cur
}
