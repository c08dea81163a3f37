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
	"github.com/PabstMatthew/veriwasm/pkg/analysis/reach"
	"github.com/PabstMatthew/veriwasm/pkg/analysis/rsp"
	"github.com/PabstMatthew/veriwasm/pkg/config"
	"github.com/PabstMatthew/veriwasm/pkg/ir"
)

// Transfer applies one statement's effect on the call-check state, given the
// reaching-definitions state as of *before* this statement (needed by the
// Shl recognizer's "D is the reaching-def set for r at this location").
func Transfer(compiler config.Compiler, meta config.Metadata, in State, s ir.Stmt, tracker *rsp.Tracker, reachIn reach.State) State {
	switch s.Kind {
	case ir.StmtClear:
		return write(in, s.Dst, Bottom(), tracker)
	case ir.StmtUnop:
		return write(in, s.Dst, evalOperand(compiler, meta, in, s.Src, tracker), tracker)
	case ir.StmtBinop:
		return transferBinop(compiler, meta, in, s, tracker, reachIn)
	case ir.StmtCall:
		for _, r := range ir.CallerClobbered {
			in.Regs = in.Regs.Set(r, Bottom())
		}

		return in
	default:
		return in
	}
}

func transferBinop(compiler config.Compiler, meta config.Metadata, in State, s ir.Stmt, tracker *rsp.Tracker, reachIn reach.State) State {
	switch s.BinOp {
	case ir.Cmp:
		return write(in, s.Dst, transferCmp(compiler, meta, in, s, tracker), tracker)
	case ir.Shl:
		return write(in, s.Dst, transferShl(in, s, reachIn), tracker)
	case ir.Test:
		// Deliberate no-op: a test between a Cmp and the branch that
		// consumes its CheckFlag must not erase the pending flag.
		return in
	default:
		return write(in, s.Dst, Bottom(), tracker)
	}
}

// transferCmp implements the Cmp recognizer. The IR models a
// comparison's "destination" as the zero-flag pseudo-register it sets, the
// same convention pkg/analysis/stack's transfer functions rely on for
// %rsp-targeted binops.
func transferCmp(compiler config.Compiler, meta config.Metadata, in State, s ir.Stmt, tracker *rsp.Tracker) Value {
	v1 := evalOperand(compiler, meta, in, s.Src1, tracker)
	v2 := evalOperand(compiler, meta, in, s.Src2, tracker)

	if v1.Is(TableSize) && s.Src2.Kind == ir.KindReg {
		return CheckFlag(0, s.Src2.RegID)
	}

	if v2.Is(TableSize) && s.Src1.Kind == ir.KindReg {
		return CheckFlag(0, s.Src1.RegID)
	}

	if compiler != config.WAMR {
		return Bottom()
	}

	if s.Src1.Kind == ir.KindImm && s.Src2.Kind == ir.KindReg && v2.IsBottom() {
		return CheckFlag(s.Src1.ImmVal, s.Src2.RegID)
	}

	if s.Src2.Kind == ir.KindImm && s.Src1.Kind == ir.KindReg && v1.IsBottom() {
		return CheckFlag(s.Src2.ImmVal, s.Src1.RegID)
	}

	return Bottom()
}

// transferShl implements the shift recognizer: `Shl(r, 4)`
// resolves to PtrOffset(Checked) if r already holds CheckedVal, otherwise to
// PtrOffset(Unchecked(D)) tagging the value with its own reaching-def set.
func transferShl(in State, s ir.Stmt, reachIn reach.State) Value {
	if s.Src2.Kind != ir.KindImm || s.Src2.ImmVal != 4 || s.Src1.Kind != ir.KindReg {
		return Bottom()
	}

	if in.Regs.Get(s.Src1.RegID).Is(CheckedVal) {
		return PtrOffsetChecked()
	}

	d := reachIn.Regs.Get(s.Src1.RegID)

	return PtrOffsetUnchecked(d)
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

// reachWrite mirrors pkg/analysis/reach's own per-statement write, stepping
// the reaching-definitions state in lockstep with the call-check state so
// transferShl always has an accurate "D at this location" (pkg/analysis/
// reach itself only exposes whole-block transfer, not a single-statement
// step, since nothing else needed one before this analyzer).
func reachWrite(cur reach.State, s ir.Stmt, idx int, block uint64, tracker *rsp.Tracker) reach.State {
	site := reach.Singleton(reach.Site{Block: block, Stmt: idx})

	switch s.Kind {
	case ir.StmtClear, ir.StmtUnop, ir.StmtBinop:
		switch s.Dst.Kind {
		case ir.KindReg:
			cur.Regs = cur.Regs.Set(s.Dst.RegID, site)
		case ir.KindMem:
			if disp, ok := s.Dst.IsRSPRelative(); ok {
				off := tracker.StackOffset(disp)
				cur.Stack = cur.Stack.Write(off, s.Dst.Size.Bytes(), site)
			}
		}
	case ir.StmtCall:
		for _, r := range ir.CallerClobbered {
			cur.Regs = cur.Regs.Set(r, reach.Set(nil))
		}
	}

	return cur
}
