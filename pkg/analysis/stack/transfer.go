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
package stack

import (
	"fmt"

	"github.com/PabstMatthew/veriwasm/pkg/config"
	"github.com/PabstMatthew/veriwasm/pkg/ir"
)

// Transfer applies one statement's effect on the stack-growth tuple.  It
// is the single abstract transfer function shared by the analyzer (which
// discards the violation string) and the checker (which surfaces it as a
// diagnostic), so the two can never disagree about a statement's effect.
func Transfer(compiler config.Compiler, in Tuple, s ir.Stmt) (out Tuple, violation string) {
	out = in.clone()

	switch s.Kind {
	case ir.StmtProbeStack:
		out.Growth -= s.ProbeBytes
		out.Probed = ((s.ProbeBytes / 4096) + 1) * 4096

		return out, ""
	case ir.StmtBinop:
		if s.Dst.Kind == ir.KindReg && s.Dst.RegID == ir.RSP {
			return transferRSPBinop(in, s)
		}
	case ir.StmtClear, ir.StmtUnop:
		if s.Dst.Kind == ir.KindReg && s.Dst.RegID == ir.RSP {
			out.Invalid = true
			return out, "structural fatal: write to %rsp with a non-immediate form"
		}
	}

	if compiler == config.WAMR && s.Kind == ir.StmtUnop && s.UnOp == ir.Mov {
		return transferCalleeSaved(in, s)
	}

	return out, ""
}

func transferRSPBinop(in Tuple, s ir.Stmt) (Tuple, string) {
	out := in.clone()

	isRSPImm := s.Src1.Kind == ir.KindReg && s.Src1.RegID == ir.RSP && s.Src2.Kind == ir.KindImm
	if !isRSPImm {
		out.Invalid = true
		return out, "structural fatal: write to %rsp with a non-immediate second operand"
	}

	imm := s.Src2.ImmVal

	switch s.BinOp {
	case ir.Add:
		out.Growth += imm
		return out, ""
	case ir.Sub:
		delta := imm - in.Growth

		switch {
		case delta > in.Probed+4096:
			out.Invalid = true
			return out, fmt.Sprintf("probestack violation: sub rsp, %d exceeds probed region (probed=%d, growth=%d)", imm, in.Probed, in.Growth)
		case delta > in.Probed:
			out.Growth -= imm
			out.Probed += 4096

			return out, ""
		default:
			out.Growth -= imm
			return out, ""
		}
	default:
		out.Invalid = true
		return out, "structural fatal: write to %rsp with a non-immediate form"
	}
}

func transferCalleeSaved(in Tuple, s ir.Stmt) (Tuple, string) {
	out := in.clone()

	srcIsCalleeSaved := s.Src.Kind == ir.KindReg && ir.IsCalleeSaved(s.Src.RegID)
	dstIsCalleeSaved := s.Dst.Kind == ir.KindReg && ir.IsCalleeSaved(s.Dst.RegID)
	_, dstIsStack := s.Dst.IsRSPRelative()
	_, srcIsStack := s.Src.IsRSPRelative()

	switch {
	case srcIsCalleeSaved && dstIsStack:
		if in.Invalid {
			return out, "push of callee-saved register with no known stack state"
		}

		if in.Growth > 0 {
			return out, "push of callee-saved register outside the frame (growth > 0)"
		}

		if _, dup := in.Saved[s.Src.RegID]; dup {
			out.Invalid = true
			return out, fmt.Sprintf("duplicate push of callee-saved register %d", s.Src.RegID)
		}

		out.Saved[s.Src.RegID] = in.Growth

		return out, ""
	case dstIsCalleeSaved && srcIsStack:
		saved, ok := in.Saved[s.Dst.RegID]
		if !ok {
			out.Invalid = true
			return out, fmt.Sprintf("pop of callee-saved register %d with no matching push", s.Dst.RegID)
		}

		if saved != in.Growth {
			out.Invalid = true
			return out, fmt.Sprintf("pop of callee-saved register %d at wrong stack offset", s.Dst.RegID)
		}

		delete(out.Saved, s.Dst.RegID)

		return out, ""
	}

	return out, ""
}
