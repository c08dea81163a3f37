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
)

// Transfer applies one statement's effect on the heap-value state, shared by
// the analyzer (forward dataflow) and the checker (re-walk for diagnostics).
//
// Binop has no recognized address-computing pattern (real
// address arithmetic is expressed entirely through a Mem operand's own
// addressing form, not through a preceding Binop); its destination is
// therefore always widened from bottom, discarding any prior symbol, the
// same outcome an unrecognized register source would produce.
func Transfer(compiler config.Compiler, meta config.Metadata, in State, s ir.Stmt, tracker *rsp.Tracker) State {
	switch s.Kind {
	case ir.StmtClear:
		return write(in, s.Dst, lattice.Bottom[Symbol](), tracker)
	case ir.StmtUnop:
		val := widen(s.Dst.Size, evalSrc(compiler, meta, in, s.Src, tracker))
		return write(in, s.Dst, val, tracker)
	case ir.StmtBinop:
		val := widen(s.Dst.Size, lattice.Bottom[Symbol]())
		return write(in, s.Dst, val, tracker)
	case ir.StmtCall:
		for _, r := range ir.CallerClobbered {
			in.Regs = in.Regs.Set(r, lattice.Bottom[Symbol]())
		}

		return in
	default:
		return in
	}
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
