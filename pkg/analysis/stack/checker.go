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

	log "github.com/sirupsen/logrus"

	"github.com/PabstMatthew/veriwasm/pkg/config"
	"github.com/PabstMatthew/veriwasm/pkg/diag"
	"github.com/PabstMatthew/veriwasm/pkg/ir"
	"github.com/PabstMatthew/veriwasm/pkg/lift"
)

// Checker re-walks a solved CFG applying Transfer at every instruction and
// evaluating the five stack-safety predicates.
type Checker struct {
	Compiler config.Compiler
}

// Check runs the checker over every block of cfg given the analyzer's
// solved entry-state map, returning every predicate failure found.
func (c *Checker) Check(cfg *lift.CFG, entry map[uint64]Value) []diag.Diagnostic {
	var out []diag.Diagnostic

	for _, addr := range cfg.Order {
		block := cfg.Block(addr)
		if block == nil {
			continue
		}

		cur := entry[addr]

		for idx, s := range block.Stmts {
			tup, defined := cur.Tuple()
			if !defined || tup.Invalid {
				out = append(out, diag.Diagnostic{
					Category: diag.Reject, Addr: block.StmtAt(idx), StmtIdx: idx, Analysis: "stack",
					Predicate: "state-defined", Detail: "stack-growth state is undefined or invalid at this instruction",
				})

				break
			}

			out = append(out, c.checkStmt(block, idx, tup)...)

			next, violation := Transfer(c.Compiler, tup, s)
			if violation != "" {
				out = append(out, diag.Diagnostic{
					Category: diag.StructuralFatal, Addr: block.StmtAt(idx), StmtIdx: idx, Analysis: "stack",
					Predicate: "transfer", Detail: violation,
				})
			}

			cur = Of(next)
		}
	}

	return out
}

func (c *Checker) checkStmt(block *lift.Block, idx int, tup Tuple) []diag.Diagnostic {
	var out []diag.Diagnostic

	s := block.Stmts[idx]
	addr := block.StmtAt(idx)

	readBound := func(off int64) bool {
		if c.Compiler == config.WAMR {
			return off > config.WamrStackLowerBound && off < config.WamrStackUpperBound
		}

		return off > -tup.Probed && off < config.LucetStackUpperBound
	}

	writeBound := func(off int64) bool {
		if c.Compiler == config.WAMR {
			return off > config.WamrStackLowerBound && off < 0
		}

		return off > -tup.Probed && off < 0
	}

	checkRead := func(v ir.Value) {
		disp, ok := v.IsRSPRelative()
		if !ok {
			return
		}

		off := tup.Growth + disp
		if !readBound(off) {
			out = append(out, diag.Diagnostic{
				Category: diag.Reject, Addr: addr, StmtIdx: idx, Analysis: "stack",
				Predicate: "stack-read-bound", Detail: fmt.Sprintf("read at offset %d outside allowed range", off),
			})
		}
	}

	checkWrite := func(v ir.Value) {
		disp, ok := v.IsRSPRelative()
		if !ok {
			return
		}

		off := tup.Growth + disp
		if !writeBound(off) {
			out = append(out, diag.Diagnostic{
				Category: diag.Reject, Addr: addr, StmtIdx: idx, Analysis: "stack",
				Predicate: "stack-write-bound", Detail: fmt.Sprintf("write at offset %d outside allowed range", off),
			})
		}

		if c.Compiler == config.WAMR {
			for reg, savedAt := range tup.Saved {
				if savedAt == off {
					out = append(out, diag.Diagnostic{
						Category: diag.Reject, Addr: addr, StmtIdx: idx, Analysis: "stack",
						Predicate: "stack-write-over-saved", Detail: fmt.Sprintf("write at offset %d clobbers saved register %d", off, reg),
					})
				}
			}
		}
	}

	// A write to a callee-saved register is only legal while its original
	// value is spilled, whether the write comes from a Unop or a Binop.
	checkCalleeSavedDst := func(dst ir.Value) {
		if c.Compiler != config.WAMR || dst.Kind != ir.KindReg || !ir.IsCalleeSaved(dst.RegID) {
			return
		}

		if _, ok := tup.Saved[dst.RegID]; !ok {
			out = append(out, diag.Diagnostic{
				Category: diag.Reject, Addr: addr, StmtIdx: idx, Analysis: "stack",
				Predicate: "callee-saved-restore", Detail: fmt.Sprintf("register %d written without a matching spill", dst.RegID),
			})
		}
	}

	switch s.Kind {
	case ir.StmtUnop:
		checkRead(s.Src)
		checkWrite(s.Dst)
		checkCalleeSavedDst(s.Dst)
	case ir.StmtBinop:
		checkRead(s.Src1)
		checkRead(s.Src2)
		checkWrite(s.Dst)
		checkCalleeSavedDst(s.Dst)
	case ir.StmtClear:
		checkWrite(s.Dst)
	case ir.StmtRet:
		if tup.Growth != 0 {
			out = append(out, diag.Diagnostic{
				Category: diag.Reject, Addr: addr, StmtIdx: idx, Analysis: "stack",
				Predicate: "ret-balance", Detail: fmt.Sprintf("growth %d at ret, expected 0", tup.Growth),
			})
		}

		if c.Compiler == config.WAMR && len(tup.Saved) != 0 {
			out = append(out, diag.Diagnostic{
				Category: diag.Reject, Addr: addr, StmtIdx: idx, Analysis: "stack",
				Predicate: "ret-saved-empty", Detail: fmt.Sprintf("%d callee-saved registers never restored", len(tup.Saved)),
			})
		}
	case ir.StmtUndefined:
		log.Debugf("0x%x: unsupported instruction transferred as Clear", addr)
	}

	return out
}
