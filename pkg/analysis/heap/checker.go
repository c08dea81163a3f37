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
	"fmt"

	"github.com/PabstMatthew/veriwasm/pkg/analysis/rsp"
	"github.com/PabstMatthew/veriwasm/pkg/config"
	"github.com/PabstMatthew/veriwasm/pkg/diag"
	"github.com/PabstMatthew/veriwasm/pkg/ir"
	"github.com/PabstMatthew/veriwasm/pkg/lift"
)

// Checker re-walks a solved CFG applying Transfer at every instruction and
// evaluating the four memory-access predicates plus the %rdi call-site
// invariant.
type Checker struct {
	Compiler    config.Compiler
	Metadata    config.Metadata
	StackGrowth map[uint64]int64
}

// Check runs the checker over every block of cfg given the analyzer's solved
// entry-state map, returning every predicate failure found.
func (c *Checker) Check(cfg *lift.CFG, entry map[uint64]State) []diag.Diagnostic {
	var out []diag.Diagnostic

	for _, addr := range cfg.Order {
		block := cfg.Block(addr)
		if block == nil {
			continue
		}

		cur := entry[addr]
		tracker := rsp.NewTracker(c.StackGrowth[addr])

		for idx, s := range block.Stmts {
			for _, mem := range s.MemOperands() {
				if !c.checkAccess(cur, mem, tracker) {
					out = append(out, diag.Diagnostic{
						Category: diag.Reject, Addr: block.StmtAt(idx), StmtIdx: idx, Analysis: "heap",
						Predicate: "heap-access", Detail: "memory operand does not match any recognized heap, metadata or jump-table pattern",
					})
				}
			}

			if s.Kind == ir.StmtCall {
				out = append(out, c.checkCallRDI(cur, block, idx)...)
			}

			cur = Transfer(c.Compiler, c.Metadata, cur, s, tracker)
			tracker.Observe(s)
		}
	}

	return out
}

func (c *Checker) checkCallRDI(cur State, block *lift.Block, idx int) []diag.Diagnostic {
	expected := HeapBase
	if c.Compiler == config.WAMR {
		expected = WamrExecEnv
	}

	sym, ok := cur.Regs.Get(ir.RDI).Value()
	if ok && sym == expected {
		return nil
	}

	return []diag.Diagnostic{{
		Category: diag.Reject, Addr: block.StmtAt(idx), StmtIdx: idx, Analysis: "heap",
		Predicate: "call-rdi", Detail: fmt.Sprintf("%%rdi does not hold %s at call site", expected),
	}}
}

// checkAccess classifies a memory operand into one of the four accepted
// access classes, tried in order: stack access, heap-bounded access,
// recognized metadata pattern, recognized jump-table pattern.
func (c *Checker) checkAccess(cur State, v ir.Value, tracker *rsp.Tracker) bool {
	if _, ok := v.IsRSPRelative(); ok {
		return true
	}

	if c.checkHeapBounds(cur, v) {
		return true
	}

	if !evalMemPattern(c.Compiler, cur, v, tracker).IsBottom() {
		return true
	}

	if c.checkMetadataAccess(cur, v) {
		return true
	}

	return c.checkJumpTable(v)
}

// checkMetadataAccess implements the remainder of predicate 3: metadata and
// globals accesses that are legal to perform but produce no tracked symbol,
// so evalMemPattern alone does not account for them.  Lucet: reads within
// the globals area, the table-size word at [lucet_tables + 8], and the
// guest-table entry pair at [guest_table_0 + r + 8].  WAMR: reads within
// the ModuleInstance's function-index/globals window.
func (c *Checker) checkMetadataAccess(cur State, v ir.Value) bool {
	if base, disp, ok := baseOffset(v); ok {
		sym, has := cur.Regs.Get(base).Value()
		if !has {
			return false
		}

		switch {
		case sym == GlobalsBase:
			return disp >= 0 && disp <= 4096
		case c.Compiler == config.Lucet && sym == LucetTables && disp == 8:
			return true
		case c.Compiler == config.WAMR && sym == WamrModuleInstance:
			return disp >= config.WamrFuncIdxThreshold &&
				disp <= config.WamrGlobalsRegion+int64(c.Metadata.GlobalsSize)
		}

		return false
	}

	if c.Compiler == config.Lucet && v.Form == ir.AddrBaseIndexDisp && v.Base.IsReg && v.Index.IsReg && v.Disp == 8 {
		s1, ok1 := cur.Regs.Get(v.Base.Reg).Value()
		s2, ok2 := cur.Regs.Get(v.Index.Reg).Value()

		return (ok1 && s1 == GuestTable0) || (ok2 && s2 == GuestTable0)
	}

	return false
}

// checkHeapBounds implements predicate 2: exactly one register operand
// holds HeapBase, and every other filled slot (register or immediate) is
// bounded within the 4 GiB heap reservation.
func (c *Checker) checkHeapBounds(cur State, v ir.Value) bool {
	boundedImm := func(n int64) bool { return n >= 0 && n < (1<<32) }

	boundedOperand := func(op ir.Operand) bool {
		if op.IsReg {
			sym, ok := cur.Regs.Get(op.Reg).Value()
			return ok && sym == Bounded4GB
		}

		return boundedImm(op.Imm)
	}

	isHeap := func(op ir.Operand) bool {
		if !op.IsReg {
			return false
		}

		sym, ok := cur.Regs.Get(op.Reg).Value()
		return ok && sym == HeapBase
	}

	switch v.Form {
	case ir.AddrBase:
		return isHeap(v.Base)
	case ir.AddrBaseIndex:
		baseHeap, indexHeap := isHeap(v.Base), isHeap(v.Index)
		if baseHeap == indexHeap {
			return false
		}

		if baseHeap {
			return boundedOperand(v.Index)
		}

		return boundedOperand(v.Base)
	case ir.AddrBaseIndexDisp:
		baseHeap, indexHeap := isHeap(v.Base), isHeap(v.Index)
		if baseHeap == indexHeap {
			return false
		}

		other := v.Base
		if baseHeap {
			other = v.Index
		}

		return boundedOperand(other) && boundedImm(v.Disp)
	default:
		return false
	}
}

// checkJumpTable implements predicate 4: scale-4 indexing for Lucet,
// scale-8 or a non-zero displacement-gated base for WAMR.
func (c *Checker) checkJumpTable(v ir.Value) bool {
	switch v.Form {
	case ir.AddrBaseScaledIndex, ir.AddrBaseScaledIndexDisp:
		if c.Compiler == config.Lucet {
			return v.Scale == 4
		}

		return v.Scale == 8 || v.Disp != 0
	default:
		return false
	}
}
