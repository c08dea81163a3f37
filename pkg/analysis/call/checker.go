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
	"github.com/PabstMatthew/veriwasm/pkg/diag"
	"github.com/PabstMatthew/veriwasm/pkg/ir"
	"github.com/PabstMatthew/veriwasm/pkg/lift"
)

// Checker re-walks a solved CFG applying Transfer at every instruction and
// evaluating call-target and call-table-lookup predicates.
type Checker struct {
	Compiler    config.Compiler
	Metadata    config.Metadata
	StackGrowth map[uint64]int64
	ReachEntry  map[uint64]reach.State
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
		reachCur := c.ReachEntry[addr]
		tracker := rsp.NewTracker(c.StackGrowth[addr])

		for idx, s := range block.Stmts {
			var reads []ir.Value

			switch s.Kind {
			case ir.StmtUnop:
				reads = []ir.Value{s.Src}
			case ir.StmtBinop:
				reads = []ir.Value{s.Src1, s.Src2}
			}

			for _, v := range reads {
				if v.Kind == ir.KindMem && !c.checkCalltableLookup(cur, v) {
					out = append(out, diag.Diagnostic{
						Category: diag.Reject, Addr: block.StmtAt(idx), StmtIdx: idx, Analysis: "call",
						Predicate: "call-table-lookup", Detail: "call-table-shaped read with unexpected guard values",
					})
				}
			}

			if s.Kind == ir.StmtCall {
				out = append(out, c.checkCallTarget(cur, s, block, idx, tracker)...)
			}

			cur = Transfer(c.Compiler, c.Metadata, cur, s, tracker, reachCur)
			reachCur = reachWrite(reachCur, s, idx, addr, tracker)
			tracker.Observe(s)
		}
	}

	return out
}

// checkCalltableLookup implements the call-table lookup checker applied at
// every memory read.  The predicate is permissive by
// construction: a read that does not have a call-table shape at all is "not
// a calltable lookup" and passes (it is the heap checker's problem); a read
// that does have the shape is rejected unless its guard registers hold the
// expected symbolic values.
func (c *Checker) checkCalltableLookup(cur State, v ir.Value) bool {
	if c.Compiler == config.Lucet {
		ra, rb, disp, ok := dualRegDisp(v)
		if !ok || disp != 8 {
			return true
		}

		a, b := cur.Regs.Get(ra), cur.Regs.Get(rb)

		isChecked := func(val Value) bool {
			dav, ok := val.DAV()
			return ok && dav.Checked
		}

		switch {
		case a.Is(GuestTableBase):
			return isChecked(b)
		case b.Is(GuestTableBase):
			return isChecked(a)
		default:
			return true
		}
	}

	// WAMR: a function-index-table read through the ModuleInstance must land
	// inside the metadata/globals window; a scaled read gated at the globals
	// region must use a checked index; a scale-4 table read must go through
	// the function type table.
	lower := int64(config.WamrGlobalsRegion)
	upper := lower + int64(c.Metadata.GlobalsSize)

	if base, disp, ok := baseOffset(v); ok {
		if cur.Regs.Get(base).Is(WamrModuleInstance) && disp >= lower {
			return disp <= upper
		}

		return true
	}

	if v.Form == ir.AddrBaseScaledIndexDisp && v.Base.IsReg && v.Index.IsReg && v.Scale == 4 && v.Disp == lower {
		if cur.Regs.Get(v.Base.Reg).Is(WamrModuleInstance) {
			val, ok := cur.Regs.Get(v.Index.Reg).WamrCheckedOf()
			return ok && uint64(val) < c.Metadata.GlobalsSize
		}

		return true
	}

	if v.Form == ir.AddrBaseScaledIndex && v.Base.IsReg && v.Index.IsReg && v.Scale == 4 {
		return cur.Regs.Get(v.Base.Reg).Is(WamrFuncTypeTable)
	}

	return true
}

// checkCallTarget implements Call(target) predicates.
func (c *Checker) checkCallTarget(cur State, s ir.Stmt, block *lift.Block, idx int, tracker *rsp.Tracker) []diag.Diagnostic {
	reject := func(detail string) []diag.Diagnostic {
		return []diag.Diagnostic{{
			Category: diag.Reject, Addr: block.StmtAt(idx), StmtIdx: idx, Analysis: "call",
			Predicate: "call-target", Detail: detail,
		}}
	}

	target := s.CallTarget

	if c.Compiler == config.Lucet {
		switch target.Kind {
		case ir.KindReg:
			if cur.Regs.Get(target.RegID).Is(FnPtr) {
				return nil
			}

			return reject("register call target does not hold FnPtr")
		case ir.KindImm:
			resolved := uint64(target.ImmVal + int64(block.StmtAt(idx)) + 5)
			if c.Metadata.IsKnownCallTarget(resolved) {
				return nil
			}

			return reject("immediate call target does not resolve to a known function or the PLT range")
		default:
			return reject("unrecognized Lucet call-target operand form")
		}
	}

	// WAMR.
	switch target.Kind {
	case ir.KindMem:
		// The dispatch must be a scale-8 lookup whose base register holds the
		// function pointer table and whose index has been resolved to a
		// bounded function index.
		if target.Form == ir.AddrBaseScaledIndex && target.Base.IsReg && target.Index.IsReg && target.Scale == 8 {
			if !cur.Regs.Get(target.Base.Reg).Is(WamrFuncPtrsTable) {
				return reject("indirect call without a valid function-pointer-table base")
			}

			if !cur.Regs.Get(target.Index.Reg).Is(WamrFuncIdx) {
				return reject("indirect call without a valid function index")
			}

			return nil
		}

		return reject("memory call target does not match [WamrFuncPtrsTable + WamrFuncIdx*8]")
	case ir.KindImm:
		resolved := uint64(target.ImmVal + int64(block.StmtAt(idx)) + 5)
		if c.Metadata.IsKnownCallTarget(resolved) {
			return nil
		}

		return reject("immediate call target does not resolve to a known function address")
	default:
		return reject("unrecognized WAMR call-target operand form")
	}
}
