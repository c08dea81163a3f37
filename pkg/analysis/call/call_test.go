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
	"testing"

	"github.com/PabstMatthew/veriwasm/pkg/analysis/reach"
	"github.com/PabstMatthew/veriwasm/pkg/config"
	"github.com/PabstMatthew/veriwasm/pkg/dataflow"
	"github.com/PabstMatthew/veriwasm/pkg/ir"
	"github.com/PabstMatthew/veriwasm/pkg/lift"
	"github.com/PabstMatthew/veriwasm/pkg/util/assert"
)

// TestLucetIndirectCallChecked: a bounds
// check on the indirect-call index, taken, makes the eventual call target
// FnPtr and the call verifies.
func TestLucetIndirectCallChecked(t *testing.T) {
	meta := config.Metadata{GuestTable0: 0x1000, LucetTables: 0x2000}

	// Block 0 (entry): seed rsi/rdi from metadata immediates, compare rcx
	// against the table size, branch on the bounds check.
	b := lift.NewBuilder(0)
	b.Block(0, []uint64{10, 20},
		ir.NewUnop(ir.Mov, ir.NewReg(ir.RSI, ir.Size64), ir.NewImm(meta.LucetTables, false, ir.Size64)),
		ir.NewUnop(ir.Mov, ir.NewReg(ir.RDI, ir.Size64), ir.NewImm(meta.GuestTable0, false, ir.Size64)),
		ir.NewBinop(ir.Cmp, ir.NewReg(ir.ZF, ir.Size64), ir.NewReg(ir.RCX, ir.Size64),
			ir.NewMem(ir.Size64, ir.AddrBaseIndexDisp, ir.Reg(ir.RSI), ir.Imm(0), 0, 8)),
		ir.NewBranch(ir.BranchAboveEq, ir.NewImm(20, false, ir.Size64)),
	)
	// Block 10 (bounds check passed, Lucet's fallthrough/equality-taken edge):
	// shift the now-CheckedVal index into a table offset and load the target.
	b.Block(10, nil,
		ir.NewBinop(ir.Shl, ir.NewReg(ir.RCX, ir.Size64), ir.NewReg(ir.RCX, ir.Size64), ir.NewImm(4, false, ir.Size64)),
		ir.NewUnop(ir.Mov, ir.NewReg(ir.RAX, ir.Size64),
			ir.NewMem(ir.Size64, ir.AddrBaseIndexDisp, ir.Reg(ir.RDI), ir.Reg(ir.RCX), 0, 8)),
		ir.NewCall(ir.NewReg(ir.RAX, ir.Size64)),
	)
	// Block 20 (bounds check failed): trap, modeled as a bare return.
	b.Block(20, nil, ir.NewRet())

	cfg := b.Build()

	stackGrowth := map[uint64]int64{0: 0, 10: 0, 20: 0}
	reachEntry := dataflow.RunWorklist[reach.State](cfg, &reach.Analyzer{StackGrowth: stackGrowth})

	a := &Analyzer{Compiler: config.Lucet, Metadata: meta, StackGrowth: stackGrowth, ReachEntry: reachEntry}
	entry := dataflow.RunWorklist[State](cfg, a)

	c := &Checker{Compiler: config.Lucet, Metadata: meta, StackGrowth: stackGrowth, ReachEntry: reachEntry}
	diags := c.Check(cfg, entry)

	assert.Equal(t, 0, len(diags), "a bounds-checked indirect call should verify")
}

// TestLucetIndirectCallUncheckedRejected omits the cmp/jae bounds check
// before the shift: rcx never becomes CheckedVal, so the shifted value stays
// PtrOffset(Unchecked(...)), the load can't recognize FnPtr, and the call
// target predicate rejects.
func TestLucetIndirectCallUncheckedRejected(t *testing.T) {
	meta := config.Metadata{GuestTable0: 0x1000, LucetTables: 0x2000}

	b := lift.NewBuilder(0)
	b.Block(0, nil,
		ir.NewUnop(ir.Mov, ir.NewReg(ir.RDI, ir.Size64), ir.NewImm(meta.GuestTable0, false, ir.Size64)),
		ir.NewBinop(ir.Shl, ir.NewReg(ir.RCX, ir.Size64), ir.NewReg(ir.RCX, ir.Size64), ir.NewImm(4, false, ir.Size64)),
		ir.NewUnop(ir.Mov, ir.NewReg(ir.RAX, ir.Size64),
			ir.NewMem(ir.Size64, ir.AddrBaseIndexDisp, ir.Reg(ir.RDI), ir.Reg(ir.RCX), 0, 8)),
		ir.NewCall(ir.NewReg(ir.RAX, ir.Size64)),
	)
	cfg := b.Build()

	stackGrowth := map[uint64]int64{0: 0}
	reachEntry := dataflow.RunWorklist[reach.State](cfg, &reach.Analyzer{StackGrowth: stackGrowth})

	a := &Analyzer{Compiler: config.Lucet, Metadata: meta, StackGrowth: stackGrowth, ReachEntry: reachEntry}
	entry := dataflow.RunWorklist[State](cfg, a)

	c := &Checker{Compiler: config.Lucet, Metadata: meta, StackGrowth: stackGrowth, ReachEntry: reachEntry}
	diags := c.Check(cfg, entry)

	found := false
	for _, d := range diags {
		if d.Predicate == "call-target" {
			found = true
		}
	}

	assert.Equal(t, true, found, "an unchecked indirect call target should be rejected")
}

// TestRefinementPropagatesThroughSharedDefs pins the check-propagation
// property: every location whose reaching-def set equals the checked
// register's is substituted on the refined edge, while the empty-set guard
// keeps never-defined locations from spuriously aliasing.
func TestRefinementPropagatesThroughSharedDefs(t *testing.T) {
	d := reach.Set{{Block: 0, Stmt: 5}}

	var reachState reach.State
	reachState.Regs = reachState.Regs.Set(ir.RCX, d)
	reachState.Regs = reachState.Regs.Set(ir.RDX, d)
	reachState.Stack = reachState.Stack.Write(-8, 8, d)

	var cur State
	cur.Regs = cur.Regs.Set(ir.RBX, PtrOffsetUnchecked(d))
	cur.Stack = cur.Stack.Write(-16, 8, PtrOffsetUnchecked(d))

	refined := refineState(cur, reachState, ir.RCX, Plain(CheckedVal), d)

	assert.Equal(t, true, refined.Regs.Get(ir.RCX).Is(CheckedVal), "the checked register itself")
	assert.Equal(t, true, refined.Regs.Get(ir.RDX).Is(CheckedVal), "a register sharing the def set")
	assert.Equal(t, true, refined.Stack.Read(-8, 8).Is(CheckedVal), "a stack slot sharing the def set")

	// The stack-held offset thunk resolves; the register-held one keeps its
	// inverted guard and stays unchecked (the preserved asymmetry, see
	// DESIGN.md).
	dav, ok := refined.Stack.Read(-16, 8).DAV()
	assert.Equal(t, true, ok)
	assert.Equal(t, true, dav.Checked, "a stack PtrOffset thunk with matching defs resolves")

	dav, ok = refined.Regs.Get(ir.RBX).DAV()
	assert.Equal(t, true, ok)
	assert.Equal(t, false, dav.Checked, "a register PtrOffset thunk does not resolve under the preserved guard")

	// Registers that never aliased the check stay untouched.
	assert.Equal(t, true, refined.Regs.Get(ir.RAX).IsBottom())
}

// TestRefinementEmptyDefSetDoesNotAlias pins the Open Question 2 guard: a
// checked register whose def set is empty still becomes CheckedVal, but no
// other empty-set register is dragged along with it.
func TestRefinementEmptyDefSetDoesNotAlias(t *testing.T) {
	var reachState reach.State

	var cur State

	refined := refineState(cur, reachState, ir.RCX, Plain(CheckedVal), reach.Set(nil))

	assert.Equal(t, true, refined.Regs.Get(ir.RCX).Is(CheckedVal))
	assert.Equal(t, true, refined.Regs.Get(ir.RDX).IsBottom(), "an empty def set must not alias other registers")
}

// TestInterveningTestPreservesCheckFlag places a flag-writing `test`
// between the bounds-check cmp and the branch that consumes it; the Test
// transfer is a deliberate no-op, so the pending CheckFlag survives and the
// indirect call still verifies.
func TestInterveningTestPreservesCheckFlag(t *testing.T) {
	meta := config.Metadata{GuestTable0: 0x1000, LucetTables: 0x2000}

	b := lift.NewBuilder(0)
	b.Block(0, []uint64{10, 20},
		ir.NewUnop(ir.Mov, ir.NewReg(ir.RSI, ir.Size64), ir.NewImm(meta.LucetTables, false, ir.Size64)),
		ir.NewUnop(ir.Mov, ir.NewReg(ir.RDI, ir.Size64), ir.NewImm(meta.GuestTable0, false, ir.Size64)),
		ir.NewBinop(ir.Cmp, ir.NewReg(ir.ZF, ir.Size64), ir.NewReg(ir.RCX, ir.Size64),
			ir.NewMem(ir.Size64, ir.AddrBaseIndexDisp, ir.Reg(ir.RSI), ir.Imm(0), 0, 8)),
		ir.NewBinop(ir.Test, ir.NewReg(ir.ZF, ir.Size64), ir.NewReg(ir.R8, ir.Size64), ir.NewReg(ir.R8, ir.Size64)),
		ir.NewBranch(ir.BranchAboveEq, ir.NewImm(20, false, ir.Size64)),
	)
	b.Block(10, nil,
		ir.NewBinop(ir.Shl, ir.NewReg(ir.RCX, ir.Size64), ir.NewReg(ir.RCX, ir.Size64), ir.NewImm(4, false, ir.Size64)),
		ir.NewUnop(ir.Mov, ir.NewReg(ir.RAX, ir.Size64),
			ir.NewMem(ir.Size64, ir.AddrBaseIndexDisp, ir.Reg(ir.RDI), ir.Reg(ir.RCX), 0, 8)),
		ir.NewCall(ir.NewReg(ir.RAX, ir.Size64)),
	)
	b.Block(20, nil, ir.NewRet())

	cfg := b.Build()

	stackGrowth := map[uint64]int64{0: 0, 10: 0, 20: 0}
	reachEntry := dataflow.RunWorklist[reach.State](cfg, &reach.Analyzer{StackGrowth: stackGrowth})

	a := &Analyzer{Compiler: config.Lucet, Metadata: meta, StackGrowth: stackGrowth, ReachEntry: reachEntry}
	entry := dataflow.RunWorklist[State](cfg, a)

	c := &Checker{Compiler: config.Lucet, Metadata: meta, StackGrowth: stackGrowth, ReachEntry: reachEntry}
	diags := c.Check(cfg, entry)

	assert.Equal(t, 0, len(diags), "an intervening test must not erase the pending bounds check")
}
