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
	"testing"

	"github.com/PabstMatthew/veriwasm/pkg/config"
	"github.com/PabstMatthew/veriwasm/pkg/dataflow"
	"github.com/PabstMatthew/veriwasm/pkg/ir"
	"github.com/PabstMatthew/veriwasm/pkg/lift"
	"github.com/PabstMatthew/veriwasm/pkg/util/assert"
)

type fakeReader struct {
	u32 map[uint64]uint32
	u64 map[uint64]uint64
}

func (r fakeReader) ReadU32(addr uint64) (uint32, bool) { v, ok := r.u32[addr]; return v, ok }
func (r fakeReader) ReadU64(addr uint64) (uint64, bool) { v, ok := r.u64[addr]; return v, ok }

// TestLucetSwitchResolvesJumpTable covers a Lucet-compiled switch: `cmp
// rcx, 3; jae default; lea rax, [table+rcx*4]; jmp rax`, where the jump
// table holds 3 relative deltas from its own base.
func TestLucetSwitchResolvesJumpTable(t *testing.T) {
	const tableBase = 0x2000

	b := lift.NewBuilder(0)
	b.Block(0, []uint64{10, 20},
		ir.NewBinop(ir.Cmp, ir.NewReg(ir.ZF, ir.Size64), ir.NewReg(ir.RCX, ir.Size64), ir.NewImm(3, false, ir.Size64)),
		ir.NewBranch(ir.BranchAboveEq, ir.NewImm(20, false, ir.Size64)),
	)
	b.Block(10, nil,
		ir.NewUnop(ir.Mov, ir.NewReg(ir.RAX, ir.Size64),
			ir.NewMem(ir.Size64, ir.AddrBaseScaledIndex, ir.Imm(tableBase), ir.Reg(ir.RCX), 4, 0)),
		ir.NewBranch(ir.BranchAlways, ir.NewReg(ir.RAX, ir.Size64)),
	)
	b.Block(20, nil, ir.NewRet())

	cfg := b.Build()

	stackGrowth := map[uint64]int64{0: 0, 10: 0, 20: 0}
	a := &Analyzer{Compiler: config.Lucet, StackGrowth: stackGrowth}
	entry := dataflow.RunWorklist[State](cfg, a)

	reader := fakeReader{u32: map[uint64]uint32{
		tableBase + 0: uint32(int32(0x3000 - tableBase)),
		tableBase + 4: uint32(int32(0x3010 - tableBase)),
		tableBase + 8: uint32(int32(0x3020 - tableBase)),
	}}

	diags := Resolve(a, cfg, entry, reader)
	assert.Equal(t, 0, len(diags), "expected the jump table to resolve cleanly")

	block10 := cfg.Block(10)
	assert.Equal(t, 3, len(block10.Succs), "expected 3 resolved successors")
	assert.Equal(t, uint64(0x3000), block10.Succs[0], "entry 0")
	assert.Equal(t, uint64(0x3010), block10.Succs[1], "entry 1")
	assert.Equal(t, uint64(0x3020), block10.Succs[2], "entry 2")
}

// TestUnresolvedIndirectBranchIsFatal covers an indirect branch whose
// target register never resolves to a JmpTarget (e.g. the bounds check is
// missing), a structural fatal.
func TestUnresolvedIndirectBranchIsFatal(t *testing.T) {
	b := lift.NewBuilder(0)
	b.Block(0, nil,
		ir.NewUnop(ir.Mov, ir.NewReg(ir.RAX, ir.Size64), ir.NewReg(ir.RCX, ir.Size64)),
		ir.NewBranch(ir.BranchAlways, ir.NewReg(ir.RAX, ir.Size64)),
	)
	cfg := b.Build()

	a := &Analyzer{Compiler: config.Lucet, StackGrowth: map[uint64]int64{0: 0}}
	entry := dataflow.RunWorklist[State](cfg, a)

	diags := Resolve(a, cfg, entry, fakeReader{})

	found := false
	for _, d := range diags {
		found = found || d.Predicate == "indirect-jump-resolution"
	}

	assert.Equal(t, true, found, "expected an unresolved indirect branch to be flagged")
}
