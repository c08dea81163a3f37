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
package dataflow

import (
	"testing"

	"github.com/PabstMatthew/veriwasm/pkg/ir"
	"github.com/PabstMatthew/veriwasm/pkg/lattice"
	"github.com/PabstMatthew/veriwasm/pkg/lift"
	"github.com/PabstMatthew/veriwasm/pkg/util/assert"
)

// constAnalyzer is a minimal analyzer over the flat int lattice: a block's
// out-state is the last immediate moved anywhere in the block, or its
// in-state if the block moves nothing.
type constAnalyzer struct{}

func (a *constAnalyzer) InitState() lattice.Const[int] {
	return lattice.Is(0)
}

func (a *constAnalyzer) AnalyzeBlock(in lattice.Const[int], block *lift.Block) lattice.Const[int] {
	out := in

	for _, s := range block.Stmts {
		if s.Kind == ir.StmtUnop && s.UnOp == ir.Mov && s.Src.Kind == ir.KindImm {
			out = lattice.Is(int(s.Src.ImmVal))
		}
	}

	return out
}

func (a *constAnalyzer) ProcessBranch(cfg *lift.CFG, out lattice.Const[int], block *lift.Block) []Edge[lattice.Const[int]] {
	return DefaultProcessBranch(cfg, out, block)
}

func movImm(v int64) ir.Stmt {
	return ir.NewUnop(ir.Mov, ir.NewReg(ir.RAX, ir.Size64), ir.NewImm(v, false, ir.Size64))
}

func diamond(left, right int64) *lift.CFG {
	b := lift.NewBuilder(0)
	b.Block(0, []uint64{10, 20}, ir.NewBranch(ir.BranchEq, ir.NewImm(20, false, ir.Size64)))
	b.Block(10, []uint64{30}, movImm(left), ir.NewBranch(ir.BranchAlways, ir.NewImm(30, false, ir.Size64)))
	b.Block(20, []uint64{30}, movImm(right), ir.NewBranch(ir.BranchAlways, ir.NewImm(30, false, ir.Size64)))
	b.Block(30, nil, ir.NewRet())

	return b.Build()
}

func TestWorklistJoinsAgreeingPaths(t *testing.T) {
	entry := RunWorklist[lattice.Const[int]](diamond(7, 7), &constAnalyzer{})

	v, ok := entry[30].Value()
	assert.Equal(t, true, ok)
	assert.Equal(t, 7, v)
}

func TestWorklistCollapsesDisagreeingPaths(t *testing.T) {
	entry := RunWorklist[lattice.Const[int]](diamond(7, 8), &constAnalyzer{})

	assert.Equal(t, true, entry[30].IsBottom(), "disagreeing paths must meet to bottom at the join")
}

// TestWorklistReachesFixedPoint checks the convergence property on a CFG
// with a loop: after RunWorklist, every edge's propagated state is at or
// above the successor's recorded entry state.
func TestWorklistReachesFixedPoint(t *testing.T) {
	b := lift.NewBuilder(0)
	b.Block(0, []uint64{10}, movImm(3), ir.NewBranch(ir.BranchAlways, ir.NewImm(10, false, ir.Size64)))
	b.Block(10, []uint64{20, 10}, ir.NewBranch(ir.BranchNeq, ir.NewImm(10, false, ir.Size64)))
	b.Block(20, nil, ir.NewRet())
	cfg := b.Build()

	a := &constAnalyzer{}
	entry := RunWorklist[lattice.Const[int]](cfg, a)

	for _, addr := range cfg.Order {
		block := cfg.Block(addr)
		out := a.AnalyzeBlock(entry[addr], block)

		for _, edge := range a.ProcessBranch(cfg, out, block) {
			assert.Equal(t, true, lattice.LessEq(entry[edge.Target], edge.State),
				"edge %d -> %d not at fixed point", addr, edge.Target)
		}
	}

	v, ok := entry[20].Value()
	assert.Equal(t, true, ok)
	assert.Equal(t, 3, v)
}
