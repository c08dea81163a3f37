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
	"github.com/PabstMatthew/veriwasm/pkg/dataflow"
	"github.com/PabstMatthew/veriwasm/pkg/ir"
	"github.com/PabstMatthew/veriwasm/pkg/lift"
	"github.com/PabstMatthew/veriwasm/pkg/state"
)

// State is the per-block state of the switch analysis: VariableState<SwitchLattice>.
type State = state.VariableState[Value]

// Analyzer implements dataflow.Analyzer[State] for the switch analysis.
// StackGrowth supplies each block's entry %rsp displacement from the
// already-solved stack analysis.
type Analyzer struct {
	Compiler    config.Compiler
	StackGrowth map[uint64]int64
}

var _ dataflow.Analyzer[State] = (*Analyzer)(nil)

// InitState implements dataflow.Analyzer.
func (a *Analyzer) InitState() State {
	return state.NewVariableState[Value]()
}

// AnalyzeBlock implements dataflow.Analyzer.
func (a *Analyzer) AnalyzeBlock(in State, block *lift.Block) State {
	cur := in
	tracker := rsp.NewTracker(a.StackGrowth[block.Addr])

	for _, s := range block.Stmts {
		cur = Transfer(a.Compiler, cur, s, tracker)
		tracker.Observe(s)
	}

	return cur
}

// ProcessBranch overrides the default propagation to refine the
// index-checked register to UpperBound(imm) on the bounds-passed edge, the
// minimal analogue of call.Analyzer's branch refinement without the
// alias propagation, since the switch analyzer only ever needs the one
// compared register.
func (a *Analyzer) ProcessBranch(cfg *lift.CFG, out State, block *lift.Block) []dataflow.Edge[State] {
	if len(block.Stmts) == 0 || block.Stmts[len(block.Stmts)-1].Kind != ir.StmtBranch {
		return dataflow.DefaultProcessBranch(cfg, out, block)
	}

	if block.Stmts[len(block.Stmts)-1].BranchKind == ir.BranchAlways || len(block.Succs) != 2 {
		return dataflow.DefaultProcessBranch(cfg, out, block)
	}

	imm, reg, ok := out.Regs.Get(ir.ZF).BoundCheckOperands()
	if !ok {
		return dataflow.DefaultProcessBranch(cfg, out, block)
	}

	cleared := out
	cleared.Regs = cleared.Regs.Set(ir.ZF, Bottom())

	refined := cleared
	refined.Regs = refined.Regs.Set(reg, UpperBound(uint64(imm)))

	// Lucet's fallthrough / WAMR's taken edge is the bounds-passed edge, the
	// same asymmetry call.Analyzer.ProcessBranch applies.
	equalityIdx := 0
	if a.Compiler != config.Lucet {
		equalityIdx = 1
	}

	edges := make([]dataflow.Edge[State], 2)
	for i, target := range block.Succs {
		if i == equalityIdx {
			edges[i] = dataflow.Edge[State]{Target: target, State: refined}
		} else {
			edges[i] = dataflow.Edge[State]{Target: target, State: cleared}
		}
	}

	return edges
}
