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
	"github.com/PabstMatthew/veriwasm/pkg/dataflow"
	"github.com/PabstMatthew/veriwasm/pkg/ir"
	"github.com/PabstMatthew/veriwasm/pkg/lift"
	"github.com/PabstMatthew/veriwasm/pkg/state"
)

// Analyzer implements dataflow.Analyzer[State]. StackGrowth
// supplies each block's entry %rsp displacement from the already-solved
// stack analysis, and ReachEntry supplies each block's entry state from the
// already-solved reaching-definitions analysis, exactly as
// the call checker needs "D, the reaching-def set for r at this location"
// for both the Shl recognizer and branch refinement.
type Analyzer struct {
	Compiler    config.Compiler
	Metadata    config.Metadata
	StackGrowth map[uint64]int64
	ReachEntry  map[uint64]reach.State
}

var _ dataflow.Analyzer[State] = (*Analyzer)(nil)

// InitState implements dataflow.Analyzer: Lucet starts from bottom, WAMR
// seeds %rdi with the entry ExecEnv pointer.
func (a *Analyzer) InitState() State {
	s := state.NewVariableState[Value]()

	if a.Compiler == config.WAMR {
		s.Regs = s.Regs.Set(ir.RDI, Plain(WamrExecEnv))
	}

	return s
}

// AnalyzeBlock implements dataflow.Analyzer, stepping the call-check
// transfer function and a parallel reaching-definitions replay (reachWrite)
// in lockstep, one %rsp tracker shared across both.
func (a *Analyzer) AnalyzeBlock(in State, block *lift.Block) State {
	cur := in
	reachCur := a.ReachEntry[block.Addr]
	tracker := rsp.NewTracker(a.StackGrowth[block.Addr])

	for idx, s := range block.Stmts {
		cur = Transfer(a.Compiler, a.Metadata, cur, s, tracker, reachCur)
		reachCur = reachWrite(reachCur, s, idx, block.Addr, tracker)
		tracker.Observe(s)
	}

	return cur
}

// reachAtBranch replays this analyzer's ReachEntry for block's address
// through every statement in block, yielding the reaching-definitions state
// at the point of block's trailing branch -- exactly what ProcessBranch's
// refinement step needs as "D at this location".
func (a *Analyzer) reachAtBranch(block *lift.Block) reach.State {
	reachCur := a.ReachEntry[block.Addr]
	tracker := rsp.NewTracker(a.StackGrowth[block.Addr])

	for idx, s := range block.Stmts {
		reachCur = reachWrite(reachCur, s, idx, block.Addr, tracker)
		tracker.Observe(s)
	}

	return reachCur
}
