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
	"github.com/PabstMatthew/veriwasm/pkg/dataflow"
	"github.com/PabstMatthew/veriwasm/pkg/ir"
	"github.com/PabstMatthew/veriwasm/pkg/lattice"
	"github.com/PabstMatthew/veriwasm/pkg/lift"
	"github.com/PabstMatthew/veriwasm/pkg/state"
)

// Analyzer implements dataflow.Analyzer[State]. StackGrowth
// supplies each block's entry displacement of %rsp from the already-solved
// stack analysis, as in pkg/analysis/reach.
type Analyzer struct {
	Compiler    config.Compiler
	Metadata    config.Metadata
	StackGrowth map[uint64]int64
}

var _ dataflow.Analyzer[State] = (*Analyzer)(nil)

// InitState implements dataflow.Analyzer, seeding %rdi with HeapBase
// (Lucet) or the entry ExecEnv pointer (WAMR).
func (a *Analyzer) InitState() State {
	s := state.NewVariableState[Value]()

	seed := HeapBase
	if a.Compiler == config.WAMR {
		seed = WamrExecEnv
	}

	s.Regs = s.Regs.Set(ir.RDI, lattice.Is(seed))

	return s
}

// AnalyzeBlock implements dataflow.Analyzer.
func (a *Analyzer) AnalyzeBlock(in State, block *lift.Block) State {
	cur := in
	tracker := rsp.NewTracker(a.StackGrowth[block.Addr])

	for _, s := range block.Stmts {
		cur = Transfer(a.Compiler, a.Metadata, cur, s, tracker)
		tracker.Observe(s)
	}

	return cur
}

// ProcessBranch implements dataflow.Analyzer using the default
// "propagate unchanged" behavior; the heap analyzer has no edge-sensitive
// refinement (that belongs to the call analyzer).
func (a *Analyzer) ProcessBranch(cfg *lift.CFG, out State, block *lift.Block) []dataflow.Edge[State] {
	return dataflow.DefaultProcessBranch(cfg, out, block)
}
