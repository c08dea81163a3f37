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
package reach

import (
	"github.com/PabstMatthew/veriwasm/pkg/analysis/rsp"
	"github.com/PabstMatthew/veriwasm/pkg/dataflow"
	"github.com/PabstMatthew/veriwasm/pkg/ir"
	"github.com/PabstMatthew/veriwasm/pkg/lift"
	"github.com/PabstMatthew/veriwasm/pkg/state"
)

// State is the per-block state of the reaching-definitions analysis:
// VariableState<ReachLattice>.
type State = state.VariableState[Set]

// Analyzer implements dataflow.Analyzer[State].
// StackGrowth supplies each block's entry displacement of %rsp from the
// already-solved stack analysis, used to translate [rsp+disp] operands into
// offset-from-entry stack-map keys (see pkg/analysis/rsp).
type Analyzer struct {
	StackGrowth map[uint64]int64
}

var _ dataflow.Analyzer[State] = (*Analyzer)(nil)

// InitState implements dataflow.Analyzer.
func (a *Analyzer) InitState() State {
	return state.NewVariableState[Set]()
}

// AnalyzeBlock implements dataflow.Analyzer.
func (a *Analyzer) AnalyzeBlock(in State, block *lift.Block) State {
	cur := in
	tracker := rsp.NewTracker(a.StackGrowth[block.Addr])

	for idx, s := range block.Stmts {
		site := Singleton(Site{Block: block.Addr, Stmt: idx})

		switch s.Kind {
		case ir.StmtClear, ir.StmtUnop, ir.StmtBinop:
			cur = write(cur, s.Dst, site, tracker)
		case ir.StmtCall:
			for _, r := range ir.CallerClobbered {
				cur.Regs = cur.Regs.Set(r, Set(nil))
			}
		}

		tracker.Observe(s)
	}

	return cur
}

// ProcessBranch implements dataflow.Analyzer using the default
// "propagate unchanged" behavior; reaching definitions has
// no edge-sensitive refinement.
func (a *Analyzer) ProcessBranch(cfg *lift.CFG, out State, block *lift.Block) []dataflow.Edge[State] {
	return dataflow.DefaultProcessBranch(cfg, out, block)
}

func write(cur State, dst ir.Value, value Set, tracker *rsp.Tracker) State {
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
