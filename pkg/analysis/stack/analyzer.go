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
	"github.com/PabstMatthew/veriwasm/pkg/config"
	"github.com/PabstMatthew/veriwasm/pkg/dataflow"
	"github.com/PabstMatthew/veriwasm/pkg/lift"
)

// Analyzer implements dataflow.Analyzer[Value].
type Analyzer struct {
	Compiler config.Compiler
}

var _ dataflow.Analyzer[Value] = (*Analyzer)(nil)

// InitState implements dataflow.Analyzer.
func (a *Analyzer) InitState() Value {
	return Initial()
}

// AnalyzeBlock implements dataflow.Analyzer.
func (a *Analyzer) AnalyzeBlock(in Value, block *lift.Block) Value {
	cur := in

	for _, s := range block.Stmts {
		tup, defined := cur.Tuple()
		if !defined {
			return cur
		}

		out, _ := Transfer(a.Compiler, tup, s)
		cur = Of(out)
	}

	return cur
}

// ProcessBranch implements dataflow.Analyzer using the default
// "propagate unchanged" behavior; the stack analyzer has no edge-sensitive
// refinement.
func (a *Analyzer) ProcessBranch(cfg *lift.CFG, out Value, block *lift.Block) []dataflow.Edge[Value] {
	return dataflow.DefaultProcessBranch(cfg, out, block)
}

// EntryGrowth extracts, from a solved entry-state map, the plain int64
// growth-from-entry for every block — the input pkg/analysis/rsp.Tracker
// needs to translate [rsp+disp] operands in the other three analyses.
// Blocks whose entry state is bottom or Invalid report growth 0, which is
// safe for address translation purposes: those blocks are unreachable or
// already doomed to fail the stack checker regardless.
func EntryGrowth(entry map[uint64]Value) map[uint64]int64 {
	out := make(map[uint64]int64, len(entry))

	for addr, v := range entry {
		if tup, ok := v.Tuple(); ok && !tup.Invalid {
			out[addr] = tup.Growth
		}
	}

	return out
}
