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
package verify

import (
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/PabstMatthew/veriwasm/pkg/analysis/call"
	"github.com/PabstMatthew/veriwasm/pkg/analysis/heap"
	"github.com/PabstMatthew/veriwasm/pkg/analysis/jump"
	"github.com/PabstMatthew/veriwasm/pkg/analysis/reach"
	"github.com/PabstMatthew/veriwasm/pkg/analysis/stack"
	"github.com/PabstMatthew/veriwasm/pkg/config"
	"github.com/PabstMatthew/veriwasm/pkg/dataflow"
	"github.com/PabstMatthew/veriwasm/pkg/diag"
	"github.com/PabstMatthew/veriwasm/pkg/lift"
	"github.com/PabstMatthew/veriwasm/pkg/util"
)

// Function runs every analysis over one function's CFG and returns its
// summary (the analyses run in sequence: stack growth first, so every
// other analysis can translate [rsp+disp] operands; the jump resolver
// next, so the remaining analyses see resolved indirect-branch
// successors; reaching definitions next, feeding the call analyzer's
// branch refinement; heap and call last). reader supplies the jump
// resolver's byte access to the loaded image; a nil reader is valid for
// functions with no indirect jump (the common case in a straight-line or
// fully call/branch-structured function).
func Function(name string, cfg *lift.CFG, conf config.Config, reader jump.Reader) FunctionSummary {
	perf := util.NewPerfStats()

	cfgStart := time.Now()

	stackAnalyzer := &stack.Analyzer{Compiler: conf.Compiler}
	stackEntry := dataflow.RunWorklist[stack.Value](cfg, stackAnalyzer)
	growth := stack.EntryGrowth(stackEntry)

	jumpAnalyzer := &jump.Analyzer{Compiler: conf.Compiler, StackGrowth: growth}
	jumpEntry := dataflow.RunWorklist[jump.State](cfg, jumpAnalyzer)

	var diags []diag.Diagnostic

	if reader != nil {
		diags = append(diags, jump.Resolve(jumpAnalyzer, cfg, jumpEntry, reader)...)
	}

	reachAnalyzer := &reach.Analyzer{StackGrowth: growth}
	reachEntry := dataflow.RunWorklist[reach.State](cfg, reachAnalyzer)

	cfgElapsed := time.Since(cfgStart)

	heapStart := time.Now()
	heapAnalyzer := &heap.Analyzer{Compiler: conf.Compiler, Metadata: conf.Metadata, StackGrowth: growth}
	heapEntry := dataflow.RunWorklist[heap.State](cfg, heapAnalyzer)
	heapChecker := &heap.Checker{Compiler: conf.Compiler, Metadata: conf.Metadata, StackGrowth: growth}
	diags = append(diags, heapChecker.Check(cfg, heapEntry)...)
	heapElapsed := time.Since(heapStart)

	callStart := time.Now()
	callAnalyzer := &call.Analyzer{Compiler: conf.Compiler, Metadata: conf.Metadata, StackGrowth: growth, ReachEntry: reachEntry}
	callEntry := dataflow.RunWorklist[call.State](cfg, callAnalyzer)
	callChecker := &call.Checker{Compiler: conf.Compiler, Metadata: conf.Metadata, StackGrowth: growth, ReachEntry: reachEntry}
	diags = append(diags, callChecker.Check(cfg, callEntry)...)
	callElapsed := time.Since(callStart)

	stackStart := time.Now()
	stackChecker := &stack.Checker{Compiler: conf.Compiler}
	diags = append(diags, stackChecker.Check(cfg, stackEntry)...)
	stackElapsed := time.Since(stackStart)

	safe := !hasFailure(diags)
	if !safe {
		log.Debugf("function %s (0x%x) rejected with %d diagnostic(s)", name, cfg.Entry, len(diags))
	}

	perf.Log(fmt.Sprintf("verifying %s", name))

	return FunctionSummary{
		Name:        name,
		Entry:       cfg.Entry,
		BlockCount:  len(cfg.Blocks),
		Safe:        safe,
		Diagnostics: diags,
		CFGTime:     cfgElapsed,
		HeapTime:    heapElapsed,
		StackTime:   stackElapsed,
		CallTime:    callElapsed,
	}
}
