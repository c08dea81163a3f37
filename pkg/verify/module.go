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
	"runtime"
	"sort"

	"github.com/PabstMatthew/veriwasm/pkg/analysis/jump"
	"github.com/PabstMatthew/veriwasm/pkg/config"
	"github.com/PabstMatthew/veriwasm/pkg/lift"
	"github.com/PabstMatthew/veriwasm/pkg/util"
)

// Module verifies every function in funcs (name -> recovered CFG) and
// returns their collected summaries. Verification is fanned out across a
// goroutine pool unless conf.Sequential is set (-sequential forces
// single-threaded execution for deterministic diagnostic ordering in
// tests). reader is threaded
// through to every function's jump resolver; nil is valid when no
// function under verification contains an indirect jump.
func Module(funcs map[string]*lift.CFG, conf config.Config, reader jump.Reader) *Result {
	stats := util.NewPerfStats()

	var summaries []FunctionSummary
	if conf.Sequential {
		summaries = sequentialModule(funcs, conf, reader)
	} else {
		summaries = parallelModule(funcs, conf, reader)
	}

	sort.Slice(summaries, func(i, j int) bool { return summaries[i].Name < summaries[j].Name })

	stats.Log("verifying module")

	return &Result{Functions: summaries}
}

func sequentialModule(funcs map[string]*lift.CFG, conf config.Config, reader jump.Reader) []FunctionSummary {
	out := make([]FunctionSummary, 0, len(funcs))

	for name, cfg := range funcs {
		out = append(out, Function(name, cfg, conf, reader))
	}

	return out
}

func parallelModule(funcs map[string]*lift.CFG, conf config.Config, reader jump.Reader) []FunctionSummary {
	c := make(chan FunctionSummary, len(funcs))
	sem := make(chan struct{}, runtime.NumCPU())

	for name, cfg := range funcs {
		go func(name string, cfg *lift.CFG) {
			sem <- struct{}{}
			defer func() { <-sem }()

			c <- Function(name, cfg, conf, reader)
		}(name, cfg)
	}

	out := make([]FunctionSummary, 0, len(funcs))
	for i := 0; i < len(funcs); i++ {
		out = append(out, <-c)
	}

	return out
}
