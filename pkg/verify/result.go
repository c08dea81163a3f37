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

// Package verify orchestrates the four analyses (stack, reach, heap, call)
// plus the jump resolver over a function's CFG, collects their
// diagnostics, and fans a module's functions out across a goroutine
// pool.
package verify

import (
	"time"

	"github.com/PabstMatthew/veriwasm/pkg/diag"
)

// FunctionSummary is one function's verification outcome, independent of
// the JSON stats file, so embedders can consume it directly from the
// in-process API.
type FunctionSummary struct {
	Name        string
	Entry       uint64
	BlockCount  int
	Safe        bool
	Diagnostics []diag.Diagnostic

	// Per-analysis timings, matching the JSON stats schema's cfg_s/heap_s/
	// stack_s/call_s columns.  CFGTime covers every pass that
	// prepares shared state for the other three (stack-growth solving,
	// jump-table resolution, reaching definitions), since the schema names
	// no separate column for them.
	CFGTime, HeapTime, StackTime, CallTime time.Duration
}

// Result is a whole module's verification outcome.
type Result struct {
	Functions []FunctionSummary
}

// Safe reports whether every function in the module verified cleanly.
func (r *Result) Safe() bool {
	for _, f := range r.Functions {
		if !f.Safe {
			return false
		}
	}

	return true
}

// hasFailure reports whether diags contains any diagnostic that, by
// itself, fails verification (diag.Category other than Unsupported).
func hasFailure(diags []diag.Diagnostic) bool {
	for _, d := range diags {
		if d.IsFailure() {
			return true
		}
	}

	return false
}
