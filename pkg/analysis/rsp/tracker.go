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

// Package rsp implements the stack-pointer adjustment rule shared by the
// reaching-definitions, heap and call analyses.  A
// Mem([rsp+disp]) operand addresses a location relative to the *current*
// %rsp, but every analysis's StackMap is keyed by offset relative to %rsp
// at function *entry*.  Translating one into the other
// requires knowing the cumulative displacement of %rsp at that point in the
// program, which is exactly what the dedicated stack analyzer computes
// (pkg/analysis/stack) — so this tracker replays that analyzer's pure
// arithmetic (Add/Sub rsp by an immediate) given the already-joined
// per-block entry growth the stack analyzer produced, rather than
// duplicating its dataflow join in every other analysis.
package rsp

import "github.com/PabstMatthew/veriwasm/pkg/ir"

// Tracker maintains the running displacement of %rsp from its value at
// function entry, starting from a block's already-computed entry growth.
type Tracker struct {
	growth int64
}

// NewTracker starts a tracker at the given block-entry growth (as computed
// by the stack analyzer's fixed point for this block).
func NewTracker(entryGrowth int64) *Tracker {
	return &Tracker{growth: entryGrowth}
}

// Growth returns the current cumulative displacement (≤ 0 inside the
// frame).
func (t *Tracker) Growth() int64 {
	return t.growth
}

// Observe updates the tracker after statement s, applying the same
// arithmetic as the stack analyzer's Binop(Add/Sub, rsp, rsp, imm)
// transfer but without its probestack/fatal bookkeeping.  This tracker
// exists only to translate addresses, not to check safety.
func (t *Tracker) Observe(s ir.Stmt) {
	if s.Kind != ir.StmtBinop || s.Dst.Kind != ir.KindReg || s.Dst.RegID != ir.RSP {
		if s.Kind == ir.StmtProbeStack {
			t.growth -= s.ProbeBytes
		}

		return
	}

	if s.Src2.Kind != ir.KindImm {
		return
	}

	switch s.BinOp {
	case ir.Add:
		t.growth += s.Src2.ImmVal
	case ir.Sub:
		t.growth -= s.Src2.ImmVal
	}
}

// StackOffset translates a [rsp+disp] memory operand's displacement into an
// offset relative to %rsp at function entry.
func (t *Tracker) StackOffset(disp int64) int64 {
	return t.growth + disp
}
