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

// Package dataflow implements the generic forward worklist solver shared
// by the analyses.  It is parameterized purely over a per-block state type S
// and an Analyzer[S]; none of the four concrete analyses live here — this
// package only drives them to a fixed point.
package dataflow

import (
	log "github.com/sirupsen/logrus"

	"github.com/PabstMatthew/veriwasm/pkg/lattice"
	"github.com/PabstMatthew/veriwasm/pkg/lift"
)

// Edge is one (successor, state) pair returned by ProcessBranch.
type Edge[S any] struct {
	Target uint64
	State  S
}

// Analyzer is the capability set a concrete analysis implements to be
// driven by RunWorklist: a single capability set expressed as a plain
// interface, no dynamic-dispatch trait-object hierarchy.
type Analyzer[S lattice.Value[S]] interface {
	// InitState returns the entry block's initial (non-bottom) state.
	InitState() S
	// AnalyzeBlock runs this analysis's transfer function over every
	// statement in block, starting from in, and returns the resulting
	// out-state.
	AnalyzeBlock(in S, block *lift.Block) S
	// ProcessBranch computes the (successor, state) pairs to propagate from
	// a block's out-state.  The default behavior (DefaultProcessBranch) is
	// to propagate the same out-state to every successor; analyses that
	// need edge-sensitive refinement (the call analyzer, see
	// pkg/analysis/call) override this instead of RunWorklist itself,
	// keeping control flow coupled to the lattice only where one analysis
	// actually needs it.
	ProcessBranch(cfg *lift.CFG, out S, block *lift.Block) []Edge[S]
}

// DefaultProcessBranch implements the "propagate unchanged" behavior for
// analyses that have no edge-sensitive refinement.
func DefaultProcessBranch[S lattice.Value[S]](cfg *lift.CFG, out S, block *lift.Block) []Edge[S] {
	edges := make([]Edge[S], len(block.Succs))

	for i, s := range block.Succs {
		edges[i] = Edge[S]{Target: s, State: out}
	}

	return edges
}

// RunWorklist drives analyzer to a fixed point over cfg, returning a
// mapping from block address to that block's entry state.  This is the
// forward algorithm: the entry block starts at InitState
// and every other block at bottom, a FIFO is seeded in reverse postorder,
// and each popped block's out-state is propagated to its successors via
// ProcessBranch, re-enqueuing a successor only when its entry state
// strictly decreases under meet.
//
// Because bottom is absorbing under the flat constant domains' meet (the
// reaching-definitions union is the exception: its empty-set bottom is the
// identity), a successor seen for the first time has the incoming edge
// state installed directly rather than met against the bottom placeholder;
// a block is only analyzed once
// some state has actually reached it.  The meet is monotonic over finite
// lattices of bounded height, so iteration terminates.
func RunWorklist[S lattice.Value[S]](cfg *lift.CFG, analyzer Analyzer[S]) map[uint64]S {
	entry := make(map[uint64]S, len(cfg.Blocks))
	entry[cfg.Entry] = analyzer.InitState()

	reached := make(map[uint64]bool, len(cfg.Blocks))
	reached[cfg.Entry] = true

	queue := make([]uint64, len(cfg.Order))
	copy(queue, cfg.Order)

	queued := make(map[uint64]bool, len(cfg.Order))
	for _, addr := range cfg.Order {
		queued[addr] = true
	}

	iterations := 0

	for len(queue) > 0 {
		addr := queue[0]
		queue = queue[1:]
		queued[addr] = false

		if !reached[addr] {
			// No state has flowed here yet; it re-enters the queue when a
			// predecessor first reaches it.
			continue
		}

		iterations++

		block := cfg.Block(addr)
		if block == nil {
			continue
		}

		out := analyzer.AnalyzeBlock(entry[addr], block)

		for _, edge := range analyzer.ProcessBranch(cfg, out, block) {
			changed := false

			if !reached[edge.Target] {
				entry[edge.Target] = edge.State
				reached[edge.Target] = true
				changed = true
			} else {
				cur := entry[edge.Target]
				next := cur.Meet(edge.State)

				if !next.Equal(cur) {
					entry[edge.Target] = next
					changed = true
				}
			}

			if changed && !queued[edge.Target] {
				queue = append(queue, edge.Target)
				queued[edge.Target] = true
			}
		}
	}

	log.Debugf("worklist converged after %d block visits over %d blocks", iterations, len(cfg.Blocks))

	return entry
}
