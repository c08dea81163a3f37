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

// Package state implements the register file and stack abstractions shared
// by every analysis: a per-register slotted lattice map with x86 sub-
// register write semantics, and a byte-addressed stack map with
// overlap-invalidation.  Both are generalized over the per-analysis lattice
// value type L.
package state

import (
	"github.com/PabstMatthew/veriwasm/pkg/ir"
	"github.com/PabstMatthew/veriwasm/pkg/lattice"
)

// RegisterFile maps the 17 register slots (0..15 general purpose, plus the
// zero-flag pseudo-register 16) to a lattice value.  Every slot defaults to
// bottom when absent.
type RegisterFile[L lattice.Value[L]] struct {
	slots [ir.NumRegs]L
	// set tracks which slots have been written at least once, distinguishing
	// an explicit bottom write from an untouched (implicitly bottom) slot;
	// both read as bottom, so this only matters for Equal/Meet bookkeeping.
	set [ir.NumRegs]bool
}

// NewRegisterFile constructs an empty (all-bottom) register file.
func NewRegisterFile[L lattice.Value[L]]() RegisterFile[L] {
	return RegisterFile[L]{}
}

// Get returns the current value of register id.  It takes no access size:
// the stored value is always the 64-bit parent's value, and narrower reads
// use the same lattice value
// since these domains are symbolic (size-insensitive beyond the Bounded4GB/
// Bounded256B widening applied on write, see pkg/analysis/heap).
func (r RegisterFile[L]) Get(id uint8) L {
	return r.slots[id]
}

// Set writes value into register id's 64-bit slot, zeroing (i.e.
// overwriting outright) the parent — matching the x86 semantics that a
// 32-bit write zeroes the upper 32 bits, which this symbolic model
// represents by simply replacing whatever the prior 64-bit value was. The
// caller (the analyzer) is responsible for picking the appropriate widened
// value for sub-64-bit writes before calling Set;
func (r RegisterFile[L]) Set(id uint8, value L) RegisterFile[L] {
	r.slots[id] = value
	r.set[id] = true

	return r
}

// Meet computes the pointwise meet of two register files.
func (r RegisterFile[L]) Meet(other RegisterFile[L]) RegisterFile[L] {
	var out RegisterFile[L]

	for i := 0; i < ir.NumRegs; i++ {
		switch {
		case r.set[i] && other.set[i]:
			out.slots[i] = r.slots[i].Meet(other.slots[i])
			out.set[i] = true
		case r.set[i]:
			// other is implicitly bottom (absorbing for the flat constant
			// domains, the identity for reaching-definitions union), and
			// since we don't know L's literal bottom constructor here,
			// meeting with an empty-but-set value of this lattice type at
			// the other side would require the zero value to *be* bottom,
			// which every domain in this module satisfies by construction.
			var zero L
			out.slots[i] = r.slots[i].Meet(zero)
			out.set[i] = true
		case other.set[i]:
			var zero L
			out.slots[i] = other.slots[i].Meet(zero)
			out.set[i] = true
		}
	}

	return out
}

// Equal reports whether two register files hold identical values in every
// slot (bottom treated uniformly regardless of whether it was ever
// explicitly written).
func (r RegisterFile[L]) Equal(other RegisterFile[L]) bool {
	for i := 0; i < ir.NumRegs; i++ {
		if !r.Get(uint8(i)).Equal(other.Get(uint8(i))) {
			return false
		}
	}

	return true
}
