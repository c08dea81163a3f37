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

// Package lattice provides the partial-order / meet algebra shared by every
// abstract-interpretation domain in this module (reaching definitions, heap
// values, stack growth, call-check values).  Every domain has a default
// bottom element and a commutative, associative, idempotent meet; the
// worklist solver in pkg/dataflow relies only on these properties to
// guarantee termination.
package lattice

// Value is implemented by every abstract domain used as a per-location
// lattice value (register file entries, stack slots, or the single-valued
// domains like StackGrowthLattice).  Meet must be commutative, associative
// and idempotent, and must be monotonic with respect to LessEq.
type Value[T any] interface {
	// Meet computes the greatest lower bound of this value and other.
	Meet(other T) T
	// Equal reports whether this value is identical to other.
	Equal(other T) bool
}

// LessEq reports whether a sqsubseteq b, i.e. whether meeting a and b yields
// a.  This is the standard derivation of the partial order from meet and is
// used by the worklist solver's convergence test.
func LessEq[T Value[T]](a, b T) bool {
	return a.Meet(b).Equal(a)
}
