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

// Package stack implements the stack-growth analyzer and checker:
// tracking %rsp's displacement from entry, probestack
// coverage, and (for WAMR) callee-saved push/pop discipline.
package stack

// Tuple is the concrete value of StackGrowthLattice: the
// signed displacement of %rsp from its value at function entry, the number
// of bytes below %rsp guaranteed to have been probed, and (WAMR only) the
// map of currently-spilled callee-saved registers to the frame offset
// their original value was saved at.
//
// Invalid marks a state produced by a structural-fatal %rsp write, by a
// probestack-violating subtraction, or (WAMR) by a duplicate push or an
// unmatched or misplaced pop of a callee-saved register; it is
// still a concrete lattice element (so Meet/Equal treat it like any other
// tuple under the flat lattice's rules), but every checker predicate
// rejects it.
type Tuple struct {
	Growth  int64
	Probed  int64
	Saved   map[uint8]int64
	Invalid bool
}

// initialTuple is the analyzer's seed state: nothing grown, one guard
// page guaranteed, nothing spilled.
func initialTuple() Tuple {
	return Tuple{Growth: 0, Probed: 4096, Saved: map[uint8]int64{}}
}

func (t Tuple) equal(other Tuple) bool {
	if t.Growth != other.Growth || t.Probed != other.Probed || t.Invalid != other.Invalid {
		return false
	}

	if len(t.Saved) != len(other.Saved) {
		return false
	}

	for k, v := range t.Saved {
		if ov, ok := other.Saved[k]; !ok || ov != v {
			return false
		}
	}

	return true
}

func (t Tuple) clone() Tuple {
	saved := make(map[uint8]int64, len(t.Saved))
	for k, v := range t.Saved {
		saved[k] = v
	}

	return Tuple{Growth: t.Growth, Probed: t.Probed, Saved: saved, Invalid: t.Invalid}
}

// Value is the flat (Const-shaped) StackGrowthLattice value: bottom, or
// exactly one concrete Tuple.  It is not built on lattice.Const[T] because
// Tuple embeds a map and so is not a comparable type.
type Value struct {
	defined bool
	tuple   Tuple
}

// Bottom is the default StackGrowthLattice element.
func Bottom() Value {
	return Value{}
}

// Of wraps a concrete tuple.
func Of(t Tuple) Value {
	return Value{defined: true, tuple: t}
}

// Initial is the analyzer's seed state, wrapped as a lattice value.
func Initial() Value {
	return Of(initialTuple())
}

// Tuple returns the concrete tuple and true, or the zero Tuple and false if
// v is bottom.
func (v Value) Tuple() (Tuple, bool) {
	return v.tuple, v.defined
}

// Meet implements lattice.Value.  Bottom is absorbing: a path with no
// defined stack state poisons the join, exactly like the flat const
// lattices of the other domains.
func (v Value) Meet(other Value) Value {
	if !v.defined {
		return v
	}

	if !other.defined {
		return other
	}

	if v.tuple.equal(other.tuple) {
		return v
	}

	return Bottom()
}

// Equal implements lattice.Value.
func (v Value) Equal(other Value) bool {
	if v.defined != other.defined {
		return false
	}

	return !v.defined || v.tuple.equal(other.tuple)
}
