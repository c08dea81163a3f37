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

// Package reach implements the reaching-definitions analysis: every write
// is named by the (block address, statement index) of its producing
// statement.
package reach

import "sort"

// Site is a single reaching-definition site.
type Site struct {
	Block uint64
	Stmt  int
}

// Set is the ReachLattice value: a finite, sorted, deduped
// set of definition sites.  Its zero value is the empty set, which is this
// domain's bottom, so it plugs directly into state.RegisterFile/StackMap's
// zero-value-is-bottom assumption without any constructor call.
type Set []Site

// Singleton constructs a one-element Set.
func Singleton(site Site) Set {
	return Set{site}
}

// Empty reports whether s has no definition sites.  Guarding on this
// before comparing two sets for equality keeps check propagation from
// treating two never-defined locations as spuriously equal.
func (s Set) Empty() bool {
	return len(s) == 0
}

func less(a, b Site) bool {
	if a.Block != b.Block {
		return a.Block < b.Block
	}

	return a.Stmt < b.Stmt
}

// Meet is set union.
func (s Set) Meet(other Set) Set {
	if len(s) == 0 {
		return other
	}

	if len(other) == 0 {
		return s
	}

	out := make(Set, 0, len(s)+len(other))
	out = append(out, s...)

	for _, site := range other {
		i := sort.Search(len(out), func(i int) bool { return !less(out[i], site) })
		if i < len(out) && out[i] == site {
			continue
		}

		out = append(out, Site{})
		copy(out[i+1:], out[i:])
		out[i] = site
	}

	return out
}

// Equal reports whether two sets contain exactly the same sites.
func (s Set) Equal(other Set) bool {
	if len(s) != len(other) {
		return false
	}

	for i := range s {
		if s[i] != other[i] {
			return false
		}
	}

	return true
}
