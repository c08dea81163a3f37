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
package state

import "github.com/PabstMatthew/veriwasm/pkg/lattice"

// VariableState pairs a register file with a stack map, both over the
// same lattice value type L.  This is the
// per-block state threaded through the reaching-definitions, heap and call
// analyses (the stack analyzer uses a single StackGrowthLattice value
// instead, since its domain has no per-location structure — see
// pkg/analysis/stack).
type VariableState[L lattice.Value[L]] struct {
	Regs  RegisterFile[L]
	Stack StackMap[L]
}

// NewVariableState constructs an empty (all-bottom) variable state.
func NewVariableState[L lattice.Value[L]]() VariableState[L] {
	return VariableState[L]{Regs: NewRegisterFile[L](), Stack: NewStackMap[L]()}
}

// Meet computes the pointwise meet of two variable states.
func (s VariableState[L]) Meet(other VariableState[L]) VariableState[L] {
	return VariableState[L]{
		Regs:  s.Regs.Meet(other.Regs),
		Stack: s.Stack.Meet(other.Stack),
	}
}

// Equal reports whether two variable states are identical.
func (s VariableState[L]) Equal(other VariableState[L]) bool {
	return s.Regs.Equal(other.Regs) && s.Stack.Equal(other.Stack)
}
