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

import (
	"testing"

	"github.com/PabstMatthew/veriwasm/pkg/ir"
	"github.com/PabstMatthew/veriwasm/pkg/lattice"
	"github.com/PabstMatthew/veriwasm/pkg/util/assert"
)

func TestRegisterFileDefaultsToBottom(t *testing.T) {
	r := NewRegisterFile[lattice.Const[int]]()

	for i := 0; i < ir.NumRegs; i++ {
		assert.Equal(t, true, r.Get(uint8(i)).IsBottom())
	}
}

func TestRegisterFilePointwiseMeet(t *testing.T) {
	a := NewRegisterFile[lattice.Const[int]]().Set(ir.RAX, lattice.Is(1)).Set(ir.RBX, lattice.Is(2))
	b := NewRegisterFile[lattice.Const[int]]().Set(ir.RAX, lattice.Is(1)).Set(ir.RBX, lattice.Is(3))

	m := a.Meet(b)

	v, ok := m.Get(ir.RAX).Value()
	assert.Equal(t, true, ok)
	assert.Equal(t, 1, v)

	assert.Equal(t, true, m.Get(ir.RBX).IsBottom(), "disagreeing slots meet to bottom")
}

func TestRegisterFileMeetDropsOneSidedSlots(t *testing.T) {
	a := NewRegisterFile[lattice.Const[int]]().Set(ir.RCX, lattice.Is(9))
	b := NewRegisterFile[lattice.Const[int]]()

	assert.Equal(t, true, a.Meet(b).Get(ir.RCX).IsBottom(),
		"a slot known on only one path is unknown after the join")
}

func TestStackWriteInvalidatesOverlap(t *testing.T) {
	m := NewStackMap[lattice.Const[int]]()
	m = m.Write(0, 8, lattice.Is(1))
	m = m.Write(4, 4, lattice.Is(2))

	assert.Equal(t, true, m.Read(0, 8).IsBottom(), "the overlapped 8-byte entry is invalidated")

	v, ok := m.Read(4, 4).Value()
	assert.Equal(t, true, ok)
	assert.Equal(t, 2, v)
}

func TestStackReadRequiresExactRange(t *testing.T) {
	m := NewStackMap[lattice.Const[int]]().Write(8, 4, lattice.Is(3))

	assert.Equal(t, true, m.Read(8, 8).IsBottom(), "a size-mismatched read returns bottom")
	assert.Equal(t, true, m.Read(12, 4).IsBottom(), "an offset-mismatched read returns bottom")
}

func TestStackMapMeet(t *testing.T) {
	a := NewStackMap[lattice.Const[int]]().Write(-8, 8, lattice.Is(1)).Write(-16, 8, lattice.Is(2))
	b := NewStackMap[lattice.Const[int]]().Write(-8, 8, lattice.Is(1))

	m := a.Meet(b)

	v, ok := m.Read(-8, 8).Value()
	assert.Equal(t, true, ok)
	assert.Equal(t, 1, v)

	assert.Equal(t, true, m.Read(-16, 8).IsBottom(), "a slot live on only one path is dropped")
}

func TestVariableStateMeetIsIdempotent(t *testing.T) {
	s := NewVariableState[lattice.Const[int]]()
	s.Regs = s.Regs.Set(ir.RDI, lattice.Is(7))
	s.Stack = s.Stack.Write(-8, 8, lattice.Is(1))

	assert.Equal(t, true, s.Meet(s).Equal(s))
}
