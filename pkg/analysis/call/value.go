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

// Package call implements the call-target analyzer and checker: tracking
// the symbolic provenance of values that feed an indirect
// call's target computation, including the bounds-check recognizers
// (Cmp/Shl) and the branch-refinement step that propagates a passed bounds
// check through the CFG.
package call

import "github.com/PabstMatthew/veriwasm/pkg/analysis/reach"

// Kind enumerates CallCheckValueLattice's element tags. Unlike
// heap.Symbol, several tags carry a payload (CheckFlag, PtrOffset,
// WamrChecked), so this domain cannot be expressed as lattice.Const[T] over
// a plain comparable type and is instead a hand-rolled flat lattice, the
// same approach pkg/analysis/stack takes for its non-comparable Tuple.
type Kind uint8

// Recognized kinds.
const (
	LucetTablesBase Kind = iota
	GuestTableBase
	TableSize
	FnPtr
	CheckedVal
	CheckFlagKind
	PtrOffsetKind
	WamrExecEnv
	WamrModuleInstance
	WamrFuncPtrsTable
	WamrFuncTypeTable
	WamrFuncIdx
	WamrCheckedKind
)

// DAV is PtrOffset's payload: either known-checked, or unchecked and
// tagged with the reaching-def set of the value it was computed from.
type DAV struct {
	Checked   bool
	Unchecked reach.Set
}

func (d DAV) equal(other DAV) bool {
	if d.Checked != other.Checked {
		return false
	}

	return d.Checked || d.Unchecked.Equal(other.Unchecked)
}

// Value is CallCheckValueLattice's concrete flat-lattice element: bottom, or
// exactly one Kind together with whatever payload that Kind carries.
type Value struct {
	defined bool
	kind    Kind

	// CheckFlagKind payload: CheckFlag(imm, reg).
	flagImm int64
	flagReg uint8

	// PtrOffsetKind payload.
	dav DAV

	// WamrCheckedKind payload: WamrChecked(u32).
	checkedVal uint32
}

// Bottom constructs the bottom element.
func Bottom() Value {
	return Value{}
}

// Plain constructs a payload-free concrete value (every Kind except
// CheckFlagKind, PtrOffsetKind and WamrCheckedKind).
func Plain(kind Kind) Value {
	return Value{defined: true, kind: kind}
}

// CheckFlag constructs a CheckFlag(imm, reg) value.
func CheckFlag(imm int64, reg uint8) Value {
	return Value{defined: true, kind: CheckFlagKind, flagImm: imm, flagReg: reg}
}

// PtrOffsetChecked constructs PtrOffset(Checked).
func PtrOffsetChecked() Value {
	return Value{defined: true, kind: PtrOffsetKind, dav: DAV{Checked: true}}
}

// PtrOffsetUnchecked constructs PtrOffset(Unchecked(d)).
func PtrOffsetUnchecked(d reach.Set) Value {
	return Value{defined: true, kind: PtrOffsetKind, dav: DAV{Unchecked: d}}
}

// WamrChecked constructs WamrChecked(v).
func WamrChecked(v uint32) Value {
	return Value{defined: true, kind: WamrCheckedKind, checkedVal: v}
}

// IsBottom reports whether v is the bottom element.
func (v Value) IsBottom() bool {
	return !v.defined
}

// Is reports whether v is defined and holds the given Kind.
func (v Value) Is(kind Kind) bool {
	return v.defined && v.kind == kind
}

// Kind returns v's kind and true, or the zero Kind and false if v is bottom.
func (v Value) Kind() (Kind, bool) {
	return v.kind, v.defined
}

// CheckFlagOperands returns the CheckFlag payload, if v holds one.
func (v Value) CheckFlagOperands() (imm int64, reg uint8, ok bool) {
	if !v.defined || v.kind != CheckFlagKind {
		return 0, 0, false
	}

	return v.flagImm, v.flagReg, true
}

// WamrCheckedOf returns the WamrChecked payload, if v holds one.
func (v Value) WamrCheckedOf() (uint32, bool) {
	if !v.defined || v.kind != WamrCheckedKind {
		return 0, false
	}

	return v.checkedVal, true
}

// DAV returns the PtrOffset payload, if v holds one.
func (v Value) DAV() (DAV, bool) {
	if !v.defined || v.kind != PtrOffsetKind {
		return DAV{}, false
	}

	return v.dav, true
}

func (v Value) equal(other Value) bool {
	if v.kind != other.kind {
		return false
	}

	switch v.kind {
	case CheckFlagKind:
		return v.flagImm == other.flagImm && v.flagReg == other.flagReg
	case PtrOffsetKind:
		return v.dav.equal(other.dav)
	case WamrCheckedKind:
		return v.checkedVal == other.checkedVal
	default:
		return true
	}
}

// Meet implements lattice.Value.  Bottom is absorbing.
func (v Value) Meet(other Value) Value {
	if !v.defined {
		return v
	}

	if !other.defined {
		return other
	}

	if v.equal(other) {
		return v
	}

	return Bottom()
}

// Equal implements lattice.Value.
func (v Value) Equal(other Value) bool {
	if v.defined != other.defined {
		return false
	}

	return !v.defined || v.equal(other)
}
