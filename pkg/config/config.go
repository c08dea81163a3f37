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

// Package config holds the recognized CLI options and the
// compiler-specific metadata bindings the heap, stack and call analyses
// consult, assembled from cobra flags in pkg/cmd and passed down by value
// into pkg/verify.
package config

// Compiler identifies which AOT compiler produced the binary under
// verification, selecting which symbolic recognizers and constants apply.
type Compiler uint8

// Recognized compilers; anything other than Lucet and WAMR is out of
// scope.
const (
	Lucet Compiler = iota
	WAMR
)

// String implements fmt.Stringer.
func (c Compiler) String() string {
	if c == WAMR {
		return "wamr"
	}

	return "lucet"
}

// Config is the fully resolved verification configuration.
type Config struct {
	// ModulePath is the path to the ELF binary under verification.
	ModulePath string
	// Compiler selects Lucet (default) or WAMR.
	Compiler Compiler
	// Trusted lists WAMR function indices whose addresses are added to the
	// valid-call set without themselves being verified.
	Trusted []uint32
	// Globals is the WAMR global-data byte size, used as a metadata upper
	// bound.
	Globals uint64
	// Calls is the WAMR indirect-call-table entry count.
	Calls uint64
	// Output is the path to the JSON file receiving per-function stats, or
	// empty to skip writing one.
	Output string
	// Sequential forces single-threaded per-function verification, for
	// deterministic diagnostic ordering.
	Sequential bool
	// Metadata carries the resolved symbol addresses/offsets for the
	// selected compiler.
	Metadata Metadata
}

// Metadata carries the per-compiler symbol/offset bindings.
type Metadata struct {
	// Lucet bindings.
	GuestTable0     int64
	LucetTables     int64
	LucetProbestack uint64

	// WAMR bindings.
	GlobalsSize uint64
	// TrustedAddrs resolves a trusted native-call address from a WAMR
	// function index (populated from Config.Trusted by the loader).
	TrustedAddrs map[uint32]uint64

	// FunctionAddrs is the set of known, verifiable function entry
	// addresses in the module under verification.
	FunctionAddrs map[uint64]bool
	// PLTStart and PLTEnd bound the ELF's .plt section, the PLT-range
	// clause of the Lucet immediate-call-target predicate.
	PLTStart, PLTEnd uint64
}

// IsKnownCallTarget reports whether addr is a verifiable call target: a
// recognized function entry, within the PLT range, or one of the
// configured trusted WAMR native-call addresses.
func (m Metadata) IsKnownCallTarget(addr uint64) bool {
	if m.FunctionAddrs[addr] {
		return true
	}

	if m.PLTStart != 0 || m.PLTEnd != 0 {
		if addr >= m.PLTStart && addr < m.PLTEnd {
			return true
		}
	}

	for _, t := range m.TrustedAddrs {
		if t == addr {
			return true
		}
	}

	return false
}
