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

// Package elfmeta resolves metadata bindings (Lucet/WAMR
// symbol addresses, the function-address set, the .plt range, trusted
// native-call addresses) from an ELF image, and owns the byte-level
// reader pkg/analysis/jump needs to expand resolved jump tables. The real
// decoder/loader is an external collaborator; this package owns
// only the consumer-side interface plus a debug/elf-based adapter
// sufficient to run cmd/veriwasm end-to-end against a real binary.
package elfmeta

import "github.com/PabstMatthew/veriwasm/pkg/config"

// Loader resolves an ELF image's symbol table and section layout into the
// pieces pkg/config.Metadata and pkg/verify need: a Lucet/WAMR metadata
// binding, a function-address set, a .plt range, and the jump resolver's
// ReadU32/ReadU64 byte accessors (pkg/analysis/jump.Reader).
type Loader interface {
	// Resolve populates a Metadata for the given compiler, given the
	// already-parsed CLI options that aren't symbol-derived (trusted WAMR
	// function indices, globals size).
	Resolve(compiler config.Compiler, trusted []uint32, globalsSize uint64) (config.Metadata, error)
	// EntryAddrs returns every function entry address the loader could
	// identify, keyed by symbol name.
	EntryAddrs() (map[string]uint64, error)
	// ReadU32 and ReadU64 read a little-endian value at a virtual address
	// from the image's loaded data sections, implementing
	// pkg/analysis/jump.Reader for jump-table expansion.
	ReadU32(addr uint64) (uint32, bool)
	ReadU64(addr uint64) (uint64, bool)
}
