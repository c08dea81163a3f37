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
package elfmeta

import (
	"debug/elf"
	"encoding/binary"
	"fmt"

	"github.com/PabstMatthew/veriwasm/pkg/config"
	log "github.com/sirupsen/logrus"
)

// Lucet symbol names resolved from the ELF symbol table.
const (
	symGuestTable0     = "guest_table_0"
	symLucetTables     = "lucet_tables"
	symLucetProbestack = "lucet_probestack"
)

// DebugELFLoader implements Loader on top of the standard library's
// debug/elf: symbol-table walking and section reads are all this package
// needs, so the metadata seam is implemented directly against debug/elf
// rather than against a third-party ELF library (see DESIGN.md).
type DebugELFLoader struct {
	path string
	f    *elf.File
}

var _ Loader = (*DebugELFLoader)(nil)

// Open parses the ELF file at path, returning a Loader over it. The
// caller is responsible for eventually calling Close.
func Open(path string) (*DebugELFLoader, error) {
	f, err := elf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("elfmeta: opening %s: %w", path, err)
	}

	return &DebugELFLoader{path: path, f: f}, nil
}

// Close releases the underlying file handle.
func (l *DebugELFLoader) Close() error {
	return l.f.Close()
}

// Resolve implements Loader.
func (l *DebugELFLoader) Resolve(compiler config.Compiler, trusted []uint32, globalsSize uint64) (config.Metadata, error) {
	syms, err := l.symbolTable()
	if err != nil {
		return config.Metadata{}, err
	}

	meta := config.Metadata{
		GlobalsSize:   globalsSize,
		FunctionAddrs: make(map[uint64]bool),
		TrustedAddrs:  make(map[uint32]uint64),
	}

	for _, s := range syms {
		if elf.ST_TYPE(s.Info) != elf.STT_FUNC || s.Value == 0 {
			continue
		}

		meta.FunctionAddrs[s.Value] = true
	}

	if compiler == config.Lucet {
		if addr, ok := syms.lookup(symGuestTable0); ok {
			meta.GuestTable0 = int64(addr)
		} else {
			log.Warnf("elfmeta: symbol %s not found, defaulting to 0", symGuestTable0)
		}

		if addr, ok := syms.lookup(symLucetTables); ok {
			meta.LucetTables = int64(addr)
		} else {
			log.Warnf("elfmeta: symbol %s not found, defaulting to 0", symLucetTables)
		}

		if addr, ok := syms.lookup(symLucetProbestack); ok {
			meta.LucetProbestack = addr
		} else {
			log.Warnf("elfmeta: symbol %s not found, defaulting to 0", symLucetProbestack)
		}
	}

	if plt := l.f.Section(".plt"); plt != nil {
		meta.PLTStart = plt.Addr
		meta.PLTEnd = plt.Addr + plt.Size
	}

	// Trusted WAMR function indices resolve to native-call addresses via
	// the function-address set, matched by ordinal among the symbol table's
	// STT_FUNC symbols with a non-zero address; absent a richer WAMR AOT
	// function-index table in the ELF, the function-address set itself is
	// the best available resolution.
	ordinal := uint32(0)

	for _, s := range syms {
		if elf.ST_TYPE(s.Info) != elf.STT_FUNC || s.Value == 0 {
			continue
		}

		for _, t := range trusted {
			if t == ordinal {
				meta.TrustedAddrs[t] = s.Value
			}
		}

		ordinal++
	}

	return meta, nil
}

// EntryAddrs implements Loader.
func (l *DebugELFLoader) EntryAddrs() (map[string]uint64, error) {
	syms, err := l.symbolTable()
	if err != nil {
		return nil, err
	}

	out := make(map[string]uint64)

	for _, s := range syms {
		if elf.ST_TYPE(s.Info) != elf.STT_FUNC || s.Value == 0 || s.Name == "" {
			continue
		}

		out[s.Name] = s.Value
	}

	return out, nil
}

// ReadU32 implements jump.Reader.
func (l *DebugELFLoader) ReadU32(addr uint64) (uint32, bool) {
	b, ok := l.readBytes(addr, 4)
	if !ok {
		return 0, false
	}

	return binary.LittleEndian.Uint32(b), true
}

// ReadU64 implements jump.Reader.
func (l *DebugELFLoader) ReadU64(addr uint64) (uint64, bool) {
	b, ok := l.readBytes(addr, 8)
	if !ok {
		return 0, false
	}

	return binary.LittleEndian.Uint64(b), true
}

func (l *DebugELFLoader) readBytes(addr uint64, n uint64) ([]byte, bool) {
	for _, sec := range l.f.Sections {
		if sec.Addr == 0 || addr < sec.Addr || addr+n > sec.Addr+sec.Size {
			continue
		}

		if sec.Type == elf.SHT_NOBITS {
			// .bss-like sections have no backing bytes; a jump table never
			// lives here.
			return nil, false
		}

		data, err := sec.Data()
		if err != nil {
			log.Warnf("elfmeta: reading section %s: %v", sec.Name, err)
			return nil, false
		}

		off := addr - sec.Addr

		return data[off : off+n], true
	}

	return nil, false
}

type symbolTable []elf.Symbol

func (s symbolTable) lookup(name string) (uint64, bool) {
	for _, sym := range s {
		if sym.Name == name {
			return sym.Value, true
		}
	}

	return 0, false
}

func (l *DebugELFLoader) symbolTable() (symbolTable, error) {
	syms, err := l.f.Symbols()
	if err != nil && len(syms) == 0 {
		// Stripped static-symbol table; fall back to dynamic symbols.
		syms, err = l.f.DynamicSymbols()
	}

	if err != nil {
		return nil, fmt.Errorf("elfmeta: reading symbols from %s: %w", l.path, err)
	}

	return symbolTable(syms), nil
}
