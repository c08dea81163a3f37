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
package jump

import (
	"github.com/PabstMatthew/veriwasm/pkg/config"
	"github.com/PabstMatthew/veriwasm/pkg/diag"
	"github.com/PabstMatthew/veriwasm/pkg/ir"
	"github.com/PabstMatthew/veriwasm/pkg/lift"
)

// Reader is the byte-access contract the resolver needs from the loaded
// ELF image to read jump-table entries, narrowed to the two widths this
// module reads.
type Reader interface {
	ReadU32(addr uint64) (uint32, bool)
	ReadU64(addr uint64) (uint64, bool)
}

// Resolve takes the switch analyzer's already-solved entry-state map,
// replays each block whose last statement is a Branch through a register or
// memory operand, and expands that branch into concrete successors,
// mutating the block's Succs in place.  Branches to an immediate target are
// left as they are.
func Resolve(a *Analyzer, cfg *lift.CFG, entry map[uint64]State, r Reader) []diag.Diagnostic {
	var diags []diag.Diagnostic

	for _, addr := range cfg.Order {
		block := cfg.Block(addr)
		if block == nil || len(block.Stmts) == 0 {
			continue
		}

		idx := len(block.Stmts) - 1
		last := block.Stmts[idx]
		if last.Kind != ir.StmtBranch {
			continue
		}

		switch last.Target.Kind {
		case ir.KindReg:
			diags = append(diags, resolveRegBranch(a, block, idx, entry[addr], r)...)
		case ir.KindMem:
			diags = append(diags, resolveMemBranch(a, block, idx, entry[addr], r)...)
		}
	}

	return diags
}

func resolveRegBranch(a *Analyzer, block *lift.Block, idx int, entry State, r Reader) []diag.Diagnostic {
	out := a.AnalyzeBlock(entry, block)

	base, n, ok := out.Regs.Get(block.Stmts[idx].Target.RegID).JmpTargetOf()
	if !ok {
		return []diag.Diagnostic{fatal(block, idx, "indirect branch register does not hold a resolved jump target")}
	}

	succs, ok := expand(a.Compiler, base, n, r)
	if !ok {
		return []diag.Diagnostic{fatal(block, idx, "jump table entry could not be read from the loaded image")}
	}

	block.Succs = succs

	return nil
}

// resolveMemBranch expands a memory-indirect WAMR branch: Branch(_, MemScale(base_imm, idx_reg, 8)) with idx_reg holding
// UpperBound(n), expanded exactly like the register-held JmpTarget case.
func resolveMemBranch(a *Analyzer, block *lift.Block, idx int, entry State, r Reader) []diag.Diagnostic {
	if a.Compiler != config.WAMR {
		return []diag.Diagnostic{fatal(block, idx, "unrecognized indirect jump (memory-indirect branch target outside WAMR)")}
	}

	target := block.Stmts[idx].Target
	if target.Form != ir.AddrBaseScaledIndex && target.Form != ir.AddrBaseScaledIndexDisp {
		return []diag.Diagnostic{fatal(block, idx, "unrecognized indirect jump target form")}
	}

	if target.Base.IsReg || !target.Index.IsReg || target.Scale != 8 || target.Disp != 0 {
		return []diag.Diagnostic{fatal(block, idx, "unrecognized indirect jump target form")}
	}

	out := a.AnalyzeBlock(entry, block)

	n, ok := out.Regs.Get(target.Index.Reg).UpperBoundOf()
	if !ok {
		return []diag.Diagnostic{fatal(block, idx, "indirect branch index register is not bounded")}
	}

	succs, ok := expand(config.WAMR, uint64(target.Base.Imm), n, r)
	if !ok {
		return []diag.Diagnostic{fatal(block, idx, "jump table entry could not be read from the loaded image")}
	}

	block.Succs = succs

	return nil
}

func expand(compiler config.Compiler, base, upperBound uint64, r Reader) ([]uint64, bool) {
	succs := make([]uint64, 0, upperBound)

	for i := uint64(0); i < upperBound; i++ {
		if compiler == config.Lucet {
			raw, ok := r.ReadU32(base + i*4)
			if !ok {
				return nil, false
			}

			delta := int32(raw)
			resolved := uint64(uint32(int32(uint32(base)) + delta))
			succs = append(succs, resolved)

			continue
		}

		addr, ok := r.ReadU64(base + i*8)
		if !ok {
			return nil, false
		}

		succs = append(succs, addr)
	}

	return succs, true
}

func fatal(block *lift.Block, idx int, detail string) diag.Diagnostic {
	return diag.Diagnostic{
		Category: diag.StructuralFatal, Addr: block.StmtAt(idx), StmtIdx: idx, Analysis: "jump",
		Predicate: "indirect-jump-resolution", Detail: detail,
	}
}
