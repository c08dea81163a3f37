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

// Package lift defines the contract this module consumes from its external
// collaborators (the x86-64 decoder, control-flow recovery, and the IR
// lifter itself).  It owns only the consumer-side data
// types (CFG, Block) and the Lifter interface; no decoder is implemented
// here.  Builder is a test-only helper for constructing literal IR
// fixtures.
package lift

import "github.com/PabstMatthew/veriwasm/pkg/ir"

// Block is one basic block of a lifted function: the statements produced by
// the lifter for every instruction in the block, concatenated in program
// order, plus the instruction address each statement originated from (used
// only for diagnostics — reaching-definition sites are named by
// (block address, statement index), not instruction address).
type Block struct {
	// Addr is this block's starting address, and its identity in the CFG.
	Addr uint64
	// Stmts is every statement in the block, in program order.
	Stmts []ir.Stmt
	// StmtAddrs[i] is the instruction address that produced Stmts[i].
	StmtAddrs []uint64
	// Succs lists this block's successor block addresses.  This is the
	// default control flow; indirect branches are refined later by
	// pkg/analysis/jump once the call/jump-table analyses resolve their
	// targets.
	Succs []uint64
}

// StmtAt returns the instruction address that produced Stmts[idx].
func (b *Block) StmtAt(idx int) uint64 {
	return b.StmtAddrs[idx]
}

// CFG is a function's recovered control-flow graph: a set of blocks reached
// from Entry, plus a reverse-postorder traversal order supplied by the
// external CFG-recovery collaborator for the worklist solver to
// seed its queue with.
type CFG struct {
	Entry  uint64
	Blocks map[uint64]*Block
	// Order is blocks in reverse postorder starting from Entry.
	Order []uint64
}

// Block looks up a block by address.
func (c *CFG) Block(addr uint64) *Block {
	return c.Blocks[addr]
}

// Lifter is the contract consumed from the external lifter:
// for each basic block in a recovered CFG, produce the sequence of IR
// statements implementing that block's instructions.  A real implementation
// wraps a disassembler/decoder; this module never implements one.
type Lifter interface {
	// Lift lowers one basic block starting at addr, given the raw
	// instruction bytes/addresses supplied by the decoder, into a Block.
	Lift(addr uint64) (*Block, error)
}
