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
package lift

import "github.com/PabstMatthew/veriwasm/pkg/ir"

// Builder assembles a CFG programmatically from literal statement lists,
// standing in for a real decoder+lifter in this module's own tests.
type Builder struct {
	cfg *CFG
}

// NewBuilder starts a new CFG rooted at entry.
func NewBuilder(entry uint64) *Builder {
	return &Builder{cfg: &CFG{Entry: entry, Blocks: map[uint64]*Block{}}}
}

// Block adds a block at addr with the given statements (each attributed to
// instruction address addr+i for a distinct synthetic address per
// statement) and successor addresses, then returns the builder for
// chaining.
func (b *Builder) Block(addr uint64, succs []uint64, stmts ...ir.Stmt) *Builder {
	addrs := make([]uint64, len(stmts))

	for i := range stmts {
		addrs[i] = addr + uint64(i)
	}

	b.cfg.Blocks[addr] = &Block{Addr: addr, Stmts: stmts, StmtAddrs: addrs, Succs: succs}

	return b
}

// Build finalizes the CFG, computing a reverse-postorder traversal from
// Entry (standing in for the external CFG-recovery collaborator's output).
func (b *Builder) Build() *CFG {
	var (
		visited = map[uint64]bool{}
		post    []uint64
	)

	var visit func(addr uint64)
	visit = func(addr uint64) {
		if visited[addr] {
			return
		}

		visited[addr] = true

		if blk := b.cfg.Blocks[addr]; blk != nil {
			for _, s := range blk.Succs {
				visit(s)
			}
		}

		post = append(post, addr)
	}

	visit(b.cfg.Entry)

	order := make([]uint64, len(post))
	for i, addr := range post {
		order[len(post)-1-i] = addr
	}

	b.cfg.Order = order

	return b.cfg
}
