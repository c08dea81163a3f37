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
package verify

import (
	"testing"

	"github.com/PabstMatthew/veriwasm/pkg/config"
	"github.com/PabstMatthew/veriwasm/pkg/ir"
	"github.com/PabstMatthew/veriwasm/pkg/lift"
	"github.com/PabstMatthew/veriwasm/pkg/util/assert"
)

// heapLoadCFG builds a Lucet heap load through %rdi, with a 32-bit or
// (index64) 64-bit index move feeding the address computation.
func heapLoadCFG(index64 bool) *lift.CFG {
	idxSize := ir.Size32
	if index64 {
		idxSize = ir.Size64
	}

	b := lift.NewBuilder(0x1000)
	b.Block(0x1000, nil,
		ir.NewUnop(ir.Mov, ir.NewReg(ir.RDI, ir.Size64), ir.NewReg(ir.RDI, ir.Size64)),
		ir.NewUnop(ir.Mov, ir.NewReg(ir.RAX, idxSize), ir.NewReg(ir.RCX, idxSize)),
		ir.NewUnop(ir.Mov, ir.NewReg(ir.RBX, ir.Size64),
			ir.NewMem(ir.Size64, ir.AddrBaseIndex, ir.Reg(ir.RDI), ir.Reg(ir.RAX), 1, 0)),
		ir.NewRet(),
	)

	return b.Build()
}

func TestFunctionVerifiesLucetHeapLoad(t *testing.T) {
	sum := Function("guest_func_0", heapLoadCFG(false), config.Config{Compiler: config.Lucet}, nil)

	assert.Equal(t, true, sum.Safe, "a bounded heap load should verify")
	assert.Equal(t, 1, sum.BlockCount)
}

func TestFunctionRejectsUnboundedIndex(t *testing.T) {
	sum := Function("guest_func_0", heapLoadCFG(true), config.Config{Compiler: config.Lucet}, nil)

	assert.Equal(t, false, sum.Safe, "a 64-bit index is not provably bounded")
	assert.Equal(t, true, len(sum.Diagnostics) > 0)
}

func TestModuleAggregatesFunctionResults(t *testing.T) {
	funcs := map[string]*lift.CFG{
		"good": heapLoadCFG(false),
		"bad":  heapLoadCFG(true),
	}

	result := Module(funcs, config.Config{Compiler: config.Lucet, Sequential: true}, nil)

	assert.Equal(t, 2, len(result.Functions))
	assert.Equal(t, false, result.Safe())

	// Summaries come back sorted by name regardless of scheduling.
	assert.Equal(t, "bad", result.Functions[0].Name)
	assert.Equal(t, "good", result.Functions[1].Name)
	assert.Equal(t, false, result.Functions[0].Safe)
	assert.Equal(t, true, result.Functions[1].Safe)
}

func TestModuleParallelMatchesSequential(t *testing.T) {
	funcs := map[string]*lift.CFG{
		"a": heapLoadCFG(false),
		"b": heapLoadCFG(false),
		"c": heapLoadCFG(true),
	}

	seq := Module(funcs, config.Config{Compiler: config.Lucet, Sequential: true}, nil)
	par := Module(funcs, config.Config{Compiler: config.Lucet}, nil)

	assert.Equal(t, len(seq.Functions), len(par.Functions))

	for i := range seq.Functions {
		assert.Equal(t, seq.Functions[i].Name, par.Functions[i].Name)
		assert.Equal(t, seq.Functions[i].Safe, par.Functions[i].Safe)
	}
}

func TestStatsRowsMatchSchema(t *testing.T) {
	result := Module(map[string]*lift.CFG{"f": heapLoadCFG(false)}, config.Config{Compiler: config.Lucet, Sequential: true}, nil)

	rows := result.StatsRows()
	assert.Equal(t, 1, len(rows))
	assert.Equal(t, 6, len(rows[0]), "each row is (name, blocks, cfg_s, heap_s, stack_s, call_s)")
	assert.Equal(t, "f", rows[0][0])
	assert.Equal(t, 1, rows[0][1])
}
