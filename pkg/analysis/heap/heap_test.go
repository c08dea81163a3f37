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
package heap

import (
	"testing"

	"github.com/PabstMatthew/veriwasm/pkg/config"
	"github.com/PabstMatthew/veriwasm/pkg/dataflow"
	"github.com/PabstMatthew/veriwasm/pkg/ir"
	"github.com/PabstMatthew/veriwasm/pkg/lift"
	"github.com/PabstMatthew/veriwasm/pkg/util/assert"
)

// rdi/rax/rbx/rcx per the x86-64 encoding fixed in pkg/ir/registers.go.
func TestLucetHeapLoadVerifies(t *testing.T) {
	// mov rdi, rdi ; mov eax, ecx ; mov rbx, [rdi + rax] .
	b := lift.NewBuilder(0)
	b.Block(0, nil,
		ir.NewUnop(ir.Mov, ir.NewReg(ir.RDI, ir.Size64), ir.NewReg(ir.RDI, ir.Size64)),
		ir.NewUnop(ir.Mov, ir.NewReg(ir.RAX, ir.Size32), ir.NewReg(ir.RCX, ir.Size32)),
		ir.NewUnop(ir.Mov, ir.NewReg(ir.RBX, ir.Size64),
			ir.NewMem(ir.Size64, ir.AddrBaseIndex, ir.Reg(ir.RDI), ir.Reg(ir.RAX), 1, 0)),
	)
	cfg := b.Build()

	a := &Analyzer{Compiler: config.Lucet, StackGrowth: map[uint64]int64{}}
	entry := dataflow.RunWorklist[State](cfg, a)

	c := &Checker{Compiler: config.Lucet, StackGrowth: map[uint64]int64{}}
	diags := c.Check(cfg, entry)

	assert.Equal(t, 0, len(diags), "expected a clean heap load to verify")

	// A "[R+R]" heap load matches checker predicate 2 (base=HeapBase,
	// index=Bounded4GB) but is not one of the symbol-producing recognizer
	// rows, so the loaded value itself carries no known symbol afterward.
	final := a.AnalyzeBlock(entry[0], cfg.Block(0))
	_, ok := final.Regs.Get(ir.RBX).Value()
	assert.Equal(t, false, ok, "an unrecognized heap load yields bottom, not a symbol")
}

func TestWamrHeapStoreVerifiesAndRejectsWhenUnbounded(t *testing.T) {
	// With %rdi = WamrExecEnv:
	//   mov rax, [rdi+0x10]   ; rax = WamrModuleInstance
	//   mov rbx, [rax+0x150]  ; rbx = HeapBase
	//   mov ecx, esi          ; zeroes upper 32 bits -> Bounded4GB
	//   mov [rbx+rcx], 0      ; heap store, accepted
	good := lift.NewBuilder(0)
	good.Block(0, nil,
		ir.NewUnop(ir.Mov, ir.NewReg(ir.RAX, ir.Size64),
			ir.NewMem(ir.Size64, ir.AddrBaseIndexDisp, ir.Reg(ir.RDI), ir.Imm(0), 0, 0x10)),
		ir.NewUnop(ir.Mov, ir.NewReg(ir.RBX, ir.Size64),
			ir.NewMem(ir.Size64, ir.AddrBaseIndexDisp, ir.Reg(ir.RAX), ir.Imm(0), 0, 0x150)),
		ir.NewUnop(ir.Mov, ir.NewReg(ir.RCX, ir.Size32), ir.NewReg(ir.RSI, ir.Size32)),
		ir.NewUnop(ir.Mov,
			ir.NewMem(ir.Size32, ir.AddrBaseIndex, ir.Reg(ir.RBX), ir.Reg(ir.RCX), 1, 0),
			ir.NewImm(0, false, ir.Size32)),
	)
	cfg := good.Build()

	a := &Analyzer{Compiler: config.WAMR, StackGrowth: map[uint64]int64{}}
	entry := dataflow.RunWorklist[State](cfg, a)

	c := &Checker{Compiler: config.WAMR, StackGrowth: map[uint64]int64{}}
	diags := c.Check(cfg, entry)

	assert.Equal(t, 0, len(diags), "expected the WAMR heap store to verify")

	// Flip to "mov rcx, rsi" (a raw 64-bit copy, no widening): rcx now carries
	// whatever symbol rsi held, which is bottom, so the store's index operand
	// is neither a recognized bound nor a recognized pattern -> reject.
	bad := lift.NewBuilder(0)
	bad.Block(0, nil,
		ir.NewUnop(ir.Mov, ir.NewReg(ir.RAX, ir.Size64),
			ir.NewMem(ir.Size64, ir.AddrBaseIndexDisp, ir.Reg(ir.RDI), ir.Imm(0), 0, 0x10)),
		ir.NewUnop(ir.Mov, ir.NewReg(ir.RBX, ir.Size64),
			ir.NewMem(ir.Size64, ir.AddrBaseIndexDisp, ir.Reg(ir.RAX), ir.Imm(0), 0, 0x150)),
		ir.NewUnop(ir.Mov, ir.NewReg(ir.RCX, ir.Size64), ir.NewReg(ir.RSI, ir.Size64)),
		ir.NewUnop(ir.Mov,
			ir.NewMem(ir.Size32, ir.AddrBaseIndex, ir.Reg(ir.RBX), ir.Reg(ir.RCX), 1, 0),
			ir.NewImm(0, false, ir.Size32)),
	)
	bcfg := bad.Build()

	ba := &Analyzer{Compiler: config.WAMR, StackGrowth: map[uint64]int64{}}
	bentry := dataflow.RunWorklist[State](bcfg, ba)

	bc := &Checker{Compiler: config.WAMR, StackGrowth: map[uint64]int64{}}
	bdiags := bc.Check(bcfg, bentry)

	assert.Equal(t, true, len(bdiags) > 0, "expected the unbounded index store to be rejected")
}

func TestHeapAccessRequiresRDIAtCall(t *testing.T) {
	b := lift.NewBuilder(0)
	b.Block(0, nil,
		ir.NewUnop(ir.Mov, ir.NewReg(ir.RDI, ir.Size32), ir.NewReg(ir.RAX, ir.Size32)),
		ir.NewCall(ir.NewImm(0, false, ir.Size64)),
	)
	cfg := b.Build()

	a := &Analyzer{Compiler: config.Lucet, StackGrowth: map[uint64]int64{}}
	entry := dataflow.RunWorklist[State](cfg, a)

	c := &Checker{Compiler: config.Lucet, StackGrowth: map[uint64]int64{}}
	diags := c.Check(cfg, entry)

	found := false
	for _, d := range diags {
		if d.Predicate == "call-rdi" {
			found = true
		}
	}

	assert.Equal(t, true, found, "clobbering %%rdi before a call should be rejected")
}
