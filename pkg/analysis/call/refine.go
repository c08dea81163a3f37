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
package call

import (
	"github.com/PabstMatthew/veriwasm/pkg/analysis/reach"
	"github.com/PabstMatthew/veriwasm/pkg/config"
	"github.com/PabstMatthew/veriwasm/pkg/dataflow"
	"github.com/PabstMatthew/veriwasm/pkg/ir"
	"github.com/PabstMatthew/veriwasm/pkg/lift"
)

// ProcessBranch overrides the default "propagate unchanged" behavior with
// branch refinement: when a block ends in a conditional whose
// zero flag holds CheckFlag(v, r), the edge on which the comparison is known
// to have succeeded carries a strengthened state.
func (a *Analyzer) ProcessBranch(cfg *lift.CFG, out State, block *lift.Block) []dataflow.Edge[State] {
	if len(block.Stmts) == 0 || block.Stmts[len(block.Stmts)-1].Kind != ir.StmtBranch {
		return dataflow.DefaultProcessBranch(cfg, out, block)
	}

	if block.Stmts[len(block.Stmts)-1].BranchKind == ir.BranchAlways || len(block.Succs) != 2 {
		return dataflow.DefaultProcessBranch(cfg, out, block)
	}

	imm, reg, ok := out.Regs.Get(ir.ZF).CheckFlagOperands()
	if !ok {
		return dataflow.DefaultProcessBranch(cfg, out, block)
	}

	reachAtBranch := a.reachAtBranch(block)
	d := reachAtBranch.Regs.Get(reg)

	cleared := out
	cleared.Regs = cleared.Regs.Set(ir.ZF, Bottom())

	var vprime Value
	if a.Compiler == config.Lucet {
		vprime = Plain(CheckedVal)
	} else {
		vprime = WamrChecked(uint32(imm))
	}

	refined := refineState(cleared, reachAtBranch, reg, vprime, d)
	unrefined := cleared

	// The equality-taken edge is the fallthrough (Succs[0]) for Lucet and
	// the taken branch (Succs[1]) for WAMR.
	equalityIdx := 0
	if a.Compiler != config.Lucet {
		equalityIdx = 1
	}

	edges := make([]dataflow.Edge[State], 2)
	for i, target := range block.Succs {
		if i == equalityIdx {
			edges[i] = dataflow.Edge[State]{Target: target, State: refined}
		} else {
			edges[i] = dataflow.Edge[State]{Target: target, State: unrefined}
		}
	}

	return edges
}

// refineState performs the substitution and thunk-resolution steps of
// branch refinement,
// given r's (the checked register's) reaching-def set d at the branch and
// the reaching-definitions state reached at that same point, reachAtBranch.
func refineState(cur State, reachAtBranch reach.State, checkedReg uint8, vprime Value, d reach.Set) State {
	out := cur

	// Step 2: substitute V' for r itself unconditionally, then for every
	// register/stack slot whose reaching-def set equals d (propagating the
	// check through moves).  The alias loops are guarded against the
	// spuriously-equal empty-set case (Open Question 2): two never-defined
	// locations would otherwise both alias r.
	out.Regs = out.Regs.Set(checkedReg, vprime)

	for i := 0; i < ir.NumRegs; i++ {
		if rd := reachAtBranch.Regs.Get(uint8(i)); !rd.Empty() && rd.Equal(d) {
			out.Regs = out.Regs.Set(uint8(i), vprime)
		}
	}

	for _, e := range reachAtBranch.Stack.Entries() {
		if rd := e.Value; !d.Empty() && rd.Equal(d) {
			out.Stack = out.Stack.Write(e.Offset, e.Size, vprime)
		}
	}

	// Step 3: resolve PtrOffset(Unchecked(D')) to PtrOffset(Checked) wherever
	// D' matches r's D.  The two arms carry deliberately different guards:
	// the stack arm tests !d.Empty() && eq, while the register arm tests
	// d.Empty() && eq.  The inverted register-arm guard is intentional;
	// see DESIGN.md Open Question 1 before unifying the two.
	for i := 0; i < ir.NumRegs; i++ {
		v := out.Regs.Get(uint8(i))
		if dav, ok := v.DAV(); ok && !dav.Checked && d.Empty() && dav.Unchecked.Equal(d) {
			out.Regs = out.Regs.Set(uint8(i), PtrOffsetChecked())
		}
	}

	for _, e := range out.Stack.Entries() {
		if dav, ok := e.Value.DAV(); ok && !dav.Checked && !d.Empty() && dav.Unchecked.Equal(d) {
			out.Stack = out.Stack.Write(e.Offset, e.Size, PtrOffsetChecked())
		}
	}

	return out
}
