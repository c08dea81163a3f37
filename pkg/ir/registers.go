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
package ir

// Register ids follow the standard x86-64 ModRM/REX encoding order, the
// same numbering RSP (4) and the zero-flag pseudo-register (16) are fixed
// against: rax=0, rcx=1, rdx=2, rbx=3, rsp=4, rbp=5, rsi=6, rdi=7,
// r8..r15=8..15.
const (
	RAX = 0
	RCX = 1
	RDX = 2
	RBX = 3
	RBP = 5
	RSI = 6
	RDI = 7
	R8  = 8
	R9  = 9
	R10 = 10
	R11 = 11
	R12 = 12
	R13 = 13
	R14 = 14
	R15 = 15
)

// CallerClobbered lists the registers (plus the zero flag) a System V
// AMD64 `call` is free to clobber, used by the reaching-definitions
// analysis's Call transfer to clear every caller-clobbered register.
var CallerClobbered = []uint8{RAX, RCX, RDX, RSI, RDI, R8, R9, R10, R11, ZF}

// CalleeSaved lists the registers a callee must restore before returning,
// consulted by the WAMR callee-saved push/pop discipline.
var CalleeSaved = []uint8{RBX, RBP, R12, R13, R14, R15}

// IsCalleeSaved reports whether id names a callee-saved 64-bit register.
func IsCalleeSaved(id uint8) bool {
	for _, r := range CalleeSaved {
		if r == id {
			return true
		}
	}

	return false
}
