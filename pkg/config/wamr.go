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
package config

// WAMR-specific constant offsets, rooted at the
// entry %rdi (WamrExecEnv) and the WamrModuleInstance it addresses.
const (
	// WamrModuleInstOffset is [ExecEnv + 0x10] => WamrModuleInstance.
	WamrModuleInstOffset = 0x10
	// WamrGlobalsOffset is [ExecEnv + 0x18] => GlobalsBase.
	WamrGlobalsOffset = 0x18
	// WamrHeapBaseOffset is [ModuleInstance + 0x150] => HeapBase.
	WamrHeapBaseOffset = 0x150
	// WamrFuncPtrsOffset is [ModuleInstance + 0x28] => WamrFuncPtrsTable.
	WamrFuncPtrsOffset = 0x28
	// WamrFuncTypeOffset is [ModuleInstance + 0x30] => WamrFuncTypeTable.
	WamrFuncTypeOffset = 0x30
	// WamrFuncIndsOffset is [ModuleInstance + 0x1a8] => the function index
	// table pointer.
	WamrFuncIndsOffset = 0x1a8
	// WamrGlobalsRegion is the offset within a ModuleInstance at which the
	// global-data region begins, immediately after the function-index table
	// pointer; Config.Globals bounds the region's extent.
	WamrGlobalsRegion = 0x1b0
	// WamrFuncIdxThreshold is the threshold used by the WamrFuncIdx
	// recognizer.
	WamrFuncIdxThreshold = WamrGlobalsRegion - 8

	// WamrStackLowerBound and WamrStackUpperBound bound every WAMR stack
	// access's offset-from-entry.  The window is symmetric around entry,
	// 64 KiB each way, and unlike Lucet's it does not depend on how much of
	// the stack has been probed.
	WamrStackLowerBound = -0x10000
	WamrStackUpperBound = 0x10000
)
