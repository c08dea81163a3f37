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

// Lucet-specific constants consulted by the stack analyzer and checker.
const (
	// LucetStackUpperBound is the (exclusive) upper bound on any Lucet
	// stack read's offset-from-entry.  Reads like a typo for 8192, but the
	// literal value is load-bearing for compatibility; see DESIGN.md Open
	// Question 3 before "correcting" it.
	LucetStackUpperBound = 8096
	// ProbestackGuardPage is the fixed page size a probestack call
	// guarantees has been touched.
	ProbestackGuardPage = 4096
)
