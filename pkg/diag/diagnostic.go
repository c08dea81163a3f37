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

// Package diag defines the diagnostic type every checker (pkg/analysis/*)
// emits on a rejected predicate, covering four error categories
// (verification reject, structural fatal, unsupported instruction,
// loader/decoder error surfaced unchanged).  It is a small,
// dependency-free leaf package so every checker can import it without
// creating an import cycle back through pkg/verify, which is the package
// that actually collects and reports diagnostics.
package diag

import "fmt"

// Category discriminates the four error categories.
type Category uint8

// Recognized categories.
const (
	// Reject is a checker predicate failure.
	Reject Category = iota
	// StructuralFatal is an IR form an analyzer was not designed to see
	//.
	StructuralFatal
	// Unsupported is logged, not a failure by itself — the statement was
	// soundly transferred as Clear.
	Unsupported
	// LoaderError is surfaced unchanged from an external collaborator
	//.
	LoaderError
)

// Diagnostic identifies a failing address, statement and predicate, the
// line-oriented form the CLI prints before exiting non-zero.
type Diagnostic struct {
	Category  Category
	Addr      uint64
	StmtIdx   int
	Analysis  string
	Predicate string
	Detail    string
}

// Error implements error.
func (d Diagnostic) Error() string {
	return fmt.Sprintf("0x%x: stmt %d: [%s] %s: %s", d.Addr, d.StmtIdx, d.Analysis, d.Predicate, d.Detail)
}

// IsFailure reports whether this diagnostic, by itself, fails verification
// (every category except Unsupported, which is soundly handled by the
// Clear fallback and only logged).
func (d Diagnostic) IsFailure() bool {
	return d.Category != Unsupported
}
