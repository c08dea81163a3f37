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
	"encoding/json"
	"fmt"
	"os"
)

// StatsRows flattens a result into the JSON stats schema:
// one [func_name, block_count, cfg_s, heap_s, stack_s, call_s] row per
// function, timings in seconds.
func (r *Result) StatsRows() [][]any {
	rows := make([][]any, 0, len(r.Functions))

	for _, f := range r.Functions {
		rows = append(rows, []any{
			f.Name,
			f.BlockCount,
			f.CFGTime.Seconds(),
			f.HeapTime.Seconds(),
			f.StackTime.Seconds(),
			f.CallTime.Seconds(),
		})
	}

	return rows
}

// WriteStats writes the per-function stats rows to path as JSON.
func (r *Result) WriteStats(path string) error {
	data, err := json.MarshalIndent(r.StatsRows(), "", "  ")
	if err != nil {
		return fmt.Errorf("verify: encoding stats: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("verify: writing stats to %s: %w", path, err)
	}

	return nil
}
