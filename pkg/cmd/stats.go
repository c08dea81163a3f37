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
package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var statsCmd = &cobra.Command{
	Use:   "stats [flags] stats_file",
	Short: "Print a per-function timing table from a verify run's JSON output.",
	Run: func(cmd *cobra.Command, args []string) {
		if len(args) != 1 {
			fmt.Println(cmd.UsageString())
			os.Exit(2)
		}

		data, err := os.ReadFile(args[0])
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(3)
		}

		var rows [][]any
		if err := json.Unmarshal(data, &rows); err != nil {
			fmt.Fprintf(os.Stderr, "stats: decoding %s: %v\n", args[0], err)
			os.Exit(3)
		}

		printStatsTable(rows)
	},
}

// printStatsTable prints one line per function, clamping the name column to
// the terminal width when stdout is a TTY.
func printStatsTable(rows [][]any) {
	const fixed = 8 + 4*10 + 6 // blocks + four timing columns + padding

	nameWidth := 40

	if term.IsTerminal(int(os.Stdout.Fd())) {
		if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > fixed+8 {
			nameWidth = w - fixed
		}
	}

	fmt.Printf("%-*s %8s %10s %10s %10s %10s\n", nameWidth, "function", "blocks", "cfg_s", "heap_s", "stack_s", "call_s")

	for _, row := range rows {
		if len(row) != 6 {
			continue
		}

		name, _ := row[0].(string)
		if len(name) > nameWidth {
			name = name[:nameWidth-1] + "…"
		}

		blocks, _ := row[1].(float64)

		times := make([]float64, 4)
		for i := range times {
			times[i], _ = row[2+i].(float64)
		}

		fmt.Printf("%-*s %8d %10.4f %10.4f %10.4f %10.4f\n",
			nameWidth, name, int(blocks), times[0], times[1], times[2], times[3])
	}
}

func init() {
	rootCmd.AddCommand(statsCmd)
}
