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
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/PabstMatthew/veriwasm/pkg/config"
	"github.com/PabstMatthew/veriwasm/pkg/elfmeta"
	"github.com/PabstMatthew/veriwasm/pkg/lift"
	"github.com/PabstMatthew/veriwasm/pkg/verify"
)

// DecodeModule is the seam to the external decoder/CFG-recovery/lifter
// collaborators: given the opened loader and the resolved configuration,
// produce every function's lifted CFG, keyed by function name.  The
// decoder is explicitly out of this module's scope, so no implementation
// is linked by default; an embedder wires one in before calling Execute.
var DecodeModule func(loader elfmeta.Loader, conf config.Config) (map[string]*lift.CFG, error)

var verifyCmd = &cobra.Command{
	Use:   "verify [flags] module_path",
	Short: "Verify every function in an AOT-compiled module.",
	Long: "Verify that every function in the given x86-64 ELF binary respects the\n" +
		"sandbox discipline of its AOT compiler (Lucet by default, WAMR with -w).",
	Run: func(cmd *cobra.Command, args []string) {
		if len(args) != 1 {
			fmt.Println(cmd.UsageString())
			os.Exit(2)
		}
		// Configure log level
		if GetFlag(cmd, "verbose") {
			log.SetLevel(log.DebugLevel)
		}

		conf := config.Config{
			ModulePath: args[0],
			Trusted:    GetUint32List(cmd, "trusted"),
			Globals:    GetUint64(cmd, "globals"),
			Calls:      GetUint64(cmd, "calls"),
			Output:     GetString(cmd, "output"),
			Sequential: GetFlag(cmd, "sequential"),
		}
		if GetFlag(cmd, "wamr") {
			conf.Compiler = config.WAMR
		}

		loader, err := elfmeta.Open(conf.ModulePath)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(3)
		}
		defer loader.Close()

		conf.Metadata, err = loader.Resolve(conf.Compiler, conf.Trusted, conf.Globals)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(3)
		}

		if DecodeModule == nil {
			fmt.Fprintln(os.Stderr, "verify: no decoder linked into this binary")
			os.Exit(3)
		}

		funcs, err := DecodeModule(loader, conf)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(3)
		}

		result := verify.Module(funcs, conf, loader)

		for _, f := range result.Functions {
			for _, d := range f.Diagnostics {
				if d.IsFailure() {
					fmt.Fprintf(os.Stderr, "%s: %s\n", f.Name, d.Error())
				}
			}
		}

		if conf.Output != "" {
			if err := result.WriteStats(conf.Output); err != nil {
				fmt.Fprintln(os.Stderr, err)
				os.Exit(3)
			}
		}

		if !result.Safe() {
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(verifyCmd)
	verifyCmd.Flags().BoolP("wamr", "w", false, "verify a WAMR-compiled module (default is Lucet)")
	verifyCmd.Flags().String("trusted", "", "comma-separated WAMR function indices trusted without verification")
	verifyCmd.Flags().Uint64("globals", 0, "WAMR global-data byte size")
	verifyCmd.Flags().Uint64("calls", 0, "WAMR indirect-call-table entry count")
	verifyCmd.Flags().StringP("output", "o", "", "path to JSON file receiving per-function stats")
}
