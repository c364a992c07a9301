// Copyright 2025 KrakLabs
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
//
// SPDX-License-Identifier: Apache-2.0

// Package main implements the tokmd CLI: a static-analysis receipt
// generator and an LLM-context handoff planner for a source tree.
//
// Usage:
//
//	tokmd analyze [path] [--preset NAME] [--json]   Run the analysis pipeline
//	tokmd handoff [path] [--budget N] [--out DIR]   Emit an LLM-ready context pack
//	tokmd presets                                   List available analysis presets
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/kraklabs/tokmd/internal/ui"
)

// Version information (set via ldflags during build).
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// GlobalFlags carries the flags every subcommand respects regardless of
// what it does: machine-readable output, quiet mode, and color control.
type GlobalFlags struct {
	JSON    bool
	Quiet   bool
	NoColor bool
	Verbose int
}

func main() {
	var (
		showVersion = flag.Bool("version", false, "Show version and exit")
		jsonOut     = flag.Bool("json", false, "Emit machine-readable JSON instead of text")
		quiet       = flag.Bool("quiet", false, "Suppress progress output")
		noColor     = flag.Bool("no-color", false, "Disable colored output")
	)

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, `tokmd - code intelligence receipts and LLM context handoffs

Usage:
  tokmd <command> [options]

Commands:
  analyze   Run the analysis pipeline over a directory and emit a receipt
  handoff   Pack a directory into an LLM-ready context handoff
  presets   List available analysis presets
  version   Print version information

Global Options:
  --json        Emit machine-readable JSON instead of text
  --quiet       Suppress progress output
  --no-color    Disable colored output
  --version     Show version and exit

Examples:
  tokmd analyze . --preset health
  tokmd analyze . --preset deep --json > receipt.json
  tokmd handoff . --budget 50000 --out ./handoff
  tokmd handoff . --budget 50000 --strategy spread --preset deep --force

`)
	}

	flag.Parse()

	if *showVersion {
		fmt.Printf("tokmd version %s\n", version)
		fmt.Printf("commit: %s\n", commit)
		fmt.Printf("built: %s\n", date)
		os.Exit(0)
	}

	globals := GlobalFlags{JSON: *jsonOut, Quiet: *quiet || *jsonOut, NoColor: *noColor}
	ui.InitColors(globals.NoColor)

	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		os.Exit(1)
	}

	command := args[0]
	cmdArgs := args[1:]

	switch command {
	case "analyze":
		runAnalyze(cmdArgs, globals)
	case "handoff":
		runHandoff(cmdArgs, globals)
	case "presets":
		runPresets(cmdArgs, globals)
	case "version":
		fmt.Printf("tokmd version %s\n", version)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		flag.Usage()
		os.Exit(1)
	}
}
