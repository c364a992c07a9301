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

package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/prometheus/client_golang/prometheus"

	tokerrors "github.com/kraklabs/tokmd/internal/errors"
	"github.com/kraklabs/tokmd/internal/output"
	"github.com/kraklabs/tokmd/internal/ui"
	"github.com/kraklabs/tokmd/pkg/analysis"
	"github.com/kraklabs/tokmd/pkg/gitoracle"
	"github.com/kraklabs/tokmd/pkg/inventory"
	"github.com/kraklabs/tokmd/pkg/oracle"
	"github.com/kraklabs/tokmd/pkg/preset"
	"github.com/kraklabs/tokmd/pkg/tokmd"
)

func runAnalyze(args []string, globals GlobalFlags) {
	fs := flag.NewFlagSet("analyze", flag.ExitOnError)
	presetName := fs.String("preset", "receipt", "Analysis preset: "+strings.Join(presetNames(), ", "))
	jsonOut := fs.Bool("json", globals.JSON, "Emit JSON instead of text")
	excludeCSV := fs.String("exclude", "", "Comma-separated glob patterns to exclude")
	noGit := fs.Bool("no-git", false, "Disable git-derived enrichers even when the tree is a repository")
	maxFileBytes := fs.Int64("max-file-bytes", 128*1024, "Per-file read cap in bytes (0 = no cap for line counting; enrichers then use the 128 KiB default)")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: tokmd analyze [path] [options]\n\n")
		fs.PrintDefaults()
	}
	fs.Parse(args)

	root := "."
	if fs.NArg() > 0 {
		root = fs.Arg(0)
		fs.Parse(fs.Args()[1:])
	}

	name, err := preset.Parse(*presetName)
	if err != nil {
		tokerrors.FatalError(tokerrors.NewInputError(
			fmt.Sprintf("unknown preset %q", *presetName),
			err.Error(),
			"Run 'tokmd presets' to list valid preset names",
		), *jsonOut)
	}
	plan := preset.PlanFor(name)

	if _, err := os.Stat(root); err != nil {
		tokerrors.FatalError(tokerrors.NewInputError(
			fmt.Sprintf("cannot read %s", root),
			err.Error(),
			"Pass a valid directory to analyze",
		), *jsonOut)
	}

	spinner := NewSpinner(NewProgressConfig(globals), "analyzing")
	spinnerDone := make(chan struct{})
	if spinner != nil {
		go driveSpinner(spinner, spinnerDone)
	}

	var exclude []string
	if *excludeCSV != "" {
		exclude = strings.Split(*excludeCSV, ",")
	}

	tok := oracle.DefaultTokenizer{}
	export, err := inventory.Walk(root, inventory.Options{
		Exclude:      exclude,
		MaxFileBytes: *maxFileBytes,
	}, tok)
	if err != nil {
		stopSpinner(spinner, spinnerDone)
		tokerrors.FatalError(tokerrors.NewInternalError(
			"failed to walk directory tree", err.Error(),
			"Check that the path is readable and not a broken symlink", err,
		), *jsonOut)
	}

	files := oracle.NewDefaultFileOracle(root)

	var gitOr oracle.GitOracle
	if !*noGit {
		if g, err := gitoracle.Open(root); err == nil {
			gitOr = g
		}
	}

	limits := analysis.DefaultLimits()
	limits.MaxFileBytes = *maxFileBytes

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	ac := analysis.NewAnalysisContext(files, tok, gitOr, limits, logger, prometheus.NewRegistry(),
		tokmd.ToolInfo{Name: "tokmd", Version: version})

	receipt, err := ac.Run(context.Background(), analysis.AnalysisRequest{
		Export:     export,
		Plan:       plan,
		PresetName: string(name),
		Format:     "text",
	})
	stopSpinner(spinner, spinnerDone)
	if err != nil {
		tokerrors.FatalError(tokerrors.NewInternalError(
			"analysis run failed", err.Error(), "This usually indicates a bug; please report it", err,
		), *jsonOut)
	}

	if *jsonOut {
		_ = output.JSON(receipt)
		return
	}
	printReceiptSummary(receipt)
}

func printReceiptSummary(r *tokmd.AnalysisReceipt) {
	ui.Header(fmt.Sprintf("tokmd analysis: %s", r.Args.Preset))
	fmt.Printf("status: %s\n", r.Status)
	if r.Derived != nil {
		fmt.Printf("files: %d   lines: %d   tokens: %d\n",
			r.Derived.Totals.Files, r.Derived.Totals.Lines, r.Derived.Totals.Tokens)
	}
	if r.Archetype != nil {
		fmt.Printf("archetype: %s\n", r.Archetype.Kind)
	}
	for _, w := range r.Warnings {
		ui.Warning(w)
	}
}

func presetNames() []string {
	out := make([]string, 0, len(preset.All))
	for _, n := range preset.All {
		out = append(out, string(n))
	}
	return out
}
