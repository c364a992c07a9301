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
	"path/filepath"
	"strings"

	"github.com/prometheus/client_golang/prometheus"

	tokerrors "github.com/kraklabs/tokmd/internal/errors"
	"github.com/kraklabs/tokmd/internal/output"
	"github.com/kraklabs/tokmd/internal/ui"
	"github.com/kraklabs/tokmd/pkg/analysis"
	tokcontext "github.com/kraklabs/tokmd/pkg/context"
	"github.com/kraklabs/tokmd/pkg/gitoracle"
	"github.com/kraklabs/tokmd/pkg/inventory"
	"github.com/kraklabs/tokmd/pkg/oracle"
	"github.com/kraklabs/tokmd/pkg/preset"
	"github.com/kraklabs/tokmd/pkg/tokmd"
)

// hotspotPaths returns the set of paths a git-enabled Deep-preset run
// flagged as churn hotspots, so the packer can prioritize them.
func hotspotPaths(receipt *tokmd.AnalysisReceipt) map[string]bool {
	set := map[string]bool{}
	if receipt == nil || receipt.Git == nil {
		return set
	}
	for _, h := range receipt.Git.Hotspots {
		set[h.Path] = true
	}
	return set
}

func runHandoff(args []string, globals GlobalFlags) {
	fs := flag.NewFlagSet("handoff", flag.ExitOnError)
	budget := fs.Int64("budget", 50_000, "Token budget for the handoff pack (0 admits nothing; pass a very large value for effectively unlimited)")
	maxFilePct := fs.Float64("max-file-pct", tokcontext.DefaultMaxFilePct, "Max fraction of the budget a single file may consume")
	maxFileTokens := fs.Int64("max-file-tokens", tokcontext.DefaultMaxFileTokens, "Hard per-file token cap")
	denseThreshold := fs.Float64("dense-threshold", tokcontext.DefaultDenseThreshold, "tokens/line ratio above which a file is classified DataBlob")
	strategy := fs.String("strategy", string(tokcontext.StrategyGreedy), "Packing strategy: greedy or spread")
	intelPreset := fs.String("preset", string(tokcontext.IntelligenceStandard), "Intelligence preset: minimal, standard, or deep")
	outDir := fs.String("out", "./tokmd-handoff", "Output directory for the handoff artifacts")
	force := fs.Bool("force", false, "Overwrite a non-empty output directory")
	compress := fs.Bool("compress", false, "Strip blank lines from code.txt")
	excludeCSV := fs.String("exclude", "", "Comma-separated glob patterns to exclude")
	jsonOut := fs.Bool("json", globals.JSON, "Emit the manifest as JSON instead of a text summary")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: tokmd handoff [path] [options]\n\n")
		fs.PrintDefaults()
	}
	fs.Parse(args)

	root := "."
	if fs.NArg() > 0 {
		root = fs.Arg(0)
		fs.Parse(fs.Args()[1:])
	}

	if *budget < 0 {
		tokerrors.FatalError(tokerrors.NewBudgetError(
			fmt.Sprintf("invalid token budget %d", *budget),
			"a handoff pack budget cannot be negative",
			"Pass --budget 0 to admit nothing, or a positive token count",
		), *jsonOut)
	}

	strat := tokcontext.Strategy(*strategy)
	if strat != tokcontext.StrategyGreedy && strat != tokcontext.StrategySpread {
		tokerrors.FatalError(tokerrors.NewInputError(
			fmt.Sprintf("unknown strategy %q", *strategy),
			"strategy must be greedy or spread",
			"Pass --strategy greedy or --strategy spread",
		), *jsonOut)
	}

	intel := tokcontext.IntelligencePreset(*intelPreset)
	switch intel {
	case tokcontext.IntelligenceMinimal, tokcontext.IntelligenceStandard, tokcontext.IntelligenceDeep:
	default:
		tokerrors.FatalError(tokerrors.NewInputError(
			fmt.Sprintf("unknown preset %q", *intelPreset),
			"preset must be minimal, standard, or deep",
			"Pass --preset minimal, --preset standard, or --preset deep",
		), *jsonOut)
	}

	var exclude []string
	if *excludeCSV != "" {
		exclude = strings.Split(*excludeCSV, ",")
	}

	spinner := NewSpinner(NewProgressConfig(globals), "scanning")
	spinnerDone := make(chan struct{})
	if spinner != nil {
		go driveSpinner(spinner, spinnerDone)
	}

	tok := oracle.DefaultTokenizer{}
	export, err := inventory.Walk(root, inventory.Options{Exclude: exclude}, tok)
	stopSpinner(spinner, spinnerDone)
	if err != nil {
		tokerrors.FatalError(tokerrors.NewInternalError(
			"failed to walk directory tree", err.Error(),
			"Check that the path is readable and not a broken symlink", err,
		), *jsonOut)
	}

	receipt := runHandoffAnalysis(root, export, tok, intel)

	candidates := buildCandidates(export, receipt)
	pack := tokcontext.Run(tokcontext.PackRequest{
		Budget:         *budget,
		MaxFilePct:     *maxFilePct,
		MaxFileTokens:  *maxFileTokens,
		DenseThreshold: *denseThreshold,
		Strategy:       strat,
		Candidates:     candidates,
	})

	rowsByPath := make(map[string]tokmd.FileRow, len(export.Rows))
	for _, r := range export.Rows {
		rowsByPath[r.Path] = r
	}

	files := oracle.NewDefaultFileOracle(root)
	manifest, err := tokcontext.EmitArtifacts(tokcontext.HandoffRequest{
		OutDir:     *outDir,
		Force:      *force,
		Compress:   *compress,
		Preset:     intel,
		Tool:       tokmd.ToolInfo{Name: "tokmd", Version: version},
		Pack:       pack,
		RowsByPath: rowsByPath,
		ReadFile: func(path string) ([]byte, error) {
			return files.ReadFile(context.Background(), path)
		},
		Receipt:          receipt,
		ExcludedPatterns: exclude,
	})
	if err != nil {
		tokerrors.FatalError(tokerrors.NewInternalError(
			"failed to emit handoff artifacts", err.Error(),
			"Pass --force to overwrite a non-empty output directory", err,
		), *jsonOut)
	}

	if *jsonOut {
		_ = output.JSON(manifest)
		return
	}
	printManifestSummary(manifest, *outDir)
}

// runHandoffAnalysis runs a lightweight derived-stats-only analysis pass
// (plus git hotspots at the Deep intelligence preset) so the packer has
// module/lang metadata and churn-hotspot priority to work with. Errors
// here degrade to an absent receipt rather than aborting the handoff:
// the pack can still be built from the raw inventory alone.
func runHandoffAnalysis(root string, export tokmd.ExportData, tok oracle.Tokenizer, intel tokcontext.IntelligencePreset) *tokmd.AnalysisReceipt {
	plan := preset.Plan{}
	var gitOr oracle.GitOracle
	if intel == tokcontext.IntelligenceDeep {
		plan.Git = true
		if g, err := gitoracle.Open(root); err == nil {
			gitOr = g
		}
	}

	files := oracle.NewDefaultFileOracle(root)
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	ac := analysis.NewAnalysisContext(files, tok, gitOr, analysis.DefaultLimits(), logger, prometheus.NewRegistry(),
		tokmd.ToolInfo{Name: "tokmd", Version: version})

	receipt, err := ac.Run(context.Background(), analysis.AnalysisRequest{
		Export:     export,
		Plan:       plan,
		PresetName: "receipt",
		Format:     "text",
	})
	if err != nil {
		return nil
	}
	return receipt
}

func buildCandidates(export tokmd.ExportData, receipt *tokmd.AnalysisReceipt) []tokcontext.Candidate {
	hotspots := hotspotPaths(receipt)
	candidates := make([]tokcontext.Candidate, 0, len(export.Rows))
	for _, r := range export.ParentRows() {
		classes := tokcontext.ClassifyFile(r.Path, r.Tokens, r.Lines, tokcontext.DefaultDenseThreshold)
		candidates = append(candidates, tokcontext.Candidate{
			Path:      r.Path,
			Module:    r.Module,
			Tokens:    int64(r.Tokens),
			Code:      r.Code,
			IsHotspot: hotspots[r.Path],
			Classes:   classes,
		})
	}
	return candidates
}

func printManifestSummary(m *tokcontext.Manifest, outDir string) {
	ui.Header("tokmd handoff")
	fmt.Printf("output: %s\n", outDir)
	fmt.Printf("budget: %d   used: %d   strategy: %s\n", m.Budget, m.Used, m.Strategy)
	fmt.Printf("included: %d   excluded: %d\n", len(m.IncludedFiles), len(m.ExcludedPaths))
	for _, a := range m.Artifacts {
		fmt.Printf("  %s (%d bytes, %s:%s)\n", filepath.Join(outDir, a.Path), a.Size, a.Hash.Algo, a.Hash.Hash[:12])
	}
}
