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

// Package analysis implements the tokmd analysis pipeline: an
// orchestrator that runs a closed set of independent enrichers over a
// read-only file inventory and merges their output into one
// tokmd.AnalysisReceipt.
//
// Enrichers never share mutable state. Each runs in its own goroutine
// against an immutable ExportData snapshot, writes only to the single
// receipt field it owns, and the orchestrator waits for every goroutine
// before assembling the receipt. The only shared mutable state is the
// cumulative byte budget, which uses a lock-free CAS loop rather than a
// mutex.
package analysis

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kraklabs/tokmd/pkg/envelope"
	"github.com/kraklabs/tokmd/pkg/oracle"
	"github.com/kraklabs/tokmd/pkg/preset"
	"github.com/kraklabs/tokmd/pkg/tokmd"
)

// AnalysisLimits bounds how much work a single run may perform.
type AnalysisLimits struct {
	MaxBytes       int64 // 0 = unlimited cumulative file-content bytes
	MaxFiles       int   // 0 = unlimited
	MaxFileBytes   int64 // per-file cap before an enricher skips content, default 128 KiB
	MaxCommits     int
	MaxCommitFiles int
}

// DefaultLimits returns a conservative per-file cap with everything
// else unbounded.
func DefaultLimits() AnalysisLimits {
	return AnalysisLimits{
		MaxFileBytes:   128 * 1024,
		MaxCommits:     2000,
		MaxCommitFiles: 200,
	}
}

// AnalysisContext bundles every collaborator the orchestrator and its
// enrichers depend on. None of these are optional except GitOracle,
// which is nil when the working tree is not a git repository.
type AnalysisContext struct {
	Files     oracle.FileOracle
	Tokens    oracle.Tokenizer
	Git       oracle.GitOracle
	Limits    AnalysisLimits
	Logger    *slog.Logger
	Registry  prometheus.Registerer
	ToolMeta  tokmd.ToolInfo

	metrics *metricsAnalysis
}

// NewAnalysisContext builds an AnalysisContext, registering Prometheus
// collectors against reg if non-nil.
func NewAnalysisContext(files oracle.FileOracle, tokens oracle.Tokenizer, git oracle.GitOracle, limits AnalysisLimits, logger *slog.Logger, reg prometheus.Registerer, tool tokmd.ToolInfo) *AnalysisContext {
	if logger == nil {
		logger = slog.Default()
	}
	m := &metricsAnalysis{}
	m.register(reg)
	return &AnalysisContext{
		Files: files, Tokens: tokens, Git: git,
		Limits: limits, Logger: logger, Registry: reg,
		ToolMeta: tool, metrics: m,
	}
}

// AnalysisRequest is one run's parameters: the inventory to analyze and
// which enrichers to run.
type AnalysisRequest struct {
	Export       tokmd.ExportData
	Plan         preset.Plan
	PresetName   string
	Format       string
	WindowTokens *int
	Git          *bool
}

// Run executes every enricher enabled in req.Plan concurrently and
// returns the assembled receipt. Cooperative cancellation is checked at
// file-row boundaries inside each enricher; Run itself returns promptly
// once ctx is done and every in-flight enricher has unwound.
func (ac *AnalysisContext) Run(ctx context.Context, req AnalysisRequest) (*tokmd.AnalysisReceipt, error) {
	budget := newByteBudget(ac.Limits.MaxBytes)

	receipt := &tokmd.AnalysisReceipt{
		SchemaVersion: envelope.AnalysisSchemaVersion,
		GeneratedAtMs: 0,
		Tool:          ac.ToolMeta,
		Mode:          "analysis",
		Status:        tokmd.StatusComplete,
		Source: tokmd.AnalysisSource{
			ModuleRoots: req.Export.ModuleRoots,
			ModuleDepth: req.Export.ModuleDepth,
			Children:    string(req.Export.Children),
		},
		Args: tokmd.AnalysisArgsMeta{
			Preset:            req.PresetName,
			Format:            req.Format,
			WindowTokens:      req.WindowTokens,
			Git:               req.Git,
			ImportGranularity: string(tokmd.GranularityModule),
		},
	}

	var (
		mu         sync.Mutex
		warnings   []string
		disabled   []preset.DisabledFeature
		todoReport *tokmd.TodoReport
		wg         sync.WaitGroup
	)

	run := func(name string, enabled bool, fn func(context.Context) (warn []string, disable []preset.DisabledFeature, err error)) {
		if !enabled {
			return
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			start := time.Now()
			w, d, err := fn(ctx)
			observeEnricher(ac.metrics, name, time.Since(start).Seconds())
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				warnings = append(warnings, name+": "+err.Error())
				return
			}
			warnings = append(warnings, w...)
			disabled = append(disabled, d...)
		}()
	}

	parentRows := req.Export.ParentRows()

	run("derived", true, func(ctx context.Context) ([]string, []preset.DisabledFeature, error) {
		derived, err := computeDerived(ctx, ac, parentRows, req)
		if err != nil {
			return nil, nil, err
		}
		receipt.Derived = derived
		return nil, nil, nil
	})

	run("entropy", req.Plan.Entropy, func(ctx context.Context) ([]string, []preset.DisabledFeature, error) {
		rep, err := computeEntropy(ctx, ac, parentRows, budget)
		if err != nil {
			return nil, nil, err
		}
		receipt.Entropy = rep
		return nil, nil, nil
	})

	run("license", req.Plan.License, func(ctx context.Context) ([]string, []preset.DisabledFeature, error) {
		rep, err := computeLicense(ctx, ac, parentRows, budget)
		if err != nil {
			return nil, nil, err
		}
		receipt.License = rep
		return nil, nil, nil
	})

	run("imports", req.Plan.Imports, func(ctx context.Context) ([]string, []preset.DisabledFeature, error) {
		rep, err := computeImports(ctx, ac, parentRows, budget)
		if err != nil {
			return nil, nil, err
		}
		receipt.Imports = rep
		return nil, nil, nil
	})

	run("dup", req.Plan.Dup, func(ctx context.Context) ([]string, []preset.DisabledFeature, error) {
		rep, err := computeDuplicates(ctx, ac, parentRows, budget)
		if err != nil {
			return nil, nil, err
		}
		receipt.Dup = rep
		return nil, nil, nil
	})

	run("halstead", req.Plan.Halstead, func(ctx context.Context) ([]string, []preset.DisabledFeature, error) {
		rep, err := computeHalstead(ctx, ac, parentRows, budget)
		if err != nil {
			return nil, nil, err
		}
		receipt.Halstead = rep
		return nil, nil, nil
	})

	run("topics", req.Plan.Topics, func(ctx context.Context) ([]string, []preset.DisabledFeature, error) {
		rep, err := computeTopics(ctx, ac, parentRows, budget)
		if err != nil {
			return nil, nil, err
		}
		receipt.Topics = rep
		return nil, nil, nil
	})

	run("archetype", req.Plan.Archetype, func(ctx context.Context) ([]string, []preset.DisabledFeature, error) {
		receipt.Archetype = detectArchetype(req.Export)
		return nil, nil, nil
	})

	run("assets", req.Plan.Assets, func(ctx context.Context) ([]string, []preset.DisabledFeature, error) {
		rep := computeAssets(req.Export)
		receipt.Assets = rep
		return nil, nil, nil
	})

	run("deps", req.Plan.Deps, func(ctx context.Context) ([]string, []preset.DisabledFeature, error) {
		rep, err := computeDependencies(ctx, ac, parentRows, budget)
		if err != nil {
			return nil, nil, err
		}
		receipt.Deps = rep
		return nil, nil, nil
	})

	run("todo", req.Plan.Todo, func(ctx context.Context) ([]string, []preset.DisabledFeature, error) {
		rep, err := computeTodo(ctx, ac, parentRows, budget)
		if err != nil {
			return nil, nil, err
		}
		mu.Lock()
		todoReport = rep
		mu.Unlock()
		return nil, nil, nil
	})

	run("fun", req.Plan.Fun, func(ctx context.Context) ([]string, []preset.DisabledFeature, error) {
		receipt.Fun = computeFun(req.Export)
		return nil, nil, nil
	})

	run("api_surface", req.Plan.APISurface, func(ctx context.Context) ([]string, []preset.DisabledFeature, error) {
		rep, err := computeAPISurface(ctx, ac, parentRows, budget)
		if err != nil {
			return nil, nil, err
		}
		receipt.APISurface = rep
		return nil, nil, nil
	})

	needsGit := req.Plan.Git || req.Plan.Churn || req.Plan.Fingerprint
	run("git", needsGit, func(ctx context.Context) ([]string, []preset.DisabledFeature, error) {
		if ac.Git == nil {
			return nil, []preset.DisabledFeature{{Flag: "git", Reason: "not a git repository"}}, nil
		}
		gitRep, churnRep, fingerprint, err := computeGit(ctx, ac, parentRows, req)
		if err != nil {
			return nil, []preset.DisabledFeature{{Flag: "git", Reason: err.Error()}}, nil
		}
		if req.Plan.Git {
			receipt.Git = gitRep
		}
		if req.Plan.Churn {
			receipt.PredictiveChurn = churnRep
		}
		if req.Plan.Fingerprint {
			receipt.CorporateFingerprint = fingerprint
		}
		return nil, nil, nil
	})

	wg.Wait()

	if todoReport != nil && receipt.Derived != nil {
		receipt.Derived.Todo = todoReport
	}
	if req.Plan.Complexity && receipt.Derived != nil {
		nesting := receipt.Derived.Nesting
		receipt.Complexity = &nesting
	}

	receipt.Warnings = warnings
	for _, d := range disabled {
		receipt.Warnings = append(receipt.Warnings, d.String())
	}
	if len(disabled) > 0 {
		receipt.Status = tokmd.StatusPartial
	}

	return receipt, nil
}
