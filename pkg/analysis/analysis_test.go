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

package analysis

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kraklabs/tokmd/pkg/oracle"
	"github.com/kraklabs/tokmd/pkg/preset"
	"github.com/kraklabs/tokmd/pkg/tokmd"
)

type fakeFileOracle struct {
	files map[string][]byte
}

func (f *fakeFileOracle) ReadFile(_ context.Context, path string) ([]byte, error) {
	return f.files[path], nil
}

func newContext(files map[string][]byte) *AnalysisContext {
	return NewAnalysisContext(&fakeFileOracle{files: files}, oracle.DefaultTokenizer{}, nil, DefaultLimits(), nil, nil, tokmd.ToolInfo{Name: "tokmd", Version: "test"})
}

func rowFor(path, lang, module string, code, comments, blanks int, content []byte) tokmd.FileRow {
	lines := code + comments + blanks
	return tokmd.FileRow{
		Path: path, Module: module, Lang: lang, Kind: tokmd.Parent,
		Code: code, Comments: comments, Blanks: blanks, Lines: lines,
		Bytes: int64(len(content)), Tokens: len(content) / 4,
	}
}

func TestRunProducesCompleteStatusWithNoPlan(t *testing.T) {
	files := map[string][]byte{"main.go": []byte("package main\n\nfunc main() {}\n")}
	ac := newContext(files)
	export := tokmd.ExportData{
		Rows:        []tokmd.FileRow{rowFor("main.go", "go", "root", 3, 0, 1, files["main.go"])},
		ModuleRoots: []string{"root"},
	}
	receipt, err := ac.Run(context.Background(), AnalysisRequest{Export: export, Plan: preset.PlanFor(preset.Receipt), PresetName: "receipt", Format: "json"})
	require.NoError(t, err)
	assert.Equal(t, tokmd.StatusComplete, receipt.Status)
	assert.NotNil(t, receipt.Derived)
	assert.Equal(t, 1, receipt.Derived.Totals.Files)
	assert.Nil(t, receipt.Entropy)
}

func TestRunEnablesEntropyWhenPlanned(t *testing.T) {
	secret := make([]byte, 64)
	for i := range secret {
		secret[i] = byte(i * 37 % 256)
	}
	files := map[string][]byte{"blob.bin": secret}
	ac := newContext(files)
	export := tokmd.ExportData{Rows: []tokmd.FileRow{rowFor("blob.bin", "binary", "root", 0, 0, 0, secret)}}
	plan := preset.Plan{Entropy: true}
	receipt, err := ac.Run(context.Background(), AnalysisRequest{Export: export, Plan: plan, PresetName: "health", Format: "json"})
	require.NoError(t, err)
	require.NotNil(t, receipt.Entropy)
}

func TestGiniCoefficientUniformIsZero(t *testing.T) {
	vals := []float64{10, 10, 10, 10}
	assert.InDelta(t, 0.0, giniCoefficient(vals), 1e-9)
}

func TestGiniCoefficientSkewedIsPositive(t *testing.T) {
	vals := []float64{1, 1, 1, 1000}
	g := giniCoefficient(vals)
	assert.Greater(t, g, 0.5)
}

func TestClassifyEntropyBands(t *testing.T) {
	assert.Equal(t, tokmd.EntropyLow, classifyEntropy(1.0))
	assert.Equal(t, tokmd.EntropyNormal, classifyEntropy(4.0))
	assert.Equal(t, tokmd.EntropySuspicious, classifyEntropy(7.0))
	assert.Equal(t, tokmd.EntropyHigh, classifyEntropy(7.9))
}

func TestComputeEntropySkipsEmptyFiles(t *testing.T) {
	ac := newContext(map[string][]byte{"empty.bin": {}})
	rows := []tokmd.FileRow{rowFor("empty.bin", "binary", "root", 0, 0, 0, nil)}
	rep, err := computeEntropy(context.Background(), ac, rows, newByteBudget(0))
	require.NoError(t, err)
	assert.Empty(t, rep.Suspects)
}

func TestBuildCocomoOmittedForEmptyRepo(t *testing.T) {
	derived, err := computeDerived(context.Background(), newContext(nil), nil, AnalysisRequest{})
	require.NoError(t, err)
	assert.Nil(t, derived.Cocomo)
}

func TestBuildCocomoPresentWhenCodeExists(t *testing.T) {
	rows := []tokmd.FileRow{rowFor("main.go", "go", "root", 100, 10, 5, nil)}
	derived, err := computeDerived(context.Background(), newContext(nil), rows, AnalysisRequest{})
	require.NoError(t, err)
	require.NotNil(t, derived.Cocomo)
}

func TestReadingTimeUsesTwentyLinesPerMinute(t *testing.T) {
	rt := buildReadingTime(tokmd.DerivedTotals{Code: 100})
	assert.Equal(t, 20, rt.LinesPerMinute)
	assert.Equal(t, 5.0, rt.Minutes)
}

func TestBuildPolyglotDominantPctIsFractionNotPercent(t *testing.T) {
	rows := []tokmd.FileRow{
		rowFor("a.go", "go", "root", 80, 0, 0, nil),
		rowFor("b.py", "python", "root", 20, 0, 0, nil),
	}
	rep := buildPolyglot(rows)
	assert.GreaterOrEqual(t, rep.DominantPct, 0.0)
	assert.LessOrEqual(t, rep.DominantPct, 1.0)
	assert.Equal(t, 0.8, rep.DominantPct)
}

func TestDocDensityTotalBoundedButPerLangCanExceedOne(t *testing.T) {
	rows := []tokmd.FileRow{
		rowFor("heavy.go", "go", "root", 1, 5, 0, nil),
	}
	rep := buildDocDensity(rows)
	assert.LessOrEqual(t, rep.Total.Ratio, 1.0)
	require.Len(t, rep.ByLang, 1)
	assert.Greater(t, rep.ByLang[0].Ratio, 1.0)
}

func TestInfraLangsIncludesDocsAndWebAssets(t *testing.T) {
	for _, lang := range []string{"markdown", "html", "css", "scss", "nix", "cmake", "csv", "tsv", "svg"} {
		assert.True(t, infraLangs[lang], "expected %s to be treated as infra", lang)
	}
}

func TestNormalizeImportTargetCollapsesVendorDomain(t *testing.T) {
	assert.Equal(t, "kraklabs/tokmd", normalizeImportTarget("go", "github.com/kraklabs/tokmd/pkg/analysis"))
	assert.Equal(t, "serde", normalizeImportTarget("rust", "serde::Deserialize"))
	assert.Equal(t, "react", normalizeImportTarget("javascript", "react/jsx-runtime"))
	assert.Equal(t, "os", normalizeImportTarget("python", "os.path"))
}

func TestFingerprintsRequireMinimumLength(t *testing.T) {
	short := []byte("too short")
	assert.Nil(t, fingerprints(short))
}

func TestJaccardIdenticalContentIsOne(t *testing.T) {
	content := []byte("the quick brown fox jumps over the lazy dog repeatedly for test purposes")
	a := fingerprints(content)
	b := fingerprints(content)
	assert.Equal(t, 1.0, jaccard(a, b))
}

func TestBuildHalsteadMetricsBasic(t *testing.T) {
	ops := []string{"+", "+", "="}
	operands := []string{"a", "b", "a"}
	m := buildHalsteadMetrics(ops, operands)
	assert.Equal(t, 2, m.DistinctOperators)
	assert.Equal(t, 2, m.DistinctOperands)
	assert.Equal(t, 3, m.TotalOperators)
	assert.Equal(t, 3, m.TotalOperands)
	assert.Greater(t, m.Volume, 0.0)
}

func TestDetectArchetypeRustWorkspace(t *testing.T) {
	export := tokmd.ExportData{Rows: []tokmd.FileRow{
		{Path: "Cargo.toml"}, {Path: "crates/a/Cargo.toml"}, {Path: "crates/b/Cargo.toml"},
	}}
	a := detectArchetype(export)
	require.NotNil(t, a)
	assert.Equal(t, "rust_workspace", a.Kind)
}

func TestDetectArchetypeFallsBackToNodePackage(t *testing.T) {
	export := tokmd.ExportData{Rows: []tokmd.FileRow{{Path: "package.json"}, {Path: "index.js"}}}
	a := detectArchetype(export)
	require.NotNil(t, a)
	assert.Equal(t, "node_package", a.Kind)
}

func TestDetectArchetypeNoSignalsReturnsNil(t *testing.T) {
	export := tokmd.ExportData{Rows: []tokmd.FileRow{{Path: "README.md"}}}
	assert.Nil(t, detectArchetype(export))
}

func TestComputeAssetsCategorizesByExtension(t *testing.T) {
	export := tokmd.ExportData{Rows: []tokmd.FileRow{
		{Path: "logo.png", Bytes: 2048},
		{Path: "theme.woff2", Bytes: 4096},
		{Path: "main.go", Bytes: 512},
	}}
	rep := computeAssets(export)
	assert.Equal(t, 2, rep.TotalFiles)
	assert.Equal(t, int64(6144), rep.TotalBytes)
}

func TestEcoLabelThresholds(t *testing.T) {
	label, _ := ecoLabelFor(500 * 1024)
	assert.Equal(t, "featherweight", label)
	label, _ = ecoLabelFor(300 << 20)
	assert.Equal(t, "monolith", label)
}

func TestComputeTodoCountsTags(t *testing.T) {
	files := map[string][]byte{"a.go": []byte("// TODO: fix this\n// FIXME later\nfunc a() {}\n")}
	ac := newContext(files)
	rows := []tokmd.FileRow{rowFor("a.go", "go", "root", 3, 2, 0, files["a.go"])}
	rep, err := computeTodo(context.Background(), ac, rows, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, rep.Total)
}

func TestComputeDependenciesCountsCargoLock(t *testing.T) {
	content := []byte("[[package]]\nname = \"a\"\n\n[[package]]\nname = \"b\"\n")
	files := map[string][]byte{"Cargo.lock": content}
	ac := newContext(files)
	rows := []tokmd.FileRow{rowFor("Cargo.lock", "toml", "root", 0, 0, 0, content)}
	rep, err := computeDependencies(context.Background(), ac, rows, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, rep.Total)
	require.Len(t, rep.Lockfiles, 1)
	assert.Equal(t, "cargo", rep.Lockfiles[0].Kind)
}

func TestByteBudgetStopsAtLimit(t *testing.T) {
	b := newByteBudget(10)
	assert.True(t, b.tryConsume(6))
	assert.False(t, b.tryConsume(6))
	assert.True(t, b.tryConsume(4))
	assert.Equal(t, int64(10), b.usedBytes())
}

func TestByteBudgetUnlimitedWhenZero(t *testing.T) {
	b := newByteBudget(0)
	assert.True(t, b.tryConsume(1<<30))
}
