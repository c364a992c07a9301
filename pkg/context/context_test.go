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

package context

import (
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kraklabs/tokmd/pkg/tokmd"
)

func TestSmartExcludeReasonDetectsLockfilesAndSourcemaps(t *testing.T) {
	reason, ok := smartExcludeReason("Cargo.lock")
	require.True(t, ok)
	assert.Equal(t, ClassLockfile, reason)

	reason, ok = smartExcludeReason("dist/bundle.js.map")
	require.True(t, ok)
	assert.Equal(t, ClassSourcemap, reason)

	reason, ok = smartExcludeReason("dist/app.min.js")
	require.True(t, ok)
	assert.Equal(t, ClassMinified, reason)

	_, ok = smartExcludeReason("src/main.go")
	assert.False(t, ok)
}

func TestIsSpineFileMatchesBasenameAndDocumentPaths(t *testing.T) {
	assert.True(t, isSpineFile("README.md"))
	assert.True(t, isSpineFile("crates/tokmd/Cargo.toml"))
	assert.True(t, isSpineFile("docs/architecture.md"))
	assert.True(t, isSpineFile(`docs\design.md`))
	assert.False(t, isSpineFile("src/lib.rs"))
}

func TestClassifyFileDetectsGeneratedAndDenseBlob(t *testing.T) {
	classes := ClassifyFile("pkg/api/service.pb.go", 1000, 10, DefaultDenseThreshold)
	assert.Contains(t, classes, ClassGenerated)
	assert.Contains(t, classes, ClassDataBlob)

	classes = ClassifyFile("src/main.go", 10, 10, DefaultDenseThreshold)
	assert.Empty(t, classes)
}

func TestClassifyFileNeverClassifiesSpineFiles(t *testing.T) {
	classes := ClassifyFile("vendor/README.md", 10000, 1, DefaultDenseThreshold)
	assert.Empty(t, classes)
}

func TestComputeFileCapReturnsMaxForUnlimitedBudget(t *testing.T) {
	cap := ComputeFileCap(math.MaxInt64, DefaultMaxFilePct, DefaultMaxFileTokens)
	assert.Equal(t, int64(math.MaxInt64), cap)
}

func TestComputeFileCapReturnsZeroForZeroBudget(t *testing.T) {
	cap := ComputeFileCap(0, DefaultMaxFilePct, DefaultMaxFileTokens)
	assert.Equal(t, int64(0), cap)
}

func TestComputeFileCapRespectsPctWhenSmaller(t *testing.T) {
	cap := ComputeFileCap(1000, DefaultMaxFilePct, DefaultMaxFileTokens)
	assert.Equal(t, int64(150), cap)
}

func TestComputeFileCapRespectsHardCapWhenSmaller(t *testing.T) {
	cap := ComputeFileCap(1_000_000, DefaultMaxFilePct, 16_000)
	assert.Equal(t, int64(16_000), cap)
}

func TestAssignPolicyFullWhenUnderCap(t *testing.T) {
	d := AssignPolicy("a.go", 100, 150, nil)
	assert.Equal(t, PolicyFull, d.Policy)
	assert.Equal(t, int64(100), d.EffectiveTokens)
	assert.Empty(t, d.Reason)
}

func TestAssignPolicySkipsOversizedGeneratedFiles(t *testing.T) {
	d := AssignPolicy("gen.pb.go", 500, 150, []FileClassification{ClassGenerated})
	assert.Equal(t, PolicySkip, d.Policy)
	assert.Equal(t, int64(0), d.EffectiveTokens)
	assert.Contains(t, d.Reason, "generated")
	assert.Contains(t, d.Reason, "500 > 150 tokens")
}

func TestAssignPolicyHeadTailForOversizedSource(t *testing.T) {
	d := AssignPolicy("big.rs", 1500, 1000, nil)
	assert.Equal(t, PolicyHeadTail, d.Policy)
	assert.Contains(t, d.Reason, "head+tail")
	assert.LessOrEqual(t, d.EffectiveTokens, int64(1000))
}

func TestPackGreedyRespectsBudgetInvariant(t *testing.T) {
	req := PackRequest{
		Budget: 1000, MaxFilePct: DefaultMaxFilePct, MaxFileTokens: DefaultMaxFileTokens,
		DenseThreshold: DefaultDenseThreshold, Strategy: StrategyGreedy,
		Candidates: []Candidate{
			{Path: "README.md", Tokens: 80},
			{Path: "src/big.rs", Tokens: 1500},
			{Path: "vendor/foo.min.js", Tokens: 20000, Classes: []FileClassification{ClassVendored, ClassMinified}},
		},
	}
	pack := Run(req)
	assert.LessOrEqual(t, pack.UsedTokens, pack.BudgetTokens)

	var bigDecision, vendorDecision PackedFile
	for _, f := range append(pack.Included, pack.Excluded...) {
		if f.Path == "src/big.rs" {
			bigDecision = f
		}
		if f.Path == "vendor/foo.min.js" {
			vendorDecision = f
		}
	}
	assert.Equal(t, PolicyHeadTail, bigDecision.Policy)
	assert.Contains(t, bigDecision.Reason, "head+tail")
	assert.Equal(t, PolicySkip, vendorDecision.Policy)
	assert.True(t, strings.Contains(vendorDecision.Reason, "vendored") || strings.Contains(vendorDecision.Reason, "minified"))
}

func TestPackSpreadRoundRobinsAcrossModules(t *testing.T) {
	req := PackRequest{
		Budget: 10000, MaxFilePct: DefaultMaxFilePct, MaxFileTokens: DefaultMaxFileTokens,
		DenseThreshold: DefaultDenseThreshold, Strategy: StrategySpread,
		Candidates: []Candidate{
			{Path: "a/1.go", Module: "a", Tokens: 10},
			{Path: "a/2.go", Module: "a", Tokens: 10},
			{Path: "b/1.go", Module: "b", Tokens: 10},
		},
	}
	pack := Run(req)
	require.Len(t, pack.Included, 3)
	assert.Equal(t, "b/1.go", pack.Included[1].Path)
}

func TestPackSecondRunIsDeterministic(t *testing.T) {
	req := PackRequest{
		Budget: 500, MaxFilePct: DefaultMaxFilePct, MaxFileTokens: DefaultMaxFileTokens,
		DenseThreshold: DefaultDenseThreshold, Strategy: StrategyGreedy,
		Candidates: []Candidate{
			{Path: "README.md", Tokens: 50},
			{Path: "src/a.go", Tokens: 100},
			{Path: "src/b.go", Tokens: 200},
		},
	}
	first := Run(req)
	second := Run(req)
	assert.Equal(t, first, second)
}

func testHandoffRequest(t *testing.T, outDir string) HandoffRequest {
	t.Helper()
	files := map[string][]byte{
		"README.md": []byte("# demo\n"),
		"src/a.go":  []byte("package a\n\nfunc A() {}\n"),
	}
	pack := Run(PackRequest{
		Budget: 1000, MaxFilePct: DefaultMaxFilePct, MaxFileTokens: DefaultMaxFileTokens,
		DenseThreshold: DefaultDenseThreshold, Strategy: StrategyGreedy,
		Candidates: []Candidate{
			{Path: "README.md", Tokens: 10},
			{Path: "src/a.go", Module: "src", Tokens: 20, Code: 3},
		},
	})
	return HandoffRequest{
		OutDir: outDir,
		Preset: IntelligenceStandard,
		Tool:   tokmd.ToolInfo{Name: "tokmd", Version: "test"},
		Pack:   pack,
		RowsByPath: map[string]tokmd.FileRow{
			"README.md": {Path: "README.md", Lang: "markdown", Lines: 1},
			"src/a.go":  {Path: "src/a.go", Module: "src", Lang: "go", Lines: 3},
		},
		ReadFile: func(path string) ([]byte, error) {
			content, ok := files[path]
			if !ok {
				return nil, os.ErrNotExist
			}
			return content, nil
		},
	}
}

func TestEmitArtifactsWritesAllFourFiles(t *testing.T) {
	dir := t.TempDir()
	req := testHandoffRequest(t, dir)
	manifest, err := EmitArtifacts(req)
	require.NoError(t, err)
	require.NotNil(t, manifest)

	for _, name := range []string{"manifest.json", "map.jsonl", "intelligence.json", "code.txt"} {
		_, err := os.Stat(filepath.Join(dir, name))
		assert.NoError(t, err, "expected %s to exist", name)
	}
	assert.LessOrEqual(t, manifest.Used, manifest.Budget)
	assert.Len(t, manifest.Artifacts, 3)
	for _, a := range manifest.Artifacts {
		assert.Equal(t, "blake3", a.Hash.Algo)
		assert.NotEmpty(t, a.Hash.Hash)
	}
}

func TestEmitArtifactsRefusesNonEmptyDirWithoutForce(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "existing.txt"), []byte("x"), 0o644))

	req := testHandoffRequest(t, dir)
	_, err := EmitArtifacts(req)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--force")
}

func TestEmitArtifactsSecondRunIsByteIdenticalWithForce(t *testing.T) {
	dir := t.TempDir()
	req := testHandoffRequest(t, dir)
	req.Force = true

	_, err := EmitArtifacts(req)
	require.NoError(t, err)
	first, err := os.ReadFile(filepath.Join(dir, "manifest.json"))
	require.NoError(t, err)

	_, err = EmitArtifacts(req)
	require.NoError(t, err)
	second, err := os.ReadFile(filepath.Join(dir, "manifest.json"))
	require.NoError(t, err)

	assert.Equal(t, first, second)
}
