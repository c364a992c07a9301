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
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/kraklabs/tokmd/pkg/envelope"
	"github.com/kraklabs/tokmd/pkg/tokmd"
)

// IntelligencePreset controls how much of the analysis receipt the
// intelligence.json artifact carries.
type IntelligencePreset string

const (
	IntelligenceMinimal IntelligencePreset = "minimal"
	IntelligenceStandard IntelligencePreset = "standard"
	IntelligenceDeep     IntelligencePreset = "deep"
)

// HandoffRequest bundles everything EmitArtifacts needs: the pack to
// render, the file content lookup, and the output knobs.
type HandoffRequest struct {
	OutDir     string
	Force      bool
	Compress   bool
	Preset     IntelligencePreset
	Tool       tokmd.ToolInfo
	Pack       Pack
	RowsByPath map[string]tokmd.FileRow
	ReadFile   func(path string) ([]byte, error)
	Receipt    *tokmd.AnalysisReceipt
	ExcludedPatterns []string
}

// ManifestArtifactEntry records one emitted artifact's name, relative
// path, size and integrity hash.
type ManifestArtifactEntry struct {
	Name string `json:"name"`
	Path string `json:"path"`
	Size int64  `json:"size"`
	Hash struct {
		Algo string `json:"algo"`
		Hash string `json:"hash"`
	} `json:"hash"`
}

// ManifestIncludedFile is one row of manifest.json's included_files.
type ManifestIncludedFile struct {
	Path            string `json:"path"`
	EffectiveTokens int64  `json:"effective_tokens"`
	Policy          Policy `json:"policy"`
	Reason          string `json:"reason,omitempty"`
}

// Manifest is the schema for manifest.json.
type Manifest struct {
	SchemaVersion    int                      `json:"schema_version"`
	GeneratedAtMs    uint64                   `json:"generated_at_ms"`
	Tool             tokmd.ToolInfo           `json:"tool"`
	Mode             string                   `json:"mode"`
	OutputDir        string                   `json:"output_dir"`
	Budget           int64                    `json:"budget"`
	Used             int64                    `json:"used"`
	Strategy         Strategy                 `json:"strategy"`
	Capabilities     []string                 `json:"capabilities"`
	IncludedFiles    []ManifestIncludedFile    `json:"included_files"`
	ExcludedPaths    []string                 `json:"excluded_paths"`
	ExcludedPatterns []string                 `json:"excluded_patterns"`
	ExcludedRedacted bool                     `json:"excluded_redacted"`
	Artifacts        []ManifestArtifactEntry   `json:"artifacts"`
}

// mapRow is one line of map.jsonl.
type mapRow struct {
	Path    string `json:"path"`
	Module  string `json:"module"`
	Lang    string `json:"lang"`
	Lines   int    `json:"lines"`
	Tokens  int64  `json:"tokens"`
	Policy  Policy `json:"policy"`
}

// EmitArtifacts writes manifest.json, map.jsonl, intelligence.json and
// code.txt into req.OutDir and returns the populated Manifest. The
// directory must be empty (or not yet exist) unless req.Force is set.
func EmitArtifacts(req HandoffRequest) (*Manifest, error) {
	if err := ensureOutputDir(req.OutDir, req.Force); err != nil {
		return nil, err
	}

	codePath := filepath.Join(req.OutDir, "code.txt")
	codeBytes, err := writeCodeArtifact(codePath, req)
	if err != nil {
		return nil, err
	}

	mapPath := filepath.Join(req.OutDir, "map.jsonl")
	mapBytes, err := writeMapArtifact(mapPath, req)
	if err != nil {
		return nil, err
	}

	intelPath := filepath.Join(req.OutDir, "intelligence.json")
	intelBytes, err := writeIntelligenceArtifact(intelPath, req)
	if err != nil {
		return nil, err
	}

	manifest := &Manifest{
		SchemaVersion:    envelope.HandoffManifestSchemaVersion,
		Tool:             req.Tool,
		Mode:             "handoff",
		OutputDir:        req.OutDir,
		Budget:           req.Pack.BudgetTokens,
		Used:             req.Pack.UsedTokens,
		Strategy:         req.Pack.Strategy,
		Capabilities:     capabilitiesFor(req.Preset),
		ExcludedPatterns: append([]string(nil), req.ExcludedPatterns...),
		ExcludedRedacted: envelope.ExcludedRedacted(envelope.RedactionNone, len(req.ExcludedPatterns)),
	}
	for _, f := range req.Pack.Included {
		manifest.IncludedFiles = append(manifest.IncludedFiles, ManifestIncludedFile{
			Path: f.Path, EffectiveTokens: f.EffectiveTokens, Policy: f.Policy, Reason: f.Reason,
		})
	}
	for _, f := range req.Pack.Excluded {
		manifest.ExcludedPaths = append(manifest.ExcludedPaths, f.Path)
	}
	sort.Strings(manifest.ExcludedPaths)

	manifest.Artifacts = []ManifestArtifactEntry{
		artifactEntry("code.txt", codePath, req.OutDir, codeBytes),
		artifactEntry("map.jsonl", mapPath, req.OutDir, mapBytes),
		artifactEntry("intelligence.json", intelPath, req.OutDir, intelBytes),
	}

	manifestPath := filepath.Join(req.OutDir, "manifest.json")
	data, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding manifest.json: %w", err)
	}
	if err := os.WriteFile(manifestPath, data, 0o644); err != nil {
		return nil, fmt.Errorf("writing manifest.json: %w", err)
	}

	return manifest, nil
}

func ensureOutputDir(dir string, force bool) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating output directory %s: %w", dir, err)
	}
	if force {
		return nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("reading output directory %s: %w", dir, err)
	}
	if len(entries) > 0 {
		return fmt.Errorf("output directory %s is not empty; pass --force to overwrite", dir)
	}
	return nil
}

func artifactEntry(name, path, outDir string, data []byte) ManifestArtifactEntry {
	rel, err := filepath.Rel(outDir, path)
	if err != nil {
		rel = name
	}
	e := ManifestArtifactEntry{Name: name, Path: rel, Size: int64(len(data))}
	e.Hash.Algo = "blake3"
	e.Hash.Hash = envelope.IntegrityHash(data)
	return e
}

func capabilitiesFor(preset IntelligencePreset) []string {
	switch preset {
	case IntelligenceDeep:
		return []string{"tree", "complexity", "derived"}
	case IntelligenceStandard:
		return []string{"tree", "derived"}
	default:
		return nil
	}
}

// writeCodeArtifact concatenates the body of every included file,
// honoring each file's policy, with a `// === <path> ===` marker
// between files. HeadTail files contribute only their head and tail
// chunks. When req.Compress is set, blank lines are stripped.
func writeCodeArtifact(path string, req HandoffRequest) ([]byte, error) {
	var buf strings.Builder
	for _, f := range req.Pack.Included {
		content, err := req.ReadFile(f.Path)
		if err != nil {
			return nil, fmt.Errorf("reading %s for code.txt: %w", f.Path, err)
		}
		buf.WriteString(fmt.Sprintf("// === %s ===\n", f.Path))
		body := renderBody(content, f.Policy)
		if req.Compress {
			body = stripBlankLines(body)
		}
		buf.Write(body)
		if len(body) == 0 || body[len(body)-1] != '\n' {
			buf.WriteByte('\n')
		}
	}
	data := []byte(buf.String())
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return nil, fmt.Errorf("writing code.txt: %w", err)
	}
	return data, nil
}

func renderBody(content []byte, policy Policy) []byte {
	if policy != PolicyHeadTail {
		return content
	}
	lines := strings.Split(string(content), "\n")
	chunk := len(lines) / 4
	if chunk < 1 {
		chunk = 1
	}
	if chunk*2 >= len(lines) {
		return content
	}
	head := strings.Join(lines[:chunk], "\n")
	tail := strings.Join(lines[len(lines)-chunk:], "\n")
	return []byte(head + "\n// ... (truncated) ...\n" + tail)
}

func stripBlankLines(body []byte) []byte {
	lines := strings.Split(string(body), "\n")
	out := make([]string, 0, len(lines))
	for _, l := range lines {
		if strings.TrimSpace(l) == "" {
			continue
		}
		out = append(out, l)
	}
	return []byte(strings.Join(out, "\n"))
}

func writeMapArtifact(path string, req HandoffRequest) ([]byte, error) {
	var buf strings.Builder
	w := bufio.NewWriter(&buf)
	for _, f := range req.Pack.Included {
		row := req.RowsByPath[f.Path]
		rec := mapRow{Path: f.Path, Module: row.Module, Lang: row.Lang, Lines: row.Lines, Tokens: f.EffectiveTokens, Policy: f.Policy}
		line, err := json.Marshal(rec)
		if err != nil {
			return nil, fmt.Errorf("encoding map.jsonl row for %s: %w", f.Path, err)
		}
		w.Write(line)
		w.WriteByte('\n')
	}
	if err := w.Flush(); err != nil {
		return nil, err
	}
	data := []byte(buf.String())
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return nil, fmt.Errorf("writing map.jsonl: %w", err)
	}
	return data, nil
}

// intelligencePayload mirrors intelligence.json's schema: the tree and
// complexity/derived fields are present only at standard/deep presets.
type intelligencePayload struct {
	ModuleRoots []string              `json:"module_roots,omitempty"`
	Derived     *tokmd.DerivedReport  `json:"derived,omitempty"`
	Archetype   *tokmd.Archetype      `json:"archetype,omitempty"`
}

func writeIntelligenceArtifact(path string, req HandoffRequest) ([]byte, error) {
	payload := intelligencePayload{}
	if req.Receipt != nil {
		if req.Preset == IntelligenceStandard || req.Preset == IntelligenceDeep {
			payload.Derived = req.Receipt.Derived
			payload.Archetype = req.Receipt.Archetype
			payload.ModuleRoots = req.Receipt.Source.ModuleRoots
		}
	}
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding intelligence.json: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return nil, fmt.Errorf("writing intelligence.json: %w", err)
	}
	return data, nil
}
