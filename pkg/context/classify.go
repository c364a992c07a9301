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

// Package context implements the context/handoff planner: classifying
// each file, assigning it an inclusion policy under a token budget, and
// packing the included files into handoff artifacts.
package context

import (
	"path"
	"sort"
	"strings"

	"github.com/kraklabs/tokmd/pkg/envelope"
)

// FileClassification is the closed set of reasons a file's inclusion
// policy might be constrained away from Full.
type FileClassification string

const (
	ClassGenerated FileClassification = "generated"
	ClassFixture   FileClassification = "fixture"
	ClassVendored  FileClassification = "vendored"
	ClassLockfile  FileClassification = "lockfile"
	ClassMinified  FileClassification = "minified"
	ClassDataBlob  FileClassification = "data_blob"
	ClassSourcemap FileClassification = "sourcemap"
)

// ClassificationName renders a FileClassification the way the receipt
// and CLI output expect it.
func ClassificationName(c FileClassification) string { return string(c) }

var lockfiles = map[string]bool{
	"Cargo.lock": true, "package-lock.json": true, "pnpm-lock.yaml": true,
	"yarn.lock": true, "poetry.lock": true, "Pipfile.lock": true,
	"go.sum": true, "composer.lock": true, "Gemfile.lock": true,
}

var smartExcludeSuffixes = []struct {
	suffix FileClassification
	suf    string
}{
	{ClassMinified, ".min.js"},
	{ClassMinified, ".min.css"},
	{ClassSourcemap, ".js.map"},
	{ClassSourcemap, ".css.map"},
}

var generatedMarkers = []string{
	"node-types.json", "grammar.json", ".generated.", ".pb.go", ".pb.rs",
	"_pb2.py", ".g.dart", ".freezed.dart",
}

var vendoredDirs = []string{"vendor/", "third_party/", "third-party/", "node_modules/"}
var fixtureDirs = []string{"fixtures/", "testdata/", "test_data/", "__snapshots__/", "golden/"}

// smartExcludeReason reports the classification a path earns purely
// from its name, independent of its content — lockfiles, minified
// bundles, sourcemaps, vendored/fixture directories, and a handful of
// known generated-file markers. Returns "", false when nothing matches.
func smartExcludeReason(p string) (FileClassification, bool) {
	normalized := envelope.NormalizePath(p)
	base := path.Base(normalized)

	if lockfiles[base] {
		return ClassLockfile, true
	}
	for _, s := range smartExcludeSuffixes {
		if strings.HasSuffix(normalized, s.suf) {
			return s.suffix, true
		}
	}
	for _, marker := range generatedMarkers {
		if strings.Contains(normalized, marker) {
			return ClassGenerated, true
		}
	}
	for _, dir := range vendoredDirs {
		if strings.Contains(normalized, dir) {
			return ClassVendored, true
		}
	}
	for _, dir := range fixtureDirs {
		if strings.Contains(normalized, dir) {
			return ClassFixture, true
		}
	}
	return "", false
}

// spinePatterns are basenames (or repo-relative paths) that are never
// classified and are ranked ahead of every other file by the packer —
// the files a reader needs to orient themselves in an unfamiliar
// repository. Their policy still follows the per-file cap, so an
// oversized spine file gets HeadTail rather than Full.
var spinePatterns = []string{
	"README.md", "README", "README.rst", "README.txt",
	"ROADMAP.md", "docs/ROADMAP.md", "CONTRIBUTING.md",
	"Cargo.toml", "package.json", "pyproject.toml", "go.mod",
	"docs/architecture.md", "docs/design.md", "tokmd.toml", "cockpit.toml",
}

// isSpineFile reports whether p matches a spine pattern either by exact
// repo-relative path or by basename.
func isSpineFile(p string) bool {
	normalized := envelope.NormalizePath(p)
	base := path.Base(normalized)
	for _, pattern := range spinePatterns {
		if normalized == pattern || base == pattern {
			return true
		}
	}
	return false
}

// DefaultDenseThreshold is the tokens-per-line ratio above which a file
// is considered a dense data blob.
const DefaultDenseThreshold = 50.0

// isDenseBlob reports whether a file's tokens-per-line ratio strictly
// exceeds denseThreshold, using max(lines, 1) as the denominator so an
// empty file never divides by zero.
func isDenseBlob(tokens, lines int, denseThreshold float64) bool {
	denom := lines
	if denom < 1 {
		denom = 1
	}
	return float64(tokens)/float64(denom) > denseThreshold
}

// ClassifyFile returns every classification that applies to one file —
// smart-exclude naming rules first, then a dense-blob content check —
// sorted and deduplicated. A spine file is never classified regardless
// of what else matches.
func ClassifyFile(p string, tokens, lines int, denseThreshold float64) []FileClassification {
	if isSpineFile(p) {
		return nil
	}
	seen := map[FileClassification]bool{}
	var out []FileClassification
	add := func(c FileClassification) {
		if !seen[c] {
			seen[c] = true
			out = append(out, c)
		}
	}
	if reason, ok := smartExcludeReason(p); ok {
		add(reason)
	}
	normalized := envelope.NormalizePath(p)
	for _, rule := range []struct {
		class   FileClassification
		needles []string
	}{{ClassGenerated, generatedMarkers}, {ClassVendored, vendoredDirs}, {ClassFixture, fixtureDirs}} {
		for _, needle := range rule.needles {
			if strings.Contains(normalized, needle) {
				add(rule.class)
			}
		}
	}
	if isDenseBlob(tokens, lines, denseThreshold) {
		add(ClassDataBlob)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
