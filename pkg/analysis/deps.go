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
	"bytes"
	"context"
	"path"
	"regexp"
	"sort"

	"github.com/kraklabs/tokmd/pkg/tokmd"
)

// lockfileCounters maps a recognized lockfile basename to its kind label
// and a counting function.
var lockfileCounters = map[string]struct {
	kind  string
	count func([]byte) int
}{
	"Cargo.lock":        {"cargo", countPattern(`(?m)^\[\[package\]\]`)},
	"package-lock.json":  {"npm", countPattern(`"resolved"\s*:`)},
	"pnpm-lock.yaml":     {"pnpm", countPattern(`(?m)^\s*resolution:`)},
	"yarn.lock":          {"yarn", countPattern(`(?m)^"?[^\s"#][^\n]*@[^\n]*:\s*$`)},
	"poetry.lock":        {"poetry", countPattern(`(?m)^\[\[package\]\]`)},
	"Pipfile.lock":       {"pipenv", countPattern(`"version"\s*:`)},
	"go.sum":             {"go", countGoSum},
	"composer.lock":      {"composer", countPattern(`"name"\s*:`)},
	"Gemfile.lock":       {"bundler", countPattern(`(?m)^    [A-Za-z0-9_.\-]+ \(`)},
}

func countPattern(pattern string) func([]byte) int {
	re := regexp.MustCompile(pattern)
	return func(content []byte) int {
		return len(re.FindAll(content, -1))
	}
}

func countGoSum(content []byte) int {
	modules := map[string]bool{}
	for _, line := range bytes.Split(content, []byte("\n")) {
		fields := bytes.Fields(line)
		if len(fields) == 0 {
			continue
		}
		modules[string(fields[0])] = true
	}
	return len(modules)
}

func computeDependencies(ctx context.Context, ac *AnalysisContext, rows []tokmd.FileRow, budget *byteBudget) (*tokmd.DependencyReport, error) {
	var reports []tokmd.LockfileReport
	var total int
	for _, r := range rows {
		if ctx.Err() != nil {
			break
		}
		entry, ok := lockfileCounters[path.Base(r.Path)]
		if !ok {
			continue
		}
		content, ok := readWithinLimits(ctx, ac, budget, r)
		if !ok {
			continue
		}
		count := entry.count(content)
		total += count
		reports = append(reports, tokmd.LockfileReport{Path: r.Path, Kind: entry.kind, Dependencies: count})
	}
	sort.Slice(reports, func(i, j int) bool { return reports[i].Path < reports[j].Path })
	return &tokmd.DependencyReport{Total: total, Lockfiles: reports}, nil
}
