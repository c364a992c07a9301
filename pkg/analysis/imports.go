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
	"regexp"
	"sort"
	"strings"

	"github.com/kraklabs/tokmd/pkg/tokmd"
)

var (
	goImportRe     = regexp.MustCompile(`(?m)^\s*"([^"]+)"\s*$|import\s+"([^"]+)"`)
	rustUseRe      = regexp.MustCompile(`(?m)^\s*use\s+([a-zA-Z0-9_:]+)`)
	jsImportRe     = regexp.MustCompile(`(?m)(?:import\s+(?:[\w{},*\s]+\s+from\s+)?|require\()\s*['"]([^'"]+)['"]`)
	pyImportRe     = regexp.MustCompile(`(?m)^\s*(?:from\s+([\w.]+)\s+import|import\s+([\w.]+))`)
)

// vendorDomainPrefixes are hostname-like leading path segments collapsed
// away when normalizing an import target, so "github.com/org/repo/sub"
// and "github.com/org/repo" both resolve to the same "org/repo" edge
// target.
var vendorDomainPrefixes = []string{"github.com/", "gitlab.com/", "bitbucket.org/", "golang.org/x/"}

func normalizeImportTarget(lang, raw string) string {
	target := strings.TrimSpace(raw)
	switch lang {
	case "go":
		for _, prefix := range vendorDomainPrefixes {
			if strings.HasPrefix(target, prefix) {
				rest := strings.TrimPrefix(target, prefix)
				segs := strings.SplitN(rest, "/", 3)
				if len(segs) >= 2 {
					return segs[0] + "/" + segs[1]
				}
				return rest
			}
		}
		return target
	case "rust":
		segs := strings.SplitN(target, "::", 2)
		return segs[0]
	case "javascript", "typescript":
		if strings.HasPrefix(target, ".") {
			return target
		}
		if strings.HasPrefix(target, "@") {
			segs := strings.SplitN(target, "/", 2)
			if len(segs) == 2 {
				rest := strings.SplitN(segs[1], "/", 2)
				return segs[0] + "/" + rest[0]
			}
			return target
		}
		segs := strings.SplitN(target, "/", 2)
		return segs[0]
	case "python":
		segs := strings.SplitN(target, ".", 2)
		return segs[0]
	default:
		return target
	}
}

func extractImports(lang string, content []byte) []string {
	text := string(content)
	var matches [][]string
	switch lang {
	case "go":
		matches = goImportRe.FindAllStringSubmatch(text, -1)
	case "rust":
		matches = rustUseRe.FindAllStringSubmatch(text, -1)
	case "javascript", "typescript":
		matches = jsImportRe.FindAllStringSubmatch(text, -1)
	case "python":
		matches = pyImportRe.FindAllStringSubmatch(text, -1)
	default:
		return nil
	}
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		for _, g := range m[1:] {
			if g != "" {
				out = append(out, g)
				break
			}
		}
	}
	return out
}

func computeImports(ctx context.Context, ac *AnalysisContext, rows []tokmd.FileRow, budget *byteBudget) (*tokmd.ImportReport, error) {
	counts := map[[2]string]int{}
	for _, r := range rows {
		if ctx.Err() != nil {
			break
		}
		switch r.Lang {
		case "go", "rust", "javascript", "typescript", "python":
		default:
			continue
		}
		content, ok := readWithinLimits(ctx, ac, budget, r)
		if !ok {
			continue
		}
		for _, raw := range extractImports(r.Lang, content) {
			target := normalizeImportTarget(r.Lang, raw)
			if target == "" || target == r.Module {
				continue
			}
			counts[[2]string{r.Module, target}]++
		}
	}

	edges := make([]tokmd.ImportEdge, 0, len(counts))
	for k, v := range counts {
		edges = append(edges, tokmd.ImportEdge{From: k[0], To: k[1], Count: v})
	}
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].From != edges[j].From {
			return edges[i].From < edges[j].From
		}
		return edges[i].To < edges[j].To
	})

	return &tokmd.ImportReport{Granularity: string(tokmd.GranularityModule), Edges: edges}, nil
}
