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

	"github.com/kraklabs/tokmd/pkg/tokmd"
)

// exportedDeclRe is keyed by language and matched against each line; it
// counts top-level declarations the language itself treats as exported
// (capitalized in Go, `pub` in Rust, `export` in JS/TS, non-underscore
// `def`/`class` in Python).
var exportedDeclRe = map[string]*regexp.Regexp{
	"go":         regexp.MustCompile(`(?m)^(func|type|var|const) [A-Z]\w*`),
	"rust":       regexp.MustCompile(`(?m)^\s*pub(?:\(.*?\))? (fn|struct|enum|trait|const|static|mod) `),
	"javascript": regexp.MustCompile(`(?m)^export (default )?(function|class|const|let|var) `),
	"typescript": regexp.MustCompile(`(?m)^export (default )?(function|class|const|let|var|interface|type|enum) `),
	"python":     regexp.MustCompile(`(?m)^(def|class) [A-Za-z][A-Za-z0-9_]*`),
}

func computeAPISurface(ctx context.Context, ac *AnalysisContext, rows []tokmd.FileRow, budget *byteBudget) (*tokmd.APISurfaceReport, error) {
	byModule := map[string]int{}
	var total int
	for _, r := range rows {
		if ctx.Err() != nil {
			break
		}
		re, ok := exportedDeclRe[r.Lang]
		if !ok {
			continue
		}
		content, ok := readWithinLimits(ctx, ac, budget, r)
		if !ok {
			continue
		}
		n := len(re.FindAll(content, -1))
		byModule[r.Module] += n
		total += n
	}

	if total == 0 {
		return &tokmd.APISurfaceReport{}, nil
	}

	keys := sortedKeys(byModule)
	rowsOut := make([]tokmd.APISurfaceModuleRow, 0, len(keys))
	for _, k := range keys {
		rowsOut = append(rowsOut, tokmd.APISurfaceModuleRow{Module: k, ExportedCount: byModule[k]})
	}
	return &tokmd.APISurfaceReport{TotalExported: total, ByModule: rowsOut}, nil
}
