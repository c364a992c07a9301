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

	"github.com/kraklabs/tokmd/pkg/tokmd"
)

var todoTagRe = regexp.MustCompile(`\b(TODO|FIXME|HACK|XXX|BUG)\b`)

func computeTodo(ctx context.Context, ac *AnalysisContext, rows []tokmd.FileRow, budget *byteBudget) (*tokmd.TodoReport, error) {
	counts := map[string]int{}
	var totalLines int
	for _, r := range rows {
		if ctx.Err() != nil {
			break
		}
		totalLines += r.Code + r.Comments
		content, ok := readWithinLimits(ctx, ac, budget, r)
		if !ok {
			continue
		}
		for _, m := range todoTagRe.FindAll(content, -1) {
			counts[string(m)]++
		}
	}

	var total int
	keys := sortedKeys(counts)
	tags := make([]tokmd.TodoTagRow, 0, len(keys))
	for _, k := range keys {
		total += counts[k]
		tags = append(tags, tokmd.TodoTagRow{Tag: k, Count: counts[k]})
	}
	sort.Slice(tags, func(i, j int) bool {
		if tags[i].Count != tags[j].Count {
			return tags[i].Count > tags[j].Count
		}
		return tags[i].Tag < tags[j].Tag
	})

	density := 0.0
	if totalLines > 0 {
		density = float64(total) / float64(totalLines) * 1000
	}

	return &tokmd.TodoReport{Total: total, DensityPerKloc: round2(density), Tags: tags}, nil
}
