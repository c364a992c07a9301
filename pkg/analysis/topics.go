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
	"math"
	"path"
	"sort"
	"strings"

	"github.com/kraklabs/tokmd/pkg/tokmd"
)

const topTermsCap = 8

var topicStopwords = wordSet(
	"src", "pkg", "lib", "internal", "cmd", "test", "tests", "dist", "build",
	"node_modules", "vendor", "index", "main", "util", "utils", "common",
	"the", "and", "for", "with",
)

func pathTerms(p string) []string {
	base := path.Base(p)
	base = strings.TrimSuffix(base, path.Ext(base))
	segs := strings.FieldsFunc(base, func(r rune) bool {
		return r == '-' || r == '_' || r == '.' || r == ' '
	})
	out := make([]string, 0, len(segs))
	for _, s := range segs {
		s = strings.ToLower(s)
		if len(s) < 3 || topicStopwords[s] {
			continue
		}
		out = append(out, s)
	}
	return out
}

func computeTopics(ctx context.Context, ac *AnalysisContext, rows []tokmd.FileRow, budget *byteBudget) (*tokmd.TopicClouds, error) {
	type docFreq struct {
		df int
	}
	overallTF := map[string]int{}
	overallDF := map[string]*docFreq{}
	moduleTF := map[string]map[string]int{}
	moduleDocCount := map[string]int{}
	totalDocs := 0

	for _, r := range rows {
		if ctx.Err() != nil {
			break
		}
		terms := pathTerms(r.Path)
		if len(terms) == 0 {
			continue
		}
		totalDocs++
		moduleDocCount[r.Module]++
		seen := map[string]bool{}
		for _, t := range terms {
			overallTF[t]++
			if mm, ok := moduleTF[r.Module]; ok {
				mm[t]++
			} else {
				moduleTF[r.Module] = map[string]int{t: 1}
			}
			if !seen[t] {
				seen[t] = true
				if df, ok := overallDF[t]; ok {
					df.df++
				} else {
					overallDF[t] = &docFreq{df: 1}
				}
			}
		}
	}

	if totalDocs == 0 {
		return nil, nil
	}

	rankTerms := func(tf map[string]int) []tokmd.TopicTerm {
		terms := make([]tokmd.TopicTerm, 0, len(tf))
		for term, count := range tf {
			df := 1
			if d, ok := overallDF[term]; ok {
				df = d.df
			}
			idf := math.Log(float64(totalDocs+1) / float64(df+1))
			score := float64(count) * idf
			terms = append(terms, tokmd.TopicTerm{Term: term, Score: round4(score), TF: count, DF: df})
		}
		sort.Slice(terms, func(i, j int) bool {
			if terms[i].Score != terms[j].Score {
				return terms[i].Score > terms[j].Score
			}
			return terms[i].Term < terms[j].Term
		})
		if len(terms) > topTermsCap {
			terms = terms[:topTermsCap]
		}
		return terms
	}

	perModule := map[string][]tokmd.TopicTerm{}
	for _, mod := range sortedKeys(moduleTF) {
		perModule[mod] = rankTerms(moduleTF[mod])
	}

	return &tokmd.TopicClouds{
		PerModule: perModule,
		Overall:   rankTerms(overallTF),
	}, nil
}
