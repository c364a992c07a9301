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
	"sort"

	"github.com/kraklabs/tokmd/pkg/tokmd"
)

const maxEntropySuspects = 50

// classifyEntropy buckets a Shannon-entropy-per-byte value into the
// four-tier risk band the receipt surfaces.
func classifyEntropy(bitsPerByte float64) tokmd.EntropyClass {
	switch {
	case bitsPerByte < 2.0:
		return tokmd.EntropyLow
	case bitsPerByte <= 6.0:
		return tokmd.EntropyNormal
	case bitsPerByte <= 7.5:
		return tokmd.EntropySuspicious
	default:
		return tokmd.EntropyHigh
	}
}

func shannonEntropy(data []byte) float64 {
	if len(data) == 0 {
		return 0
	}
	var counts [256]int
	for _, b := range data {
		counts[b]++
	}
	total := float64(len(data))
	entropy := 0.0
	for _, c := range counts {
		if c == 0 {
			continue
		}
		p := float64(c) / total
		entropy -= p * math.Log2(p)
	}
	return entropy
}

func computeEntropy(ctx context.Context, ac *AnalysisContext, rows []tokmd.FileRow, budget *byteBudget) (*tokmd.EntropyReport, error) {
	var findings []tokmd.EntropyFinding
	for _, r := range rows {
		if ctx.Err() != nil {
			break
		}
		content, ok := readWithinLimits(ctx, ac, budget, r)
		if !ok || len(content) == 0 {
			continue
		}
		bits := shannonEntropy(content)
		class := classifyEntropy(bits)
		if class == tokmd.EntropyNormal {
			continue
		}
		findings = append(findings, tokmd.EntropyFinding{
			Path: r.Path, Module: r.Module,
			EntropyBitsPerByte: float32(round2(bits)),
			SampleBytes:        uint32(len(content)),
			Class:              class,
		})
	}
	sort.Slice(findings, func(i, j int) bool {
		if findings[i].EntropyBitsPerByte != findings[j].EntropyBitsPerByte {
			return findings[i].EntropyBitsPerByte > findings[j].EntropyBitsPerByte
		}
		return findings[i].Path < findings[j].Path
	})
	if len(findings) > maxEntropySuspects {
		findings = findings[:maxEntropySuspects]
	}
	return &tokmd.EntropyReport{Suspects: findings}, nil
}
