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
	"math"

	"github.com/kraklabs/tokmd/pkg/tokmd"
)

// ecoLabel byte thresholds, loosely modeled on appliance energy labels:
// the smaller the tree, the cheaper it is to clone, index, and ship
// around in an agent's context window.
const (
	ecoFeatherweightBytes = 1 << 20  // 1 MiB
	ecoLightweightBytes   = 10 << 20 // 10 MiB
	ecoStandardBytes      = 50 << 20 // 50 MiB
	ecoHeavyBytes         = 200 << 20
)

func ecoLabelFor(bytes int64) (label, notes string) {
	switch {
	case bytes < ecoFeatherweightBytes:
		return "featherweight", "under 1 MiB of source, cheap to clone and fully re-read on every run"
	case bytes < ecoLightweightBytes:
		return "lightweight", "under 10 MiB, comfortably fits in most coding-agent context budgets"
	case bytes < ecoStandardBytes:
		return "standard", "under 50 MiB, a typical mid-size service tree"
	case bytes < ecoHeavyBytes:
		return "heavy", "under 200 MiB, expect to lean on the handoff planner's budget packing"
	default:
		return "monolith", "200 MiB or more, full-tree context packing is not realistic"
	}
}

func computeFun(export tokmd.ExportData) *tokmd.FunReport {
	var totalBytes int64
	for _, r := range export.ParentRows() {
		totalBytes += r.Bytes
	}
	label, notes := ecoLabelFor(totalBytes)
	score := math.Round((1.0/(1.0+math.Log10(float64(totalBytes)+1))*100)*100) / 100

	return &tokmd.FunReport{
		EcoLabel: &tokmd.EcoLabel{
			Score: score, Label: label, Bytes: totalBytes, Notes: notes,
		},
	}
}
