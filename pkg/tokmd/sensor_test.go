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

package tokmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kraklabs/tokmd/pkg/envelope"
)

func TestToSensorReportPassesWithNoSignals(t *testing.T) {
	receipt := &AnalysisReceipt{Tool: ToolInfo{Name: "tokmd", Version: "1.0.0"}}
	report := ToSensorReport(receipt)
	assert.Equal(t, envelope.VerdictPass, report.Verdict)
	assert.Empty(t, report.Findings)
}

func TestToSensorReportSurfacesHighEntropyAsWarn(t *testing.T) {
	receipt := &AnalysisReceipt{
		Tool: ToolInfo{Name: "tokmd", Version: "1.0.0"},
		Entropy: &EntropyReport{Suspects: []EntropyFinding{
			{Path: "blob.bin", Class: EntropyHigh, EntropyBitsPerByte: 7.9},
			{Path: "config.json", Class: EntropyNormal, EntropyBitsPerByte: 4.0},
		}},
	}
	report := ToSensorReport(receipt)
	require.Len(t, report.Findings, 1)
	assert.Equal(t, FindingEntropyHigh, report.Findings[0].ID)
	assert.Equal(t, envelope.SeverityWarn, report.Findings[0].Severity)
	assert.Equal(t, envelope.VerdictWarn, report.Verdict)
}

func TestToSensorReportSurfacesLowConfidenceLicense(t *testing.T) {
	receipt := &AnalysisReceipt{
		Tool: ToolInfo{Name: "tokmd", Version: "1.0.0"},
		License: &LicenseReport{Findings: []LicenseFinding{
			{SPDX: "MIT", Confidence: 0.5, SourcePath: "LICENSE"},
			{SPDX: "Apache-2.0", Confidence: 0.95, SourcePath: "Cargo.toml"},
		}},
	}
	report := ToSensorReport(receipt)
	require.Len(t, report.Findings, 1)
	assert.Equal(t, FindingLicenseLowConfidence, report.Findings[0].ID)
	assert.Equal(t, envelope.SeverityInfo, report.Findings[0].Severity)
	assert.Equal(t, envelope.VerdictPass, report.Verdict)
}

func TestToSensorReportSurfacesHotspotsAboveThreshold(t *testing.T) {
	receipt := &AnalysisReceipt{
		Tool: ToolInfo{Name: "tokmd", Version: "1.0.0"},
		Git: &GitReport{Hotspots: []HotspotRow{
			{Path: "core.go", Commits: 50, Lines: 20, Score: 1000},
			{Path: "util.go", Commits: 2, Lines: 5, Score: 10},
		}},
	}
	report := ToSensorReport(receipt)
	require.Len(t, report.Findings, 1)
	assert.Equal(t, FindingHotspot, report.Findings[0].ID)
	assert.Equal(t, "core.go", report.Findings[0].Location.Path)
}

func TestToSensorReportHighEntropyAloneYieldsWarn(t *testing.T) {
	receipt := &AnalysisReceipt{
		Tool: ToolInfo{Name: "tokmd", Version: "1.0.0"},
		Entropy: &EntropyReport{Suspects: []EntropyFinding{
			{Path: "blob.bin", Class: EntropyHigh, EntropyBitsPerByte: 7.9},
		}},
	}
	report := ToSensorReport(receipt)
	assert.Equal(t, envelope.VerdictWarn, report.Verdict)
}
