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
	"fmt"

	"github.com/kraklabs/tokmd/pkg/envelope"
)

// Finding ID registry: a small closed set of <tool>.<category>.<code>
// identifiers used when re-expressing analysis-receipt signals as
// envelope.SensorReport findings.
const (
	FindingEntropyHigh          = "tokmd.risk.entropy_high"
	FindingLicenseLowConfidence = "tokmd.risk.license_low_confidence"
	FindingHotspot              = "tokmd.risk.hotspot"
)

// hotspotScoreThreshold is the minimum GitReport hotspot score that
// earns its own Finding, rather than being left as raw receipt data.
const hotspotScoreThreshold = 500

// licenseConfidenceThreshold is the license-finding confidence below
// which a detection is surfaced as a risk Finding instead of being
// treated as settled.
const licenseConfidenceThreshold = 0.8

// ToSensorReport re-expresses the risk-relevant signals of an
// AnalysisReceipt as a portable envelope.SensorReport: entropy High
// suspects, license detections below confidence 0.8, and git hotspots
// at or above a fixed score threshold each become a Finding. The overall
// verdict is Fail if any Finding is SeverityError, Warn if any is
// SeverityWarn, and Pass otherwise.
func ToSensorReport(receipt *AnalysisReceipt) envelope.SensorReport {
	tool := envelope.ToolMeta{Name: receipt.Tool.Name, Version: receipt.Tool.Version}

	var findings []envelope.Finding

	if receipt.Entropy != nil {
		for _, s := range receipt.Entropy.Suspects {
			if s.Class != EntropyHigh {
				continue
			}
			f := envelope.NewFinding(FindingEntropyHigh, envelope.SeverityWarn,
				fmt.Sprintf("%s has high entropy (%.2f bits/byte)", s.Path, s.EntropyBitsPerByte)).
				WithLocation(envelope.PathLocation(s.Path)).
				WithEvidence("bits_per_byte", s.EntropyBitsPerByte).
				WithEvidence("class", string(s.Class))
			findings = append(findings, f)
		}
	}

	if receipt.License != nil {
		for _, l := range receipt.License.Findings {
			if l.Confidence >= licenseConfidenceThreshold {
				continue
			}
			f := envelope.NewFinding(FindingLicenseLowConfidence, envelope.SeverityInfo,
				fmt.Sprintf("%s: low-confidence license match %s (%.2f)", l.SourcePath, l.SPDX, l.Confidence)).
				WithLocation(envelope.PathLocation(l.SourcePath)).
				WithEvidence("spdx", l.SPDX).
				WithEvidence("confidence", l.Confidence)
			findings = append(findings, f)
		}
	}

	if receipt.Git != nil {
		for _, h := range receipt.Git.Hotspots {
			if h.Score < hotspotScoreThreshold {
				continue
			}
			f := envelope.NewFinding(FindingHotspot, envelope.SeverityWarn,
				fmt.Sprintf("%s is a churn hotspot (score %d)", h.Path, h.Score)).
				WithLocation(envelope.PathLocation(h.Path)).
				WithEvidence("commits", h.Commits).
				WithEvidence("lines", h.Lines).
				WithEvidence("score", h.Score)
			findings = append(findings, f)
		}
	}

	verdict := envelope.VerdictPass
	for _, f := range findings {
		switch f.Severity {
		case envelope.SeverityError:
			verdict = envelope.VerdictFail
		case envelope.SeverityWarn:
			if verdict != envelope.VerdictFail {
				verdict = envelope.VerdictWarn
			}
		}
	}

	return envelope.NewSensorReport(tool, verdict, findings)
}
