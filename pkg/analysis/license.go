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
	"path"
	"regexp"
	"sort"
	"strings"

	"github.com/kraklabs/tokmd/pkg/tokmd"
)

const metadataConfidence = 0.95

var manifestFiles = map[string]bool{
	"Cargo.toml":   true,
	"package.json": true,
	"pyproject.toml": true,
}

var manifestLicenseRe = regexp.MustCompile(`(?i)"?license"?\s*[:=]\s*"([A-Za-z0-9.\-+ ]+)"`)

// cargoLicenseFileRe extracts the referenced file from a Cargo.toml
// `license-file = "X"` manifest key, which points at a text license file
// elsewhere in the tree that would otherwise never match isLicenseTextPath.
var cargoLicenseFileRe = regexp.MustCompile(`(?i)license-file\s*=\s*"([^"]+)"`)

// licensePhraseGroups maps a set of distinctive phrases found in a
// LICENSE-style text file to the SPDX identifier they imply. Checked in
// the order listed so a more specific license (AGPL) is not shadowed by
// a looser one (GPL). Confidence scales with how many phrases in the
// group are present, since a template with more of its boilerplate
// intact is a stronger match.
var licensePhraseGroups = []struct {
	spdx    string
	phrases []string
}{
	{"AGPL-3.0-or-later", []string{"GNU AFFERO GENERAL PUBLIC LICENSE", "Affero General Public License"}},
	{"GPL-3.0-or-later", []string{"GNU GENERAL PUBLIC LICENSE", "Free Software Foundation"}},
	{"MPL-2.0", []string{"Mozilla Public License", "covered software"}},
	{"Apache-2.0", []string{"Apache License", "http://www.apache.org/licenses/LICENSE-2.0", "Licensed under the Apache License"}},
	{"BSD-3-Clause", []string{"Redistribution and use in source and binary forms", "Neither the name", "with or without modification"}},
	{"BSD-2-Clause", []string{"Redistribution and use in source and binary forms", "with or without modification"}},
	{"MIT", []string{"Permission is hereby granted, free of charge", "THE SOFTWARE IS PROVIDED"}},
	{"ISC", []string{"Permission to use, copy, modify, and/or distribute this software"}},
}

func isLicenseTextPath(p string) bool {
	base := strings.ToUpper(path.Base(p))
	if strings.HasPrefix(base, "LICENSE-") {
		return true
	}
	switch base {
	case "LICENSE", "LICENSE.TXT", "LICENSE.MD",
		"COPYING", "COPYING.TXT", "NOTICE", "NOTICE.TXT", "NOTICE.MD":
		return true
	}
	return false
}

// matchLicenseText finds the best-matching license phrase group in text
// (case-insensitive) and returns its SPDX identifier and a confidence in
// (0.6, 1.0] scaled by how many of the group's phrases are present.
func matchLicenseText(text string) (spdx string, confidence float64, ok bool) {
	lower := strings.ToLower(text)
	bestHits, bestTotal := 0, 1
	for _, g := range licensePhraseGroups {
		hits := 0
		for _, ph := range g.phrases {
			if strings.Contains(lower, strings.ToLower(ph)) {
				hits++
			}
		}
		if hits == 0 {
			continue
		}
		if hits*bestTotal > bestHits*len(g.phrases) {
			spdx = g.spdx
			bestHits = hits
			bestTotal = len(g.phrases)
			ok = true
		}
	}
	if !ok {
		return "", 0, false
	}
	confidence = 0.6 + 0.4*float64(bestHits)/float64(bestTotal)
	return spdx, confidence, true
}

func computeLicense(ctx context.Context, ac *AnalysisContext, rows []tokmd.FileRow, budget *byteBudget) (*tokmd.LicenseReport, error) {
	var findings []tokmd.LicenseFinding
	extraTextPaths := map[string]bool{}
	handled := map[string]bool{}

	for _, r := range rows {
		if ctx.Err() != nil {
			break
		}
		base := path.Base(r.Path)
		isManifest := manifestFiles[base]
		isLicenseText := isLicenseTextPath(r.Path)
		if !isManifest && !isLicenseText {
			continue
		}
		content, ok := readWithinLimits(ctx, ac, budget, r)
		if !ok {
			continue
		}
		handled[r.Path] = true
		if isManifest {
			if m := manifestLicenseRe.FindSubmatch(content); m != nil {
				findings = append(findings, tokmd.LicenseFinding{
					SPDX: strings.TrimSpace(string(m[1])), Confidence: metadataConfidence,
					SourcePath: r.Path, SourceKind: tokmd.LicenseSourceMetadata,
				})
			}
			if base == "Cargo.toml" {
				if m := cargoLicenseFileRe.FindSubmatch(content); m != nil {
					ref := strings.TrimSpace(string(m[1]))
					extraTextPaths[path.Join(path.Dir(r.Path), ref)] = true
				}
			}
			continue
		}
		if spdx, confidence, ok := matchLicenseText(string(content)); ok {
			findings = append(findings, tokmd.LicenseFinding{
				SPDX: spdx, Confidence: float32(confidence),
				SourcePath: r.Path, SourceKind: tokmd.LicenseSourceText,
			})
		}
	}

	// A Cargo.toml license-file key can point at a file that doesn't
	// match any LICENSE/NOTICE naming convention; scan it too.
	for _, r := range rows {
		if ctx.Err() != nil {
			break
		}
		if !extraTextPaths[r.Path] || handled[r.Path] {
			continue
		}
		content, ok := readWithinLimits(ctx, ac, budget, r)
		if !ok {
			continue
		}
		if spdx, confidence, ok := matchLicenseText(string(content)); ok {
			findings = append(findings, tokmd.LicenseFinding{
				SPDX: spdx, Confidence: float32(confidence),
				SourcePath: r.Path, SourceKind: tokmd.LicenseSourceText,
			})
		}
	}

	sort.Slice(findings, func(i, j int) bool {
		if findings[i].Confidence != findings[j].Confidence {
			return findings[i].Confidence > findings[j].Confidence
		}
		if findings[i].SourceKind != findings[j].SourceKind {
			return findings[i].SourceKind == tokmd.LicenseSourceMetadata
		}
		return findings[i].SourcePath < findings[j].SourcePath
	})

	var effective *string
	if len(findings) > 0 {
		spdx := findings[0].SPDX
		effective = &spdx
	}

	return &tokmd.LicenseReport{Findings: findings, Effective: effective}, nil
}
