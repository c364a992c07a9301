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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kraklabs/tokmd/pkg/tokmd"
)

func TestMatchLicenseTextIsCaseInsensitive(t *testing.T) {
	upper := "PERMISSION IS HEREBY GRANTED, FREE OF CHARGE\n...\nTHE SOFTWARE IS PROVIDED \"AS IS\""
	spdx, confidence, ok := matchLicenseText(upper)
	require.True(t, ok)
	assert.Equal(t, "MIT", spdx)
	assert.Greater(t, confidence, 0.6)
}

func TestMatchLicenseTextConfidenceScalesWithHits(t *testing.T) {
	_, oneHit, ok := matchLicenseText("Permission is hereby granted, free of charge")
	require.True(t, ok)

	_, twoHits, ok := matchLicenseText("Permission is hereby granted, free of charge ... THE SOFTWARE IS PROVIDED")
	require.True(t, ok)

	assert.Greater(t, twoHits, oneHit)
	assert.LessOrEqual(t, twoHits, 1.0)
}

func TestIsLicenseTextPathMatchesNoticeAndSuffixedLicense(t *testing.T) {
	assert.True(t, isLicenseTextPath("LICENSE-MIT"))
	assert.True(t, isLicenseTextPath("NOTICE"))
	assert.True(t, isLicenseTextPath("NOTICE.txt"))
	assert.False(t, isLicenseTextPath("README.md"))
}

func TestComputeLicenseFollowsCargoLicenseFileKey(t *testing.T) {
	files := map[string][]byte{
		"Cargo.toml": []byte(`license-file = "LEGAL.txt"`),
		"LEGAL.txt":  []byte("Permission is hereby granted, free of charge ... THE SOFTWARE IS PROVIDED"),
	}
	ac := newContext(files)
	rows := []tokmd.FileRow{
		rowFor("Cargo.toml", "toml", "root", 0, 0, 0, files["Cargo.toml"]),
		rowFor("LEGAL.txt", "text", "root", 0, 0, 0, files["LEGAL.txt"]),
	}
	rep, err := computeLicense(context.Background(), ac, rows, newByteBudget(0))
	require.NoError(t, err)
	require.Len(t, rep.Findings, 1)
	assert.Equal(t, "MIT", rep.Findings[0].SPDX)
	assert.Equal(t, "LEGAL.txt", rep.Findings[0].SourcePath)
}

func TestComputeLicenseSortsByConfidenceThenSourceKind(t *testing.T) {
	files := map[string][]byte{
		"package.json": []byte(`{"license": "Apache-2.0"}`),
		"LICENSE":      []byte("Permission is hereby granted, free of charge"),
	}
	ac := newContext(files)
	rows := []tokmd.FileRow{
		rowFor("package.json", "json", "root", 0, 0, 0, files["package.json"]),
		rowFor("LICENSE", "text", "root", 0, 0, 0, files["LICENSE"]),
	}
	rep, err := computeLicense(context.Background(), ac, rows, newByteBudget(0))
	require.NoError(t, err)
	require.Len(t, rep.Findings, 2)
	assert.Equal(t, tokmd.LicenseSourceMetadata, rep.Findings[0].SourceKind)
	assert.Equal(t, "Apache-2.0", *rep.Effective)
}
