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

package envelope

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizePathStripsBackslashesAndDotSlash(t *testing.T) {
	assert.Equal(t, "src/main.go", NormalizePath(`.\src\main.go`))
	assert.Equal(t, "src/main.go", NormalizePath("./src/main.go"))
}

func TestIntegrityHashIsStableAndHexEncoded(t *testing.T) {
	h1 := IntegrityHash([]byte("hello"))
	h2 := IntegrityHash([]byte("hello"))
	assert.Equal(t, h1, h2)
	assert.Len(t, h1, 64)
	assert.NotEqual(t, h1, IntegrityHash([]byte("world")))
}

func TestRedactPathPreservesExtensionUnderRedaction(t *testing.T) {
	assert.Equal(t, "src/main.go", RedactPath(RedactionNone, "src/main.go"))

	redacted := RedactPath(RedactionPaths, "src/main.go")
	assert.NotEqual(t, "src/main.go", redacted)
	assert.Contains(t, redacted, ".go")
}

func TestRedactTokenOnlyAppliesUnderRedactionAll(t *testing.T) {
	assert.Equal(t, "*.lock", RedactToken(RedactionNone, "*.lock"))
	assert.Equal(t, "*.lock", RedactToken(RedactionPaths, "*.lock"))
	assert.NotEqual(t, "*.lock", RedactToken(RedactionAll, "*.lock"))
}

func TestExcludedRedactedRequiresBothModeAndPatterns(t *testing.T) {
	assert.False(t, ExcludedRedacted(RedactionNone, 5))
	assert.False(t, ExcludedRedacted(RedactionAll, 0))
	assert.True(t, ExcludedRedacted(RedactionAll, 1))
}
