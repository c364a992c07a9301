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

package oracle

import (
	"context"
	"os"
	"path/filepath"
	"unicode/utf8"
)

// DefaultFileOracle is a thin os.ReadFile-backed FileOracle rooted at a
// single directory. It is a reference adapter, not a hardened production
// implementation: it does not sandbox symlink escapes or impose its own
// byte limits, leaving those concerns to AnalysisLimits.
type DefaultFileOracle struct {
	Root string
}

// NewDefaultFileOracle returns a DefaultFileOracle rooted at root.
func NewDefaultFileOracle(root string) *DefaultFileOracle {
	return &DefaultFileOracle{Root: root}
}

// ReadFile implements FileOracle.
func (o *DefaultFileOracle) ReadFile(_ context.Context, path string) ([]byte, error) {
	return os.ReadFile(filepath.Join(o.Root, filepath.FromSlash(path)))
}

// DefaultTokenizer counts tokens with a cheap, language-agnostic
// heuristic: roughly one token per four UTF-8 runes, rounded up, with a
// minimum of one token for non-empty content. It exists so the pipeline
// has a working Tokenizer out of the box; callers who need exact
// model-specific counts should wire in their own.
type DefaultTokenizer struct{}

// CountTokens implements Tokenizer.
func (DefaultTokenizer) CountTokens(content []byte) int {
	if len(content) == 0 {
		return 0
	}
	runes := utf8.RuneCount(content)
	tokens := (runes + 3) / 4
	if tokens < 1 {
		tokens = 1
	}
	return tokens
}
