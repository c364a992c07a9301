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

package inventory

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kraklabs/tokmd/pkg/oracle"
)

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	full := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
	require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
}

func TestWalkBuildsSortedRowsWithModuleAndLang(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "src/a.go", "package a\n\n// hi\nfunc A() {}\n")
	writeFile(t, root, "README.md", "# demo\n")
	writeFile(t, root, ".git/HEAD", "ref: refs/heads/main\n")

	data, err := Walk(root, Options{}, oracle.DefaultTokenizer{})
	require.NoError(t, err)
	require.Len(t, data.Rows, 2)

	assert.Equal(t, "README.md", data.Rows[0].Path)
	assert.Equal(t, "src/a.go", data.Rows[1].Path)
	assert.Equal(t, "src", data.Rows[1].Module)
	assert.Equal(t, "go", data.Rows[1].Lang)
	assert.Equal(t, 1, data.Rows[1].Comments)
	assert.Equal(t, []string{"", "src"}, data.ModuleRoots)
}

func TestWalkRespectsExcludeGlobs(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "vendor/foo.go", "package foo\n")
	writeFile(t, root, "src/a.go", "package a\n")

	data, err := Walk(root, Options{Exclude: []string{"vendor/*"}}, oracle.DefaultTokenizer{})
	require.NoError(t, err)
	require.Len(t, data.Rows, 1)
	assert.Equal(t, "src/a.go", data.Rows[0].Path)
}

func TestWalkSkipsContentForBinaryFiles(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "blob.bin", "x\x00y\x00z")

	data, err := Walk(root, Options{}, oracle.DefaultTokenizer{})
	require.NoError(t, err)
	require.Len(t, data.Rows, 1)
	assert.Equal(t, 0, data.Rows[0].Code)
	assert.Equal(t, 0, data.Rows[0].Comments)
}
