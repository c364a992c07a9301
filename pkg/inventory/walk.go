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

// Package inventory builds a tokmd.ExportData snapshot by walking a
// directory tree. It is the one place in the module that touches
// filepath.WalkDir directly; everything downstream (pkg/analysis,
// pkg/context) only ever sees the resulting ExportData and FileRow
// values.
package inventory

import (
	"bufio"
	"bytes"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/kraklabs/tokmd/pkg/oracle"
	"github.com/kraklabs/tokmd/pkg/tokmd"
)

// skipDirs names directories never descended into regardless of
// exclude patterns: version-control metadata that has no business in a
// source inventory.
var skipDirs = map[string]bool{
	".git": true, ".hg": true, ".svn": true,
}

// langByExt maps a lowercased extension to the language label recorded
// on FileRow.Lang. Unrecognized extensions fall back to the bare
// extension string (without the dot), or "" for extensionless files.
var langByExt = map[string]string{
	".go":    "go",
	".py":    "python",
	".js":    "javascript",
	".jsx":   "javascript",
	".ts":    "typescript",
	".tsx":   "typescript",
	".java":  "java",
	".rs":    "rust",
	".cpp":   "cpp",
	".cc":    "cpp",
	".cxx":   "cpp",
	".hpp":   "cpp",
	".c":     "c",
	".h":     "c",
	".cs":    "csharp",
	".rb":    "ruby",
	".php":   "php",
	".swift": "swift",
	".kt":    "kotlin",
	".scala": "scala",
	".sh":    "bash",
	".bash":  "bash",
	".zsh":   "bash",
	".proto": "protobuf",
	".md":    "markdown",
	".yaml":  "yaml",
	".yml":   "yaml",
	".json":  "json",
	".toml":  "toml",
	".sql":   "sql",
	".html":  "html",
	".css":   "css",
}

// lineCommentPrefixes gives the single-line comment token for languages
// whose dominant style is a prefix marker. Used only to approximate the
// Code/Comments/Blanks split; it is not a real parser and never claims
// to understand block comments or string literals.
var lineCommentPrefixes = map[string]string{
	"go": "//", "javascript": "//", "typescript": "//", "java": "//",
	"rust": "//", "cpp": "//", "c": "//", "csharp": "//", "swift": "//",
	"kotlin": "//", "scala": "//",
	"python": "#", "bash": "#", "ruby": "#", "yaml": "#", "toml": "#",
	"sql": "--",
}

// Options controls how Walk selects and classifies files.
type Options struct {
	// Exclude is a set of filepath.Match-style glob patterns (matched
	// against the slash-normalized relative path) that are skipped.
	Exclude []string
	// ModuleDepth is how many leading path segments form a file's
	// Module label. 0 defaults to 1.
	ModuleDepth int
	// MaxFileBytes skips reading (but still inventories) files larger
	// than this. 0 means unlimited.
	MaxFileBytes int64
}

// Walk builds an ExportData snapshot of every regular file under root,
// in lexical order. Line/code/comment counts come from reading each
// file; Tokens is populated via tok.
func Walk(root string, opts Options, tok oracle.Tokenizer) (tokmd.ExportData, error) {
	depth := opts.ModuleDepth
	if depth < 1 {
		depth = 1
	}

	var rows []tokmd.FileRow
	moduleSet := map[string]bool{}

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path == root {
			return nil
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if skipDirs[d.Name()] || matchesAny(rel, opts.Exclude) {
				return filepath.SkipDir
			}
			return nil
		}
		if matchesAny(rel, opts.Exclude) {
			return nil
		}

		info, infoErr := d.Info()
		if infoErr != nil {
			return nil
		}

		row := tokmd.FileRow{
			Path:   rel,
			Module: moduleOf(rel, depth),
			Lang:   langOf(rel),
			Kind:   tokmd.Parent,
			Bytes:  info.Size(),
		}
		moduleSet[row.Module] = true

		if opts.MaxFileBytes <= 0 || info.Size() <= opts.MaxFileBytes {
			content, readErr := os.ReadFile(path)
			if readErr == nil {
				lines, code, comments, blanks := countLines(content, row.Lang)
				row.Lines, row.Code, row.Comments, row.Blanks = lines, code, comments, blanks
				row.Tokens = tok.CountTokens(content)
			}
		}

		rows = append(rows, row)
		return nil
	})
	if err != nil {
		return tokmd.ExportData{}, err
	}

	sort.Slice(rows, func(i, j int) bool { return rows[i].Path < rows[j].Path })

	modules := make([]string, 0, len(moduleSet))
	for m := range moduleSet {
		modules = append(modules, m)
	}
	sort.Strings(modules)

	return tokmd.ExportData{
		Rows:        rows,
		ModuleRoots: modules,
		ModuleDepth: depth,
		Children:    tokmd.ChildrenParentsOnly,
	}, nil
}

func moduleOf(rel string, depth int) string {
	parts := strings.Split(rel, "/")
	if len(parts) <= 1 {
		return ""
	}
	if depth > len(parts)-1 {
		depth = len(parts) - 1
	}
	return strings.Join(parts[:depth], "/")
}

func langOf(rel string) string {
	ext := strings.ToLower(filepath.Ext(rel))
	if lang, ok := langByExt[ext]; ok {
		return lang
	}
	return strings.TrimPrefix(ext, ".")
}

// countLines gives a best-effort Code/Comments/Blanks split: a blank
// line is whitespace-only, a comment line starts (after trimming) with
// the language's line-comment token, everything else is code. Binary
// content (a NUL byte in the first 8 KiB) gets all four counts at zero,
// keeping Lines == Code + Comments + Blanks.
func countLines(content []byte, lang string) (lines, code, comments, blanks int) {
	probe := content
	if len(probe) > 8192 {
		probe = probe[:8192]
	}
	if bytes.IndexByte(probe, 0) >= 0 {
		return 0, 0, 0, 0
	}

	prefix := lineCommentPrefixes[lang]
	scanner := bufio.NewScanner(bytes.NewReader(content))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		lines++
		trimmed := strings.TrimSpace(scanner.Text())
		switch {
		case trimmed == "":
			blanks++
		case prefix != "" && strings.HasPrefix(trimmed, prefix):
			comments++
		default:
			code++
		}
	}
	return lines, code, comments, blanks
}

func matchesAny(path string, patterns []string) bool {
	for _, p := range patterns {
		if ok, _ := filepath.Match(p, path); ok {
			return true
		}
		if ok, _ := filepath.Match(p, filepath.Base(path)); ok {
			return true
		}
	}
	return false
}
