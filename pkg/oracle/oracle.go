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

// Package oracle declares the collaborator interfaces the analysis
// pipeline depends on rather than concrete implementations: reading file
// contents, tokenizing them, and walking git history. pkg/analysis never
// imports a filesystem or VCS library directly — it only ever sees these
// interfaces, so a caller can swap in a fake for tests or a remote
// oracle without touching a single enricher.
package oracle

import (
	"context"
	"time"
)

// FileOracle resolves a FileRow's path to its byte content. Enrichers
// that need file contents (entropy, license, imports, near-dup, Halstead,
// API surface, deps, TODO) call through this interface rather than
// os.ReadFile directly.
type FileOracle interface {
	// ReadFile returns the full byte content of path, relative to the
	// inventory root.
	ReadFile(ctx context.Context, path string) ([]byte, error)
}

// Tokenizer counts tokens in a byte slice. DefaultTokenizer is a
// rune-count heuristic; the interface is pluggable so a caller can wire
// in a real BPE tokenizer.
type Tokenizer interface {
	CountTokens(content []byte) int
}

// Commit is one git commit touching the repository, as seen by GitOracle.
type Commit struct {
	Hash         string
	AuthorEmail  string
	AuthorTime   time.Time
	FilesChanged []string
	Additions    map[string]int
	Deletions    map[string]int
}

// GitOracle exposes the slice of git history the git-derived enrichers
// need: commit log, per-file blame ages, and a tracked-file check. For a
// working tree that isn't a git repository, gitoracle.Open returns
// ErrNotARepository and no oracle; callers then pass a nil GitOracle,
// and the orchestrator reports the git-derived flags as disabled.
type GitOracle interface {
	// RepoRoot returns the absolute path to the repository's working
	// tree root.
	RepoRoot(ctx context.Context) (string, error)
	// CollectHistory returns up to maxCommits commits in reverse
	// chronological order, each listing at most maxCommitFiles changed
	// paths.
	CollectHistory(ctx context.Context, maxCommits, maxCommitFiles int) ([]Commit, error)
	// BlameAges returns, for each tracked path, the age in days of its
	// most recent change.
	BlameAges(ctx context.Context, paths []string) (map[string]int, error)
	// IsTracked reports whether path is tracked by the repository.
	IsTracked(ctx context.Context, path string) (bool, error)
}

// ErrNotARepository is returned by gitoracle.Open when the working tree
// has no git metadata to read.
type ErrNotARepository struct {
	Path string
}

func (e *ErrNotARepository) Error() string {
	return "not a git repository: " + e.Path
}
