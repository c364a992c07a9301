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

// Package gitoracle implements oracle.GitOracle with go-git, a pure-Go
// git plumbing library. No shelling out to a system git binary: history
// walking, diff stats, and blame all go through go-git's object store
// directly.
package gitoracle

import (
	"context"
	"io"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"

	"github.com/kraklabs/tokmd/pkg/envelope"
	"github.com/kraklabs/tokmd/pkg/oracle"
)

// GoGitOracle implements oracle.GitOracle against a local repository
// opened with go-git.
type GoGitOracle struct {
	repo *git.Repository
	root string
}

// Open opens the git repository containing (or rooted at) dir, searching
// parent directories the way `git rev-parse --show-toplevel` does.
func Open(dir string) (*GoGitOracle, error) {
	repo, err := git.PlainOpenWithOptions(dir, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return nil, &oracle.ErrNotARepository{Path: dir}
	}
	wt, err := repo.Worktree()
	if err != nil {
		return nil, &oracle.ErrNotARepository{Path: dir}
	}
	return &GoGitOracle{repo: repo, root: wt.Filesystem.Root()}, nil
}

// RepoRoot implements oracle.GitOracle.
func (g *GoGitOracle) RepoRoot(_ context.Context) (string, error) {
	return g.root, nil
}

// CollectHistory implements oracle.GitOracle, walking every commit
// reachable from HEAD (through all parents, newest committer time first)
// and computing per-commit file-level stats via the diff against each
// commit's first parent.
func (g *GoGitOracle) CollectHistory(ctx context.Context, maxCommits, maxCommitFiles int) ([]oracle.Commit, error) {
	head, err := g.repo.Head()
	if err != nil {
		return nil, err
	}
	iter, err := g.repo.Log(&git.LogOptions{From: head.Hash(), Order: git.LogOrderCommitterTime})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	out := make([]oracle.Commit, 0, maxCommits)
	err = iter.ForEach(func(c *object.Commit) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if len(out) >= maxCommits {
			return io.EOF
		}
		commit, convErr := g.toCommit(c, maxCommitFiles)
		if convErr != nil {
			return convErr
		}
		out = append(out, commit)
		return nil
	})
	if err != nil && err != io.EOF {
		return nil, err
	}
	return out, nil
}

func (g *GoGitOracle) toCommit(c *object.Commit, maxCommitFiles int) (oracle.Commit, error) {
	commit := oracle.Commit{
		Hash:        c.Hash.String(),
		AuthorEmail: c.Author.Email,
		AuthorTime:  c.Author.When,
	}

	if c.NumParents() == 0 {
		tree, err := c.Tree()
		if err != nil {
			return commit, err
		}
		commit.Additions = map[string]int{}
		commit.Deletions = map[string]int{}
		count := 0
		walker := object.NewTreeWalker(tree, true, nil)
		defer walker.Close()
		for {
			if maxCommitFiles > 0 && count >= maxCommitFiles {
				break
			}
			name, entry, err := walker.Next()
			if err == io.EOF {
				break
			}
			if err != nil {
				return commit, nil
			}
			if entry.Mode.IsFile() {
				path := envelope.NormalizePath(name)
				commit.FilesChanged = append(commit.FilesChanged, path)
				commit.Additions[path] = 0
				commit.Deletions[path] = 0
				count++
			}
		}
		return commit, nil
	}

	parent, err := c.Parent(0)
	if err != nil {
		return commit, nil
	}
	parentTree, err := parent.Tree()
	if err != nil {
		return commit, nil
	}
	tree, err := c.Tree()
	if err != nil {
		return commit, nil
	}
	changes, err := parentTree.Diff(tree)
	if err != nil {
		return commit, nil
	}
	commit.Additions = map[string]int{}
	commit.Deletions = map[string]int{}
	for i, ch := range changes {
		if maxCommitFiles > 0 && i >= maxCommitFiles {
			break
		}
		path := envelope.NormalizePath(changePath(ch))
		commit.FilesChanged = append(commit.FilesChanged, path)
		stats, statErr := ch.Stats()
		if statErr == nil {
			commit.Additions[path] = stats.Addition
			commit.Deletions[path] = stats.Deletion
		}
	}
	return commit, nil
}

func changePath(ch *object.Change) string {
	if ch.To.Name != "" {
		return ch.To.Name
	}
	return ch.From.Name
}

// BlameAges implements oracle.GitOracle. For each requested path it walks
// the commit history for the file's most recent commit and converts that
// commit's age into whole days.
func (g *GoGitOracle) BlameAges(ctx context.Context, paths []string) (map[string]int, error) {
	head, err := g.repo.Head()
	if err != nil {
		return nil, err
	}
	now := time.Now()
	out := make(map[string]int, len(paths))
	for _, p := range paths {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		iter, err := g.repo.Log(&git.LogOptions{
			From:     head.Hash(),
			FileName: &p,
			Order:    git.LogOrderCommitterTime,
		})
		if err != nil {
			continue
		}
		commit, err := iter.Next()
		iter.Close()
		if err != nil {
			continue
		}
		days := int(now.Sub(commit.Author.When).Hours() / 24)
		if days < 0 {
			days = 0
		}
		out[p] = days
	}
	return out, nil
}

// IsTracked implements oracle.GitOracle by checking for the path in
// HEAD's tree.
func (g *GoGitOracle) IsTracked(_ context.Context, path string) (bool, error) {
	head, err := g.repo.Head()
	if err != nil {
		return false, err
	}
	commit, err := g.repo.CommitObject(head.Hash())
	if err != nil {
		return false, err
	}
	tree, err := commit.Tree()
	if err != nil {
		return false, err
	}
	_, err = tree.File(path)
	if err == object.ErrFileNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

