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

package context

import "sort"

// Strategy selects how candidates are ordered for admission into the
// budget.
type Strategy string

const (
	StrategyGreedy Strategy = "greedy"
	StrategySpread Strategy = "spread"
)

// PackRequest is the packer's input: every candidate file plus the
// knobs governing admission.
type PackRequest struct {
	Budget         int64
	MaxFilePct     float64
	MaxFileTokens  int64
	DenseThreshold float64
	Strategy       Strategy
	Candidates     []Candidate
}

// PackedFile is one admitted or rejected file in the resulting pack.
type PackedFile struct {
	Path            string
	Module          string
	EffectiveTokens int64
	Policy          Policy
	Reason          string
}

// Pack is the planner's output: the budget actually consumed and every
// file's final decision, in admission order for Included and path order
// for Excluded.
type Pack struct {
	BudgetTokens int64
	UsedTokens   int64
	Strategy     Strategy
	Included     []PackedFile
	Excluded     []PackedFile
}

// Run classifies, assigns a policy to, and packs every candidate
// according to req. Both strategies admit files greedily under the same
// rule — used_tokens + effective(file) ≤ budget — and never truncate a
// file mid-body; they differ only in the order candidates are offered.
func Run(req PackRequest) Pack {
	fileCap := ComputeFileCap(req.Budget, req.MaxFilePct, req.MaxFileTokens)

	decisions := make(map[string]FileDecision, len(req.Candidates))
	for _, c := range req.Candidates {
		decisions[c.Path] = AssignPolicy(c.Path, c.Tokens, fileCap, c.Classes)
	}

	order := rankCandidates(req.Candidates, req.Strategy)

	pack := Pack{BudgetTokens: req.Budget, Strategy: req.Strategy}
	for _, c := range order {
		d := decisions[c.Path]
		pf := PackedFile{Path: d.Path, Module: c.Module, EffectiveTokens: d.EffectiveTokens, Policy: d.Policy, Reason: d.Reason}
		if d.Policy == PolicySkip {
			pack.Excluded = append(pack.Excluded, pf)
			continue
		}
		if req.Budget != unlimitedBudget && pack.UsedTokens+d.EffectiveTokens > req.Budget {
			pf.Policy = PolicySkip
			pf.Reason = "budget exhausted"
			pack.Excluded = append(pack.Excluded, pf)
			continue
		}
		pack.UsedTokens += d.EffectiveTokens
		pack.Included = append(pack.Included, pf)
	}

	sort.Slice(pack.Excluded, func(i, j int) bool { return pack.Excluded[i].Path < pack.Excluded[j].Path })
	return pack
}

// rankCandidates orders candidates for admission. Greedy ranks by
// composite priority (spine first, then git hotspot, then tokens
// ascending with code descending as a tiebreak). Spread applies the
// same composite priority within each module, then round-robins across
// modules in sorted-module order so no single module can exhaust the
// budget before others are considered.
func rankCandidates(candidates []Candidate, strategy Strategy) []Candidate {
	ranked := append([]Candidate(nil), candidates...)
	sort.SliceStable(ranked, func(i, j int) bool { return candidateLess(ranked[i], ranked[j]) })

	if strategy != StrategySpread {
		return ranked
	}

	byModule := map[string][]Candidate{}
	var modules []string
	for _, c := range ranked {
		if _, ok := byModule[c.Module]; !ok {
			modules = append(modules, c.Module)
		}
		byModule[c.Module] = append(byModule[c.Module], c)
	}
	sort.Strings(modules)

	out := make([]Candidate, 0, len(ranked))
	for i := 0; ; i++ {
		added := false
		for _, mod := range modules {
			bucket := byModule[mod]
			if i < len(bucket) {
				out = append(out, bucket[i])
				added = true
			}
		}
		if !added {
			break
		}
	}
	return out
}

func candidateLess(a, b Candidate) bool {
	aSpine, bSpine := isSpineFile(a.Path), isSpineFile(b.Path)
	if aSpine != bSpine {
		return aSpine
	}
	if a.IsHotspot != b.IsHotspot {
		return a.IsHotspot
	}
	if a.Tokens != b.Tokens {
		return a.Tokens < b.Tokens
	}
	if a.Code != b.Code {
		return a.Code > b.Code
	}
	return a.Path < b.Path
}
