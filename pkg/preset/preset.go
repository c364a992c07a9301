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

// Package preset resolves a named analysis preset into a closed,
// tagged-variant plan: a fixed set of boolean enricher flags, never an
// open interface registry. Presets are the only public surface; the
// individual flags exist so pkg/analysis can dispatch over a plain
// struct-of-bools instead of a plugin lookup.
package preset

import "fmt"

// Plan is the closed set of enrichers an analysis run may execute. Every
// field corresponds 1:1 with a report the orchestrator can attach to the
// receipt; there is no mechanism to add a seventeenth flag without
// touching this struct.
type Plan struct {
	Assets      bool
	Deps        bool
	Todo        bool
	Dup         bool
	Imports     bool
	Git         bool
	Fun         bool
	Archetype   bool
	Topics      bool
	Entropy     bool
	License     bool
	Complexity  bool
	APISurface  bool
	Halstead    bool
	Churn       bool
	Fingerprint bool
}

// Name is a validated preset identifier.
type Name string

const (
	Receipt      Name = "receipt"
	Health       Name = "health"
	Risk         Name = "risk"
	Supply       Name = "supply"
	Architecture Name = "architecture"
	Topics       Name = "topics"
	Security     Name = "security"
	Identity     Name = "identity"
	Git          Name = "git"
	Deep         Name = "deep"
	Fun          Name = "fun"
)

// All lists every recognized preset name, in the order they are
// documented.
var All = []Name{Receipt, Health, Risk, Supply, Architecture, Topics, Security, Identity, Git, Deep, Fun}

// Parse maps a lowercase preset name to its Name. Matching is
// case-sensitive: callers must lowercase user input themselves so the
// error message can show exactly what was rejected.
func Parse(s string) (Name, error) {
	for _, n := range All {
		if string(n) == s {
			return n, nil
		}
	}
	return "", fmt.Errorf("unknown preset %q", s)
}

// PlanFor resolves a preset Name into its enricher Plan. Every branch is
// an explicit literal; there is no fallthrough default beyond Receipt's
// empty plan, so an unrecognized Name (which Parse would already have
// rejected) returns the same empty plan as Receipt.
func PlanFor(name Name) Plan {
	switch name {
	case Receipt:
		return Plan{}
	case Health:
		return Plan{
			Entropy:    true,
			License:    true,
			Complexity: true,
			Todo:       true,
		}
	case Risk:
		return Plan{
			Entropy: true,
			License: true,
			Dup:     true,
			Deps:    true,
		}
	case Supply:
		return Plan{
			Deps:    true,
			License: true,
			Assets:  true,
		}
	case Architecture:
		return Plan{
			Archetype:  true,
			Imports:    true,
			Complexity: true,
			APISurface: true,
		}
	case Topics:
		return Plan{
			Topics: true,
		}
	case Security:
		return Plan{
			Entropy: true,
			License: true,
			Deps:    true,
			Assets:  true,
		}
	case Identity:
		return Plan{
			Fingerprint: true,
			Git:         true,
		}
	case Git:
		return Plan{
			Git:   true,
			Churn: true,
		}
	case Deep:
		return deepPlan()
	case Fun:
		return Plan{Fun: true}
	default:
		return Plan{}
	}
}

// deepPlan is the union of every non-fun flag. Fun is deliberately left
// out: it reports playful, non-actionable statistics and a deep analysis
// is meant to be exhaustive about the codebase, not about jokes.
func deepPlan() Plan {
	return Plan{
		Assets:      true,
		Deps:        true,
		Todo:        true,
		Dup:         true,
		Imports:     true,
		Git:         true,
		Archetype:   true,
		Topics:      true,
		Entropy:     true,
		License:     true,
		Complexity:  true,
		APISurface:  true,
		Halstead:    true,
		Churn:       true,
		Fingerprint: true,
	}
}

// NeedsFiles reports whether any flag in p requires reading file
// contents (as opposed to metadata-only enrichers like Git or
// Fingerprint, which can run off path and history alone).
func NeedsFiles(p Plan) bool {
	return p.Entropy || p.License || p.Complexity || p.APISurface ||
		p.Halstead || p.Imports || p.Dup || p.Deps || p.Todo
}

// DisabledFeature names a flag that was requested by a preset but could
// not run because its supporting oracle or toolchain was unavailable
// (e.g. Git when the working tree isn't a git repository).
type DisabledFeature struct {
	Flag   string
	Reason string
}

// String renders a DisabledFeature as a single warning line.
func (d DisabledFeature) String() string {
	return fmt.Sprintf("%s disabled: %s", d.Flag, d.Reason)
}
