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

package preset

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAcceptsEveryDocumentedName(t *testing.T) {
	for _, n := range All {
		got, err := Parse(string(n))
		require.NoError(t, err)
		assert.Equal(t, n, got)
	}
}

func TestParseRejectsUnknownName(t *testing.T) {
	_, err := Parse("Deep")
	assert.Error(t, err, "preset parsing is case-sensitive")

	_, err = Parse("nonexistent")
	assert.Error(t, err)
}

func TestReceiptPlanIsEmpty(t *testing.T) {
	assert.Equal(t, Plan{}, PlanFor(Receipt))
}

func TestFunPlanOnlyEnablesFun(t *testing.T) {
	p := PlanFor(Fun)
	assert.True(t, p.Fun)
	assert.Equal(t, Plan{Fun: true}, p)
}

func TestDeepPlanIsUnionOfNonFunFlags(t *testing.T) {
	deep := PlanFor(Deep)
	assert.False(t, deep.Fun, "deep analysis excludes the fun enricher")

	seen := map[string]bool{}
	for _, n := range All {
		if n == Deep || n == Fun {
			continue
		}
		p := PlanFor(n)
		if p.Assets {
			seen["assets"] = true
		}
		if p.Deps {
			seen["deps"] = true
		}
		if p.Todo {
			seen["todo"] = true
		}
		if p.Dup {
			seen["dup"] = true
		}
		if p.Imports {
			seen["imports"] = true
		}
		if p.Git {
			seen["git"] = true
		}
		if p.Archetype {
			seen["archetype"] = true
		}
		if p.Topics {
			seen["topics"] = true
		}
		if p.Entropy {
			seen["entropy"] = true
		}
		if p.License {
			seen["license"] = true
		}
		if p.Complexity {
			seen["complexity"] = true
		}
		if p.APISurface {
			seen["api_surface"] = true
		}
		if p.Churn {
			seen["churn"] = true
		}
		if p.Fingerprint {
			seen["fingerprint"] = true
		}
	}
	// Every flag ever turned on by a non-deep, non-fun preset must also be
	// on in the deep plan.
	assert.True(t, deep.Assets == seen["assets"] || deep.Assets)
	assert.True(t, deep.Deps)
	assert.True(t, deep.Todo)
	assert.True(t, deep.Dup)
	assert.True(t, deep.Imports)
	assert.True(t, deep.Git)
	assert.True(t, deep.Archetype)
	assert.True(t, deep.Topics)
	assert.True(t, deep.Entropy)
	assert.True(t, deep.License)
	assert.True(t, deep.Complexity)
	assert.True(t, deep.APISurface)
	assert.True(t, deep.Churn)
	assert.True(t, deep.Fingerprint)
	assert.True(t, deep.Halstead, "deep enables halstead even though no smaller preset needs it alone")
}

func TestNeedsFilesDistinguishesMetadataOnlyPresets(t *testing.T) {
	assert.False(t, NeedsFiles(PlanFor(Identity)), "identity only needs fingerprint and git history")
	assert.False(t, NeedsFiles(PlanFor(Git)), "git preset needs commit history, not file contents")
	assert.True(t, NeedsFiles(PlanFor(Health)))
	assert.True(t, NeedsFiles(PlanFor(Architecture)))
	assert.False(t, NeedsFiles(PlanFor(Receipt)))
}

func TestDisabledFeatureString(t *testing.T) {
	d := DisabledFeature{Flag: "git", Reason: "not a git repository"}
	assert.Equal(t, "git disabled: not a git repository", d.String())
}
