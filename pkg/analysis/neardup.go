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
	"sort"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/cespare/xxhash/v2"

	"github.com/kraklabs/tokmd/pkg/envelope"
	"github.com/kraklabs/tokmd/pkg/tokmd"
)

const (
	kgramSize           = 25
	winnowWindow        = 4
	nearDupThreshold    = 0.80
	maxNearDupCandidates = 5000
)

// fingerprints returns the winnowed set of k-gram hashes for content: an
// xxhash of every kgramSize-byte window (each window hashed on its own,
// not rolled forward from the previous one), reduced to one
// minimum hash per winnowWindow-wide slice of the hash sequence so the
// fingerprint set stays small without losing match stability
// (Schleimer-Wilkerson winnowing).
func fingerprints(content []byte) map[uint64]struct{} {
	if len(content) < kgramSize {
		return nil
	}
	hashes := make([]uint64, 0, len(content)-kgramSize+1)
	for i := 0; i+kgramSize <= len(content); i++ {
		hashes = append(hashes, xxhash.Sum64(content[i:i+kgramSize]))
	}
	out := map[uint64]struct{}{}
	for i := 0; i+winnowWindow <= len(hashes); i++ {
		window := hashes[i : i+winnowWindow]
		min := window[0]
		for _, h := range window[1:] {
			if h < min {
				min = h
			}
		}
		out[min] = struct{}{}
	}
	if len(out) == 0 {
		for _, h := range hashes {
			out[h] = struct{}{}
		}
	}
	return out
}

func jaccard(a, b map[uint64]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	small, large := a, b
	if len(small) > len(large) {
		small, large = large, small
	}
	shared := 0
	for h := range small {
		if _, ok := large[h]; ok {
			shared++
		}
	}
	union := len(a) + len(b) - shared
	if union == 0 {
		return 0
	}
	return float64(shared) / float64(union)
}

type unionFind struct {
	parent []int
}

func newUnionFind(n int) *unionFind {
	p := make([]int, n)
	for i := range p {
		p[i] = i
	}
	return &unionFind{parent: p}
}

func (u *unionFind) find(x int) int {
	for u.parent[x] != x {
		u.parent[x] = u.parent[u.parent[x]]
		x = u.parent[x]
	}
	return x
}

func (u *unionFind) union(a, b int) {
	ra, rb := u.find(a), u.find(b)
	if ra != rb {
		u.parent[ra] = rb
	}
}

func computeDuplicates(ctx context.Context, ac *AnalysisContext, rows []tokmd.FileRow, budget *byteBudget) (*tokmd.DuplicateReport, error) {
	byHash := map[string][]tokmd.FileRow{}
	eligible := roaring.New()
	fpByOrdinal := map[int]map[uint64]struct{}{}
	pathByOrdinal := map[int]string{}

	for ordinal, r := range rows {
		if ctx.Err() != nil {
			break
		}
		content, ok := readWithinLimits(ctx, ac, budget, r)
		if !ok {
			continue
		}
		hash := envelope.IntegrityHash(content)
		byHash[hash] = append(byHash[hash], r)

		if fp := fingerprints(content); fp != nil {
			eligible.Add(uint32(ordinal))
			fpByOrdinal[ordinal] = fp
			pathByOrdinal[ordinal] = r.Path
		}
	}

	var groups []tokmd.DuplicateGroup
	var wasted int64
	for hash, group := range byHash {
		if len(group) < 2 {
			continue
		}
		paths := make([]string, 0, len(group))
		for _, r := range group {
			paths = append(paths, r.Path)
		}
		sort.Strings(paths)
		groups = append(groups, tokmd.DuplicateGroup{Hash: hash, Bytes: group[0].Bytes, Files: paths})
		wasted += group[0].Bytes * int64(len(group)-1)
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].Hash < groups[j].Hash })

	ordinals := make([]int, 0, len(fpByOrdinal))
	for o := range fpByOrdinal {
		ordinals = append(ordinals, o)
	}
	sort.Ints(ordinals)

	var pairs []tokmd.NearDupPair
	uf := newUnionFind(len(rows))
	pairCount := 0
outer:
	for i := 0; i < len(ordinals); i++ {
		for j := i + 1; j < len(ordinals); j++ {
			if pairCount >= maxNearDupCandidates {
				break outer
			}
			left, right := ordinals[i], ordinals[j]
			sim := jaccard(fpByOrdinal[left], fpByOrdinal[right])
			pairCount++
			if sim < nearDupThreshold {
				continue
			}
			uf.union(left, right)
			pairs = append(pairs, tokmd.NearDupPair{
				Left: pathByOrdinal[left], Right: pathByOrdinal[right],
				Similarity:         round4(sim),
				LeftFingerprints:   len(fpByOrdinal[left]),
				RightFingerprints:  len(fpByOrdinal[right]),
				SharedFingerprints: sharedCount(fpByOrdinal[left], fpByOrdinal[right]),
			})
		}
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].Similarity != pairs[j].Similarity {
			return pairs[i].Similarity > pairs[j].Similarity
		}
		return pairs[i].Left < pairs[j].Left
	})

	clusterMembers := map[int][]int{}
	it := eligible.Iterator()
	for it.HasNext() {
		ordinal := int(it.Next())
		root := uf.find(ordinal)
		clusterMembers[root] = append(clusterMembers[root], ordinal)
	}
	var clusters []tokmd.NearDupCluster
	for _, members := range clusterMembers {
		if len(members) < 2 {
			continue
		}
		paths := make([]string, 0, len(members))
		for _, m := range members {
			paths = append(paths, pathByOrdinal[m])
		}
		sort.Strings(paths)
		clusters = append(clusters, tokmd.NearDupCluster{Files: paths})
	}
	sort.Slice(clusters, func(i, j int) bool { return clusters[i].Files[0] < clusters[j].Files[0] })

	eligibleCount := int(eligible.GetCardinality())
	return &tokmd.DuplicateReport{
		Groups:      groups,
		WastedBytes: wasted,
		Strategy:    "exact-hash+winnowed-kgram-jaccard",
		NearDup: &tokmd.NearDupReport{
			Pairs: pairs, Clusters: clusters,
			FilesAnalyzed: eligibleCount,
			FilesSkipped:  len(rows) - eligibleCount,
			EligibleFiles: &eligibleCount,
		},
	}, nil
}

func sharedCount(a, b map[uint64]struct{}) int {
	small, large := a, b
	if len(small) > len(large) {
		small, large = large, small
	}
	n := 0
	for h := range small {
		if _, ok := large[h]; ok {
			n++
		}
	}
	return n
}
