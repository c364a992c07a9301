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
	"strings"

	"gonum.org/v1/gonum/stat"

	"github.com/kraklabs/tokmd/pkg/oracle"
	"github.com/kraklabs/tokmd/pkg/tokmd"
)

const (
	freshnessThresholdDays = 90
	topHotspots            = 25
	topCouplingPairs       = 25
	churnBuckets           = 6
)

func computeGit(ctx context.Context, ac *AnalysisContext, rows []tokmd.FileRow, req AnalysisRequest) (*tokmd.GitReport, *tokmd.PredictiveChurnReport, *tokmd.CorporateFingerprint, error) {
	maxCommits := ac.Limits.MaxCommits
	maxCommitFiles := ac.Limits.MaxCommitFiles
	commits, err := ac.Git.CollectHistory(ctx, maxCommits, maxCommitFiles)
	if err != nil {
		return nil, nil, nil, err
	}

	moduleByPath := map[string]string{}
	for _, r := range rows {
		moduleByPath[r.Path] = r.Module
	}

	commitCounts := map[string]int{}
	linesChanged := map[string]int{}
	moduleAuthors := map[string]map[string]bool{}
	coupling := map[[2]string]int{}
	domainCounts := map[string]int{}

	for _, c := range commits {
		domain := emailDomain(c.AuthorEmail)
		if domain != "" {
			domainCounts[domain]++
		}
		files := append([]string(nil), c.FilesChanged...)
		sort.Strings(files)
		for i, f := range files {
			commitCounts[f]++
			linesChanged[f] += c.Additions[f] + c.Deletions[f]
			if mod, ok := moduleByPath[f]; ok {
				set, ok := moduleAuthors[mod]
				if !ok {
					set = map[string]bool{}
					moduleAuthors[mod] = set
				}
				set[c.AuthorEmail] = true
			}
			for j := i + 1; j < len(files); j++ {
				coupling[[2]string{f, files[j]}]++
			}
		}
	}

	hotspots := make([]tokmd.HotspotRow, 0, len(commitCounts))
	for f, count := range commitCounts {
		if _, ok := moduleByPath[f]; !ok {
			continue
		}
		lines := linesChanged[f]
		hotspots = append(hotspots, tokmd.HotspotRow{Path: f, Commits: count, Lines: lines, Score: lines * count})
	}
	sort.Slice(hotspots, func(i, j int) bool {
		if hotspots[i].Score != hotspots[j].Score {
			return hotspots[i].Score > hotspots[j].Score
		}
		return hotspots[i].Path < hotspots[j].Path
	})
	if len(hotspots) > topHotspots {
		hotspots = hotspots[:topHotspots]
	}

	busFactor := make([]tokmd.BusFactorRow, 0, len(moduleAuthors))
	for _, mod := range sortedKeys(moduleAuthors) {
		busFactor = append(busFactor, tokmd.BusFactorRow{Module: mod, Authors: len(moduleAuthors[mod])})
	}

	freshness, err := computeFreshness(ctx, ac, rows)
	if err != nil {
		return nil, nil, nil, err
	}

	couplingRows := make([]tokmd.CouplingRow, 0, len(coupling))
	for pair, count := range coupling {
		if count < 2 {
			continue
		}
		couplingRows = append(couplingRows, tokmd.CouplingRow{Left: pair[0], Right: pair[1], Count: count})
	}
	sort.Slice(couplingRows, func(i, j int) bool {
		if couplingRows[i].Count != couplingRows[j].Count {
			return couplingRows[i].Count > couplingRows[j].Count
		}
		if couplingRows[i].Left != couplingRows[j].Left {
			return couplingRows[i].Left < couplingRows[j].Left
		}
		return couplingRows[i].Right < couplingRows[j].Right
	})
	if len(couplingRows) > topCouplingPairs {
		couplingRows = couplingRows[:topCouplingPairs]
	}

	gitReport := &tokmd.GitReport{
		CommitsScanned: len(commits),
		FilesSeen:      len(commitCounts),
		Hotspots:       hotspots,
		BusFactor:      busFactor,
		Freshness:      freshness,
		Coupling:       couplingRows,
	}

	churn := computeChurnTrend(commits, moduleByPath)

	var fingerprint *tokmd.CorporateFingerprint
	if req.Plan.Fingerprint {
		fingerprint = buildFingerprint(domainCounts, len(commits))
	}

	return gitReport, churn, fingerprint, nil
}

func emailDomain(email string) string {
	i := strings.LastIndex(email, "@")
	if i < 0 || i == len(email)-1 {
		return ""
	}
	return strings.ToLower(email[i+1:])
}

func computeFreshness(ctx context.Context, ac *AnalysisContext, rows []tokmd.FileRow) (tokmd.FreshnessReport, error) {
	paths := make([]string, 0, len(rows))
	for _, r := range rows {
		paths = append(paths, r.Path)
	}
	ages, err := ac.Git.BlameAges(ctx, paths)
	if err != nil {
		return tokmd.FreshnessReport{}, err
	}

	byModule := map[string][]int{}
	var all []int
	var stale int
	for _, r := range rows {
		age, ok := ages[r.Path]
		if !ok {
			continue
		}
		all = append(all, age)
		byModule[r.Module] = append(byModule[r.Module], age)
		if age > freshnessThresholdDays {
			stale++
		}
	}

	total := len(all)
	stalePct := 0.0
	if total > 0 {
		stalePct = float64(stale) / float64(total) * 100
	}

	keys := sortedKeys(byModule)
	modRows := make([]tokmd.ModuleFreshnessRow, 0, len(keys))
	for _, mod := range keys {
		ageList := byModule[mod]
		avg, p90, modStale := summarizeAges(ageList)
		modRows = append(modRows, tokmd.ModuleFreshnessRow{
			Module: mod, AvgDays: round2(avg), P90Days: round2(p90), StalePct: round2(modStale),
		})
	}

	return tokmd.FreshnessReport{
		ThresholdDays: freshnessThresholdDays,
		StaleFiles:    stale, TotalFiles: total,
		StalePct: round2(stalePct), ByModule: modRows,
	}, nil
}

func summarizeAges(ages []int) (avg, p90, stalePct float64) {
	if len(ages) == 0 {
		return 0, 0, 0
	}
	sorted := append([]int(nil), ages...)
	sort.Ints(sorted)
	var sum, stale int
	for _, a := range sorted {
		sum += a
		if a > freshnessThresholdDays {
			stale++
		}
	}
	avg = float64(sum) / float64(len(sorted))
	idx := int(float64(len(sorted)-1) * 0.90)
	p90 = float64(sorted[idx])
	stalePct = float64(stale) / float64(len(sorted)) * 100
	return avg, p90, stalePct
}

// computeChurnTrend buckets each module's commits into churnBuckets
// equal-width time windows spanning the observed commit history and
// fits a linear regression of commit count against bucket index, using
// gonum's least-squares fit and R² goodness-of-fit to classify the
// trend.
func computeChurnTrend(commits []oracle.Commit, moduleByPath map[string]string) *tokmd.PredictiveChurnReport {
	if len(commits) == 0 {
		return nil
	}
	minT, maxT := commits[0].AuthorTime, commits[0].AuthorTime
	for _, c := range commits {
		if c.AuthorTime.Before(minT) {
			minT = c.AuthorTime
		}
		if c.AuthorTime.After(maxT) {
			maxT = c.AuthorTime
		}
	}
	span := maxT.Sub(minT)
	if span <= 0 {
		return nil
	}
	bucketWidth := span / churnBuckets

	moduleBuckets := map[string][]float64{}
	for _, c := range commits {
		offset := c.AuthorTime.Sub(minT)
		bucket := int(offset / bucketWidth)
		if bucket >= churnBuckets {
			bucket = churnBuckets - 1
		}
		seen := map[string]bool{}
		for _, f := range c.FilesChanged {
			mod, ok := moduleByPath[f]
			if !ok || seen[mod] {
				continue
			}
			seen[mod] = true
			buckets, ok := moduleBuckets[mod]
			if !ok {
				buckets = make([]float64, churnBuckets)
				moduleBuckets[mod] = buckets
			}
			buckets[bucket]++
		}
	}

	xs := make([]float64, churnBuckets)
	for i := range xs {
		xs[i] = float64(i)
	}

	perModule := map[string]tokmd.ChurnTrend{}
	for _, mod := range sortedKeys(moduleBuckets) {
		ys := moduleBuckets[mod]
		alpha, beta := stat.LinearRegression(xs, ys, nil, false)
		r2 := stat.RSquared(xs, ys, nil, alpha, beta)
		recentChange := int64(ys[len(ys)-1] - ys[0])

		class := tokmd.TrendFlat
		switch {
		case beta > 0.5:
			class = tokmd.TrendRising
		case beta < -0.5:
			class = tokmd.TrendFalling
		}

		perModule[mod] = tokmd.ChurnTrend{
			Slope: round4(beta), R2: round4(r2), RecentChange: recentChange, Classification: class,
		}
	}

	if len(perModule) == 0 {
		return nil
	}
	return &tokmd.PredictiveChurnReport{PerModule: perModule}
}

func buildFingerprint(domainCounts map[string]int, totalCommits int) *tokmd.CorporateFingerprint {
	if totalCommits == 0 || len(domainCounts) == 0 {
		return nil
	}
	keys := sortedKeys(domainCounts)
	domains := make([]tokmd.DomainStat, 0, len(keys))
	for _, d := range keys {
		count := domainCounts[d]
		pct := float64(count) / float64(totalCommits) * 100
		domains = append(domains, tokmd.DomainStat{Domain: d, Commits: uint32(count), Pct: float32(round2(pct))})
	}
	sort.Slice(domains, func(i, j int) bool {
		if domains[i].Commits != domains[j].Commits {
			return domains[i].Commits > domains[j].Commits
		}
		return domains[i].Domain < domains[j].Domain
	})
	return &tokmd.CorporateFingerprint{Domains: domains}
}
