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
	"encoding/json"
	"math"
	"sort"
	"strings"

	"gonum.org/v1/gonum/stat"

	"github.com/kraklabs/tokmd/pkg/envelope"
	"github.com/kraklabs/tokmd/pkg/tokmd"
)

// infraLangs are languages treated as configuration/infrastructure
// rather than application logic for the boilerplate ratio. Closed set,
// matched against FileRow.Lang exactly.
var infraLangs = map[string]bool{
	"yaml": true, "yml": true, "json": true, "toml": true, "ini": true,
	"properties": true, "dockerfile": true, "makefile": true,
	"hcl": true, "terraform": true, "xml": true, "markdown": true,
	"html": true, "css": true, "scss": true, "less": true,
	"nix": true, "cmake": true, "csv": true, "tsv": true, "svg": true,
	"gitignore": true, "gitconfig": true, "editorconfig": true,
}

const readingLinesPerMinute = 20

func computeDerived(ctx context.Context, ac *AnalysisContext, rows []tokmd.FileRow, req AnalysisRequest) (*tokmd.DerivedReport, error) {
	totals := tokmd.DerivedTotals{}
	for _, r := range rows {
		totals.Files++
		totals.Code += r.Code
		totals.Comments += r.Comments
		totals.Blanks += r.Blanks
		totals.Lines += r.Lines
		totals.Bytes += r.Bytes
		totals.Tokens += r.Tokens
	}

	docDensity := buildDocDensity(rows)
	whitespace := buildRatioReport(rows, func(r tokmd.FileRow) (int, int) {
		return r.Blanks, r.Lines
	})
	verbosity := buildRateReport(rows, func(r tokmd.FileRow) (int, int) {
		return int(r.Bytes), r.Code
	})

	maxFile := buildMaxFileReport(rows)
	langPurity := buildLangPurity(rows)
	nesting := computeNesting(ctx, ac, rows)
	testDensity := buildTestDensity(rows)
	boilerplate := buildBoilerplate(rows)
	polyglot := buildPolyglot(rows)
	distribution := buildDistribution(rows)
	histogram := buildHistogram(rows)
	top := buildTopOffenders(rows)
	readingTime := buildReadingTime(totals)

	var contextWindow *tokmd.ContextWindowReport
	if req.WindowTokens != nil && *req.WindowTokens > 0 {
		pct := 0.0
		if *req.WindowTokens > 0 {
			pct = float64(totals.Tokens) / float64(*req.WindowTokens) * 100
		}
		contextWindow = &tokmd.ContextWindowReport{
			WindowTokens: *req.WindowTokens,
			TotalTokens:  totals.Tokens,
			Pct:          round2(pct),
			Fits:         totals.Tokens <= *req.WindowTokens,
		}
	}

	var cocomo *tokmd.CocomoReport
	if totals.Code > 0 {
		c := buildCocomo(totals)
		cocomo = &c
	}

	integrity, err := computeIntegrity(rows)
	if err != nil {
		return nil, err
	}

	return &tokmd.DerivedReport{
		Totals:        totals,
		DocDensity:    docDensity,
		Whitespace:    whitespace,
		Verbosity:     verbosity,
		MaxFile:       maxFile,
		LangPurity:    langPurity,
		Nesting:       nesting,
		TestDensity:   testDensity,
		Boilerplate:   boilerplate,
		Polyglot:      polyglot,
		Distribution:  distribution,
		Histogram:     histogram,
		Top:           top,
		ReadingTime:   readingTime,
		ContextWindow: contextWindow,
		Cocomo:        cocomo,
		Integrity:     integrity,
	}, nil
}

// buildDocDensity reports documentation density. The total uses
// comments/(code+comments), bounded to [0,1]. Per-lang and per-module
// rows use comments/code instead, which spec allows to exceed 1.0 for
// heavily-commented languages.
func buildDocDensity(rows []tokmd.FileRow) tokmd.RatioReport {
	byLang := map[string]*tokmd.RatioRow{}
	byModule := map[string]*tokmd.RatioRow{}
	var totalComments, totalCode int
	for _, r := range rows {
		totalComments += r.Comments
		totalCode += r.Code + r.Comments
		accumulateRatio(byLang, r.Lang, r.Comments, r.Code)
		accumulateRatio(byModule, r.Module, r.Comments, r.Code)
	}
	return tokmd.RatioReport{
		Total:    finishRatio("total", totalComments, totalCode),
		ByLang:   finishRatioRows(byLang),
		ByModule: finishRatioRows(byModule),
	}
}

func buildRatioReport(rows []tokmd.FileRow, pick func(tokmd.FileRow) (int, int)) tokmd.RatioReport {
	byLang := map[string]*tokmd.RatioRow{}
	byModule := map[string]*tokmd.RatioRow{}
	var totalNum, totalDen int
	for _, r := range rows {
		num, den := pick(r)
		totalNum += num
		totalDen += den
		accumulateRatio(byLang, r.Lang, num, den)
		accumulateRatio(byModule, r.Module, num, den)
	}
	return tokmd.RatioReport{
		Total:    finishRatio("total", totalNum, totalDen),
		ByLang:   finishRatioRows(byLang),
		ByModule: finishRatioRows(byModule),
	}
}

func accumulateRatio(m map[string]*tokmd.RatioRow, key string, num, den int) {
	row, ok := m[key]
	if !ok {
		row = &tokmd.RatioRow{Key: key}
		m[key] = row
	}
	row.Numerator += num
	row.Denominator += den
}

func finishRatio(key string, num, den int) tokmd.RatioRow {
	ratio := 0.0
	if den > 0 {
		ratio = float64(num) / float64(den)
	}
	return tokmd.RatioRow{Key: key, Numerator: num, Denominator: den, Ratio: round4(ratio)}
}

func finishRatioRows(m map[string]*tokmd.RatioRow) []tokmd.RatioRow {
	keys := sortedKeys(m)
	out := make([]tokmd.RatioRow, 0, len(keys))
	for _, k := range keys {
		r := m[k]
		out = append(out, finishRatio(k, r.Numerator, r.Denominator))
	}
	return out
}

func buildRateReport(rows []tokmd.FileRow, pick func(tokmd.FileRow) (int, int)) tokmd.RateReport {
	byLang := map[string]*tokmd.RateRow{}
	byModule := map[string]*tokmd.RateRow{}
	var totalNum, totalDen int
	for _, r := range rows {
		num, den := pick(r)
		totalNum += num
		totalDen += den
		accumulateRate(byLang, r.Lang, num, den)
		accumulateRate(byModule, r.Module, num, den)
	}
	return tokmd.RateReport{
		Total:    finishRate("total", totalNum, totalDen),
		ByLang:   finishRateRows(byLang),
		ByModule: finishRateRows(byModule),
	}
}

func accumulateRate(m map[string]*tokmd.RateRow, key string, num, den int) {
	row, ok := m[key]
	if !ok {
		row = &tokmd.RateRow{Key: key}
		m[key] = row
	}
	row.Numerator += num
	row.Denominator += den
}

func finishRate(key string, num, den int) tokmd.RateRow {
	rate := 0.0
	if den > 0 {
		rate = float64(num) / float64(den)
	}
	return tokmd.RateRow{Key: key, Numerator: num, Denominator: den, Rate: round4(rate)}
}

func finishRateRows(m map[string]*tokmd.RateRow) []tokmd.RateRow {
	keys := sortedKeys(m)
	out := make([]tokmd.RateRow, 0, len(keys))
	for _, k := range keys {
		r := m[k]
		out = append(out, finishRate(k, r.Numerator, r.Denominator))
	}
	return out
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func toFileStatRow(r tokmd.FileRow, depth int) tokmd.FileStatRow {
	row := tokmd.FileStatRow{
		Path: r.Path, Module: r.Module, Lang: r.Lang,
		Code: r.Code, Comments: r.Comments, Blanks: r.Blanks,
		Lines: r.Lines, Bytes: r.Bytes, Tokens: r.Tokens, Depth: depth,
	}
	if r.Code+r.Comments > 0 {
		docPct := float64(r.Comments) / float64(r.Code+r.Comments)
		row.DocPct = &docPct
	}
	if r.Lines > 0 {
		bpl := float64(r.Bytes) / float64(r.Lines)
		row.BytesPerLine = &bpl
	}
	return row
}

func pathDepth(p string) int {
	return strings.Count(envelope.NormalizePath(p), "/")
}

func buildMaxFileReport(rows []tokmd.FileRow) tokmd.MaxFileReport {
	if len(rows) == 0 {
		return tokmd.MaxFileReport{}
	}
	best := rows[0]
	for _, r := range rows[1:] {
		if r.Lines > best.Lines || (r.Lines == best.Lines && r.Path < best.Path) {
			best = r
		}
	}
	byLang := map[string]tokmd.FileRow{}
	byModule := map[string]tokmd.FileRow{}
	for _, r := range rows {
		if cur, ok := byLang[r.Lang]; !ok || r.Lines > cur.Lines {
			byLang[r.Lang] = r
		}
		if cur, ok := byModule[r.Module]; !ok || r.Lines > cur.Lines {
			byModule[r.Module] = r
		}
	}
	return tokmd.MaxFileReport{
		Overall:  toFileStatRow(best, pathDepth(best.Path)),
		ByLang:   maxFileRows(byLang),
		ByModule: maxFileRows(byModule),
	}
}

func maxFileRows(m map[string]tokmd.FileRow) []tokmd.MaxFileRow {
	keys := sortedKeys(m)
	out := make([]tokmd.MaxFileRow, 0, len(keys))
	for _, k := range keys {
		r := m[k]
		out = append(out, tokmd.MaxFileRow{Key: k, File: toFileStatRow(r, pathDepth(r.Path))})
	}
	return out
}

func buildLangPurity(rows []tokmd.FileRow) tokmd.LangPurityReport {
	type acc struct {
		langs map[string]int
		total int
	}
	mods := map[string]*acc{}
	for _, r := range rows {
		a, ok := mods[r.Module]
		if !ok {
			a = &acc{langs: map[string]int{}}
			mods[r.Module] = a
		}
		a.langs[r.Lang] += r.Lines
		a.total += r.Lines
	}
	keys := make([]string, 0, len(mods))
	for k := range mods {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]tokmd.LangPurityRow, 0, len(keys))
	for _, mod := range keys {
		a := mods[mod]
		dominant, dominantLines := "", 0
		langKeys := sortedKeys(a.langs)
		for _, l := range langKeys {
			if a.langs[l] > dominantLines {
				dominant, dominantLines = l, a.langs[l]
			}
		}
		pct := 0.0
		if a.total > 0 {
			pct = float64(dominantLines) / float64(a.total) * 100
		}
		out = append(out, tokmd.LangPurityRow{
			Module: mod, LangCount: len(a.langs),
			DominantLang: dominant, DominantLines: dominantLines,
			DominantPct: round2(pct),
		})
	}
	return tokmd.LangPurityReport{Rows: out}
}

// bracedLangs are languages whose nesting depth is measured by brace
// counting. Everything else falls back to leading-whitespace depth.
var bracedLangs = map[string]bool{
	"go": true, "rust": true, "javascript": true, "typescript": true,
	"java": true, "c": true, "c++": true, "c#": true, "php": true,
	"kotlin": true, "swift": true, "scala": true,
}

func computeNesting(ctx context.Context, ac *AnalysisContext, rows []tokmd.FileRow) tokmd.NestingReport {
	byModule := map[string]*struct {
		max int
		sum int
		n   int
	}{}
	var overallMax int
	var overallSum, overallN int

	for _, r := range rows {
		if ctx.Err() != nil {
			break
		}
		content, ok := readWithinLimits(ctx, ac, nil, r)
		if !ok {
			continue
		}
		depth := nestingDepth(r.Lang, content)
		if depth > overallMax {
			overallMax = depth
		}
		overallSum += depth
		overallN++
		a, ok := byModule[r.Module]
		if !ok {
			a = &struct {
				max int
				sum int
				n   int
			}{}
			byModule[r.Module] = a
		}
		if depth > a.max {
			a.max = depth
		}
		a.sum += depth
		a.n++
	}

	avg := 0.0
	if overallN > 0 {
		avg = float64(overallSum) / float64(overallN)
	}
	keys := sortedKeys(byModule)
	modRows := make([]tokmd.NestingRow, 0, len(keys))
	for _, k := range keys {
		a := byModule[k]
		modAvg := 0.0
		if a.n > 0 {
			modAvg = float64(a.sum) / float64(a.n)
		}
		modRows = append(modRows, tokmd.NestingRow{Key: k, Max: a.max, Avg: round2(modAvg)})
	}
	return tokmd.NestingReport{Max: overallMax, Avg: round2(avg), ByModule: modRows}
}

func nestingDepth(lang string, content []byte) int {
	if bracedLangs[lang] {
		depth, max := 0, 0
		for _, b := range content {
			switch b {
			case '{', '(', '[':
				depth++
				if depth > max {
					max = depth
				}
			case '}', ')', ']':
				if depth > 0 {
					depth--
				}
			}
		}
		return max
	}
	max := 0
	for _, line := range strings.Split(string(content), "\n") {
		indent := 0
		for _, r := range line {
			if r == ' ' {
				indent++
			} else if r == '\t' {
				indent += 4
			} else {
				break
			}
		}
		depth := indent / 2
		if depth > max {
			max = depth
		}
	}
	return max
}

var testPathMarkers = []string{"/test/", "/tests/", "_test.", ".test.", "/spec/", "_spec.", ".spec."}

func isTestPath(p string) bool {
	lower := strings.ToLower(envelope.NormalizePath(p))
	for _, m := range testPathMarkers {
		if strings.Contains(lower, m) {
			return true
		}
	}
	return false
}

func buildTestDensity(rows []tokmd.FileRow) tokmd.TestDensityReport {
	var rep tokmd.TestDensityReport
	for _, r := range rows {
		if isTestPath(r.Path) {
			rep.TestLines += r.Lines
			rep.TestFiles++
		} else {
			rep.ProdLines += r.Lines
			rep.ProdFiles++
		}
	}
	if rep.ProdLines > 0 {
		rep.Ratio = round4(float64(rep.TestLines) / float64(rep.ProdLines))
	}
	return rep
}

func buildBoilerplate(rows []tokmd.FileRow) tokmd.BoilerplateReport {
	var rep tokmd.BoilerplateReport
	seen := map[string]bool{}
	for _, r := range rows {
		if infraLangs[r.Lang] {
			rep.InfraLines += r.Lines
			if !seen[r.Lang] {
				seen[r.Lang] = true
				rep.InfraLangs = append(rep.InfraLangs, r.Lang)
			}
		} else {
			rep.LogicLines += r.Lines
		}
	}
	sort.Strings(rep.InfraLangs)
	if rep.LogicLines > 0 {
		rep.Ratio = round4(float64(rep.InfraLines) / float64(rep.LogicLines))
	}
	return rep
}

func buildPolyglot(rows []tokmd.FileRow) tokmd.PolyglotReport {
	langLines := map[string]int{}
	total := 0
	for _, r := range rows {
		langLines[r.Lang] += r.Lines
		total += r.Lines
	}
	entropy := 0.0
	dominant, dominantLines := "", 0
	for _, lang := range sortedKeys(langLines) {
		lines := langLines[lang]
		if lines > dominantLines {
			dominant, dominantLines = lang, lines
		}
		if total > 0 && lines > 0 {
			p := float64(lines) / float64(total)
			entropy -= p * math.Log2(p)
		}
	}
	pct := 0.0
	if total > 0 {
		pct = float64(dominantLines) / float64(total)
	}
	return tokmd.PolyglotReport{
		LangCount: len(langLines), Entropy: round4(entropy),
		DominantLang: dominant, DominantLines: dominantLines, DominantPct: round2(pct),
	}
}

func buildDistribution(rows []tokmd.FileRow) tokmd.DistributionReport {
	if len(rows) == 0 {
		return tokmd.DistributionReport{}
	}
	vals := make([]float64, len(rows))
	for i, r := range rows {
		vals[i] = float64(r.Code)
	}
	sorted := append([]float64(nil), vals...)
	sort.Float64s(sorted)

	mean := stat.Mean(sorted, nil)
	median := stat.Quantile(0.5, stat.Empirical, sorted, nil)
	p90 := stat.Quantile(0.90, stat.Empirical, sorted, nil)
	p99 := stat.Quantile(0.99, stat.Empirical, sorted, nil)
	gini := giniCoefficient(sorted)

	return tokmd.DistributionReport{
		Count: len(sorted), Min: int(sorted[0]), Max: int(sorted[len(sorted)-1]),
		Mean: round2(mean), Median: round2(median), P90: round2(p90), P99: round2(p99),
		Gini: round4(gini),
	}
}

// giniCoefficient computes the Gini coefficient over a sorted
// non-negative sample, a standard measure of code-size inequality across
// files.
func giniCoefficient(sorted []float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	var sumDiffs, sum float64
	for i, v := range sorted {
		sum += v
		sumDiffs += float64(2*(i+1)-n-1) * v
	}
	if sum == 0 {
		return 0
	}
	return sumDiffs / (float64(n) * sum)
}

func buildHistogram(rows []tokmd.FileRow) []tokmd.HistogramBucket {
	type bound struct {
		label    string
		min, max int
	}
	bounds := []bound{
		{"0-50", 0, 50}, {"51-200", 51, 200}, {"201-500", 201, 500},
		{"501-1000", 501, 1000}, {"1001-2000", 1001, 2000}, {"2000+", 2001, -1},
	}
	counts := make([]int, len(bounds))
	for _, r := range rows {
		for i, b := range bounds {
			if r.Lines >= b.min && (b.max < 0 || r.Lines <= b.max) {
				counts[i]++
				break
			}
		}
	}
	total := len(rows)
	out := make([]tokmd.HistogramBucket, 0, len(bounds))
	for i, b := range bounds {
		pct := 0.0
		if total > 0 {
			pct = float64(counts[i]) / float64(total) * 100
		}
		var max *int
		if b.max >= 0 {
			m := b.max
			max = &m
		}
		out = append(out, tokmd.HistogramBucket{Label: b.label, Min: b.min, Max: max, Files: counts[i], Pct: round2(pct)})
	}
	return out
}

const topOffendersLimit = 10

func buildTopOffenders(rows []tokmd.FileRow) tokmd.TopOffenders {
	byLines := append([]tokmd.FileRow(nil), rows...)
	sort.Slice(byLines, func(i, j int) bool {
		if byLines[i].Lines != byLines[j].Lines {
			return byLines[i].Lines > byLines[j].Lines
		}
		return byLines[i].Path < byLines[j].Path
	})
	byTokens := append([]tokmd.FileRow(nil), rows...)
	sort.Slice(byTokens, func(i, j int) bool {
		if byTokens[i].Tokens != byTokens[j].Tokens {
			return byTokens[i].Tokens > byTokens[j].Tokens
		}
		return byTokens[i].Path < byTokens[j].Path
	})
	byBytes := append([]tokmd.FileRow(nil), rows...)
	sort.Slice(byBytes, func(i, j int) bool {
		if byBytes[i].Bytes != byBytes[j].Bytes {
			return byBytes[i].Bytes > byBytes[j].Bytes
		}
		return byBytes[i].Path < byBytes[j].Path
	})
	leastDoc := append([]tokmd.FileRow(nil), rows...)
	sort.Slice(leastDoc, func(i, j int) bool {
		di := docPct(leastDoc[i])
		dj := docPct(leastDoc[j])
		if di != dj {
			return di < dj
		}
		return leastDoc[i].Path < leastDoc[j].Path
	})
	mostDense := append([]tokmd.FileRow(nil), rows...)
	sort.Slice(mostDense, func(i, j int) bool {
		bi := bytesPerLine(mostDense[i])
		bj := bytesPerLine(mostDense[j])
		if bi != bj {
			return bi > bj
		}
		return mostDense[i].Path < mostDense[j].Path
	})

	return tokmd.TopOffenders{
		LargestLines:    toTopRows(byLines),
		LargestTokens:   toTopRows(byTokens),
		LargestBytes:    toTopRows(byBytes),
		LeastDocumented: toTopRows(leastDoc),
		MostDense:       toTopRows(mostDense),
	}
}

func docPct(r tokmd.FileRow) float64 {
	if r.Code+r.Comments == 0 {
		return 0
	}
	return float64(r.Comments) / float64(r.Code+r.Comments)
}

func bytesPerLine(r tokmd.FileRow) float64 {
	if r.Lines == 0 {
		return 0
	}
	return float64(r.Bytes) / float64(r.Lines)
}

func toTopRows(rows []tokmd.FileRow) []tokmd.FileStatRow {
	n := len(rows)
	if n > topOffendersLimit {
		n = topOffendersLimit
	}
	out := make([]tokmd.FileStatRow, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, toFileStatRow(rows[i], pathDepth(rows[i].Path)))
	}
	return out
}

func buildReadingTime(totals tokmd.DerivedTotals) tokmd.ReadingTimeReport {
	minutes := float64(totals.Code) / float64(readingLinesPerMinute)
	return tokmd.ReadingTimeReport{
		Minutes: round2(minutes), LinesPerMinute: readingLinesPerMinute, BasisLines: totals.Code,
	}
}

// COCOMO Basic constants for the "organic" development mode.
const (
	cocomoA = 2.4
	cocomoB = 1.05
	cocomoC = 2.5
	cocomoD = 0.38
)

func buildCocomo(totals tokmd.DerivedTotals) tokmd.CocomoReport {
	kloc := float64(totals.Code) / 1000.0
	effort := cocomoA * math.Pow(kloc, cocomoB)
	duration := cocomoC * math.Pow(effort, cocomoD)
	staff := 0.0
	if duration > 0 {
		staff = effort / duration
	}
	return tokmd.CocomoReport{
		Mode: "organic", Kloc: round2(kloc), EffortPM: round2(effort),
		DurationMonths: round2(duration), Staff: round2(staff),
		A: cocomoA, B: cocomoB, C: cocomoC, D: cocomoD,
	}
}

// computeIntegrity hashes the canonical (sorted-by-path) encoding of the
// inventory so identical inventories always produce the same hash
// regardless of traversal order.
func computeIntegrity(rows []tokmd.FileRow) (tokmd.IntegrityReport, error) {
	sorted := append([]tokmd.FileRow(nil), rows...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Path < sorted[j].Path })
	encoded, err := json.Marshal(sorted)
	if err != nil {
		return tokmd.IntegrityReport{}, err
	}
	return tokmd.IntegrityReport{
		Algo: "blake3", Hash: envelope.IntegrityHash(encoded), Entries: len(sorted),
	}, nil
}

func round2(f float64) float64 { return math.Round(f*100) / 100 }
func round4(f float64) float64 { return math.Round(f*10000) / 10000 }
