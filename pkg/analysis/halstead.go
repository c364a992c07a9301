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
	"math"
	"sort"
	"unicode"

	"github.com/kraklabs/tokmd/pkg/tokmd"
)

// halsteadOperators lists, per language family, the multi-character
// punctuation operators (checked longest-match-first) and keywords
// counted as operators rather than operands.
var halsteadOperators = map[string]struct {
	punct    []string
	keywords map[string]bool
}{
	"rust": {
		punct: []string{"::", "->", "=>", "==", "!=", "<=", ">=", "&&", "||", "+=", "-=", "*=", "/=", "..=", "..", "+", "-", "*", "/", "%", "=", "<", ">", "!", "&", "|", "^", "(", ")", "{", "}", "[", "]", ";", ",", "."},
		keywords: wordSet("let", "fn", "if", "else", "match", "for", "while", "loop", "return", "struct", "enum", "impl", "trait", "pub", "mod", "use", "mut", "const", "static", "unsafe", "async", "await"),
	},
	"go": {
		punct: []string{":=", "==", "!=", "<=", ">=", "&&", "||", "+=", "-=", "*=", "/=", "<-", "++", "--", "+", "-", "*", "/", "%", "=", "<", ">", "!", "&", "|", "^", "(", ")", "{", "}", "[", "]", ";", ",", "."},
		keywords: wordSet("func", "if", "else", "switch", "case", "for", "range", "return", "struct", "interface", "package", "import", "go", "defer", "select", "chan", "map", "var", "const", "type"),
	},
	"javascript": {
		punct: []string{"===", "!==", "=>", "==", "!=", "<=", ">=", "&&", "||", "+=", "-=", "*=", "/=", "++", "--", "...", "?.", "??", "+", "-", "*", "/", "%", "=", "<", ">", "!", "&", "|", "^", "(", ")", "{", "}", "[", "]", ";", ",", "."},
		keywords: wordSet("function", "if", "else", "switch", "case", "for", "while", "return", "class", "const", "let", "var", "import", "export", "async", "await", "new", "typeof", "instanceof"),
	},
	"typescript": {
		punct: []string{"===", "!==", "=>", "==", "!=", "<=", ">=", "&&", "||", "+=", "-=", "*=", "/=", "++", "--", "...", "?.", "??", "+", "-", "*", "/", "%", "=", "<", ">", "!", "&", "|", "^", "(", ")", "{", "}", "[", "]", ";", ",", "."},
		keywords: wordSet("function", "if", "else", "switch", "case", "for", "while", "return", "class", "const", "let", "var", "import", "export", "async", "await", "new", "typeof", "instanceof", "interface", "type", "enum"),
	},
	"python": {
		punct: []string{"==", "!=", "<=", ">=", "+=", "-=", "*=", "/=", "//", "**", "+", "-", "*", "/", "%", "=", "<", ">", "(", ")", "{", "}", "[", "]", ",", "."},
		keywords: wordSet("def", "if", "elif", "else", "for", "while", "return", "class", "import", "from", "with", "as", "try", "except", "finally", "lambda", "yield", "async", "await"),
	},
}

func wordSet(words ...string) map[string]bool {
	m := make(map[string]bool, len(words))
	for _, w := range words {
		m[w] = true
	}
	return m
}

func halsteadTable(lang string) (struct {
	punct    []string
	keywords map[string]bool
}, bool) {
	t, ok := halsteadOperators[lang]
	return t, ok
}

// tokenizeForHalstead walks content byte-by-byte, classifying each token
// as an operator or operand. String/char literals are counted once each
// as a single "<string>" operand, matching the original scanner's
// treatment of literal content as opaque.
func tokenizeForHalstead(lang string, content []byte) (operators, operands []string) {
	table, ok := halsteadTable(lang)
	if !ok {
		return nil, nil
	}
	text := string(content)
	i := 0
	n := len(text)
	for i < n {
		c := rune(text[i])
		switch {
		case c == '"' || c == '\'':
			quote := byte(c)
			j := i + 1
			for j < n && text[j] != quote {
				if text[j] == '\\' && j+1 < n {
					j++
				}
				j++
			}
			operands = append(operands, "<string>")
			i = j + 1
		case unicode.IsSpace(c):
			i++
		case unicode.IsLetter(c) || c == '_':
			j := i
			for j < n && (unicode.IsLetter(rune(text[j])) || unicode.IsDigit(rune(text[j])) || text[j] == '_') {
				j++
			}
			word := text[i:j]
			if table.keywords[word] {
				operators = append(operators, word)
			} else {
				operands = append(operands, word)
			}
			i = j
		case unicode.IsDigit(c):
			j := i
			for j < n && (unicode.IsDigit(rune(text[j])) || text[j] == '.' || text[j] == '_' || text[j] == 'x' || text[j] == 'X') {
				j++
			}
			operands = append(operands, text[i:j])
			i = j
		default:
			matched := ""
			for _, op := range table.punct {
				if len(op) > len(matched) && i+len(op) <= n && text[i:i+len(op)] == op {
					matched = op
				}
			}
			if matched != "" {
				operators = append(operators, matched)
				i += len(matched)
			} else {
				i++
			}
		}
	}
	return operators, operands
}

func buildHalsteadMetrics(operators, operands []string) tokmd.HalsteadMetrics {
	distinctOps := map[string]bool{}
	distinctOperands := map[string]bool{}
	for _, o := range operators {
		distinctOps[o] = true
	}
	for _, o := range operands {
		distinctOperands[o] = true
	}
	n1, n2 := len(distinctOps), len(distinctOperands)
	N1, N2 := len(operators), len(operands)
	vocabulary := n1 + n2
	length := N1 + N2
	volume := 0.0
	if vocabulary > 0 {
		volume = float64(length) * math.Log2(float64(vocabulary))
	}
	difficulty := 0.0
	if n2 > 0 {
		difficulty = (float64(n1) / 2) * (float64(N2) / float64(n2))
	}
	effort := difficulty * volume
	timeSeconds := effort / 18.0
	bugs := volume / 3000.0

	return tokmd.HalsteadMetrics{
		DistinctOperators: n1, DistinctOperands: n2,
		TotalOperators: N1, TotalOperands: N2,
		Vocabulary: vocabulary, Length: length,
		Volume: round2(volume), Difficulty: round2(difficulty),
		Effort: round2(effort), TimeSeconds: round2(timeSeconds),
		EstimatedBugs: round4(bugs),
	}
}

func computeHalstead(ctx context.Context, ac *AnalysisContext, rows []tokmd.FileRow, budget *byteBudget) (*tokmd.HalsteadReport, error) {
	byLang := map[string]struct {
		operators []string
		operands  []string
	}{}
	var allOps, allOperands []string

	for _, r := range rows {
		if ctx.Err() != nil {
			break
		}
		if _, ok := halsteadTable(r.Lang); !ok {
			continue
		}
		content, ok := readWithinLimits(ctx, ac, budget, r)
		if !ok {
			continue
		}
		ops, operands := tokenizeForHalstead(r.Lang, content)
		entry := byLang[r.Lang]
		entry.operators = append(entry.operators, ops...)
		entry.operands = append(entry.operands, operands...)
		byLang[r.Lang] = entry
		allOps = append(allOps, ops...)
		allOperands = append(allOperands, operands...)
	}

	if len(allOps) == 0 && len(allOperands) == 0 {
		return nil, nil
	}

	langs := sortedKeysFromStruct(byLang)
	rowsOut := make([]tokmd.HalsteadLangRow, 0, len(langs))
	for _, lang := range langs {
		entry := byLang[lang]
		rowsOut = append(rowsOut, tokmd.HalsteadLangRow{
			Lang: lang, Metrics: buildHalsteadMetrics(entry.operators, entry.operands),
		})
	}

	return &tokmd.HalsteadReport{
		Overall: buildHalsteadMetrics(allOps, allOperands),
		ByLang:  rowsOut,
	}, nil
}

func sortedKeysFromStruct(m map[string]struct {
	operators []string
	operands  []string
}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
