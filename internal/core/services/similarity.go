package services

import (
	"math"
	"strings"

	"github.com/pmezard/go-difflib/difflib"

	"github.com/custodia-labs/docwatch/internal/core/domain"
)

// Impact weights per change type.
var typeWeights = map[domain.ChangeType]float64{
	domain.ChangeRemoved:  1.0,
	domain.ChangeAdded:    0.9,
	domain.ChangeModified: 0.85,
}

// Impact weights per heading level. Index is the level.
var levelWeights = [domain.MaxSectionLevel + 1]float64{0.8, 1.0, 0.9, 0.8, 0.7, 0.65, 0.6}

// tokens splits text into lower-cased word tokens.
func tokens(text string) []string {
	return strings.Fields(strings.ToLower(text))
}

// dice returns the Dice coefficient of the unigram and bigram multisets
// of a and b. Two empty inputs score 0.
func dice(a, b string) float64 {
	ga, gb := grams(tokens(a)), grams(tokens(b))
	total := 0
	for _, n := range ga {
		total += n
	}
	for _, n := range gb {
		total += n
	}
	if total == 0 {
		return 0
	}
	shared := 0
	for g, n := range ga {
		shared += min(n, gb[g])
	}
	return 2 * float64(shared) / float64(total)
}

func grams(toks []string) map[string]int {
	out := make(map[string]int, len(toks)*2)
	for i, t := range toks {
		out[t]++
		if i > 0 {
			out[toks[i-1]+" "+t]++
		}
	}
	return out
}

// tokenDelta is the number of tokens touched by the edit between a and b
// divided by the longer token count, in [0,1]. A replaced run counts its
// longer side. The shared prefix and suffix are trimmed before matching.
func tokenDelta(a, b string) float64 {
	ta, tb := tokens(a), tokens(b)
	longest := max(len(ta), len(tb))
	if longest == 0 {
		return 0
	}

	pre := 0
	for pre < len(ta) && pre < len(tb) && ta[pre] == tb[pre] {
		pre++
	}
	suf := 0
	for suf < len(ta)-pre && suf < len(tb)-pre && ta[len(ta)-1-suf] == tb[len(tb)-1-suf] {
		suf++
	}
	ta, tb = ta[pre:len(ta)-suf], tb[pre:len(tb)-suf]

	edited := 0
	switch {
	case len(ta) == 0 || len(tb) == 0:
		edited = max(len(ta), len(tb))
	default:
		for _, op := range difflib.NewMatcher(ta, tb).GetOpCodes() {
			if op.Tag != 'e' {
				edited += max(op.I2-op.I1, op.J2-op.J1)
			}
		}
	}
	return float64(edited) / float64(longest)
}

// impactScore combines change type, heading level and edit magnitude.
// For a fixed type and level it is non-decreasing in delta.
func impactScore(t domain.ChangeType, level int, delta float64) float64 {
	level = max(0, min(level, domain.MaxSectionLevel))
	delta = math.Max(0, math.Min(delta, 1))
	return roundScore(typeWeights[t] * levelWeights[level] * (0.25 + 0.75*delta))
}

func roundScore(v float64) float64 {
	return math.Round(v*10000) / 10000
}
