// Package novelty implements MadSpark's novelty filter (spec.md §4.E):
// token-set Jaccard similarity over case-folded, punctuation-stripped text,
// used both to reject near-duplicate generated ideas and to gate whether an
// improved idea counts as a "meaningful improvement".
package novelty

import (
	"strings"
	"unicode"
)

// Filter rejects texts whose similarity to an earlier-accepted text exceeds
// Threshold. Earlier candidates always win ties — ordering is deterministic.
type Filter struct {
	Threshold float64
}

// New builds a Filter at the given similarity threshold.
func New(threshold float64) *Filter {
	return &Filter{Threshold: threshold}
}

// Dedup walks texts in order, keeping indices whose Jaccard similarity to
// every previously kept text is <= Threshold. Returns the kept and rejected
// index sets.
func (f *Filter) Dedup(texts []string) (kept, rejected []int) {
	var acceptedSets []map[string]struct{}

	for i, text := range texts {
		set := tokenSet(text)

		isDuplicate := false
		for _, prior := range acceptedSets {
			if jaccard(set, prior) > f.Threshold {
				isDuplicate = true
				break
			}
		}

		if isDuplicate {
			rejected = append(rejected, i)
			continue
		}
		kept = append(kept, i)
		acceptedSets = append(acceptedSets, set)
	}

	return kept, rejected
}

// IsMeaningfulImprovement reports whether an improved idea counts as a
// "meaningful improvement" over the original (spec.md §8 invariant 9,
// Glossary): the score must rise by at least similarityThreshold's paired
// scoreDeltaThreshold AND the improved text must differ enough from the
// original (similarity <= similarityThreshold). Both conditions are
// required — a higher score on near-identical text, or very different text
// with no score gain, does not count.
func (f *Filter) IsMeaningfulImprovement(original, improved string, scoreDelta, similarityThreshold, scoreDeltaThreshold float64) bool {
	similarity := jaccard(tokenSet(original), tokenSet(improved))
	return scoreDelta >= scoreDeltaThreshold && similarity <= similarityThreshold
}

// Similarity returns the token-set Jaccard similarity between two texts.
func Similarity(a, b string) float64 {
	return jaccard(tokenSet(a), tokenSet(b))
}

func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1.0
	}

	intersection := 0
	for w := range a {
		if _, ok := b[w]; ok {
			intersection++
		}
	}

	union := len(a) + len(b) - intersection
	if union == 0 {
		return 0.0
	}
	return float64(intersection) / float64(union)
}

// tokenSet case-folds, replaces punctuation with spaces (so "solar-powered"
// yields "solar" and "powered"), and splits on whitespace.
func tokenSet(text string) map[string]struct{} {
	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsPunct(r) {
			return ' '
		}
		return r
	}, strings.ToLower(text))

	words := strings.Fields(cleaned)
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}
