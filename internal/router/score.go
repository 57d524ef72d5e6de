package router

import (
	"fmt"
	"math"

	"github.com/Vovarama1992/meta-ai-router/internal/ai"
	"github.com/Vovarama1992/meta-ai-router/internal/classify"
)

const (
	weightCategory = 0.6
	weightKeywords = 0.2
	weightQuality  = 0.2
)

// Score is a pure function of the descriptor and the classification.
func Score(d ai.Descriptor, c classify.Classification) float64 {
	return weightCategory*CategoryMatch(d, c) +
		weightKeywords*KeywordOverlap(d, c) +
		weightQuality*d.Quality
}

func CategoryMatch(d ai.Descriptor, c classify.Classification) float64 {
	if d.HasStrength(c.Category) {
		return 1
	}
	return 0
}

// KeywordOverlap is |keywords ∩ strengthKeywords(d)| / |keywords|, or 0 when
// the classification carries no keywords.
func KeywordOverlap(d ai.Descriptor, c classify.Classification) float64 {
	if len(c.Keywords) == 0 {
		return 0
	}
	known := strengthKeywords(d)
	hits := 0
	for _, k := range c.Keywords {
		if known[k] {
			hits++
		}
	}
	return float64(hits) / float64(len(c.Keywords))
}

// strengthKeywords maps a provider's strengths to the union of their
// classifier vocabularies.
func strengthKeywords(d ai.Descriptor) map[string]bool {
	out := make(map[string]bool)
	for _, s := range d.Strengths {
		for _, w := range classify.Vocabulary(s) {
			out[w] = true
		}
	}
	return out
}

// scoreKey quantizes a score so that floating point noise below 1e-9 counts
// as a tie.
func scoreKey(s float64) int64 {
	return int64(math.Round(s * 1e9))
}

func explain(d ai.Descriptor, c classify.Classification, score float64) string {
	match := "no category match"
	if CategoryMatch(d, c) == 1 {
		match = "strong in " + string(c.Category)
	}
	return fmt.Sprintf("%s: %s, keyword overlap %.2f, quality %.2f -> score %.3f",
		d.ID, match, KeywordOverlap(d, c), d.Quality, score)
}
