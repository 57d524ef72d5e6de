package classify

import (
	"regexp"
	"strings"
)

var languageVocabulary = []string{
	"synonym", "antonym", "opposite", "translate", "pronounce", "definition", "define", "meaning", "sentence",
	"use in a sentence", "grammar", "past tense", "present tense", "future tense", "conjugate", "adjective", "noun",
	"verb", "preposition", "article", "plural of", "singular of", "idiom", "phrasal verb", "how do you say", "in english",
	"in hindi", "in french", "in spanish", "spelling", "capitalization", "is this sentence correct", "correct my sentence",
	"fix this sentence", "is this correct", "correct the sentence", "is this grammatical", "what's the grammar rule",
	"grammar rules", "give me grammar rules", "english grammar rule", "punctuation", "orthography", "usage", "definition of",
}

var mathVocabulary = []string{
	"integral", "derivative", "solve", "equation", "roots of", "expand", "differentiate", "simplify", "quadratic",
	"calculate", "value of", "area of", "find the", "evaluate", "factor", "sum of", "product of", "matrix", "mean",
	"median", "variance", "probability", "permutation", "combination", "limit", "logarithm", "tan(", "sin(", "cos(",
	"math", "arithmetic", "geometry", "algebra", "calculus",
}

var weatherVocabulary = []string{
	"weather", "forecast", "temperature", "rain", "snow", "wind", "humidity", "sunny", "storm", "climate",
}

var newsVocabulary = []string{
	"news", "headlines", "breaking", "latest", "today", "report", "current events",
}

var greetingVocabulary = []string{
	"hello", "hi", "hey", "greetings", "good morning", "good afternoon", "good evening",
}

// vocabularies holds the fixed keyword set of every category. General has
// none: a general prompt never carries keywords.
var vocabularies = map[Category][]string{
	CategoryLanguage: languageVocabulary,
	CategoryMath:     mathVocabulary,
	CategoryWeather:  weatherVocabulary,
	CategoryNews:     newsVocabulary,
	CategoryGreeting: greetingVocabulary,
}

// Vocabulary returns a copy of the fixed keyword list of c. The same list is
// what keyword extraction scans for and what the router treats as the
// canonical keyword set of a provider strength.
func Vocabulary(c Category) []string {
	v := vocabularies[c]
	out := make([]string, len(v))
	copy(out, v)
	return out
}

// term is a compiled vocabulary entry. Plain words match on word boundaries,
// anything with punctuation ("sin(") matches as a substring.
type term struct {
	text string
	re   *regexp.Regexp
}

func (t term) in(s string) bool {
	if t.re != nil {
		return t.re.MatchString(s)
	}
	return strings.Contains(s, t.text)
}

var plainTerm = regexp.MustCompile(`^[a-z0-9' ]+$`)

func compileTerms(words []string) []term {
	out := make([]term, 0, len(words))
	for _, w := range words {
		t := term{text: w}
		if plainTerm.MatchString(w) {
			t.re = regexp.MustCompile(`\b` + regexp.QuoteMeta(w) + `\b`)
		}
		out = append(out, t)
	}
	return out
}

var compiledVocabularies = func() map[Category][]term {
	m := make(map[Category][]term, len(vocabularies))
	for c, words := range vocabularies {
		m[c] = compileTerms(words)
	}
	return m
}()

// extractKeywords returns the vocabulary terms of c found in the normalized
// prompt, in vocabulary order.
func extractKeywords(c Category, normalized string) []string {
	found := []string{}
	for _, t := range compiledVocabularies[c] {
		if t.in(normalized) {
			found = append(found, t.text)
		}
	}
	return found
}
