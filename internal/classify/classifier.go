package classify

import (
	"regexp"
	"strings"
)

const (
	ruleLanguageRules = "language-rules"
	ruleLanguage      = "language"
	ruleMath          = "math"
	ruleWeather       = "weather"
	ruleNews          = "news"
	ruleGreeting      = "greeting"
	ruleDefault       = "default"
)

// DefaultConfidence is the confidence of the general fallback.
const DefaultConfidence = 0.55

// rule is one entry of the ordered rule list. The first rule whose match
// returns true decides the category; its confidence is a fixed constant.
type rule struct {
	name       string
	category   Category
	confidence float64
	match      func(normalized string) bool
}

var languageRulePatterns = compileAll(
	`english grammar rules?`, `grammar rules?`, `give me grammar rules`, `list grammar rules`,
	`what is the grammar rule`, `define grammar`, `punctuation`, `spelling rules?`, `tell me.*grammar`,
	`types of.*tense`, `when to use`, `how to use`, `language learning`, `learn english`, `learn grammar`,
)

var languagePattern = regexp.MustCompile(
	`\b(?:` + alternation(languageVocabulary) + `)\b` +
		`|how do you say .+ in .+` +
		`|what does .+ mean` +
		`|correct the sentence|fix the sentence|is this sentence correct|is this correct|grammar|spell|misspelled` +
		`|capitalization|is this grammatical|correct my sentence|correct my grammar|english grammar` +
		`|how to pronounce` +
		`|translate .+ to .+` +
		`|definition of .+`,
)

var mathPattern = regexp.MustCompile(
	`\d+\s*[-+*/]\s*\d+` +
		`|\b(?:` + alternation(mathVocabulary) + `)\b` +
		`|\b[xytz](?:\^\d+)?\b` +
		`|\bpi\b|\btheta\b|\balpha\b|\bbeta\b` +
		`|\bintegral\b|\bdifferentiate\b|\bfind\b.*\bderivative\b` +
		`|\bsolve\b.*\bfor\b` +
		`|\bformula\b` +
		`|\bfactorize\b`,
)

var contraction = regexp.MustCompile(`'[a-z]+`)

var greetingPattern = regexp.MustCompile(`^(?:` + alternation(greetingVocabulary) + `)(?:\W|$)`)

var rules = []rule{
	{
		name:       ruleLanguageRules,
		category:   CategoryLanguage,
		confidence: 0.99,
		match: func(s string) bool {
			for _, re := range languageRulePatterns {
				if re.MatchString(s) {
					return true
				}
			}
			return false
		},
	},
	{name: ruleLanguage, category: CategoryLanguage, confidence: 0.98, match: languagePattern.MatchString},
	{
		name:       ruleMath,
		category:   CategoryMath,
		confidence: 0.99,
		match: func(s string) bool {
			// "don't" must not read as the variable t.
			return mathPattern.MatchString(contraction.ReplaceAllString(s, ""))
		},
	},
	{
		name:       ruleWeather,
		category:   CategoryWeather,
		confidence: 0.96,
		match: func(s string) bool {
			return strings.Contains(s, "weather") || strings.Contains(s, "forecast")
		},
	},
	{
		name:       ruleNews,
		category:   CategoryNews,
		confidence: 0.96,
		match: func(s string) bool {
			return strings.Contains(s, "news") || strings.Contains(s, "headlines")
		},
	},
	{name: ruleGreeting, category: CategoryGreeting, confidence: 0.95, match: greetingPattern.MatchString},
}

// Normalize lowercases the prompt and collapses all whitespace runs to a
// single space.
func Normalize(prompt string) string {
	return strings.Join(strings.Fields(strings.ToLower(prompt)), " ")
}

// Classify evaluates the rules in priority order (language, math, weather,
// news, greeting) and returns the first match. A prompt no rule matches is
// general with DefaultConfidence and no keywords. Classify never fails.
func Classify(prompt string) Classification {
	s := Normalize(prompt)

	for _, r := range rules {
		if r.match(s) {
			return Classification{
				Category:   r.category,
				Confidence: r.confidence,
				Keywords:   extractKeywords(r.category, s),
				Rule:       r.name,
			}
		}
	}

	return Classification{
		Category:   CategoryGeneral,
		Confidence: DefaultConfidence,
		Keywords:   []string{},
		Rule:       ruleDefault,
	}
}

func alternation(words []string) string {
	quoted := make([]string, len(words))
	for i, w := range words {
		quoted[i] = regexp.QuoteMeta(w)
	}
	return strings.Join(quoted, "|")
}

func compileAll(patterns ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(patterns))
	for i, p := range patterns {
		out[i] = regexp.MustCompile(p)
	}
	return out
}
