// Package classify maps free-text prompts to a fixed set of categories using
// ordered, explainable rules. There is no model involved: the confidence of a
// result is a property of the rule that fired.
package classify

import (
	"fmt"
	"strings"
)

type Category string

const (
	CategoryGeneral  Category = "general"
	CategoryLanguage Category = "language"
	CategoryMath     Category = "math"
	CategoryWeather  Category = "weather"
	CategoryNews     Category = "news"
	CategoryGreeting Category = "greeting"
)

// Categories lists every category in declaration order.
var Categories = []Category{
	CategoryGeneral,
	CategoryLanguage,
	CategoryMath,
	CategoryWeather,
	CategoryNews,
	CategoryGreeting,
}

func (c Category) String() string { return string(c) }

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	for _, k := range Categories {
		if c == k {
			return true
		}
	}
	return false
}

// ParseCategory accepts both the short form ("math") and the legacy
// "<name>_prompt" form used by older clients.
func ParseCategory(s string) (Category, error) {
	c := Category(strings.TrimSuffix(strings.ToLower(strings.TrimSpace(s)), "_prompt"))
	if !c.Valid() {
		return "", fmt.Errorf("unknown category %q", s)
	}
	return c, nil
}

// Classification is the result of Classify. Keywords is never shared with
// the classifier's vocabulary tables.
type Classification struct {
	Category   Category `json:"category"`
	Confidence float64  `json:"confidence"`
	Keywords   []string `json:"keywords"`
	Rule       string   `json:"rule"`
}

// IsDefault reports whether no rule matched and the general fallback was used.
func (c Classification) IsDefault() bool {
	return c.Rule == ruleDefault
}

// Explain renders a one-line, human readable reason for c.
func Explain(c Classification) string {
	var reason string
	switch c.Rule {
	case ruleLanguageRules:
		reason = "prompt asks for language rules or grammar checking"
	case ruleLanguage:
		reason = "prompt contains language, grammar or translation patterns"
	case ruleMath:
		reason = "prompt contains arithmetic, variables or math vocabulary"
	case ruleWeather:
		reason = "prompt mentions the weather"
	case ruleNews:
		reason = "prompt mentions the news"
	case ruleGreeting:
		reason = "prompt opens with a greeting"
	default:
		return "Classified as General because the prompt doesn't match math, language, weather, news, or greeting patterns."
	}

	if len(c.Keywords) > 0 {
		reason += " (keywords: " + strings.Join(c.Keywords, ", ") + ")"
	}
	return fmt.Sprintf("Classified as %s because %s.", title(c.Category), reason)
}

func title(c Category) string {
	s := string(c)
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
