package ai

import "github.com/Vovarama1992/meta-ai-router/internal/classify"

// DefaultSpecs is the built-in provider table, in registration order. API
// keys are left empty; the config layer fills them from APIKeyEnv.
func DefaultSpecs() []Spec {
	return []Spec{
		{
			Kind:        KindGemini,
			ID:          "gemini",
			DisplayName: "Gemini (Google)",
			Strengths:   []classify.Category{classify.CategoryLanguage, classify.CategoryGeneral},
			Quality:     0.90,
			APIKeyEnv:   "GEMINI_API_KEY",
		},
		{
			Kind:        KindOpenAI,
			ID:          "openai",
			DisplayName: "OpenAI",
			Strengths:   []classify.Category{classify.CategoryGeneral, classify.CategoryMath, classify.CategoryLanguage},
			Quality:     0.93,
			APIKeyEnv:   "OPENAI_API_KEY",
		},
		{
			Kind:        KindClaude,
			ID:          "claude",
			DisplayName: "Claude (Anthropic)",
			Strengths:   []classify.Category{classify.CategoryGeneral, classify.CategoryLanguage},
			Quality:     0.92,
			APIKeyEnv:   "CLAUDE_API_KEY",
		},
		{
			Kind:        KindOpenRouter,
			ID:          "openrouter",
			DisplayName: "OpenRouter",
			Strengths:   []classify.Category{classify.CategoryGeneral},
			Quality:     0.85,
			APIKeyEnv:   "OPENROUTER_API_KEY",
		},
		{
			Kind:        KindLocalEcho,
			ID:          "local_echo",
			DisplayName: "Local Echo (dev)",
			Strengths:   []classify.Category{classify.CategoryMath},
			Quality:     0.5,
		},
	}
}
