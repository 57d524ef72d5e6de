package ai

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
)

var arithmetic = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*([-+*/])\s*(\d+(?:\.\d+)?)`)

// localEcho answers simple "a op b" arithmetic without any network access, so
// the registry always has at least one working provider.
type localEcho struct{}

func (localEcho) complete(_ context.Context, prompt string) (string, error) {
	m := arithmetic.FindStringSubmatch(prompt)
	if m == nil {
		return fmt.Sprintf(
			"I processed your request: '%s...' but I'm limited to math calculations. For other queries, please use OpenAI or Gemini.",
			truncate(prompt, 100),
		), nil
	}

	a, _ := strconv.ParseFloat(m[1], 64)
	b, _ := strconv.ParseFloat(m[3], 64)
	expr := m[1] + m[2] + m[3]

	var v float64
	switch m[2] {
	case "+":
		v = a + b
	case "-":
		v = a - b
	case "*":
		v = a * b
	case "/":
		if b == 0 {
			return "", &CallError{Message: "Math evaluation failed: division by zero"}
		}
		v = a / b
	}

	return fmt.Sprintf("The answer to %s is **%s**.", expr, strconv.FormatFloat(v, 'f', -1, 64)), nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
