package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Vovarama1992/meta-ai-router/internal/classify"
)

// Descriptor: what the router knows about a provider. Immutable after the
// registry is built.
type Descriptor struct {
	ID          string              `json:"id"`
	DisplayName string              `json:"name"`
	Strengths   []classify.Category `json:"strengths"`
	Quality     float64             `json:"quality"`
}

// HasStrength reports whether c is one of the declared strengths.
func (d Descriptor) HasStrength(c classify.Category) bool {
	for _, s := range d.Strengths {
		if s == c {
			return true
		}
	}
	return false
}

func (d Descriptor) clone() Descriptor {
	d.Strengths = append([]classify.Category(nil), d.Strengths...)
	return d
}

// Outcome: result of a single provider call. Not retained past message
// construction.
type Outcome struct {
	Success  bool
	Response string
	Err      error
}

func Succeeded(response string) Outcome {
	return Outcome{Success: true, Response: response}
}

func Failed(err error) Outcome {
	if err == nil {
		err = &CallError{Message: "unknown error"}
	}
	return Outcome{Err: err}
}

// ErrorMessage returns the failure text, or "" for a successful outcome.
func (o Outcome) ErrorMessage() string {
	if o.Success || o.Err == nil {
		return ""
	}
	return o.Err.Error()
}

// ErrorSentinel marks a failure inside a text stream.
const ErrorSentinel = "[ERROR]"

// Chunk is one piece of a streamed response. A chunk with Err set, or whose
// text contains ErrorSentinel, ends the stream. A sentinel split across
// chunks is only visible to a SentinelScanner.
type Chunk struct {
	Text string
	Err  error
}

func (c Chunk) Terminal() bool {
	return c.Err != nil || strings.Contains(c.Text, ErrorSentinel)
}

// CallFunc is the capability a KindCustom provider wraps.
type CallFunc func(ctx context.Context, prompt string) (string, error)

var (
	// ErrNotConfigured matches every *NotConfiguredError.
	ErrNotConfigured = errors.New("provider not configured")
	// ErrCallFailed matches every *CallError.
	ErrCallFailed = errors.New("provider call failed")
)

// NotConfiguredError: the provider is registered but its credential is
// missing, so every call fails with this.
type NotConfiguredError struct {
	Provider string
	EnvVar   string
}

func (e *NotConfiguredError) Error() string {
	if e.EnvVar == "" {
		return fmt.Sprintf("%s API key not configured.", e.Provider)
	}
	return fmt.Sprintf("%s API key not configured. Set %s.", e.Provider, e.EnvVar)
}

func (e *NotConfiguredError) Is(target error) bool { return target == ErrNotConfigured }

// CallError: network, timeout or remote failure. Message carries the remote
// message where one was available.
type CallError struct {
	Provider string
	Message  string
	Err      error
}

func (e *CallError) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Provider == "" {
		return msg
	}
	return e.Provider + " error: " + msg
}

func (e *CallError) Unwrap() error { return e.Err }

func (e *CallError) Is(target error) bool { return target == ErrCallFailed }
