package llm

import (
	"context"
	"encoding/json"
	"regexp"
	"strings"
)

// Request is a single completion request.
type Request struct {
	System string
	Prompt string

	// JSON asks for a JSON object reply. Schema, when set, constrains the
	// reply further on backends that support structured output.
	JSON   bool
	Schema json.RawMessage

	// Temperature is passed through when non-nil; nil uses the backend default.
	Temperature *float64
	MaxTokens   int
}

// Generator is a text completion backend.
type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
	Model() string
}

// Temp returns a pointer for Request.Temperature.
func Temp(v float64) *float64 {
	return &v
}

var codeBlockRe = regexp.MustCompile("(?s)^```(?:json)?\\s*(.*?)\\s*```$")

// StripCodeBlock removes a surrounding ``` or ```json fence.
func StripCodeBlock(s string) string {
	s = strings.TrimSpace(s)
	if m := codeBlockRe.FindStringSubmatch(s); len(m) > 1 {
		return m[1]
	}
	return s
}
