// Package llm provides the text generation interface consumed by the
// retrieval engine, plus the Gemini reference adapter.
package llm

import (
	"context"
	"time"
)

// Result is a structured response from a generation call.
type Result struct {
	Text       string
	TokensUsed int32
	Latency    time.Duration
	Model      string
}

// Generator produces text from a prompt. Any backend implementing this
// contract is interchangeable; selection is a construction-time choice.
//
// Implementations must be safe for concurrent use.
type Generator interface {
	Generate(ctx context.Context, prompt string) (Result, error)
	ModelName() string
}
