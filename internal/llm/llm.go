// Package llm provides the gateway to the generative-text capability.
package llm

import (
	"context"
	"encoding/json"

	"github.com/planweave/roadmapd/internal/domain"
)

// Result is one model response. Grounding carries citation/source metadata
// when web-search-backed generation was used, nil otherwise.
type Result struct {
	Text      string          `json:"text"`
	Grounding json.RawMessage `json:"groundingMetadata,omitempty"`
}

// Gateway defines the interface for model generation operations. A failed
// call returns an error; callers never have to inspect response text to
// detect failure.
type Gateway interface {
	// GenerateOnce sends a single-turn request with no history.
	GenerateOnce(ctx context.Context, prompt string) (*Result, error)

	// Converse sends prompt as the next user message after the given turns.
	Converse(ctx context.Context, prompt string, history []domain.Turn) (*Result, error)
}

// Ensure implementations satisfy the interface.
var (
	_ Gateway = (*GeminiClient)(nil)
	_ Gateway = (*MockClient)(nil)
)
