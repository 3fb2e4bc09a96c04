package llm

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/planweave/roadmapd/internal/domain"
)

// MockClient is a deterministic Gateway implementation for local development
// and tests. Responses are keyed on prompt content so the roadmap pipeline
// produces distinct, recognizable text per phase.
type MockClient struct{}

// NewMockClient creates a new mock gateway.
func NewMockClient() *MockClient {
	return &MockClient{}
}

func (m *MockClient) GenerateOnce(ctx context.Context, prompt string) (*Result, error) {
	return m.respond(prompt)
}

func (m *MockClient) Converse(ctx context.Context, prompt string, history []domain.Turn) (*Result, error) {
	return m.respond(prompt)
}

func (m *MockClient) respond(prompt string) (*Result, error) {
	p := strings.ToLower(prompt)
	switch {
	case strings.Contains(p, "ask 2-3 concise questions"):
		return &Result{Text: "1. Who is the primary target user?\n" +
			"2. What is the single core workflow the MVP must support?\n" +
			"3. How will you reach your first hundred users?"}, nil
	case strings.Contains(p, "market overview"):
		return &Result{
			Text: "The market is growing steadily with a handful of established " +
				"competitors and room for a focused niche entrant.",
			Grounding: json.RawMessage(`{"webSearchQueries":["market size"],"groundingChunks":[{"web":{"uri":"https://example.com/market","title":"Market report"}}]}`),
		}, nil
	case strings.Contains(p, "actionable tasks"):
		return &Result{Text: "- Design onboarding screens (Low)\n" +
			"- Implement profile storage (Medium)\n" +
			"- Build verification flow (High)"}, nil
	case strings.Contains(p, "epics"):
		return &Result{Text: "Epic 1: Onboarding and profiles.\n" +
			"Epic 2: Core marketplace flow.\n" +
			"Epic 3: Payments and trust."}, nil
	default:
		return &Result{Text: "Mock response to: " + prompt}, nil
	}
}
