// Package policy classifies inbound messages using an OPA policy.
package policy

import (
	"context"
	"fmt"

	"github.com/open-policy-agent/opa/rego"
)

// Intent is the routing decision for an inbound message.
type Intent string

const (
	IntentRoadmap Intent = "roadmap"
	IntentChat    Intent = "chat"
)

// Engine is the OPA intent engine.
type Engine struct {
	query rego.PreparedEvalQuery
}

// NewEngine creates a new intent engine with the given policy content.
func NewEngine(ctx context.Context, policyContent string) (*Engine, error) {
	r := rego.New(
		rego.Query("data.intent.decision"),
		rego.Module("intent.rego", policyContent),
	)

	query, err := r.PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare rego: %w", err)
	}
	return &Engine{query: query}, nil
}

// Classify evaluates the intent policy for one message. An undecided policy
// defaults to chat.
func (e *Engine) Classify(ctx context.Context, message string) (Intent, error) {
	results, err := e.query.Eval(ctx, rego.EvalInput(map[string]any{"message": message}))
	if err != nil {
		return "", fmt.Errorf("failed to evaluate intent policy: %w", err)
	}
	if len(results) == 0 || len(results[0].Expressions) == 0 {
		return IntentChat, nil
	}
	if s, ok := results[0].Expressions[0].Value.(string); ok && s == string(IntentRoadmap) {
		return IntentRoadmap, nil
	}
	return IntentChat, nil
}

// DefaultPolicy routes any message containing a roadmap trigger phrase
// (case-insensitive) to the roadmap pipeline.
const DefaultPolicy = `
package intent

default decision = "chat"

decision = "roadmap" {
	contains(lower(input.message), "generate roadmap")
}

decision = "roadmap" {
	contains(lower(input.message), "create roadmap")
}

decision = "roadmap" {
	contains(lower(input.message), "build roadmap")
}
`
