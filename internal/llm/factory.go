package llm

import (
	"context"

	"go.uber.org/zap"
)

// ModeMock selects the mock gateway instead of the real Gemini client.
const ModeMock = "MOCK"

// NewGateway creates a gateway for the given mode. ModeMock returns a
// MockClient; anything else returns a Gemini-backed client.
func NewGateway(ctx context.Context, mode string, cfg GeminiConfig, logger *zap.Logger) (Gateway, error) {
	if mode == ModeMock {
		logger.Info("using mock LLM gateway")
		return NewMockClient(), nil
	}
	return NewGeminiClient(ctx, cfg, logger)
}
