package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/planweave/roadmapd/internal/domain"
)

// GeminiConfig configures the Gemini-backed gateway.
type GeminiConfig struct {
	APIKey  string
	Model   string
	Timeout time.Duration
}

// GeminiClient implements Gateway against the Gemini API with Google Search
// grounding enabled.
type GeminiClient struct {
	client  *genai.Client
	model   string
	timeout time.Duration
	logger  *zap.Logger
}

// NewGeminiClient creates a new Gemini gateway.
func NewGeminiClient(ctx context.Context, cfg GeminiConfig, logger *zap.Logger) (*GeminiClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	model := cfg.Model
	if model == "" {
		model = "gemini-1.5-pro-002"
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	return &GeminiClient{
		client:  client,
		model:   model,
		timeout: cfg.Timeout,
		logger:  logger,
	}, nil
}

func (c *GeminiClient) GenerateOnce(ctx context.Context, prompt string) (*Result, error) {
	return c.generate(ctx, prompt, nil)
}

func (c *GeminiClient) Converse(ctx context.Context, prompt string, history []domain.Turn) (*Result, error) {
	return c.generate(ctx, prompt, history)
}

func (c *GeminiClient) generate(ctx context.Context, prompt string, history []domain.Turn) (*Result, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	contents := historyContents(history)
	contents = append(contents, genai.NewContentFromText(prompt, genai.RoleUser))

	start := time.Now()
	resp, err := c.client.Models.GenerateContent(ctx, c.model, contents, c.generateConfig())
	if err != nil {
		c.logger.Error("gemini call failed",
			zap.String("model", c.model), zap.Duration("elapsed", time.Since(start)), zap.Error(err))
		return nil, fmt.Errorf("gemini generate content: %w", err)
	}

	text := resp.Text()
	if text == "" {
		return nil, errors.New("gemini returned an empty response")
	}
	c.logger.Debug("gemini call completed",
		zap.String("model", c.model),
		zap.Int("history_turns", len(history)),
		zap.Duration("elapsed", time.Since(start)))

	return &Result{Text: text, Grounding: extractGrounding(resp)}, nil
}

func (c *GeminiClient) generateConfig() *genai.GenerateContentConfig {
	return &genai.GenerateContentConfig{
		Temperature:     genai.Ptr[float32](0.7),
		TopK:            genai.Ptr[float32](1),
		TopP:            genai.Ptr[float32](1),
		MaxOutputTokens: 2048,
		Tools: []*genai.Tool{
			{GoogleSearch: &genai.GoogleSearch{}},
		},
	}
}

// historyContents translates accumulated turns into the genai content shape.
func historyContents(history []domain.Turn) []*genai.Content {
	contents := make([]*genai.Content, 0, len(history)+1)
	for _, t := range history {
		role := genai.Role(genai.RoleUser)
		if t.Role == domain.RoleModel {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(t.Content, role))
	}
	return contents
}

func extractGrounding(resp *genai.GenerateContentResponse) json.RawMessage {
	if len(resp.Candidates) == 0 || resp.Candidates[0].GroundingMetadata == nil {
		return nil
	}
	b, err := json.Marshal(resp.Candidates[0].GroundingMetadata)
	if err != nil {
		return nil
	}
	return b
}
