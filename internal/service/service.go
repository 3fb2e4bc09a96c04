// Package service implements the roadmap pipeline and chat session logic.
package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/planweave/roadmapd/internal/config"
	"github.com/planweave/roadmapd/internal/domain"
	"github.com/planweave/roadmapd/internal/llm"
	"github.com/planweave/roadmapd/internal/policy"
	"github.com/planweave/roadmapd/internal/store"
)

// ErrMissingIdea is returned when a roadmap is requested without an idea
// description. No state is created in that case.
var ErrMissingIdea = errors.New("missing idea description")

// Service coordinates the session store, model gateway and intent policy.
type Service struct {
	store   store.Store
	gateway llm.Gateway
	intents *policy.Engine
	config  *config.Config
	logger  *zap.Logger
}

// New creates a new Service.
func New(st store.Store, gateway llm.Gateway, intents *policy.Engine, cfg *config.Config, logger *zap.Logger) *Service {
	return &Service{
		store:   st,
		gateway: gateway,
		intents: intents,
		config:  cfg,
		logger:  logger,
	}
}

// GetConversation returns a stored conversation by identifier.
func (s *Service) GetConversation(ctx context.Context, id string) (*domain.Conversation, error) {
	conv, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get conversation: %w", err)
	}
	return conv, nil
}
