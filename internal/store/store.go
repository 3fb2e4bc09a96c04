// Package store defines the session storage interface and implementations.
package store

import (
	"context"
	"errors"

	"github.com/planweave/roadmapd/internal/domain"
)

// ErrNotFound is returned when no conversation exists for an identifier.
var ErrNotFound = errors.New("conversation not found")

// Store is the durable mapping from conversation identifier to conversation
// state. Every mutating operation completes a durable write before returning.
type Store interface {
	// Create allocates a new identifier and persists the initial record.
	Create(ctx context.Context, idea domain.Idea) (*domain.Conversation, error)

	// GetOrCreate returns the conversation for id, creating it (with the
	// given idea) when absent. An empty id allocates a fresh identifier.
	GetOrCreate(ctx context.Context, id string, idea domain.Idea) (*domain.Conversation, error)

	// Get looks up a conversation by identifier.
	Get(ctx context.Context, id string) (*domain.Conversation, error)

	// SetIdea replaces the stored idea description.
	SetIdea(ctx context.Context, id string, idea domain.Idea) (*domain.Conversation, error)

	// UpdateRoadmap merges the non-nil patch fields into the stored roadmap.
	UpdateRoadmap(ctx context.Context, id string, patch domain.RoadmapPatch) (*domain.Conversation, error)

	// AppendTurn appends one turn to the conversation history.
	AppendTurn(ctx context.Context, id string, turn domain.Turn) (*domain.Conversation, error)

	// Transact runs fn against a transaction-scoped store. If fn returns an
	// error every write made through that store is rolled back.
	Transact(ctx context.Context, fn func(Store) error) error

	// Close releases the backing medium.
	Close() error
}
