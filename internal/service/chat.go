package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/planweave/roadmapd/internal/domain"
	"github.com/planweave/roadmapd/internal/policy"
)

// ErrMissingMessage is returned for a chat request with no message text.
var ErrMissingMessage = errors.New("message is required")

// ReplyType tags a chat response as a roadmap result or an ordinary reply.
type ReplyType string

const (
	ReplyRoadmap ReplyType = "roadmap"
	ReplyChat    ReplyType = "chat"
)

// ChatReply is the outcome of one inbound message.
type ChatReply struct {
	Type      ReplyType
	SessionID string
	// Text is set for chat replies, Roadmap for roadmap replies.
	Text      string
	Roadmap   *RoadmapResult
	Grounding json.RawMessage
}

var (
	triggerKeywords = regexp.MustCompile(`(?i)generate|create|build|roadmap`)
	whitespaceRuns  = regexp.MustCompile(`\s+`)
)

// StripTriggerKeywords derives an idea description from a roadmap request by
// removing the trigger keywords and collapsing the whitespace they leave.
func StripTriggerKeywords(message string) string {
	stripped := triggerKeywords.ReplaceAllString(message, "")
	return strings.TrimSpace(whitespaceRuns.ReplaceAllString(stripped, " "))
}

// Chat handles one inbound message: roadmap requests run the pipeline, any
// other message is an ordinary model turn. Both paths update the session
// transcript before responding. An empty sessionID starts a new conversation.
func (s *Service) Chat(ctx context.Context, sessionID, message string) (*ChatReply, error) {
	if strings.TrimSpace(message) == "" {
		return nil, ErrMissingMessage
	}

	intent, err := s.intents.Classify(ctx, message)
	if err != nil {
		return nil, fmt.Errorf("failed to classify message: %w", err)
	}

	if intent == policy.IntentRoadmap {
		return s.chatRoadmap(ctx, sessionID, message)
	}
	return s.chatTurn(ctx, sessionID, message)
}

func (s *Service) chatRoadmap(ctx context.Context, sessionID, message string) (*ChatReply, error) {
	stripped := StripTriggerKeywords(message)
	if stripped == "" {
		return nil, ErrMissingIdea
	}
	idea := domain.IdeaFromText(stripped)

	conv, err := s.store.GetOrCreate(ctx, sessionID, idea)
	if err != nil {
		return nil, err
	}
	if conv.Roadmap.Complete() {
		return nil, ErrRoadmapComplete
	}
	// A repeated request in an existing session replaces the stored idea.
	if _, err := s.store.SetIdea(ctx, conv.ID, idea); err != nil {
		return nil, err
	}

	result, err := s.GenerateRoadmap(ctx, conv.ID)
	if err != nil {
		return nil, err
	}

	// One synthesized turn pair records the request and the full roadmap in
	// the transcript, so follow-up chat has the result as context.
	if _, err := s.store.AppendTurn(ctx, conv.ID, domain.Turn{Role: domain.RoleUser, Content: message}); err != nil {
		return nil, err
	}
	if _, err := s.store.AppendTurn(ctx, conv.ID, domain.Turn{Role: domain.RoleModel, Content: FormatRoadmapSummary(result)}); err != nil {
		return nil, err
	}

	s.logger.Info("roadmap generated from chat", zap.String("conversation_id", conv.ID))
	return &ChatReply{Type: ReplyRoadmap, SessionID: conv.ID, Roadmap: result}, nil
}

func (s *Service) chatTurn(ctx context.Context, sessionID, message string) (*ChatReply, error) {
	conv, err := s.store.GetOrCreate(ctx, sessionID, domain.Idea{})
	if err != nil {
		return nil, err
	}
	priorHistory := conv.History

	if _, err := s.store.AppendTurn(ctx, conv.ID, domain.Turn{Role: domain.RoleUser, Content: message}); err != nil {
		return nil, err
	}

	res, err := s.gateway.Converse(ctx, message, priorHistory)
	if err != nil {
		return nil, fmt.Errorf("chat turn failed: %w", err)
	}

	if _, err := s.store.AppendTurn(ctx, conv.ID, domain.Turn{Role: domain.RoleModel, Content: res.Text}); err != nil {
		return nil, err
	}

	return &ChatReply{
		Type:      ReplyChat,
		SessionID: conv.ID,
		Text:      res.Text,
		Grounding: res.Grounding,
	}, nil
}

// FormatRoadmapSummary renders a roadmap result as a single transcript entry.
func FormatRoadmapSummary(r *RoadmapResult) string {
	return "Here's your roadmap:\n\n" +
		"Initial Questions:\n" + r.InitialClarificationQuestions + "\n\n" +
		"Market Overview:\n" + r.MarketOverview + "\n\n" +
		"MVP Epics:\n" + r.MVPEpics + "\n\n" +
		"Task Breakdown:\n" + r.TaskBreakdown
}
