package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/planweave/roadmapd/internal/domain"
	"github.com/planweave/roadmapd/internal/llm"
	"github.com/planweave/roadmapd/internal/store"
)

// ErrRoadmapComplete is returned when a roadmap run is requested for a
// conversation whose roadmap is already fully populated. A partial roadmap
// (interrupted run) is re-runnable; a complete one is terminal.
var ErrRoadmapComplete = errors.New("roadmap already generated for this conversation")

// Phase is one step of the four-step roadmap pipeline.
type Phase int

const (
	PhaseClarification Phase = iota + 1
	PhaseMarketOverview
	PhaseEpics
	PhaseTaskBreakdown
)

func (p Phase) String() string {
	switch p {
	case PhaseClarification:
		return "clarification"
	case PhaseMarketOverview:
		return "market overview"
	case PhaseEpics:
		return "epics"
	case PhaseTaskBreakdown:
		return "task breakdown"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// PhaseError reports which pipeline phase failed, whether on the model call
// or on persisting the phase result.
type PhaseError struct {
	Phase Phase
	Err   error
}

func (e *PhaseError) Error() string {
	return fmt.Sprintf("roadmap phase %d (%s) failed: %v", int(e.Phase), e.Phase, e.Err)
}

func (e *PhaseError) Unwrap() error { return e.Err }

// RoadmapResult aggregates the four phase results, the grounding metadata
// gathered along the way and the full phase turn history.
type RoadmapResult struct {
	Idea                            string          `json:"idea"`
	InitialClarificationQuestions   string          `json:"initialClarificationQuestions"`
	MarketOverview                  string          `json:"marketOverview"`
	MarketOverviewGroundingMetadata json.RawMessage `json:"marketOverviewGroundingMetadata,omitempty"`
	MVPEpics                        string          `json:"mvpEpics"`
	TaskBreakdown                   string          `json:"taskBreakdown"`
	ConversationHistory             []domain.Turn   `json:"conversationHistory"`
}

// GenerateRoadmapForIdea validates the idea, creates a fresh conversation and
// runs the pipeline for it. Validation happens before any state is created.
func (s *Service) GenerateRoadmapForIdea(ctx context.Context, idea domain.Idea) (string, *RoadmapResult, error) {
	if idea.IsZero() || idea.Text() == "" {
		return "", nil, ErrMissingIdea
	}
	conv, err := s.store.Create(ctx, idea)
	if err != nil {
		return "", nil, err
	}
	result, err := s.GenerateRoadmap(ctx, conv.ID)
	if err != nil {
		return conv.ID, nil, err
	}
	return conv.ID, result, nil
}

// GenerateRoadmap runs the four-phase pipeline for an existing conversation,
// using its stored idea description. With AtomicPipeline set, all phase
// writes commit together or roll back together; otherwise each phase commits
// as it completes, so a crash mid-run leaves earlier phases durably recorded
// (weaker: partial results may be visible for a run that failed overall).
func (s *Service) GenerateRoadmap(ctx context.Context, conversationID string) (*RoadmapResult, error) {
	conv, err := s.store.Get(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if conv.Roadmap.Complete() {
		return nil, ErrRoadmapComplete
	}
	if conv.Idea.IsZero() {
		return nil, ErrMissingIdea
	}

	if s.config.AtomicPipeline {
		var result *RoadmapResult
		err := s.store.Transact(ctx, func(tx store.Store) error {
			var runErr error
			result, runErr = s.runPipeline(ctx, tx, conv)
			return runErr
		})
		if err != nil {
			return nil, err
		}
		return result, nil
	}
	return s.runPipeline(ctx, s.store, conv)
}

// runPipeline executes the phases strictly in order. After each phase the
// prompt/response pair is appended to the conversation history and the phase
// result is persisted before the next phase starts.
func (s *Service) runPipeline(ctx context.Context, st store.Store, conv *domain.Conversation) (*RoadmapResult, error) {
	idea := conv.Idea.Text()
	s.logger.Info("starting roadmap pipeline",
		zap.String("conversation_id", conv.ID), zap.Bool("atomic", s.config.AtomicPipeline))

	history := []domain.Turn{}

	questions, err := s.runPhase(ctx, st, conv.ID, PhaseClarification,
		clarificationPrompt(idea), &history,
		func(res *llm.Result) domain.RoadmapPatch {
			return domain.RoadmapPatch{InitialClarificationQuestions: &res.Text}
		})
	if err != nil {
		return nil, err
	}

	overview, err := s.runPhase(ctx, st, conv.ID, PhaseMarketOverview,
		marketOverviewPrompt(idea), &history,
		func(res *llm.Result) domain.RoadmapPatch {
			patch := domain.RoadmapPatch{MarketOverview: &res.Text}
			if res.Grounding != nil {
				patch.MarketOverviewGrounding = &res.Grounding
			}
			return patch
		})
	if err != nil {
		return nil, err
	}

	epics, err := s.runPhase(ctx, st, conv.ID, PhaseEpics,
		epicsPrompt(idea), &history,
		func(res *llm.Result) domain.RoadmapPatch {
			return domain.RoadmapPatch{MVPEpics: &res.Text}
		})
	if err != nil {
		return nil, err
	}

	tasks, err := s.runPhase(ctx, st, conv.ID, PhaseTaskBreakdown,
		taskBreakdownPrompt(), &history,
		func(res *llm.Result) domain.RoadmapPatch {
			return domain.RoadmapPatch{TaskBreakdown: &res.Text}
		})
	if err != nil {
		return nil, err
	}

	s.logger.Info("roadmap pipeline complete", zap.String("conversation_id", conv.ID))
	return &RoadmapResult{
		Idea:                            idea,
		InitialClarificationQuestions:   questions.Text,
		MarketOverview:                  overview.Text,
		MarketOverviewGroundingMetadata: overview.Grounding,
		MVPEpics:                        epics.Text,
		TaskBreakdown:                   tasks.Text,
		ConversationHistory:             history,
	}, nil
}

// runPhase performs one model call with the accumulated history and commits
// the phase's turns and roadmap field. A failed model call aborts the phase:
// failure text is never carried forward as context for later phases.
func (s *Service) runPhase(ctx context.Context, st store.Store, convID string, phase Phase,
	prompt string, history *[]domain.Turn,
	patch func(res *llm.Result) domain.RoadmapPatch) (*llm.Result, error) {

	res, err := s.gateway.Converse(ctx, prompt, *history)
	if err != nil {
		return nil, &PhaseError{Phase: phase, Err: err}
	}

	userTurn := domain.Turn{Role: domain.RoleUser, Content: prompt}
	modelTurn := domain.Turn{Role: domain.RoleModel, Content: res.Text}
	if _, err := st.AppendTurn(ctx, convID, userTurn); err != nil {
		return nil, &PhaseError{Phase: phase, Err: err}
	}
	if _, err := st.AppendTurn(ctx, convID, modelTurn); err != nil {
		return nil, &PhaseError{Phase: phase, Err: err}
	}
	*history = append(*history, userTurn, modelTurn)

	if _, err := st.UpdateRoadmap(ctx, convID, patch(res)); err != nil {
		return nil, &PhaseError{Phase: phase, Err: err}
	}

	s.logger.Debug("roadmap phase committed",
		zap.String("conversation_id", convID), zap.Stringer("phase", phase))
	return res, nil
}

func clarificationPrompt(idea string) string {
	return fmt.Sprintf("You are an expert product roadmap generator. A user has provided an idea: %q. "+
		"Ask 2-3 concise questions to better understand their idea and its target users. "+
		"Focus on clarifying the core functionality and target audience for an MVP.", idea)
}

func marketOverviewPrompt(idea string) string {
	return fmt.Sprintf("Based on our discussion about %q, provide a brief market overview including "+
		"potential market size, key competitors, and current trends. Use web search to ground your "+
		"response in recent information. Keep it concise for an MVP roadmap context.", idea)
}

func epicsPrompt(idea string) string {
	return fmt.Sprintf("Given our previous discussion about the market and the idea %q, suggest 2-3 "+
		"high-level epics (major feature areas) for the MVP. Focus on core functionality that "+
		"addresses the market needs we identified.", idea)
}

func taskBreakdownPrompt() string {
	return "Based on all our previous discussion about the market, idea, and epics, break down the " +
		"first epic into specific, actionable tasks. Include estimated complexity (Low/Medium/High) " +
		"for each task."
}
