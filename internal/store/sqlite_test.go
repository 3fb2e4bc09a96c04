package store

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/planweave/roadmapd/internal/domain"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(":memory:", zap.NewNop())
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestCreateAndGet(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	conv, err := s.Create(ctx, domain.IdeaFromText("A marketplace for local artisans"))
	require.NoError(t, err)
	require.NotEmpty(t, conv.ID)
	require.Empty(t, conv.History)
	require.False(t, conv.Roadmap.Complete())

	got, err := s.Get(ctx, conv.ID)
	require.NoError(t, err)
	require.Equal(t, conv.ID, got.ID)
	require.Equal(t, "A marketplace for local artisans", got.Idea.Text())
}

func TestCreateAssignsUniqueIDs(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	seen := map[string]bool{}
	for i := 0; i < 20; i++ {
		conv, err := s.Create(ctx, domain.IdeaFromText("idea"))
		require.NoError(t, err)
		require.False(t, seen[conv.ID], "identifier reused: %s", conv.ID)
		seen[conv.ID] = true
	}
}

func TestStructuredIdeaRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	raw := json.RawMessage(`{"title": "Pet sitting", "audience": ["owners", "sitters"]}`)
	idea, err := domain.IdeaFromJSON(raw)
	require.NoError(t, err)

	conv, err := s.Create(ctx, idea)
	require.NoError(t, err)

	got, err := s.Get(ctx, conv.ID)
	require.NoError(t, err)

	var want, reloaded any
	require.NoError(t, json.Unmarshal(raw, &want))
	require.NoError(t, json.Unmarshal([]byte(got.Idea.Encoded()), &reloaded))
	if !reflect.DeepEqual(want, reloaded) {
		t.Fatalf("structured idea changed across persist/reload: %v != %v", want, reloaded)
	}
}

func TestGetNotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Get(context.Background(), "missing")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestAppendTurnOrdering(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	conv, err := s.Create(ctx, domain.IdeaFromText("idea"))
	require.NoError(t, err)

	contents := []string{"first", "second", "third", "fourth"}
	for i, c := range contents {
		role := domain.RoleUser
		if i%2 == 1 {
			role = domain.RoleModel
		}
		_, err := s.AppendTurn(ctx, conv.ID, domain.Turn{Role: role, Content: c})
		require.NoError(t, err)
	}

	got, err := s.Get(ctx, conv.ID)
	require.NoError(t, err)
	require.Len(t, got.History, 4)
	for i, c := range contents {
		require.Equal(t, c, got.History[i].Content)
	}
	require.True(t, got.LastAccessed.After(conv.LastAccessed) || got.LastAccessed.Equal(conv.LastAccessed))
}

func TestAppendTurnNotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.AppendTurn(context.Background(), "missing", domain.Turn{Role: domain.RoleUser, Content: "x"})
	require.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateRoadmapShallowMerge(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	conv, err := s.Create(ctx, domain.IdeaFromText("idea"))
	require.NoError(t, err)

	questions := "1. Who? 2. What?"
	got, err := s.UpdateRoadmap(ctx, conv.ID, domain.RoadmapPatch{InitialClarificationQuestions: &questions})
	require.NoError(t, err)
	require.NotNil(t, got.Roadmap.InitialClarificationQuestions)
	require.Nil(t, got.Roadmap.MarketOverview)

	overview := "growing market"
	grounding := json.RawMessage(`{"webSearchQueries":["size"]}`)
	got, err = s.UpdateRoadmap(ctx, conv.ID, domain.RoadmapPatch{
		MarketOverview:          &overview,
		MarketOverviewGrounding: &grounding,
	})
	require.NoError(t, err)

	// Fields absent from the patch are untouched.
	require.Equal(t, questions, *got.Roadmap.InitialClarificationQuestions)
	require.Equal(t, overview, *got.Roadmap.MarketOverview)
	require.JSONEq(t, string(grounding), string(got.Roadmap.MarketOverviewGrounding))
	require.Nil(t, got.Roadmap.MVPEpics)
}

func TestUpdateRoadmapNotFound(t *testing.T) {
	s := newTestStore(t)
	v := "x"
	_, err := s.UpdateRoadmap(context.Background(), "missing", domain.RoadmapPatch{MVPEpics: &v})
	require.ErrorIs(t, err, ErrNotFound)
}

func TestGetOrCreateExisting(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	conv, err := s.Create(ctx, domain.IdeaFromText("original"))
	require.NoError(t, err)

	got, err := s.GetOrCreate(ctx, conv.ID, domain.IdeaFromText("ignored"))
	require.NoError(t, err)
	require.Equal(t, conv.ID, got.ID)
	require.Equal(t, "original", got.Idea.Text())
}

func TestMalformedIdeaSurfacesDegraded(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	conv, err := s.Create(ctx, domain.IdeaFromText("fine"))
	require.NoError(t, err)
	other, err := s.Create(ctx, domain.IdeaFromText("also fine"))
	require.NoError(t, err)

	_, err = s.db.ExecContext(ctx,
		`UPDATE conversations SET idea_description = '{not json' WHERE conversation_id = ?`, conv.ID)
	require.NoError(t, err)

	got, err := s.Get(ctx, conv.ID)
	require.NoError(t, err, "a malformed idea must not lose the record")
	require.True(t, got.Idea.IsZero(), "malformed idea should decode to the empty placeholder")

	// Other records are unaffected.
	untouched, err := s.Get(ctx, other.ID)
	require.NoError(t, err)
	require.Equal(t, "also fine", untouched.Idea.Text())
}

func TestTransactRollback(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	conv, err := s.Create(ctx, domain.IdeaFromText("idea"))
	require.NoError(t, err)

	boom := errors.New("boom")
	err = s.Transact(ctx, func(tx Store) error {
		v := "epics"
		if _, err := tx.UpdateRoadmap(ctx, conv.ID, domain.RoadmapPatch{MVPEpics: &v}); err != nil {
			return err
		}
		if _, err := tx.AppendTurn(ctx, conv.ID, domain.Turn{Role: domain.RoleUser, Content: "hi"}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	got, err := s.Get(ctx, conv.ID)
	require.NoError(t, err)
	require.Nil(t, got.Roadmap.MVPEpics, "rolled-back roadmap write must not be visible")
	require.Empty(t, got.History, "rolled-back turn must not be visible")
}

func TestTransactCommit(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	conv, err := s.Create(ctx, domain.IdeaFromText("idea"))
	require.NoError(t, err)

	err = s.Transact(ctx, func(tx Store) error {
		v := "epics"
		_, err := tx.UpdateRoadmap(ctx, conv.ID, domain.RoadmapPatch{MVPEpics: &v})
		return err
	})
	require.NoError(t, err)

	got, err := s.Get(ctx, conv.ID)
	require.NoError(t, err)
	require.NotNil(t, got.Roadmap.MVPEpics)
}
