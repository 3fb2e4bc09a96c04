package v1

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/planweave/roadmapd/internal/config"
	"github.com/planweave/roadmapd/internal/llm"
	"github.com/planweave/roadmapd/internal/policy"
	"github.com/planweave/roadmapd/internal/service"
	"github.com/planweave/roadmapd/internal/store"
)

func newTestHandler(t *testing.T) (*Handler, *store.SQLiteStore) {
	t.Helper()
	db, err := store.NewSQLiteStore(":memory:", zap.NewNop())
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	intents, err := policy.NewEngine(context.Background(), policy.DefaultPolicy)
	if err != nil {
		t.Fatalf("failed to create intent engine: %v", err)
	}
	svc := service.New(db, llm.NewMockClient(), intents, &config.Config{}, zap.NewNop())
	return NewHandler(svc, zap.NewNop()), db
}

func doJSON(t *testing.T, h echo.HandlerFunc, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if err := h(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	return rec
}

func TestGenerateRoadmapMissingIdea(t *testing.T) {
	h, _ := newTestHandler(t)

	rec := doJSON(t, h.GenerateRoadmap, http.MethodPost, "/generate-roadmap", `{}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestGenerateRoadmapSuccess(t *testing.T) {
	h, db := newTestHandler(t)

	rec := doJSON(t, h.GenerateRoadmap, http.MethodPost, "/generate-roadmap",
		`{"ideaDescription": "A marketplace for local artisans"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		ConversationID string                 `json:"conversationId"`
		Roadmap        *service.RoadmapResult `json:"roadmap"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.ConversationID == "" || resp.Roadmap == nil {
		t.Fatalf("unexpected response: %s", rec.Body.String())
	}
	for name, field := range map[string]string{
		"initialClarificationQuestions": resp.Roadmap.InitialClarificationQuestions,
		"marketOverview":                resp.Roadmap.MarketOverview,
		"mvpEpics":                      resp.Roadmap.MVPEpics,
		"taskBreakdown":                 resp.Roadmap.TaskBreakdown,
	} {
		if field == "" {
			t.Errorf("roadmap field %s is empty", name)
		}
	}

	conv, err := db.Get(context.Background(), resp.ConversationID)
	if err != nil {
		t.Fatalf("stored conversation missing: %v", err)
	}
	if !conv.Roadmap.Complete() {
		t.Fatal("stored roadmap should be complete")
	}
}

func TestGenerateRoadmapStructuredIdea(t *testing.T) {
	h, _ := newTestHandler(t)

	rec := doJSON(t, h.GenerateRoadmap, http.MethodPost, "/generate-roadmap",
		`{"ideaDescription": {"title": "Artisan market", "audience": "local shoppers"}}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestChatMissingMessage(t *testing.T) {
	h, _ := newTestHandler(t)

	rec := doJSON(t, h.Chat, http.MethodPost, "/chat", `{}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestChatRoadmapRequest(t *testing.T) {
	h, _ := newTestHandler(t)

	rec := doJSON(t, h.Chat, http.MethodPost, "/chat",
		`{"message": "build roadmap for a pet-sitting app"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Type      string                 `json:"type"`
		SessionID string                 `json:"sessionId"`
		Response  *service.RoadmapResult `json:"response"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Type != "roadmap" || resp.SessionID == "" {
		t.Fatalf("unexpected response: %s", rec.Body.String())
	}
	if resp.Response.Idea != "for a pet-sitting app" {
		t.Fatalf("idea not stripped: %q", resp.Response.Idea)
	}
}

func TestChatPlainMessage(t *testing.T) {
	h, _ := newTestHandler(t)

	rec := doJSON(t, h.Chat, http.MethodPost, "/chat", `{"message": "hello"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Type      string `json:"type"`
		SessionID string `json:"sessionId"`
		Response  string `json:"response"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Type != "chat" || resp.Response == "" || resp.SessionID == "" {
		t.Fatalf("unexpected response: %s", rec.Body.String())
	}
}

func TestChatSessionContinuity(t *testing.T) {
	h, db := newTestHandler(t)

	first := doJSON(t, h.Chat, http.MethodPost, "/chat", `{"message": "hello"}`)
	var firstResp struct {
		SessionID string `json:"sessionId"`
	}
	if err := json.Unmarshal(first.Body.Bytes(), &firstResp); err != nil {
		t.Fatalf("decode response: %v", err)
	}

	second := doJSON(t, h.Chat, http.MethodPost, "/chat",
		`{"message": "and again", "sessionId": "`+firstResp.SessionID+`"}`)
	if second.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", second.Code)
	}

	conv, err := db.Get(context.Background(), firstResp.SessionID)
	if err != nil {
		t.Fatalf("stored conversation missing: %v", err)
	}
	if len(conv.History) != 4 {
		t.Fatalf("expected 4 turns across two chat calls, got %d", len(conv.History))
	}
}

func TestGetConversationNotFound(t *testing.T) {
	h, _ := newTestHandler(t)

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/v1/conversations/missing", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("conversation_id")
	c.SetParamValues("missing")

	if err := h.GetConversation(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}
