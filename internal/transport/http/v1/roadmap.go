package v1

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/planweave/roadmapd/internal/domain"
	"github.com/planweave/roadmapd/internal/service"
	"github.com/planweave/roadmapd/internal/store"
)

type generateRoadmapRequest struct {
	// Accepts either a plain string or a structured JSON value.
	IdeaDescription json.RawMessage `json:"ideaDescription"`
}

// GenerateRoadmap creates a conversation and runs the roadmap pipeline.
// POST /generate-roadmap
func (h *Handler) GenerateRoadmap(c echo.Context) error {
	var req generateRoadmapRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}

	idea, err := domain.IdeaFromJSON(req.IdeaDescription)
	if err != nil || idea.IsZero() {
		return c.JSON(http.StatusBadRequest,
			map[string]string{"error": "Missing 'ideaDescription' in request body"})
	}

	ctx := c.Request().Context()
	conversationID, roadmap, err := h.service.GenerateRoadmapForIdea(ctx, idea)
	if err != nil {
		if errors.Is(err, service.ErrMissingIdea) {
			return c.JSON(http.StatusBadRequest,
				map[string]string{"error": "Missing 'ideaDescription' in request body"})
		}
		h.logger.Error("roadmap generation failed",
			zap.String("conversation_id", conversationID), zap.Error(err))
		return c.JSON(http.StatusInternalServerError,
			map[string]string{"error": "Failed to generate roadmap. Please check server logs."})
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"conversationId": conversationID,
		"roadmap":        roadmap,
	})
}

// GetConversation returns a stored conversation.
// GET /v1/conversations/:conversation_id
func (h *Handler) GetConversation(c echo.Context) error {
	id := c.Param("conversation_id")

	conv, err := h.service.GetConversation(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "conversation not found"})
		}
		h.logger.Error("conversation lookup failed", zap.String("conversation_id", id), zap.Error(err))
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "internal server error"})
	}

	return c.JSON(http.StatusOK, conv)
}
