package v1

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/planweave/roadmapd/internal/service"
)

type chatRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"sessionId"`
}

// Chat accepts one inbound message and routes it to the roadmap pipeline or
// an ordinary chat turn.
// POST /chat
func (h *Handler) Chat(c echo.Context) error {
	var req chatRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	if req.Message == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Message is required"})
	}

	reply, err := h.service.Chat(c.Request().Context(), req.SessionID, req.Message)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrMissingMessage):
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "Message is required"})
		case errors.Is(err, service.ErrMissingIdea):
			return c.JSON(http.StatusBadRequest,
				map[string]string{"error": "A roadmap request must include an idea description"})
		case errors.Is(err, service.ErrRoadmapComplete):
			return c.JSON(http.StatusConflict,
				map[string]string{"error": "A roadmap was already generated for this session"})
		}
		h.logger.Error("chat request failed", zap.String("session_id", req.SessionID), zap.Error(err))
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Internal server error"})
	}

	if reply.Type == service.ReplyRoadmap {
		return c.JSON(http.StatusOK, map[string]interface{}{
			"response":  reply.Roadmap,
			"type":      reply.Type,
			"sessionId": reply.SessionID,
		})
	}

	resp := map[string]interface{}{
		"response":  reply.Text,
		"type":      reply.Type,
		"sessionId": reply.SessionID,
	}
	if reply.Grounding != nil {
		resp["groundingMetadata"] = reply.Grounding
	}
	return c.JSON(http.StatusOK, resp)
}
