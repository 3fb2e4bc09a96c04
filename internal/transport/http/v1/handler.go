// Package v1 provides the HTTP handlers for roadmapd.
package v1

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/planweave/roadmapd/internal/service"
)

// Handler handles HTTP requests.
type Handler struct {
	service *service.Service
	logger  *zap.Logger
}

// NewHandler creates a new handler.
func NewHandler(svc *service.Service, logger *zap.Logger) *Handler {
	return &Handler{
		service: svc,
		logger:  logger,
	}
}

// RegisterRoutes registers routes with the echo server.
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.POST("/generate-roadmap", h.GenerateRoadmap)
	e.POST("/chat", h.Chat)

	e.GET("/v1/conversations/:conversation_id", h.GetConversation)

	e.GET("/", h.Root)
	e.GET("/health", h.Health)
}

// Root returns a liveness banner.
func (h *Handler) Root(c echo.Context) error {
	return c.String(http.StatusOK,
		"MVP Roadmap Generator Backend is running. Send POST requests to /generate-roadmap.")
}

// Health returns health status.
func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status":  "healthy",
		"version": "0.1.0",
	})
}
