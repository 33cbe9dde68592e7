package api

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/msaad732/meme-coin/internal/models"
	"github.com/msaad732/meme-coin/internal/service"
)

// MessageHandler serves the JSON read endpoints.
type MessageHandler struct {
	reads *service.ReadService
}

// NewMessageHandler creates a MessageHandler.
func NewMessageHandler(reads *service.ReadService) *MessageHandler {
	return &MessageHandler{reads: reads}
}

type messagesResponse struct {
	Source   string          `json:"source"`
	Warning  string          `json:"warning"`
	Messages []models.Record `json:"messages"`
}

// Latest handles GET /api/latest. The response is readable from any origin.
func (h *MessageHandler) Latest(c echo.Context) error {
	c.Response().Header().Set(echo.HeaderAccessControlAllowOrigin, "*")

	res := h.reads.Latest(c.Request().Context())
	switch res.Status {
	case service.Found:
		return c.JSON(http.StatusOK, res.Record)
	case service.NotFound:
		return Message(c, http.StatusNotFound, "No messages found")
	default:
		slog.Error("latest lookup failed", "error", res.Err)
		return Error(c, http.StatusInternalServerError, res.Err.Error())
	}
}

// Messages handles GET /api/messages?limit=N.
func (h *MessageHandler) Messages(c echo.Context) error {
	limit, err := service.ParseLimit(c.QueryParam("limit"))
	if err != nil {
		return mapServiceError(c, err)
	}

	res, err := h.reads.Recent(c.Request().Context(), limit)
	if err != nil {
		slog.Error("recent lookup failed", "error", err)
		return Error(c, http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, messagesResponse{
		Source:   res.Source,
		Warning:  res.Warning,
		Messages: res.Records,
	})
}
