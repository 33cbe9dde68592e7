package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/msaad732/meme-coin/internal/service"
)

// ErrorResponse is the error envelope.
type ErrorResponse struct {
	Error string `json:"error"`
}

// MessageResponse carries a non-error informational reply.
type MessageResponse struct {
	Message string `json:"message"`
}

// Error sends a JSON error response.
func Error(c echo.Context, status int, message string) error {
	return c.JSON(status, ErrorResponse{Error: message})
}

// Message sends a JSON informational response.
func Message(c echo.Context, status int, message string) error {
	return c.JSON(status, MessageResponse{Message: message})
}

// mapServiceError translates service errors into HTTP responses.
func mapServiceError(c echo.Context, err error) error {
	var se *service.ServiceError
	if !errors.As(err, &se) {
		slog.Error("unhandled error", "path", c.Path(), "error", err)
		return Error(c, http.StatusInternalServerError, "internal server error")
	}

	switch {
	case errors.Is(se, service.ErrBadRequest):
		return Error(c, http.StatusBadRequest, se.Message)
	case errors.Is(se, service.ErrNotFound):
		return Message(c, http.StatusNotFound, se.Message)
	case errors.Is(se, service.ErrUnavailable):
		return Error(c, http.StatusServiceUnavailable, se.Message)
	default:
		return Error(c, http.StatusInternalServerError, se.Message)
	}
}
