// Package handler is the serverless entry point for the latest-record
// lookup. Each invocation opens its own store and closes it on return.
package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/msaad732/meme-coin/internal/api"
	"github.com/msaad732/meme-coin/internal/config"
	"github.com/msaad732/meme-coin/internal/database"
	"github.com/msaad732/meme-coin/internal/service"
)

// Handler answers GET requests with the newest stored record.
func Handler(w http.ResponseWriter, r *http.Request) {
	cfg := config.Load()
	e := echo.New()
	c := e.NewContext(r, w)

	var store database.MessageStore
	s, err := database.Open(cfg.DatabaseURL, cfg.ConnectTimeout)
	switch {
	case err == nil:
		store = s
		defer s.Close()
	case errors.Is(err, database.ErrNotConfigured):
	default:
		slog.Error("opening store", "error", err)
		c.Response().Header().Set(echo.HeaderAccessControlAllowOrigin, "*")
		_ = api.Error(c, http.StatusInternalServerError, err.Error())
		return
	}

	h := api.NewMessageHandler(service.NewReadService(store, nil))
	if err := h.Latest(c); err != nil {
		e.HTTPErrorHandler(err, c)
	}
}
