// Package httpapi exposes the chat over HTTP: the websocket gateway for
// browsers and the token guarded history, search and presence endpoints.
package httpapi

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
)

type RouterConfig struct {
	// Inspector is mounted under /debug/inspect when set.
	Inspector http.Handler
}

func NewRouter(log *slog.Logger, ws *WebSocketHandler, api *APIHandler, cfg RouterConfig) chi.Router {
	r := chi.NewRouter()

	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/health"))

	r.Get("/ws", ws.ServeHTTP)
	api.RegisterRoutes(r)

	if cfg.Inspector != nil {
		log.Info("Badger inspector mounted", "path", "/debug/inspect")
		r.Handle("/debug/inspect", cfg.Inspector)
	}
	return r
}
