package httpserver

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"chat_backend/internal/config"
	"chat_backend/internal/domain"
	"chat_backend/internal/realtime"
	"chat_backend/internal/security"
	"chat_backend/internal/service"
	"chat_backend/internal/ws"
)

// Deps are the components the HTTP layer routes to.
type Deps struct {
	Realtime *realtime.Router
	Messages *service.MessageService
	Groups   *service.GroupService
	Tokens   *security.TokenService
	Logger   *slog.Logger
}

// NewRouter constructs the main HTTP router and wires routes and middleware.
func NewRouter(cfg *config.Config, d Deps) http.Handler {
	r := chi.NewRouter()

	// Middlewares
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-User-ID"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"message": cfg.AppName, "version": "1.0.0"})
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"status":      "healthy",
			"connections": d.Realtime.Presence().Len(),
		})
	})

	// API routes. The request timeout applies here only; /ws is long-lived.
	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Timeout(60 * time.Second))
		r.Use(AuthMiddleware(d.Tokens, cfg.TrustQueryIdentity))

		r.Get("/users/online", handleOnlineUsers(d.Realtime))

		r.Route("/messages", func(r chi.Router) {
			r.Get("/{peerID}", handleDirectHistory(d.Messages))
			r.Post("/{peerID}", handleSendDirect(d.Realtime))
		})

		r.Route("/groups", func(r chi.Router) {
			r.Get("/", handleListGroups(d.Groups))
			r.Post("/", handleCreateGroup(d.Groups))
			r.Get("/{groupID}", handleGetGroup(d.Groups))
			r.Put("/{groupID}", handleUpdateGroup(d.Groups))
			r.Delete("/{groupID}", handleDeleteGroup(d.Groups))
			r.Get("/{groupID}/messages", handleGroupHistory(d.Messages))
			r.Post("/{groupID}/messages", handleSendGroup(d.Realtime))
		})
	})

	// WebSocket endpoint
	r.Get("/ws", ws.MakeHandler(d.Realtime, d.Tokens, d.Logger, ws.Options{
		AllowedOrigins:     cfg.CORSOrigins,
		TrustQueryIdentity: cfg.TrustQueryIdentity,
		SendBuffer:         cfg.WSSendBuffer,
		PingInterval:       cfg.PingInterval(),
	}))

	return r
}

// writeJSON is a small helper to send JSON responses.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

// writeError maps core and domain errors to HTTP status codes.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrInvalidInput), errors.Is(err, realtime.ErrMalformedEvent):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrForbidden), errors.Is(err, realtime.ErrNotMember):
		status = http.StatusForbidden
	case errors.Is(err, domain.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrConflict):
		status = http.StatusConflict
	}
	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = "internal error"
	}
	writeJSON(w, status, map[string]string{"error": msg})
}
