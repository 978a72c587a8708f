package httpapi

import (
	"chat-fanout/auth"
	"chat-fanout/domain"
	"chat-fanout/errors"
	"chat-fanout/runtime"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
)

// APIHandler serves the read side: history pages, search and presence.
// Every route needs the bearer token issued in the authenticate ack.
type APIHandler struct {
	log          *slog.Logger
	orchestrator *runtime.Orchestrator
	tokens       *auth.TokenManager
	historyLimit int
}

func NewAPIHandler(log *slog.Logger, orchestrator *runtime.Orchestrator, tokens *auth.TokenManager, historyLimit int) *APIHandler {
	return &APIHandler{log: log, orchestrator: orchestrator, tokens: tokens, historyLimit: historyLimit}
}

func (h *APIHandler) RegisterRoutes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Use(h.requireToken)
		r.Get("/messages", h.Messages)
		r.Get("/messages/search", h.Search)
		r.Get("/online", h.Online)
		r.Get("/rooms", h.Rooms)
	})
}

type messagesResponse struct {
	Messages   []domain.Message `json:"messages"`
	NextBefore domain.MessageID `json:"nextBefore,omitempty"`
}

// Messages returns a page of ?room= or of the conversation with ?peer=.
// ?before= is either a message id or an RFC 3339 timestamp.
func (h *APIHandler) Messages(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserFrom(r.Context())
	q := r.URL.Query()
	limit, err := h.limit(q.Get("limit"))
	if err != nil {
		Error(w, err)
		return
	}
	query := domain.HistoryQuery{
		Room:  domain.RoomName(q.Get("room")),
		Peer:  domain.UserID(q.Get("peer")),
		Limit: limit,
	}
	if before := q.Get("before"); before != "" {
		if t, err := time.Parse(time.RFC3339Nano, before); err == nil {
			query.Before = t
		} else {
			query.BeforeID = domain.MessageID(before)
		}
	}

	messages, err := h.orchestrator.History(r.Context(), userID, query)
	if err != nil {
		Error(w, err)
		return
	}
	res := messagesResponse{Messages: messages}
	if res.Messages == nil {
		res.Messages = []domain.Message{}
	}
	if len(messages) == limit {
		res.NextBefore = messages[len(messages)-1].ID
	}
	JSON(w, http.StatusOK, res)
}

func (h *APIHandler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, err := h.limit(q.Get("limit"))
	if err != nil {
		Error(w, err)
		return
	}
	messages, err := h.orchestrator.Search(r.Context(), domain.RoomName(q.Get("room")), q.Get("q"), limit)
	if err != nil {
		Error(w, err)
		return
	}
	if messages == nil {
		messages = []domain.Message{}
	}
	JSON(w, http.StatusOK, messagesResponse{Messages: messages})
}

func (h *APIHandler) Online(w http.ResponseWriter, _ *http.Request) {
	JSON(w, http.StatusOK, map[string]any{"onlineUsers": h.orchestrator.Online()})
}

func (h *APIHandler) Rooms(w http.ResponseWriter, _ *http.Request) {
	JSON(w, http.StatusOK, map[string]any{"rooms": h.orchestrator.Rooms()})
}

func (h *APIHandler) limit(raw string) (int, error) {
	if raw == "" {
		return domain.NormalizeLimit(h.historyLimit), nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errors.Validation(err)
	}
	return domain.NormalizeLimit(limit), nil
}

func (h *APIHandler) requireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, err := h.tokens.FromBearer(r.Header.Get("Authorization"))
		if err != nil {
			Error(w, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(auth.WithUser(r.Context(), claims)))
	})
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes err as {"code", "error"} with the matching status.
func Error(w http.ResponseWriter, err error) {
	code := errors.Code(err)
	JSON(w, statusOf(code), map[string]string{"code": string(code), "error": err.Error()})
}

func statusOf(code errors.ErrorCode) int {
	switch code {
	case errors.CodeNotAuthenticated:
		return http.StatusUnauthorized
	case errors.CodeNotFound:
		return http.StatusNotFound
	case errors.CodeValidation:
		return http.StatusBadRequest
	case errors.CodeStoreFailure:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
