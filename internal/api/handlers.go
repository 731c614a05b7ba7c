package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kalambet/reviewqa/internal/pipeline"
	"github.com/kalambet/reviewqa/internal/sqlgen"
	"github.com/kalambet/reviewqa/internal/store"
)

const maxAskBodySize = 1 << 20 // 1MB

// QuestionRouter answers one question end to end.
type QuestionRouter interface {
	Route(ctx context.Context, question string) (pipeline.Answer, error)
}

// InteractionReader exposes the interaction log to the API layer.
type InteractionReader interface {
	GetInteraction(id string) (store.Interaction, error)
	GetRecentInteractions(limit int) ([]store.Interaction, error)
}

// Deps holds everything the HTTP handlers need. Routers is keyed by backend
// name; DefaultBackend picks the router when a request names none.
type Deps struct {
	Routers        map[string]QuestionRouter
	DefaultBackend string
	Interactions   InteractionReader

	// AskTimeout bounds one whole routed question, across every LLM call it
	// chains. Zero means no deadline.
	AskTimeout time.Duration
}

// NewHandler builds the HTTP API.
func NewHandler(deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Get("/health", handleHealth)
	r.Post("/v1/ask", handleAsk(deps))
	r.Get("/v1/interactions", handleListInteractions(deps))
	r.Get("/v1/interactions/{id}", handleGetInteraction(deps))

	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// AskRequest is the body of POST /v1/ask.
type AskRequest struct {
	Question string `json:"question"`
	Backend  string `json:"backend,omitempty"`
}

// AskResponse is the reply to POST /v1/ask.
type AskResponse struct {
	ID      string `json:"id"`
	Intent  string `json:"intent"`
	Backend string `json:"backend"`
	Query   string `json:"query,omitempty"`
	Answer  string `json:"answer"`
}

func handleAsk(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxAskBodySize)
		defer r.Body.Close()

		var req AskRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if req.Question == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "question is required")
			return
		}

		name := req.Backend
		if name == "" {
			name = deps.DefaultBackend
		}
		router, ok := deps.Routers[name]
		if !ok {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "backend %q is not configured", name)
			return
		}

		ctx := r.Context()
		if deps.AskTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, deps.AskTimeout)
			defer cancel()
		}

		ans, err := router.Route(ctx, req.Question)
		if err != nil {
			askError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, AskResponse{
			ID:      ans.ID,
			Intent:  string(ans.Intent),
			Backend: ans.Backend,
			Query:   ans.Query,
			Answer:  ans.Text,
		})
	}
}

// askError maps retrieve-repair fail reasons onto HTTP statuses. A question
// the system could not answer is the client's 422, not our 500; only an
// unreachable backend is a gateway problem.
func askError(w http.ResponseWriter, err error) {
	var execErr *sqlgen.ExecError
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		httpError(w, http.StatusGatewayTimeout, "api_error", "answering timed out")
	case errors.Is(err, sqlgen.ErrNoResponse):
		httpError(w, http.StatusBadGateway, "api_error", "backend unavailable: %v", err)
	case errors.Is(err, sqlgen.ErrNoResults):
		httpError(w, http.StatusUnprocessableEntity, "retrieval_error", "no matching data for this question")
	case errors.Is(err, sqlgen.ErrNoQuery), errors.As(err, &execErr):
		httpError(w, http.StatusUnprocessableEntity, "retrieval_error", "could not answer the question")
	default:
		httpError(w, http.StatusInternalServerError, "api_error", "answering failed: %v", err)
	}
}

func handleListInteractions(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := 20
		if v := r.URL.Query().Get("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 1 || n > 200 {
				httpError(w, http.StatusBadRequest, "invalid_request_error", "limit must be an integer between 1 and 200")
				return
			}
			limit = n
		}

		interactions, err := deps.Interactions.GetRecentInteractions(limit)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "listing interactions: %v", err)
			return
		}
		if interactions == nil {
			interactions = []store.Interaction{}
		}
		writeJSON(w, http.StatusOK, interactions)
	}
}

func handleGetInteraction(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		interaction, err := deps.Interactions.GetInteraction(id)
		if errors.Is(err, store.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found_error", "interaction %s not found", id)
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "loading interaction: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, interaction)
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	writeJSON(w, code, map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    errType,
		},
	})
}
