package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/opsmind/opsmind/pkg/gen"
	"github.com/opsmind/opsmind/pkg/log"
	"github.com/opsmind/opsmind/pkg/mem/store"
	"github.com/opsmind/opsmind/pkg/observability"
	"github.com/opsmind/opsmind/pkg/opsmind"
	"github.com/opsmind/opsmind/pkg/owner"
)

// Server exposes the assistant over HTTP. Callers identify the owner
// with the X-Owner-ID header; X-Session-ID optionally scopes chat
// history to a conversation.
type Server struct {
	assistant opsmind.Assistant
	metrics   *observability.Metrics
}

func New(assistant opsmind.Assistant, metrics *observability.Metrics) *Server {
	return &Server{
		assistant: assistant,
		metrics:   metrics,
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", s.handleHealth)
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		observability.MetricsHandler().ServeHTTP(w, r)
	})

	r.Post("/v1/ask", s.handleAsk)
	r.Post("/v1/memories", s.handleCreateMemory)
	r.Get("/v1/memories/search", s.handleSearchMemories)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

type askRequest struct {
	Input string `json:"input"`
}

type askResponse struct {
	Text         string           `json:"text"`
	MemoriesUsed []memoryResponse `json:"memories_used"`
	Warnings     []string         `json:"warnings,omitempty"`
}

type memoryResponse struct {
	ID        string    `json:"id"`
	Kind      string    `json:"kind"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	ctx, ok := s.ownerContext(w, r)
	if !ok {
		return
	}

	var req askRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if strings.TrimSpace(req.Input) == "" {
		respondError(w, http.StatusBadRequest, "invalid_request", "input is required")
		return
	}

	start := time.Now()
	answer, err := s.assistant.Ask(ctx, req.Input)
	s.metrics.ObserveRequestDuration(time.Since(start))
	if err != nil {
		s.metrics.Requests.WithLabelValues("ask", "error").Inc()
		s.respondAskError(w, r, err)
		return
	}

	s.metrics.Requests.WithLabelValues("ask", "ok").Inc()
	s.metrics.MemoriesRecalled.Observe(float64(len(answer.MemoriesUsed)))
	if answer.Attempts > 1 {
		s.metrics.GenerationRetries.Add(float64(answer.Attempts - 1))
	}
	if len(answer.Warnings) > 0 {
		s.metrics.PersistFailures.Add(float64(len(answer.Warnings)))
	}

	respondJSON(w, http.StatusOK, askResponse{
		Text:         answer.Text,
		MemoriesUsed: toMemoryResponses(answer.MemoriesUsed),
		Warnings:     answer.Warnings,
	})
}

type createMemoryRequest struct {
	Content string `json:"content"`
}

type createMemoryResponse struct {
	ID string `json:"id"`
}

func (s *Server) handleCreateMemory(w http.ResponseWriter, r *http.Request) {
	ctx, ok := s.ownerContext(w, r)
	if !ok {
		return
	}

	var req createMemoryRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if strings.TrimSpace(req.Content) == "" {
		respondError(w, http.StatusBadRequest, "invalid_request", "content is required")
		return
	}

	id, err := s.assistant.Remember(ctx, req.Content)
	if err != nil {
		s.metrics.Requests.WithLabelValues("remember", "error").Inc()
		respondError(w, http.StatusInternalServerError, "storage_error", err.Error())
		return
	}

	s.metrics.Requests.WithLabelValues("remember", "ok").Inc()
	respondJSON(w, http.StatusCreated, createMemoryResponse{ID: id})
}

type searchResponse struct {
	Memories []memoryResponse `json:"memories"`
}

func (s *Server) handleSearchMemories(w http.ResponseWriter, r *http.Request) {
	ctx, ok := s.ownerContext(w, r)
	if !ok {
		return
	}

	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		respondError(w, http.StatusBadRequest, "invalid_request", "query parameter q is required")
		return
	}

	memories, err := s.assistant.Recall(ctx, query)
	if err != nil {
		s.metrics.Requests.WithLabelValues("recall", "error").Inc()
		respondError(w, http.StatusInternalServerError, "storage_error", err.Error())
		return
	}

	s.metrics.Requests.WithLabelValues("recall", "ok").Inc()
	respondJSON(w, http.StatusOK, searchResponse{Memories: toMemoryResponses(memories)})
}

// ownerContext builds the request context from identity headers. A
// missing owner header fails the request before any work happens.
func (s *Server) ownerContext(w http.ResponseWriter, r *http.Request) (context.Context, bool) {
	ownerID := strings.TrimSpace(r.Header.Get("X-Owner-ID"))
	if ownerID == "" {
		respondError(w, http.StatusBadRequest, "missing_owner", "header X-Owner-ID is required")
		return nil, false
	}

	ownerCtx := owner.Context{
		OwnerID:   owner.ID(ownerID),
		SessionID: strings.TrimSpace(r.Header.Get("X-Session-ID")),
	}
	return owner.ContextWithOwner(r.Context(), ownerCtx), true
}

func (s *Server) respondAskError(w http.ResponseWriter, r *http.Request, err error) {
	log.ErrorContext(r.Context(), "Request failed", "error", err)

	switch {
	case errors.Is(err, owner.ErrMissingOwnerContext):
		respondError(w, http.StatusBadRequest, "missing_owner", err.Error())
	case errors.Is(err, gen.ErrTransient):
		s.metrics.GenerationErrors.WithLabelValues("transient").Inc()
		respondError(w, http.StatusServiceUnavailable, "generation_unavailable", err.Error())
	case errors.Is(err, gen.ErrFatal):
		s.metrics.GenerationErrors.WithLabelValues("fatal").Inc()
		respondError(w, http.StatusBadGateway, "generation_failed", err.Error())
	default:
		respondError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}

func toMemoryResponses(memories []store.MemoryRecord) []memoryResponse {
	out := make([]memoryResponse, 0, len(memories))
	for _, m := range memories {
		out = append(out, memoryResponse{
			ID:        m.ID,
			Kind:      m.Kind,
			Content:   m.Content,
			CreatedAt: m.CreatedAt,
		})
	}
	return out
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func decodeJSON(r *http.Request, out any) error {
	if r.Body == nil {
		return errors.New("empty body")
	}
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(out)
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorResponse{Error: message, Code: code})
}
