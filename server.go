package main

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"supplychat/agent"
	"supplychat/chatstore"
)

// assistant is the part of the orchestrator the CLI and HTTP surfaces use.
type assistant interface {
	ProcessQuery(ctx context.Context, question, threadID string) agent.AgentResponse
	GetConversationHistory(ctx context.Context, threadID string) ([]chatstore.Turn, error)
	ClearMemory(ctx context.Context, threadID string) error
}

// Server exposes an assistant as a JSON API.
type Server struct {
	assistant assistant
	log       zerolog.Logger
}

func NewServer(a assistant, log zerolog.Logger) *Server {
	return &Server{assistant: a, log: log}
}

type queryRequest struct {
	Question string `json:"question"`
	ThreadID string `json:"thread_id,omitempty"`
}

type queryResponse struct {
	agent.AgentResponse
	ThreadID string `json:"thread_id"`
}

type historyResponse struct {
	ThreadID string           `json:"thread_id"`
	Turns    []chatstore.Turn `json:"turns"`
}

// Routes builds the HTTP handler.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Route("/api", func(r chi.Router) {
		r.Post("/query", s.handleQuery)
		r.Get("/threads/{threadID}/history", s.handleHistory)
		r.Delete("/threads/{threadID}/memory", s.handleClear)
	})
	return r
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		writeError(w, http.StatusBadRequest, "question is required")
		return
	}
	if req.ThreadID == "" {
		req.ThreadID = uuid.NewString()
	}
	resp := s.assistant.ProcessQuery(r.Context(), req.Question, req.ThreadID)
	// Turn failures are still answers; the type field carries them.
	writeJSON(w, http.StatusOK, queryResponse{AgentResponse: resp, ThreadID: req.ThreadID})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	threadID := chi.URLParam(r, "threadID")
	turns, err := s.assistant.GetConversationHistory(r.Context(), threadID)
	if err != nil {
		s.log.Error().Err(err).Str("thread_id", threadID).Msg("load history")
		writeError(w, http.StatusInternalServerError, "failed to load history")
		return
	}
	if turns == nil {
		turns = []chatstore.Turn{}
	}
	writeJSON(w, http.StatusOK, historyResponse{ThreadID: threadID, Turns: turns})
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	threadID := chi.URLParam(r, "threadID")
	if err := s.assistant.ClearMemory(r.Context(), threadID); err != nil {
		s.log.Error().Err(err).Str("thread_id", threadID).Msg("clear memory")
		writeError(w, http.StatusInternalServerError, "failed to clear memory")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.log.Info().
			Str("request_id", middleware.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("elapsed", time.Since(start)).
			Msg("http request")
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
