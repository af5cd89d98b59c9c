// Package server exposes the analysis pipeline over HTTP. Request bodies are
// size-capped and rate-limited before they reach the pipeline, and responses
// carry a request ID for correlation without logging any input text.
package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/medscan-ai/medscan/internal/config"
	"github.com/medscan-ai/medscan/internal/pipeline"
	"github.com/medscan-ai/medscan/internal/redact"
)

// Server wraps the HTTP components around one pipeline.
type Server struct {
	mux          *http.ServeMux
	pipe         *pipeline.Pipeline
	maxBodyBytes int64
	limiter      *rate.Limiter
}

// NewServer builds the routed server. A zero rate limit disables limiting.
func NewServer(cfg *config.Config, pipe *pipeline.Pipeline) *Server {
	s := &Server{
		mux:          http.NewServeMux(),
		pipe:         pipe,
		maxBodyBytes: cfg.Server.MaxBodyBytes,
	}
	if s.maxBodyBytes <= 0 {
		s.maxBodyBytes = 64 * 1024
	}
	if cfg.Server.RateLimitRPS > 0 {
		burst := cfg.Server.RateBurst
		if burst <= 0 {
			burst = cfg.Server.RateLimitRPS
		}
		s.limiter = rate.NewLimiter(rate.Limit(cfg.Server.RateLimitRPS), burst)
	}

	s.mux.HandleFunc("/healthz", s.handleHealth)
	s.mux.HandleFunc("/v1/analyze", s.handleAnalyze)
	s.mux.HandleFunc("/v1/capabilities", s.handleCapabilities)
	return s
}

// Handler returns the root handler with middleware applied.
func (s *Server) Handler() http.Handler {
	return s.withRequestID(s.withRateLimit(s.mux))
}

// Start runs the HTTP server on the given address.
func (s *Server) Start(addr string) error {
	redact.Logf("medscan listening on %s", addr)
	return s.httpServer(addr).ListenAndServe()
}

// httpServer applies read deadlines so a stalled client cannot pin a
// connection; bodies are already size-capped per handler.
func (s *Server) httpServer(addr string) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}
}

func (s *Server) withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r)
	})
}

func (s *Server) withRateLimit(next http.Handler) http.Handler {
	if s.limiter == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.Allow() {
			w.Header().Set("Retry-After", "1")
			writeError(w, http.StatusTooManyRequests, "too many requests", "rate_limit_error")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	fmt.Fprintln(w, "ok")
}

type analyzeRequest struct {
	Text string `json:"text"`
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed", "invalid_request_error")
		return
	}

	body := http.MaxBytesReader(w, r.Body, s.maxBodyBytes)
	var req analyzeRequest
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large", "invalid_request_error")
			return
		}
		writeError(w, http.StatusBadRequest, "invalid JSON body", "invalid_request_error")
		return
	}

	res := s.pipe.Analyze(r.Context(), req.Text)
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleCapabilities(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed", "invalid_request_error")
		return
	}
	writeJSON(w, http.StatusOK, s.pipe.Capabilities())
}

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

func writeError(w http.ResponseWriter, status int, message, typ string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorBody{Error: errorDetail{Message: message, Type: typ}})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		redact.Logf("failed to write response: %v", err)
	}
}
