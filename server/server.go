// Package server exposes the assistant over HTTP: one endpoint that submits
// a conversation turn, plus health and metrics.
package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/cobaltline/foreman/fault"
	"github.com/cobaltline/foreman/session"
	"github.com/cobaltline/foreman/tool"
)

// Server handles HTTP traffic for the assistant.
type Server struct {
	sessions *session.Manager
	logger   *slog.Logger
	http     *http.Server
}

// New creates a Server listening on addr. reg supplies the /metrics content.
func New(addr string, sessions *session.Manager, reg *prometheus.Registry, logger *slog.Logger) *Server {
	s := &Server{
		sessions: sessions,
		logger:   logger,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/turn", s.handleTurn)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.Handle("GET /metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	s.http = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Start runs the HTTP server until it fails or Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info("http server listening", slog.String("addr", s.http.Addr))
	err := s.http.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown drains the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

type turnRequest struct {
	Role     string `json:"role"`
	CallerID string `json:"caller_id"`
	Message  string `json:"message"`
}

type turnResponse struct {
	Reply string `json:"reply,omitempty"`
	Error string `json:"error,omitempty"`
	Kind  string `json:"kind,omitempty"`
}

func (s *Server) handleTurn(w http.ResponseWriter, r *http.Request) {
	var req turnRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, turnResponse{Error: "invalid JSON body", Kind: string(fault.Validation)})
		return
	}
	if req.CallerID == "" {
		writeJSON(w, http.StatusBadRequest, turnResponse{Error: "caller_id is required", Kind: string(fault.Validation)})
		return
	}

	reply, err := s.sessions.SubmitTurn(r.Context(), tool.Role(req.Role), req.CallerID, req.Message)
	if err != nil {
		kind := fault.KindOf(err)
		s.logger.Warn("turn failed",
			slog.String("caller", req.CallerID),
			slog.String("kind", string(kind)),
			slog.Any("err", err))
		writeJSON(w, statusFor(kind), turnResponse{Error: err.Error(), Kind: string(kind)})
		return
	}
	writeJSON(w, http.StatusOK, turnResponse{Reply: reply})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func statusFor(kind fault.Kind) int {
	switch kind {
	case fault.Validation:
		return http.StatusBadRequest
	case fault.NotFound:
		return http.StatusNotFound
	case fault.StepBudget:
		return http.StatusUnprocessableEntity
	case fault.Upstream:
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
