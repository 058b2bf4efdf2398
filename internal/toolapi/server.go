// Package toolapi exposes the dispatcher to job submitters over HTTP:
// the draw_image and connection_status tools, the dispatch history and
// a health check.
package toolapi

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/fentz26/easel/internal/dispatch"
	"github.com/fentz26/easel/internal/history"
)

// Version is reported by the health endpoint.
const Version = "0.1.0"

// Server provides the HTTP tool surface for Easel.
type Server struct {
	disp   *dispatch.Dispatcher
	hist   *history.Store // nil when history is disabled
	addr   string
	server *http.Server
}

// NewServer creates a new HTTP server.
func NewServer(disp *dispatch.Dispatcher, hist *history.Store, addr string) *Server {
	return &Server{
		disp: disp,
		hist: hist,
		addr: addr,
	}
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	mux := http.NewServeMux()

	mux.HandleFunc("/tools/draw_image", s.handleDrawImage)
	mux.HandleFunc("/tools/connection_status", s.handleConnectionStatus)
	mux.HandleFunc("/history", s.handleHistory)
	mux.HandleFunc("/health", s.handleHealth)

	s.server = &http.Server{
		Addr:        s.addr,
		Handler:     mux,
		ReadTimeout: 10 * time.Second,
		// No write timeout: draw_image holds the response open for the
		// full task timeout.
	}

	log.Printf("Starting tool API on %s", s.addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

type drawImageRequest struct {
	Prompt string `json:"prompt"`
}

// handleDrawImage runs one synchronous dispatch. Tool failures travel
// in the JSON body with status "error"; HTTP errors are reserved for
// malformed requests.
func (s *Server) handleDrawImage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req drawImageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}

	result, err := s.disp.Dispatch(r.Context(), req.Prompt)
	if err != nil {
		log.Printf("Dispatch failed: %v", err)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}

// handleConnectionStatus reports every client and task.
func (s *Server) handleConnectionStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s.disp.Status())
}

// handleHistory returns recent terminal tasks from the audit trail.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.hist == nil {
		http.Error(w, "history disabled", http.StatusNotFound)
		return
	}

	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}

	entries, err := s.hist.Recent(limit)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if entries == nil {
		entries = []history.Entry{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(entries)
}

// HealthResponse is the health endpoint payload.
type HealthResponse struct {
	OK      bool   `json:"ok"`
	DB      string `json:"db"`
	Version string `json:"version"`
	Time    string `json:"time"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	health := HealthResponse{
		OK:      true,
		DB:      "disabled",
		Version: Version,
		Time:    time.Now().UTC().Format(time.RFC3339),
	}

	if s.hist != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.hist.Ping(ctx); err != nil {
			health.OK = false
			health.DB = "error: " + err.Error()
		} else {
			health.DB = "ok"
		}
	}

	w.Header().Set("Content-Type", "application/json")
	if !health.OK {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	json.NewEncoder(w).Encode(health)
}
