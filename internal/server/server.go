// Package server provides the HTTP server for the closestbody analysis service.
package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/ayusman/closestbody/internal/server/api"
	"github.com/ayusman/closestbody/internal/store"
	"github.com/ayusman/closestbody/internal/stream"
)

// PipelineStatus is a snapshot of the capture pipeline.
type PipelineStatus struct {
	Enabled   bool         `json:"enabled"`
	Running   bool         `json:"running"`
	Frames    uint64       `json:"frames"`
	Engaged   uint64       `json:"engaged"`
	Errors    uint64       `json:"errors"`
	SessionID string       `json:"session_id,omitempty"`
	Stream    stream.Stats `json:"stream"`
}

// Pipeline is the part of the application the HTTP API controls.
type Pipeline interface {
	Status() PipelineStatus
	SetEnabled(enabled bool)
}

// Config holds the server configuration.
type Config struct {
	StaticDir string
	Store     *store.Store
	Hub       *Hub
	Preview   *Preview
	Pipeline  Pipeline
}

// Server represents the HTTP server for the closestbody application.
type Server struct {
	config Config
	mux    *http.ServeMux
	start  time.Time
}

// New creates a new Server with the given configuration.
func New(config Config) *Server {
	s := &Server{
		config: config,
		mux:    http.NewServeMux(),
		start:  time.Now(),
	}
	s.setupRoutes()
	return s
}

// setupRoutes configures all HTTP routes for the server.
func (s *Server) setupRoutes() {
	s.mux.HandleFunc("/api/health", s.handleHealth)

	if s.config.Pipeline != nil {
		s.mux.HandleFunc("/api/pipeline", s.handlePipeline)
	}

	if s.config.Store != nil {
		sessions := api.NewSessionHandler(s.config.Store)
		s.mux.Handle("/api/sessions", sessions)
		s.mux.Handle("/api/sessions/", sessions)
		s.mux.Handle("/api/frames/", api.NewFrameHandler(s.config.Store))
	}

	if s.config.Hub != nil {
		s.mux.Handle("/api/analysis", s.config.Hub)
	}

	if s.config.Preview != nil {
		s.mux.Handle("/api/stream", s.config.Preview)
	}

	// Serve static files if StaticDir is configured
	if s.config.StaticDir != "" {
		fs := http.FileServer(http.Dir(s.config.StaticDir))
		s.mux.Handle("/", fs)
	}
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// handleHealth handles GET requests to /api/health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	response := map[string]interface{}{
		"status": "ok",
		"uptime": time.Since(s.start).String(),
	}
	if s.config.Pipeline != nil {
		response["pipeline"] = s.config.Pipeline.Status()
	}

	writeJSON(w, http.StatusOK, response)
}

type pipelineRequest struct {
	Enabled *bool `json:"enabled"`
}

// handlePipeline reports the pipeline status on GET and toggles analysis on PUT.
func (s *Server) handlePipeline(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
	case http.MethodPut:
		var req pipelineRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Enabled == nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Body must be {\"enabled\": bool}"})
			return
		}
		s.config.Pipeline.SetEnabled(*req.Enabled)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	writeJSON(w, http.StatusOK, s.config.Pipeline.Status())
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}
