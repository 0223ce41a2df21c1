package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

type fakePipeline struct {
	mu      sync.Mutex
	enabled bool
}

func (p *fakePipeline) Status() PipelineStatus {
	p.mu.Lock()
	defer p.mu.Unlock()
	return PipelineStatus{Enabled: p.enabled, Running: true, Frames: 7, Engaged: 3}
}

func (p *fakePipeline) SetEnabled(enabled bool) {
	p.mu.Lock()
	p.enabled = enabled
	p.mu.Unlock()
}

func get(h http.Handler, method, target string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestServer_Health(t *testing.T) {
	s := New(Config{})

	rec := get(s, http.MethodGet, "/api/health")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected Content-Type application/json, got %s", ct)
	}

	var response map[string]interface{}
	if err := json.NewDecoder(rec.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if response["status"] != "ok" {
		t.Errorf("expected status 'ok', got %v", response["status"])
	}
	if _, exists := response["uptime"]; !exists {
		t.Error("expected 'uptime' field in response")
	}
	if _, exists := response["pipeline"]; exists {
		t.Error("pipeline status should be omitted without a pipeline")
	}

	for _, method := range []string{http.MethodPost, http.MethodPut, http.MethodDelete} {
		if rec := get(s, method, "/api/health"); rec.Code != http.StatusMethodNotAllowed {
			t.Errorf("method %s: expected status %d, got %d", method, http.StatusMethodNotAllowed, rec.Code)
		}
	}
}

func TestServer_StaticFiles(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		"index.html": "<html><body>closestbody</body></html>",
		"app.js":     "connect('/api/analysis');",
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
			t.Fatalf("failed to write %s: %v", name, err)
		}
	}

	withStatic := New(Config{StaticDir: dir})
	bare := New(Config{})

	tests := []struct {
		name     string
		srv      *Server
		path     string
		wantCode int
		wantBody string
	}{
		{name: "index at root", srv: withStatic, path: "/", wantCode: http.StatusOK, wantBody: files["index.html"]},
		{name: "named file", srv: withStatic, path: "/app.js", wantCode: http.StatusOK, wantBody: files["app.js"]},
		{name: "missing file", srv: withStatic, path: "/nonexistent.html", wantCode: http.StatusNotFound},
		{name: "no static dir", srv: bare, path: "/", wantCode: http.StatusNotFound},
		{name: "unknown api route", srv: bare, path: "/api/nonexistent", wantCode: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := get(tt.srv, http.MethodGet, tt.path)
			if rec.Code != tt.wantCode {
				t.Fatalf("expected status %d, got %d", tt.wantCode, rec.Code)
			}
			if tt.wantBody != "" && rec.Body.String() != tt.wantBody {
				t.Errorf("expected body %q, got %q", tt.wantBody, rec.Body.String())
			}
		})
	}
}

func TestServer_HealthIncludesPipeline(t *testing.T) {
	s := New(Config{Pipeline: &fakePipeline{enabled: true}})

	rec := get(s, http.MethodGet, "/api/health")

	var response struct {
		Status   string         `json:"status"`
		Pipeline PipelineStatus `json:"pipeline"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if !response.Pipeline.Enabled || response.Pipeline.Frames != 7 || response.Pipeline.Engaged != 3 {
		t.Errorf("unexpected pipeline status %+v", response.Pipeline)
	}
}

func TestServer_Pipeline(t *testing.T) {
	p := &fakePipeline{}
	s := New(Config{Pipeline: p})

	tests := []struct {
		name        string
		method      string
		body        string
		wantStatus  int
		wantEnabled bool
	}{
		{name: "get", method: http.MethodGet, wantStatus: http.StatusOK},
		{name: "enable", method: http.MethodPut, body: `{"enabled": true}`, wantStatus: http.StatusOK, wantEnabled: true},
		{name: "missing field", method: http.MethodPut, body: `{}`, wantStatus: http.StatusBadRequest, wantEnabled: true},
		{name: "bad json", method: http.MethodPut, body: `{`, wantStatus: http.StatusBadRequest, wantEnabled: true},
		{name: "disable", method: http.MethodPut, body: `{"enabled": false}`, wantStatus: http.StatusOK},
		{name: "post", method: http.MethodPost, body: `{"enabled": true}`, wantStatus: http.StatusMethodNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/api/pipeline", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()
			s.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("expected status %d, got %d", tt.wantStatus, rec.Code)
			}
			if got := p.Status().Enabled; got != tt.wantEnabled {
				t.Errorf("enabled = %v, want %v", got, tt.wantEnabled)
			}
		})
	}
}

func TestServer_OptionalRoutes(t *testing.T) {
	s := New(Config{})

	for _, path := range []string{"/api/pipeline", "/api/sessions", "/api/frames/1", "/api/analysis", "/api/stream"} {
		if rec := get(s, http.MethodGet, path); rec.Code != http.StatusNotFound {
			t.Errorf("%s: expected status %d without a backing component, got %d", path, http.StatusNotFound, rec.Code)
		}
	}
}
