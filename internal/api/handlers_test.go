package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/glasswing-io/tray-agent/internal/logging"
)

func TestNewMux_Status(t *testing.T) {
	SetStatusProvider(func() Status {
		return Status{Running: true, Backend: "headless"}
	})
	defer SetStatusProvider(nil)

	mux := NewMux(nil)

	req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("GET /api/status = %d, want %d", rec.Code, http.StatusOK)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}

	var status Status
	if err := json.NewDecoder(rec.Body).Decode(&status); err != nil {
		t.Fatalf("failed to decode status: %v", err)
	}
	if !status.Running {
		t.Error("expected running=true")
	}
	if status.Backend != "headless" {
		t.Errorf("backend = %q, want headless", status.Backend)
	}
}

func TestNewMux_Version(t *testing.T) {
	mux := NewMux(nil)

	req := httptest.NewRequest(http.MethodGet, "/api/version", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("GET /api/version = %d, want %d", rec.Code, http.StatusOK)
	}

	var payload map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&payload); err != nil {
		t.Fatalf("failed to decode version: %v", err)
	}
	if payload["version"] == "" {
		t.Error("version payload missing 'version'")
	}
	if payload["platform"] == "" {
		t.Error("version payload missing 'platform'")
	}
}

func TestNewMux_Health(t *testing.T) {
	mux := NewMux(nil)

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("GET /api/health = %d, want %d", rec.Code, http.StatusOK)
	}

	var payload map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&payload); err != nil {
		t.Fatalf("failed to decode health: %v", err)
	}
	if payload["status"] != "ok" {
		t.Errorf("status = %v, want ok", payload["status"])
	}
}

func TestNewMux_Backends(t *testing.T) {
	mux := NewMux(nil)

	req := httptest.NewRequest(http.MethodGet, "/api/backends", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("GET /api/backends = %d, want %d", rec.Code, http.StatusOK)
	}

	var infos []map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&infos); err != nil {
		t.Fatalf("failed to decode backends: %v", err)
	}
	if len(infos) < 2 {
		t.Errorf("expected at least 2 backends, got %d", len(infos))
	}
}

func TestNewMux_Logs(t *testing.T) {
	logging.Info(logging.CatSystem, "Log endpoint test entry", nil)

	mux := NewMux(nil)

	req := httptest.NewRequest(http.MethodGet, "/api/logs?count=5", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("GET /api/logs = %d, want %d", rec.Code, http.StatusOK)
	}

	var entries []logging.Entry
	if err := json.NewDecoder(rec.Body).Decode(&entries); err != nil {
		t.Fatalf("failed to decode entries: %v", err)
	}
	if len(entries) == 0 {
		t.Error("expected at least one log entry")
	}
	if len(entries) > 5 {
		t.Errorf("count=5 returned %d entries", len(entries))
	}
}

func TestNewMux_MethodNotAllowed(t *testing.T) {
	mux := NewMux(nil)

	for _, path := range []string{"/api/status", "/api/version", "/api/health", "/api/backends", "/api/logs"} {
		req := httptest.NewRequest(http.MethodPost, path, strings.NewReader("{}"))
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)

		if rec.Code != http.StatusMethodNotAllowed {
			t.Errorf("POST %s = %d, want %d", path, rec.Code, http.StatusMethodNotAllowed)
		}
	}
}

func TestNewMux_Metrics(t *testing.T) {
	mux := NewMux(nil)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("GET /metrics = %d, want %d", rec.Code, http.StatusOK)
	}
	if !strings.Contains(rec.Body.String(), "go_goroutines") {
		t.Error("metrics output missing runtime collectors")
	}
}

func TestNewMux_NoStatic(t *testing.T) {
	mux := NewMux(nil)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("GET / without static handler = %d, want %d", rec.Code, http.StatusNotFound)
	}
}
