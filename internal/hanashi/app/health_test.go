package app_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/bdobrica/Hanashi/internal/hanashi/app"
)

type fakeStatus struct {
	actors  int
	pending int
	err     error
}

func (f *fakeStatus) ActorCount() int { return f.actors }

func (f *fakeStatus) PendingCount(_ context.Context) (int, error) { return f.pending, f.err }

func get(t *testing.T, h http.Handler, path string) map[string]any {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("%s: expected 200, got %d", path, w.Code)
	}
	var resp map[string]any
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp
}

func TestHealthServer_Health(t *testing.T) {
	hs := app.NewHealthServer("127.0.0.1:0", &fakeStatus{})
	resp := get(t, hs, "/health")
	if resp["status"] != "ok" {
		t.Errorf("expected status ok, got %v", resp["status"])
	}
}

func TestHealthServer_Status(t *testing.T) {
	hs := app.NewHealthServer("127.0.0.1:0", &fakeStatus{actors: 2, pending: 7})
	resp := get(t, hs, "/status")
	if resp["status"] != "ok" {
		t.Errorf("expected status ok, got %v", resp["status"])
	}
	if int(resp["actor_count"].(float64)) != 2 {
		t.Errorf("expected actor_count 2, got %v", resp["actor_count"])
	}
	if int(resp["pending_items"].(float64)) != 7 {
		t.Errorf("expected pending_items 7, got %v", resp["pending_items"])
	}
	if _, ok := resp["build"].(map[string]any); !ok {
		t.Errorf("expected build info, got %v", resp["build"])
	}
}

func TestHealthServer_StatusDegraded(t *testing.T) {
	hs := app.NewHealthServer("127.0.0.1:0", &fakeStatus{err: errors.New("database is locked")})
	resp := get(t, hs, "/status")
	if resp["status"] != "degraded" {
		t.Errorf("expected degraded, got %v", resp["status"])
	}
}
