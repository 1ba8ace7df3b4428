package app_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/bdobrica/Hanashi/internal/hanashi/ai"
	"github.com/bdobrica/Hanashi/internal/hanashi/app"
)

func testConfig(t *testing.T) *app.Config {
	t.Helper()
	cfg := app.DefaultConfig()
	cfg.DatabasePath = filepath.Join(t.TempDir(), "hanashi.db")
	return cfg
}

func TestNew_FailsWithoutProvider(t *testing.T) {
	cfg := testConfig(t)
	cfg.Ollama.API = ""

	_, err := app.New(context.Background(), cfg)
	if !errors.Is(err, ai.ErrNoProvider) {
		t.Fatalf("expected ErrNoProvider, got %v", err)
	}
}

func TestNew_MatrixTransport(t *testing.T) {
	cfg := testConfig(t)
	cfg.Transport = app.TransportMatrix
	cfg.Matrix = app.MatrixConfig{
		Homeserver:  "https://matrix.example.org",
		UserID:      "@hanashi:example.org",
		AccessToken: "token",
	}

	a, err := app.New(context.Background(), cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	a.Stop()
}

func TestApp_RunStopsOnCancel(t *testing.T) {
	bb := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":200,"message":"Success","data":[]}`))
	}))
	defer bb.Close()

	cfg := testConfig(t)
	cfg.BlueBubbles.API = bb.URL
	cfg.HTTPAddr = "127.0.0.1:0"
	cfg.PollInterval = 10 * time.Millisecond

	a, err := app.New(context.Background(), cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer a.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
