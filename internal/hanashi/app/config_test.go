package app_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/bdobrica/Hanashi/internal/hanashi/app"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "hanashi.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

// clearEnv blanks every variable Load reads so the host environment cannot
// leak into a test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"DATABASE_PATH", "TRANSPORT", "HTTP_ADDR", "LOG_LEVEL", "LOG_FORMAT",
		"BLUEBUBBLES_API", "BLUEBUBBLES_PASSWORD",
		"MATRIX_HOMESERVER", "MATRIX_USER_ID", "MATRIX_ACCESS_TOKEN",
		"PRIMARY_PROVIDER", "OPENAI_API_KEY", "OPENAI_BASE_URL", "OPENAI_MODEL", "OPENAI_IMAGE_MODEL",
		"OLLAMA_API", "OLLAMA_MODEL", "GEMINI_API_KEY", "GEMINI_MODEL",
		"BOT_TRIGGER", "POLL_INTERVAL", "QUEUE_INTERVAL", "CLEANUP_INTERVAL", "QUEUE_BATCH",
	} {
		t.Setenv(k, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	cfg, err := app.Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if diff := cmp.Diff(app.DefaultConfig(), cfg); diff != "" {
		t.Errorf("defaults mismatch (-want +got):\n%s", diff)
	}
}

func TestLoad_FileThenEnv(t *testing.T) {
	path := writeConfig(t, `
transport: matrix
matrix:
  homeserver: https://matrix.example.org
  user_id: "@hanashi:example.org"
  access_token: from-file
openai:
  api_key: sk-file
poll_interval: 10s
queue_batch: 5
`)
	clearEnv(t)
	t.Setenv("MATRIX_ACCESS_TOKEN", "from-env")
	t.Setenv("POLL_INTERVAL", "7")

	cfg, err := app.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Transport != app.TransportMatrix {
		t.Errorf("Transport: got %q", cfg.Transport)
	}
	if cfg.Matrix.AccessToken != "from-env" {
		t.Errorf("env should win over file, got %q", cfg.Matrix.AccessToken)
	}
	if cfg.OpenAI.APIKey != "sk-file" {
		t.Errorf("file value lost: %q", cfg.OpenAI.APIKey)
	}
	if cfg.PollInterval != 7*time.Second {
		t.Errorf("PollInterval: got %v", cfg.PollInterval)
	}
	if cfg.QueueBatch != 5 {
		t.Errorf("QueueBatch: got %d", cfg.QueueBatch)
	}
	if cfg.QueueInterval != 500*time.Millisecond {
		t.Errorf("QueueInterval default lost: %v", cfg.QueueInterval)
	}
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		env  map[string]string
		want string
	}{
		{name: "unknown transport", yaml: "transport: telegram\n", want: "unknown transport"},
		{name: "matrix without token", yaml: "transport: matrix\n", want: "MATRIX_ACCESS_TOKEN"},
		{name: "unknown provider", env: map[string]string{"PRIMARY_PROVIDER": "claude"}, want: "unknown primary provider"},
		{name: "malformed batch", env: map[string]string{"QUEUE_BATCH": "three"}, want: "QUEUE_BATCH"},
		{name: "zero batch", yaml: "queue_batch: 0\n", want: "QUEUE_BATCH must be positive"},
		{name: "bad yaml", yaml: "transport: [\n", want: "parse config yaml"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			path := ""
			if tt.yaml != "" {
				path = writeConfig(t, tt.yaml)
			}
			_, err := app.Load(path)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := app.Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
