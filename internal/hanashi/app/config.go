package app

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/bdobrica/Hanashi/common/environment"
)

// Transport names accepted in Config.Transport.
const (
	TransportBlueBubbles = "bluebubbles"
	TransportMatrix      = "matrix"
)

// Provider names accepted in Config.PrimaryProvider.
const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
)

// Config holds the Hanashi configuration. Values come from DefaultConfig,
// then an optional YAML file, then environment variables.
type Config struct {
	DatabasePath string `yaml:"database_path"`
	Transport    string `yaml:"transport"`
	HTTPAddr     string `yaml:"http_addr"`
	LogLevel     string `yaml:"log_level"`
	LogFormat    string `yaml:"log_format"`

	BlueBubbles BlueBubblesConfig `yaml:"bluebubbles"`
	Matrix      MatrixConfig      `yaml:"matrix"`

	PrimaryProvider string       `yaml:"primary_provider"`
	OpenAI          OpenAIConfig `yaml:"openai"`
	Ollama          OllamaConfig `yaml:"ollama"`
	Gemini          GeminiConfig `yaml:"gemini"`

	// BotTrigger is the mention that always triggers the bot, e.g. "@ava".
	BotTrigger string `yaml:"bot_trigger"`

	PollInterval    time.Duration `yaml:"poll_interval"`
	QueueInterval   time.Duration `yaml:"queue_interval"`
	CleanupInterval time.Duration `yaml:"cleanup_interval"`
	QueueBatch      int           `yaml:"queue_batch"`
}

type BlueBubblesConfig struct {
	API      string `yaml:"api"`
	Password string `yaml:"password"`
}

type MatrixConfig struct {
	Homeserver  string `yaml:"homeserver"`
	UserID      string `yaml:"user_id"`
	AccessToken string `yaml:"access_token"`
}

type OpenAIConfig struct {
	APIKey     string `yaml:"api_key"`
	BaseURL    string `yaml:"base_url"`
	Model      string `yaml:"model"`
	ImageModel string `yaml:"image_model"`
}

// OllamaConfig configures the alternate provider. Setting API to an empty
// string in the config file disables it.
type OllamaConfig struct {
	API   string `yaml:"api"`
	Model string `yaml:"model"`
}

type GeminiConfig struct {
	APIKey string `yaml:"api_key"`
	Model  string `yaml:"model"`
}

// DefaultConfig returns the configuration used when nothing is set.
func DefaultConfig() *Config {
	return &Config{
		DatabasePath:    "./hanashi.db",
		Transport:       TransportBlueBubbles,
		LogLevel:        "info",
		LogFormat:       "text",
		BlueBubbles:     BlueBubblesConfig{API: "http://localhost:12345"},
		PrimaryProvider: ProviderOpenAI,
		Ollama:          OllamaConfig{API: "http://localhost:11434", Model: "llama3.2"},
		BotTrigger:      "@ava",
		PollInterval:    3 * time.Second,
		QueueInterval:   500 * time.Millisecond,
		CleanupInterval: 5 * time.Minute,
		QueueBatch:      3,
	}
}

// Load builds the configuration from defaults, the YAML file at path (skipped
// when path is empty) and the environment, then validates it.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config yaml: %w", err)
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	environment.OverrideString(&c.DatabasePath, "DATABASE_PATH")
	environment.OverrideString(&c.Transport, "TRANSPORT")
	environment.OverrideString(&c.HTTPAddr, "HTTP_ADDR")
	environment.OverrideString(&c.LogLevel, "LOG_LEVEL")
	environment.OverrideString(&c.LogFormat, "LOG_FORMAT")

	environment.OverrideString(&c.BlueBubbles.API, "BLUEBUBBLES_API")
	environment.OverrideString(&c.BlueBubbles.Password, "BLUEBUBBLES_PASSWORD")
	environment.OverrideString(&c.Matrix.Homeserver, "MATRIX_HOMESERVER")
	environment.OverrideString(&c.Matrix.UserID, "MATRIX_USER_ID")
	environment.OverrideString(&c.Matrix.AccessToken, "MATRIX_ACCESS_TOKEN")

	environment.OverrideString(&c.PrimaryProvider, "PRIMARY_PROVIDER")
	environment.OverrideString(&c.OpenAI.APIKey, "OPENAI_API_KEY")
	environment.OverrideString(&c.OpenAI.BaseURL, "OPENAI_BASE_URL")
	environment.OverrideString(&c.OpenAI.Model, "OPENAI_MODEL")
	environment.OverrideString(&c.OpenAI.ImageModel, "OPENAI_IMAGE_MODEL")
	environment.OverrideString(&c.Ollama.API, "OLLAMA_API")
	environment.OverrideString(&c.Ollama.Model, "OLLAMA_MODEL")
	environment.OverrideString(&c.Gemini.APIKey, "GEMINI_API_KEY")
	environment.OverrideString(&c.Gemini.Model, "GEMINI_MODEL")

	environment.OverrideString(&c.BotTrigger, "BOT_TRIGGER")

	var errs []error
	errs = append(errs,
		environment.OverrideDuration(&c.PollInterval, "POLL_INTERVAL"),
		environment.OverrideDuration(&c.QueueInterval, "QUEUE_INTERVAL"),
		environment.OverrideDuration(&c.CleanupInterval, "CLEANUP_INTERVAL"),
		environment.OverrideInt(&c.QueueBatch, "QUEUE_BATCH"),
	)
	return errors.Join(errs...)
}

// Validate checks the transport and provider selections and the loop
// settings. Provider credentials are checked when the app is built.
func (c *Config) Validate() error {
	c.Transport = strings.ToLower(strings.TrimSpace(c.Transport))
	c.PrimaryProvider = strings.ToLower(strings.TrimSpace(c.PrimaryProvider))

	switch c.Transport {
	case TransportBlueBubbles:
		if c.BlueBubbles.API == "" {
			return errors.New("BLUEBUBBLES_API is required for the bluebubbles transport")
		}
	case TransportMatrix:
		if c.Matrix.Homeserver == "" || c.Matrix.UserID == "" || c.Matrix.AccessToken == "" {
			return errors.New("MATRIX_HOMESERVER, MATRIX_USER_ID and MATRIX_ACCESS_TOKEN are required for the matrix transport")
		}
	default:
		return fmt.Errorf("unknown transport %q (want %s or %s)", c.Transport, TransportBlueBubbles, TransportMatrix)
	}

	switch c.PrimaryProvider {
	case ProviderOpenAI, ProviderGemini:
	default:
		return fmt.Errorf("unknown primary provider %q (want %s or %s)", c.PrimaryProvider, ProviderOpenAI, ProviderGemini)
	}

	if strings.TrimSpace(c.BotTrigger) == "" {
		return errors.New("BOT_TRIGGER must not be empty")
	}
	if c.PollInterval <= 0 || c.QueueInterval <= 0 || c.CleanupInterval <= 0 {
		return errors.New("poll, queue and cleanup intervals must be positive")
	}
	if c.QueueBatch <= 0 {
		return fmt.Errorf("QUEUE_BATCH must be positive, got %d", c.QueueBatch)
	}
	return nil
}
