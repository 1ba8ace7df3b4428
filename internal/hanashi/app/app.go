// Package app wires the Hanashi components together.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/bdobrica/Hanashi/internal/hanashi/ai"
	"github.com/bdobrica/Hanashi/internal/hanashi/ai/gemini"
	"github.com/bdobrica/Hanashi/internal/hanashi/commands"
	"github.com/bdobrica/Hanashi/internal/hanashi/orchestrator"
	"github.com/bdobrica/Hanashi/internal/hanashi/store"
	"github.com/bdobrica/Hanashi/internal/hanashi/transport"
	"github.com/bdobrica/Hanashi/internal/hanashi/transport/bluebubbles"
	"github.com/bdobrica/Hanashi/internal/hanashi/transport/matrix"
	"github.com/bdobrica/Hanashi/internal/hanashi/trigger"
)

// App is the running daemon.
type App struct {
	config       *Config
	store        *store.Store
	orchestrator *orchestrator.Orchestrator
	healthServer *HealthServer
}

// New opens the store and builds the transport, AI providers and
// orchestrator. It fails with ai.ErrNoProvider when no chat provider is
// configured.
func New(ctx context.Context, config *Config) (*App, error) {
	aiClient, err := newAIClient(ctx, config)
	if err != nil {
		return nil, err
	}

	tr, err := newTransport(config)
	if err != nil {
		return nil, err
	}

	st, err := store.New(config.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize store: %w", err)
	}
	slog.Info("database initialized", "path", config.DatabasePath)

	orch, err := orchestrator.New(orchestrator.Config{
		PollInterval:    config.PollInterval,
		QueueInterval:   config.QueueInterval,
		CleanupInterval: config.CleanupInterval,
		QueueBatch:      config.QueueBatch,
		GlobalTriggers:  trigger.DefaultGlobal(config.BotTrigger),
	}, orchestrator.Deps{
		Store:     st,
		Transport: tr,
		AI:        aiClient,
		Commands:  commands.NewHandler(aiClient, st),
	})
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("failed to create orchestrator: %w", err)
	}

	var healthServer *HealthServer
	if config.HTTPAddr != "" {
		healthServer = NewHealthServer(config.HTTPAddr, orch)
	}

	return &App{
		config:       config,
		store:        st,
		orchestrator: orch,
		healthServer: healthServer,
	}, nil
}

// Run blocks until ctx is cancelled or the orchestrator fails.
func (a *App) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	if a.healthServer != nil {
		if err := a.healthServer.Start(gctx); err != nil {
			slog.Warn("health server failed to start; continuing without it", "err", err)
		}
	}

	g.Go(func() error {
		return a.orchestrator.Run(gctx)
	})

	slog.Info("Hanashi is running", "transport", a.config.Transport, "trigger", a.config.BotTrigger)
	return g.Wait()
}

// Stop releases the health server and the database.
func (a *App) Stop() {
	a.orchestrator.Shutdown()

	if a.healthServer != nil {
		slog.Info("stopping health server")
		a.healthServer.Stop()
	}

	slog.Info("closing database")
	if err := a.store.Close(); err != nil {
		slog.Warn("closing database", "err", err)
	}
}

func newTransport(config *Config) (transport.Transport, error) {
	switch config.Transport {
	case TransportMatrix:
		client, err := matrix.New(matrix.Config{
			Homeserver:  config.Matrix.Homeserver,
			UserID:      config.Matrix.UserID,
			AccessToken: config.Matrix.AccessToken,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create matrix transport: %w", err)
		}
		return client, nil
	case TransportBlueBubbles:
		return bluebubbles.New(bluebubbles.Config{
			BaseURL:  config.BlueBubbles.API,
			Password: config.BlueBubbles.Password,
		}), nil
	default:
		return nil, fmt.Errorf("unknown transport %q", config.Transport)
	}
}

// newAIClient builds the provider router. The primary backend is the
// configured PrimaryProvider, or the other hosted provider when that one has
// no key. Ollama is the alternate backend. Images need an OpenAI key.
func newAIClient(ctx context.Context, config *Config) (*ai.Router, error) {
	var openai *ai.OpenAI
	if config.OpenAI.APIKey != "" {
		openai = ai.NewOpenAI(ai.OpenAIConfig{
			APIKey:     config.OpenAI.APIKey,
			BaseURL:    config.OpenAI.BaseURL,
			Model:      config.OpenAI.Model,
			ImageModel: config.OpenAI.ImageModel,
		})
	}

	var geminiBackend *gemini.Backend
	if config.Gemini.APIKey != "" {
		b, err := gemini.New(ctx, gemini.Config{APIKey: config.Gemini.APIKey, Model: config.Gemini.Model})
		if err != nil {
			return nil, fmt.Errorf("failed to create gemini backend: %w", err)
		}
		geminiBackend = b
	}

	var primary ai.Backend
	switch {
	case config.PrimaryProvider == ProviderGemini && geminiBackend != nil:
		primary = geminiBackend
	case openai != nil:
		primary = openai
	case geminiBackend != nil:
		primary = geminiBackend
	}

	var alternate ai.Backend
	if config.Ollama.API != "" {
		alternate = ai.NewOllama(ai.OllamaConfig{BaseURL: config.Ollama.API, Model: config.Ollama.Model})
	}

	var images ai.ImageGenerator
	if openai != nil {
		images = openai
	}

	router, err := ai.NewRouter(primary, alternate, images)
	if err != nil {
		if errors.Is(err, ai.ErrNoProvider) {
			return nil, fmt.Errorf("configure OPENAI_API_KEY, GEMINI_API_KEY or OLLAMA_API: %w", err)
		}
		return nil, err
	}

	slog.Info("AI providers configured",
		"primary", backendName(primary),
		"alternate", backendName(alternate),
		"images", images != nil,
	)
	return router, nil
}

func backendName(b ai.Backend) string {
	if b == nil {
		return "none"
	}
	return b.Name()
}
