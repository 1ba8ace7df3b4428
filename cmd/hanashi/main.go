package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/bdobrica/Hanashi/common/version"
	"github.com/bdobrica/Hanashi/internal/hanashi/app"
	"github.com/bdobrica/Hanashi/internal/hanashi/observability"
)

func main() {
	fmt.Printf("Hanashi\n")
	fmt.Printf("Version: %s\n", version.Version)
	fmt.Printf("Commit: %s\n", version.GitCommit)
	fmt.Printf("Build Time: %s\n", version.BuildTime)
	fmt.Println()

	config, err := app.Load(os.Getenv("HANASHI_CONFIG"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	observability.Setup(config.LogLevel, config.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	hanashi, err := app.New(ctx, config)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize Hanashi: %v\n", err)
		os.Exit(1)
	}

	if err := hanashi.Run(ctx); err != nil {
		hanashi.Stop()
		fmt.Fprintf(os.Stderr, "Error running Hanashi: %v\n", err)
		os.Exit(1)
	}
	slog.Info("shutting down")
	hanashi.Stop()
}
