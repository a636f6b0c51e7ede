// ABOUTME: Entry point for the chatcore conversation pipeline service.
// ABOUTME: Wires config, stores, adapters, notifier and dispatcher, then serves the ingest API.

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fatih/color"

	"github.com/2389/chatcore/internal/config"
	"github.com/2389/chatcore/internal/dedupe"
	"github.com/2389/chatcore/internal/dispatch"
	"github.com/2389/chatcore/internal/files"
	"github.com/2389/chatcore/internal/notify"
	"github.com/2389/chatcore/internal/pipeline"
	"github.com/2389/chatcore/internal/provider"
	"github.com/2389/chatcore/internal/runtime"
	"github.com/2389/chatcore/internal/session"
	"github.com/2389/chatcore/internal/stream"
)

// Version is set by goreleaser at build time.
var version = "dev"

const banner = `
        _           _
       | |         | |
   ___ | |__   __ _| |_ ___ ___  _ __ ___
  / __|| '_ \ / _' | __/ __/ _ \| '__/ _ \
 | (__ | | | | (_| | || (_| (_) | | |  __/
  \___||_| |_|\__,_|\__\___\___/|_|  \___|
`

// getConfigPath returns the path to the chatcore config file.
// Priority: CHATCORE_CONFIG env var > XDG_CONFIG_HOME/chatcore/chatcore.yaml > ~/.config/chatcore/chatcore.yaml
func getConfigPath() string {
	if envPath := os.Getenv("CHATCORE_CONFIG"); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "chatcore.yaml" // fallback
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "chatcore", "chatcore.yaml")
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	configPath := getConfigPath()

	cyan := color.New(color.FgCyan)
	cyan.Print(banner)

	gray := color.New(color.FgHiBlack)
	gray.Printf("    version: %s\n\n", version)

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := setupLogger(cfg.Logging)

	green := color.New(color.FgGreen)
	green.Print("    ▶ ")
	fmt.Printf("Config:  %s\n", configPath)
	green.Print("    ▶ ")
	fmt.Printf("HTTP:    %s\n", cfg.Server.HTTPAddr)
	green.Print("    ▶ ")
	fmt.Printf("Runtime: %s\n", cfg.Runtime.Endpoint)
	fmt.Println()

	logger.Info("starting chatcore",
		"config", configPath,
		"http_addr", cfg.Server.HTTPAddr,
		"runtime_endpoint", cfg.Runtime.Endpoint)

	// Session persistence and lifecycle
	store, err := session.NewSQLiteStore(cfg.Database.Path, logger)
	if err != nil {
		return fmt.Errorf("creating session store: %w", err)
	}
	defer store.Close()

	lifecycle := session.NewLifecycle(store, cfg.Session.MaxAge, cfg.Session.IdleTimeout, logger)

	// Attachment object store
	fileStore, err := files.NewDirStore(cfg.Files.Root)
	if err != nil {
		return fmt.Errorf("creating file store: %w", err)
	}

	// Runtime invoker and adapter registry
	resolver := runtime.RefResolver{
		Partition: cfg.Runtime.Partition,
		Region:    cfg.Runtime.Region,
		Account:   cfg.Runtime.Account,
	}
	invoker := runtime.NewHTTPClient(cfg.Runtime.Endpoint, resolver, cfg.Runtime.InvokeTimeout, logger)

	registry := provider.NewRegistry(provider.Deps{
		Invoker:      invoker,
		Files:        fileStore,
		SystemPrompt: cfg.Provider.SystemPrompt,
		Logger:       logger,
	})
	if err := provider.RegisterDefaults(registry); err != nil {
		return fmt.Errorf("registering adapters: %w", err)
	}

	// Outbound channel
	topic := notify.NewHTTPPublisher(cfg.Notifier.TopicURL, cfg.Notifier.PublishTimeout, logger)
	var direct notify.Notifier
	if cfg.Notifier.DirectURL != "" {
		sender := notify.NewDirectSender(cfg.Notifier.DirectURL, logger)
		defer sender.Close()
		direct = sender
	}
	notifier := notify.NewRouter(topic, direct, logger)

	// Pipeline and dispatcher
	svc := pipeline.New(registry, lifecycle, store, notifier, stream.NewDemuxer(logger), logger)

	cache := dedupe.New(cfg.Dispatch.DedupeTTL, cfg.Dispatch.DedupeMaxSize)
	defer cache.Close()

	dispatcher := dispatch.New(svc, cache, cfg.Dispatch.Workers, logger)

	server := &http.Server{
		Addr:    cfg.Server.HTTPAddr,
		Handler: dispatch.NewHTTPHandler(dispatcher, logger),
	}

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("ingest server: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	return server.Shutdown(shutdownCtx)
}

func setupLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}
