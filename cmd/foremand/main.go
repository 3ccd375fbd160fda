// Command foremand is the Foreman assistant daemon. It wires the datastore,
// resolver, payment estimator, tool registry, and session manager behind a
// small HTTP API.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/cobaltline/foreman/config"
	"github.com/cobaltline/foreman/internal/version"
	"github.com/cobaltline/foreman/metrics"
	"github.com/cobaltline/foreman/payment"
	"github.com/cobaltline/foreman/provider"
	"github.com/cobaltline/foreman/provider/mock"
	"github.com/cobaltline/foreman/resolve"
	"github.com/cobaltline/foreman/server"
	"github.com/cobaltline/foreman/session"
	"github.com/cobaltline/foreman/store"
	"github.com/cobaltline/foreman/tool"
)

var configPath = flag.String("config", "foreman.yaml", "path to config file")

func main() {
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config %s: %v", *configPath, err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	}))

	logger.Info("starting foremand",
		"version", version.Version,
		"commit", version.Commit,
	)

	st, err := store.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to open datastore %s: %v", cfg.DBPath, err)
	}
	defer st.Close()

	prov, err := buildProvider(cfg)
	if err != nil {
		log.Fatalf("Failed to build provider: %v", err)
	}

	promReg := prometheus.NewRegistry()
	m := metrics.New(promReg)

	resolver := resolve.New(st, st)
	estimator := payment.New(payment.Config{
		Provider:     prov,
		Logger:       logger,
		Metrics:      m,
		MaxAttempts:  cfg.Payment.MaxAttempts,
		HistoryLimit: cfg.Payment.HistoryLimit,
	})

	registry, err := tool.DefaultRegistry(tool.Deps{
		Store:     st,
		Resolver:  resolver,
		Estimator: estimator,
		Metrics:   m,
		Logger:    logger,
	})
	if err != nil {
		log.Fatalf("Failed to build tool registry: %v", err)
	}

	sessions, err := session.NewManager(session.Config{
		Provider:          prov,
		Registry:          registry,
		Metrics:           m,
		Logger:            logger,
		StepBudget:        cfg.Session.StepBudget,
		MaxSessions:       cfg.Session.MaxSessions,
		ConfirmGraceTurns: cfg.Session.ConfirmGraceTurns,
	})
	if err != nil {
		log.Fatalf("Failed to build session manager: %v", err)
	}

	srv := server.New(cfg.Server.Addr, sessions, promReg, logger)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("shutting down", "signal", sig.String())
	case err := <-errCh:
		if err != nil {
			log.Fatalf("Server error: %v", err)
		}
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("shutdown error", "error", err)
	}
	sessions.Reset()
	logger.Info("shutdown complete")
}

// loadConfig falls back to defaults when the config file does not exist.
func loadConfig(path string) (*config.Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return config.DefaultConfig(), nil
	}
	return config.Load(path)
}

func buildProvider(cfg *config.Config) (provider.Provider, error) {
	switch cfg.Provider.Name {
	case "mock":
		return mock.New(), nil
	case "anthropic", "":
		keyEnv := cfg.Provider.APIKeyEnv
		if keyEnv == "" {
			keyEnv = "ANTHROPIC_API_KEY"
		}
		key := os.Getenv(keyEnv)
		if key == "" {
			return nil, fmt.Errorf("environment variable %s is not set", keyEnv)
		}
		return provider.NewAnthropicProvider(provider.AnthropicConfig{
			APIKey: key,
			Model:  cfg.Provider.Model,
		}), nil
	}
	return nil, fmt.Errorf("unknown provider %q", cfg.Provider.Name)
}
