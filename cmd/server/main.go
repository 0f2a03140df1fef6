// Command server runs the codewright code generation service.
//
// Configuration is layered: built-in defaults, an optional YAML config
// file (-config flag, CODEWRIGHT_CONFIG, ./config.yaml or
// /etc/codewright/config.yaml), then CODEWRIGHT_* environment variable
// overrides. See pkg/config for the full reference.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/codewright-io/codewright/pkg/api"
	"github.com/codewright-io/codewright/pkg/config"
	"github.com/codewright-io/codewright/pkg/debug"
	"github.com/codewright-io/codewright/pkg/engine"
	"github.com/codewright-io/codewright/pkg/gateway/openaicompat"
	"github.com/codewright-io/codewright/pkg/observability"
	"github.com/codewright-io/codewright/pkg/sandbox"
	"github.com/codewright-io/codewright/pkg/storage/memory"
	"github.com/codewright-io/codewright/pkg/storage/postgres"
	"github.com/codewright-io/codewright/pkg/transport"
	transporthttp "github.com/codewright-io/codewright/pkg/transport/http"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	debug.Init(cfg.Debug.Categories, cfg.Debug.Level)

	log := slog.Default()

	// Create store.
	store, err := newStore(context.Background(), cfg.Storage)
	if err != nil {
		return fmt.Errorf("creating store: %w", err)
	}
	defer store.Close()

	// Create generation gateway.
	gw := openaicompat.New(openaicompat.Config{
		BaseURL: cfg.Gateway.BackendURL,
		APIKey:  cfg.Gateway.APIKey,
		Model:   cfg.Gateway.Model,
		Timeout: cfg.Gateway.Timeout,
	}, log)

	// Create sandbox runner.
	runner := sandbox.NewRunner(sandbox.Config{
		Interpreter:    cfg.Sandbox.Interpreter,
		Timeout:        cfg.Sandbox.Timeout,
		Grace:          cfg.Sandbox.Grace,
		MaxOutputBytes: cfg.Sandbox.MaxOutputBytes,
	}, log)

	// Create engine.
	eng, err := engine.New(gw, runner, store, engine.Config{
		Validation: api.ValidationConfig{
			MaxTaskLength:    cfg.Engine.MaxTaskLength,
			MaxSuppliedTests: cfg.Engine.MaxSuppliedTests,
			MaxIterations:    cfg.Engine.MaxIterations,
		},
	}, engine.WithLogger(log))
	if err != nil {
		return fmt.Errorf("creating engine: %w", err)
	}

	opts := []transporthttp.ServerOption{
		transporthttp.WithAddr(fmt.Sprintf(":%d", cfg.Server.Port)),
		transporthttp.WithMaxBodySize(cfg.Server.MaxBodySize),
		transporthttp.WithShutdownTimeout(cfg.Server.ShutdownTimeout),
		transporthttp.WithLogger(log),
	}
	if cfg.Observability.Metrics.Enabled {
		opts = append(opts,
			transporthttp.WithExtraHandler(cfg.Observability.Metrics.Path, promhttp.Handler()),
			transporthttp.WithHTTPMiddleware(observability.MetricsMiddleware),
		)
	}

	srv := transporthttp.NewServer(eng, store, opts...)

	log.Info("starting codewright server",
		"port", cfg.Server.Port,
		"backend", cfg.Gateway.BackendURL,
		"model", cfg.Gateway.Model,
		"storage", cfg.Storage.Type)

	return srv.ListenAndServe()
}

func newStore(ctx context.Context, cfg config.StorageConfig) (transport.RunStore, error) {
	switch cfg.Type {
	case "postgres":
		return postgres.New(ctx, postgres.Config{
			DSN:            cfg.Postgres.DSN,
			MaxConns:       cfg.Postgres.MaxConns,
			MigrateOnStart: cfg.Postgres.MigrateOnStart,
		})
	default:
		return memory.New(cfg.MaxSize), nil
	}
}
