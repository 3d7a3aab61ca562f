// Package app contains the core application logic. It defines the main App
// struct, its configuration, and the primary execution lifecycle, decoupled
// from any specific entrypoint like a CLI or server.
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/specialistvlad/pgerun/internal/ctxlog"
	"github.com/specialistvlad/pgerun/internal/pipeline"
	"github.com/specialistvlad/pgerun/internal/runner"
)

// App encapsulates the application's dependencies, configuration, and lifecycle.
type App struct {
	outW     io.Writer
	logger   *slog.Logger
	registry *pipeline.Registry
	config   *Config
}

// NewApp is the constructor for the main application. It returns a fully
// initialized App instance, including its own isolated logger and descriptor
// registry. A failure to load the descriptor registry is a fatal startup
// error, so it panics; the entrypoint recovers to present a clean message.
func NewApp(outW io.Writer, config *Config) *App {
	logger := newLogger(config.LogLevel, config.LogFormat, outW)
	ctx := ctxlog.WithLogger(context.Background(), logger)
	logger.Debug("Logger configured successfully.")

	registry, err := pipeline.LoadDir(ctx, config.PipelinesPath)
	if err != nil {
		// A failure to load the deployed descriptors is a fatal startup error.
		panic(fmt.Errorf("failed to load pipeline descriptors: %w", err))
	}
	logger.Debug("Pipeline descriptor registry loaded.", "pipeline_count", registry.Len())

	return &App{
		outW:     outW,
		logger:   logger,
		registry: registry,
		config:   config,
	}
}

// Registry returns the application's descriptor registry. This is primarily
// for testing.
func (a *App) Registry() *pipeline.Registry {
	return a.registry
}

// Run executes one PGE run and returns the process exit code produced by the
// state machine.
func (a *App) Run(ctx context.Context) int {
	a.logger.Debug("App.Run method started.", "runconfig", a.config.RunConfigPath)

	factory := func(w io.Writer) *slog.Logger {
		return newLogger(a.config.LogLevel, a.config.LogFormat, w)
	}
	exitCode := runner.New(a.registry, a.outW, factory).Run(ctx, a.config.RunConfigPath)

	a.logger.Debug("App.Run method finished.", "exit_code", exitCode)
	return exitCode
}
