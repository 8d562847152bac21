// Package app provides the portfolio chat server application.
package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/smaxiso/portfolio-rag/cmd/portfolio-rag/app/options"
	"github.com/smaxiso/portfolio-rag/internal/portfolio"
	"github.com/smaxiso/portfolio-rag/pkg/infra/app"
)

// commandDesc is the description of the command.
const commandDesc = `Portfolio RAG Service

Answers visitor questions about the portfolio owner from a vector knowledge
base built out of the portfolio database, the résumé and project READMEs.

This server provides:
  - Streaming chat grounded in retrieved portfolio content
  - Admin endpoints to rebuild the knowledge base and read its status
  - Per-client rate limiting, health, version and Prometheus metrics`

// NewApp creates and returns a new App object with default parameters.
func NewApp() *app.App {
	opts := options.NewServerOptions()
	return app.NewApp(
		app.WithName(portfolio.Name),
		app.WithDescription(commandDesc),
		app.WithOptions(opts),
		app.WithRunFunc(run(opts)),
	)
}

// run contains the main logic for initializing and running the server.
func run(opts *options.ServerOptions) app.RunFunc {
	return func(_ []string) error {
		cfg, err := opts.Config()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}

		ctx := setupSignalContext()

		server, err := cfg.NewServer(ctx)
		if err != nil {
			return fmt.Errorf("failed to create server: %w", err)
		}

		return server.Run(ctx)
	}
}

// setupSignalContext returns a context that is cancelled on SIGINT or SIGTERM.
// A second signal exits immediately.
func setupSignalContext() context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	c := make(chan os.Signal, 2)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-c
		cancel()
		<-c
		os.Exit(1)
	}()
	return ctx
}
