// Package app provides the ingestion command line application.
package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/smaxiso/portfolio-rag/cmd/portfolio-ingest/app/options"
	"github.com/smaxiso/portfolio-rag/pkg/infra/app"
)

const (
	// Name is the name of the application.
	Name = "portfolio-ingest"

	commandDesc = `Rebuild the portfolio knowledge base.

Collects the portfolio database content, the résumé and the README of every
project repository, embeds the chunks and replaces the vector index. The
command exits non-zero when the run fails or the AI services are not
configured.`

	tokenDesc = `Mint an admin token for the ingestion endpoints.

Only emails listed in jwt.admin-emails get a token.`
)

// NewApp creates the ingest command with its token subcommand.
func NewApp() *app.App {
	opts := options.NewIngestOptions()
	tokenOpts := options.NewTokenOptions()

	token := app.NewApp(
		app.WithName("token"),
		app.WithShortDescription("Mint an admin token"),
		app.WithDescription(tokenDesc),
		app.WithOptions(tokenOpts),
		app.WithRunFunc(runToken(tokenOpts)),
		app.WithNoVersion(),
	)

	return app.NewApp(
		app.WithName(Name),
		app.WithShortDescription("Rebuild the portfolio knowledge base"),
		app.WithDescription(commandDesc),
		app.WithOptions(opts),
		app.WithRunFunc(runIngest(opts)),
		app.WithSubApps(token),
	)
}

func runIngest(opts *options.IngestOptions) app.RunFunc {
	return func(_ []string) error {
		cfg, err := opts.Config()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		status, err := cfg.RunIngestion(ctx)
		if err != nil {
			return fmt.Errorf("ingestion failed: %w", err)
		}
		fmt.Printf("ingestion %s: %d vectors\n", status.State, status.Vectors)
		return nil
	}
}

func runToken(opts *options.TokenOptions) app.RunFunc {
	return func(_ []string) error {
		cfg, err := opts.Config()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}

		token, expires, err := cfg.MintAdminToken(context.Background(), opts.Email)
		if err != nil {
			return fmt.Errorf("failed to mint token: %w", err)
		}
		fmt.Println(token)
		fmt.Fprintf(os.Stderr, "expires at %s\n", expires.Format(time.RFC3339))
		return nil
	}
}
