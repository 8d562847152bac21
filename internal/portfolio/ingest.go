package portfolio

import (
	"context"
	"fmt"
	"time"

	"github.com/kart-io/logger"
	"github.com/kart-io/version"

	"github.com/smaxiso/portfolio-rag/internal/portfolio/biz"
	"github.com/smaxiso/portfolio-rag/internal/portfolio/router"
	"github.com/smaxiso/portfolio-rag/pkg/auth/jwt"
	"github.com/smaxiso/portfolio-rag/pkg/authz"
)

func (cfg *Config) initLogger() error {
	cfg.LogOptions.AddInitialField("service.name", Name)
	cfg.LogOptions.AddInitialField("service.version", version.Get().GitVersion)
	if err := cfg.LogOptions.Init(); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	return nil
}

// RunIngestion rebuilds the knowledge base once and waits for the result.
// Missing credentials and run-level failures are returned as errors.
func (cfg *Config) RunIngestion(ctx context.Context) (biz.Status, error) {
	if err := cfg.initLogger(); err != nil {
		return biz.Status{}, err
	}

	c, err := cfg.buildComponents(ctx, true)
	if err != nil {
		return biz.Status{}, err
	}
	defer c.close(context.WithoutCancel(ctx))

	logger.Infow("Starting ingestion", "index", cfg.RAGOptions.IndexName, "backend", cfg.StoreOptions.Backend)
	status, err := cfg.newIngestor(c, nil).Run(ctx)
	if err != nil {
		return status, err
	}
	logger.Infow("Ingestion completed", "vectors", status.Vectors)
	return status, nil
}

// MintAdminToken signs an admin token for email. Only allow-listed emails
// get a token, anything else would be rejected by the server anyway.
func (cfg *Config) MintAdminToken(ctx context.Context, email string) (string, time.Time, error) {
	signer, err := jwt.New(jwt.WithOptions(cfg.JWTOptions))
	if err != nil {
		return "", time.Time{}, err
	}
	authorizer, err := authz.NewAllowList(router.AdminResource, cfg.JWTOptions.AdminEmails)
	if err != nil {
		return "", time.Time{}, err
	}

	allowed, err := authorizer.Authorize(ctx, email, router.AdminResource, router.ActionTrigger)
	if err != nil {
		return "", time.Time{}, err
	}
	if !allowed {
		return "", time.Time{}, fmt.Errorf("%s is not in jwt.admin-emails", jwt.NormalizeEmail(email))
	}
	return signer.Sign(ctx, email)
}
