package portfolio

import (
	"context"
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/kart-io/logger"

	"github.com/smaxiso/portfolio-rag/internal/portfolio/biz"
	"github.com/smaxiso/portfolio-rag/internal/portfolio/handler"
	"github.com/smaxiso/portfolio-rag/internal/portfolio/metrics"
	"github.com/smaxiso/portfolio-rag/internal/portfolio/router"
	"github.com/smaxiso/portfolio-rag/pkg/auth/jwt"
	"github.com/smaxiso/portfolio-rag/pkg/authz"
	"github.com/smaxiso/portfolio-rag/pkg/infra/middleware"
	"github.com/smaxiso/portfolio-rag/pkg/infra/server"
	httpserver "github.com/smaxiso/portfolio-rag/pkg/infra/server/http"
	ratelimitopts "github.com/smaxiso/portfolio-rag/pkg/options/ratelimit"
)

// Server represents the portfolio server.
type Server struct {
	manager *server.Manager
	http    *httpserver.Server
}

// NewServer initializes and returns a new Server instance.
func (cfg *Config) NewServer(ctx context.Context) (*Server, error) {
	// 1. 初始化日志
	if err := cfg.initLogger(); err != nil {
		return nil, err
	}
	logger.Info("Starting portfolio service...")

	// 2. 初始化依赖组件
	c, err := cfg.buildComponents(ctx, false)
	if err != nil {
		return nil, err
	}
	manager := server.NewManager(
		server.WithShutdownTimeout(cfg.HTTPOptions.ShutdownTimeout),
		server.WithServers(c.closers...),
	)

	srv, err := cfg.newServer(c, manager)
	if err != nil {
		c.close(context.Background())
		return nil, err
	}
	return srv, nil
}

func (cfg *Config) newServer(c *components, manager *server.Manager) (*Server, error) {
	// 3. 初始化 Biz 层与 Handler 层
	chat := handler.NewChatHandler(nil, nil, c.metrics)
	ingest := handler.NewIngestHandler(nil)
	if c.configured() {
		ingestionPool, err := newIngestionPool()
		if err != nil {
			return nil, fmt.Errorf("failed to create ingestion pool: %w", err)
		}
		manager.AddServer(server.NewStopFunc("ingestion-pool", func(context.Context) error {
			return ingestionPool.Release(cfg.HTTPOptions.ShutdownTimeout)
		}))

		retriever := biz.NewRetriever(c.embedder, c.index, biz.RetrieverConfig{
			IndexName: cfg.RAGOptions.IndexName,
			TopK:      cfg.RAGOptions.TopK,
			MinScore:  cfg.RAGOptions.MinScore,
		}, c.metrics)
		responder := biz.NewResponder(c.generator, biz.ResponderConfig{
			HistoryTurns:          cfg.RAGOptions.HistoryTurns,
			GreetingMaxLen:        cfg.RAGOptions.GreetingMaxLen,
			DeclineWithoutContext: cfg.RAGOptions.DeclineWithoutContext,
		})
		chat = handler.NewChatHandler(retriever, responder, c.metrics)
		ingest = handler.NewIngestHandler(cfg.newIngestor(c, ingestionPool))
	}
	logger.Infow("Handler layer initialized", "configured", c.configured())

	// 4. 限流与管理员鉴权
	rateLimit, err := cfg.newRateLimit(c, manager)
	if err != nil {
		return nil, err
	}
	adminAuth, err := cfg.newAdminAuth()
	if err != nil {
		return nil, err
	}

	// 5. HTTP 服务与路由
	httpSrv := httpserver.NewServer(cfg.HTTPOptions,
		httpserver.WithTrustedProxies(cfg.RateLimitOptions.TrustedProxies),
	)
	router.Register(httpSrv.Engine(), router.Routes{
		Chat:      chat,
		Ingest:    ingest,
		Metrics:   c.metrics.Handler(),
		RateLimit: rateLimit,
		AdminAuth: adminAuth,
	})
	manager.AddServer(httpSrv)

	return &Server{manager: manager, http: httpSrv}, nil
}

func (cfg *Config) newRateLimit(c *components, manager *server.Manager) (gin.HandlerFunc, error) {
	opts := cfg.RateLimitOptions
	if !opts.Enabled {
		logger.Warn("Chat rate limiting is disabled")
		return nil, nil
	}

	var limiter middleware.RateLimiter
	switch {
	case opts.Backend == ratelimitopts.BackendRedis && c.redis != nil:
		limiter = middleware.NewRedisRateLimiter(c.redis, opts.MaxRequests, opts.Window, opts.KeyPrefix)
	default:
		if opts.Backend == ratelimitopts.BackendRedis {
			logger.Warn("Redis unavailable, rate limiting per replica in memory")
		}
		memory := middleware.NewMemoryRateLimiter(opts.MaxRequests, opts.Window)
		manager.AddServer(server.NewStopFunc("rate-limiter", func(context.Context) error {
			memory.Stop()
			return nil
		}))
		limiter = memory
	}
	logger.Infow("Chat rate limiter initialized",
		"backend", opts.Backend,
		"max_requests", opts.MaxRequests,
		"window", opts.Window.String(),
	)

	m := c.metrics
	return middleware.RateLimit(middleware.RateLimitConfig{
		Limiter:        limiter,
		TrustedProxies: opts.TrustedProxies,
		OnLimitReached: func(*gin.Context) { m.ChatRequest(metrics.OutcomeRateLimited) },
	}), nil
}

func (cfg *Config) newAdminAuth() (func(action string) gin.HandlerFunc, error) {
	if cfg.JWTOptions.DisableAuth {
		return nil, nil
	}

	verifier, err := jwt.New(jwt.WithOptions(cfg.JWTOptions))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize admin tokens: %w", err)
	}
	authorizer, err := authz.NewAllowList(router.AdminResource, cfg.JWTOptions.AdminEmails)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize admin allow-list: %w", err)
	}
	logger.Infow("Admin authentication enabled", "admins", len(cfg.JWTOptions.AdminEmails))

	return func(action string) gin.HandlerFunc {
		return middleware.AdminAuth(verifier, authorizer, router.AdminResource, action)
	}, nil
}

// Addr returns the HTTP listen address, the bound one once running.
func (s *Server) Addr() string {
	return s.http.Addr()
}

// Run starts every component and blocks until ctx is cancelled or a
// termination signal arrives.
func (s *Server) Run(ctx context.Context) error {
	logger.Info("Portfolio service is ready")
	return s.manager.Run(ctx)
}

// Start starts the server without waiting for a signal.
func (s *Server) Start(ctx context.Context) error {
	return s.manager.Start(ctx)
}

// Stop shuts the server down.
func (s *Server) Stop(ctx context.Context) error {
	return s.manager.Stop(ctx)
}
