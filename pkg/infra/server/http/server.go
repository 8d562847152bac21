// Package http provides the gin based HTTP server.
package http

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/kart-io/logger"

	apierrors "github.com/smaxiso/portfolio-rag/pkg/errors"
	"github.com/smaxiso/portfolio-rag/pkg/infra/middleware"
	"github.com/smaxiso/portfolio-rag/pkg/infra/server"
	httpopts "github.com/smaxiso/portfolio-rag/pkg/options/http"
	"github.com/smaxiso/portfolio-rag/pkg/response"
)

// Option configures a Server.
type Option func(*Server)

// WithTrustedProxies sets the proxies whose forwarding headers are honored
// when logging the client address.
func WithTrustedProxies(proxies []string) Option {
	return func(s *Server) {
		s.trustedProxies = proxies
	}
}

// WithMiddleware appends middleware after the default chain.
func WithMiddleware(mw ...gin.HandlerFunc) Option {
	return func(s *Server) {
		s.extra = append(s.extra, mw...)
	}
}

// Server is the HTTP server implementation.
type Server struct {
	opts           *httpopts.Options
	engine         *gin.Engine
	trustedProxies []string
	extra          []gin.HandlerFunc

	mu       sync.Mutex
	server   *http.Server
	listener net.Listener
}

var _ server.Runnable = (*Server)(nil)

// NewServer creates a new HTTP server with the given options.
func NewServer(opts *httpopts.Options, options ...Option) *Server {
	if opts == nil {
		opts = httpopts.NewOptions()
	}
	if opts.Mode != "" {
		gin.SetMode(opts.Mode)
	}

	// 创建 Gin 引擎（不使用默认中间件）
	s := &Server{
		opts:   opts,
		engine: gin.New(),
	}
	for _, o := range options {
		o(s)
	}

	// 中间件必须在注册路由之前应用，子路由组才会继承
	s.applyMiddleware()
	s.engine.NoRoute(func(c *gin.Context) {
		response.Fail(c, apierrors.ErrRouteNotFound)
	})
	return s
}

// applyMiddleware installs the default chain.
// Recovery 最先执行，RequestID 为后续中间件提供请求标识。
func (s *Server) applyMiddleware() {
	loggerConfig := middleware.DefaultLoggerConfig
	loggerConfig.TrustedProxies = s.trustedProxies

	s.engine.Use(
		middleware.Recovery(),
		middleware.RequestID(),
		middleware.Tracing(),
		middleware.Logger(loggerConfig),
		middleware.CORS(s.opts.CORSOrigins),
	)
	if len(s.extra) > 0 {
		s.engine.Use(s.extra...)
	}
}

// Name returns the server name.
func (s *Server) Name() string {
	return "http[gin]"
}

// Engine returns the underlying gin.Engine.
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

// Addr returns the bound address once started, the configured one before.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.opts.Addr
}

// Start binds the listen address and serves in the background. Bind errors
// are returned synchronously.
func (s *Server) Start(ctx context.Context) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", s.opts.Addr)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Handler:      s.engine,
		ReadTimeout:  s.opts.ReadTimeout,
		WriteTimeout: s.opts.WriteTimeout,
		IdleTimeout:  s.opts.IdleTimeout,
	}

	s.mu.Lock()
	s.server = srv
	s.listener = ln
	s.mu.Unlock()

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Errorw("HTTP server stopped unexpectedly", "addr", ln.Addr().String(), "error", err.Error())
		}
	}()
	logger.Infow("HTTP server listening", "addr", ln.Addr().String())
	return nil
}

// Stop stops the HTTP server gracefully.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	srv := s.server
	s.server = nil
	s.mu.Unlock()

	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}
