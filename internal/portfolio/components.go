package portfolio

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/kart-io/logger"
	"github.com/kart-io/version"
	goredis "github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/smaxiso/portfolio-rag/internal/portfolio/biz"
	"github.com/smaxiso/portfolio-rag/internal/portfolio/collector"
	"github.com/smaxiso/portfolio-rag/internal/portfolio/content"
	"github.com/smaxiso/portfolio-rag/internal/portfolio/metrics"
	"github.com/smaxiso/portfolio-rag/internal/portfolio/store"
	"github.com/smaxiso/portfolio-rag/pkg/component/redis"
	"github.com/smaxiso/portfolio-rag/pkg/infra/pool"
	"github.com/smaxiso/portfolio-rag/pkg/infra/server"
	"github.com/smaxiso/portfolio-rag/pkg/infra/tracing"
	"github.com/smaxiso/portfolio-rag/pkg/llm"
	"github.com/smaxiso/portfolio-rag/pkg/llm/gemini"
	"github.com/smaxiso/portfolio-rag/pkg/llm/resilience"
	storeopts "github.com/smaxiso/portfolio-rag/pkg/options/store"
)

// ErrNotConfigured is returned in strict mode when the language model or
// the vector store cannot be used.
var ErrNotConfigured = errors.New("AI services not configured")

// components are the clients shared by the server and the ingest command.
// index, embedder and generator are nil when the service is not configured.
type components struct {
	metrics   *metrics.Metrics
	redis     goredis.UniversalClient
	db        *gorm.DB
	repo      content.Repository
	index     store.VectorIndex
	embedder  *biz.Embedder
	generator llm.GenerationProvider
	status    biz.StatusStore

	// closers run in reverse order on shutdown.
	closers []server.Runnable
}

// buildComponents opens every client. In strict mode a missing API key or an
// unreachable vector store is an error, otherwise it only disables chat.
func (cfg *Config) buildComponents(ctx context.Context, strict bool) (_ *components, err error) {
	c := &components{metrics: metrics.New()}
	defer func() {
		if err != nil {
			c.close(context.Background())
		}
	}()

	// 1. 链路追踪
	tp, err := tracing.NewProvider(ctx, cfg.TracingOptions, version.Get().GitVersion)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tracing: %w", err)
	}
	c.addCloser("tracing", tp.Shutdown)

	// 2. Redis（可选，不可用时退化为内存实现）
	c.redis = cfg.openRedis(ctx)
	if c.redis != nil {
		client := c.redis
		c.addCloser("redis", func(context.Context) error { return client.Close() })
		c.status = biz.NewRedisStatusStore(client, biz.DefaultStatusKey)
	} else {
		c.status = biz.NewMemoryStatusStore()
	}

	// 3. 内容数据库
	c.db, err = content.Open(cfg.ContentOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to open content database: %w", err)
	}
	db := c.db
	c.addCloser("content-db", func(context.Context) error { return content.Close(db) })
	c.repo = content.NewRepository(c.db)
	logger.Infow("Content database opened", "driver", cfg.ContentOptions.Driver)

	// 4. LLM 供应商
	if !cfg.GeminiOptions.Configured() {
		if strict {
			return nil, fmt.Errorf("%w: gemini api key is missing", ErrNotConfigured)
		}
		logger.Warn("Gemini API key missing, chat will answer 503")
		return c, nil
	}
	provider, err := llm.NewProvider(gemini.ProviderName, cfg.GeminiOptions.ToConfigMap())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize gemini provider: %w", err)
	}
	if cfg.GeminiOptions.BreakerFailures > 0 {
		provider = resilience.Wrap(provider, resilience.Config{
			MaxFailures:      cfg.GeminiOptions.BreakerFailures,
			OpenTimeout:      cfg.GeminiOptions.BreakerTimeout,
			HalfOpenMaxCalls: 1,
		})
	}
	var embeddings llm.EmbeddingProvider = provider
	if c.redis != nil {
		cacheConfig := llm.DefaultEmbeddingCacheConfig()
		cacheConfig.Namespace = cfg.GeminiOptions.EmbedModel
		embeddings = llm.NewCachedEmbeddingProvider(provider, c.redis, cacheConfig)
		logger.Infow("Embedding cache enabled", "ttl", cacheConfig.TTL.String())
	}
	logger.Infow("LLM provider initialized",
		"provider", provider.Name(),
		"embed_model", cfg.GeminiOptions.EmbedModel,
		"chat_model", cfg.GeminiOptions.ChatModel,
	)

	// 5. 向量存储
	index, err := cfg.openIndex(ctx)
	if err != nil {
		if strict {
			return nil, fmt.Errorf("%w: %v", ErrNotConfigured, err)
		}
		logger.Warnw("Vector store unavailable, chat will answer 503", "backend", cfg.StoreOptions.Backend, "error", err.Error())
		return c, nil
	}
	c.index = index
	c.addCloser("vector-index", func(context.Context) error { return index.Close() })
	logger.Infow("Vector store initialized", "backend", cfg.StoreOptions.Backend)

	c.embedder = biz.NewEmbedder(embeddings, cfg.RAGOptions.Dimension, c.metrics)
	c.generator = provider
	return c, nil
}

// configured reports whether chat and ingestion can run.
func (c *components) configured() bool {
	return c.index != nil && c.embedder != nil && c.generator != nil
}

func (c *components) addCloser(name string, stop func(context.Context) error) {
	c.closers = append(c.closers, server.NewStopFunc(name, stop))
}

// close runs the closers in reverse order, logging failures.
func (c *components) close(ctx context.Context) {
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i].Stop(ctx); err != nil {
			logger.Warnw("failed to close component", "name", c.closers[i].Name(), "error", err.Error())
		}
	}
	c.closers = nil
}

func (cfg *Config) openRedis(ctx context.Context) goredis.UniversalClient {
	opts := cfg.RedisOptions
	if opts == nil || !opts.Enabled {
		return nil
	}

	client, err := redis.New(ctx, opts)
	if err != nil {
		logger.Warnw("failed to connect to redis, falling back to memory", "error", err.Error())
		return nil
	}
	logger.Infow("Redis connected", "redis", opts.String())
	return client
}

func (cfg *Config) openIndex(ctx context.Context) (store.VectorIndex, error) {
	if cfg.StoreOptions.Backend == storeopts.BackendMemory {
		logger.Warn("Using the in-memory vector index, vectors are lost on restart")
		return store.NewMemoryIndex(), nil
	}
	return cfg.openRemoteIndex(ctx)
}

func (cfg *Config) indexSpec() store.IndexSpec {
	return store.IndexSpec{
		Name:      cfg.RAGOptions.IndexName,
		Dimension: cfg.RAGOptions.Dimension,
		Metric:    cfg.RAGOptions.Metric,
	}
}

// collectors returns the sources in the order their chunks are ingested:
// database content, résumé, repository documentation.
func (cfg *Config) collectors(repo content.Repository) []collector.Collector {
	opts := cfg.RAGOptions
	return []collector.Collector{
		collector.NewDatabaseCollector(repo),
		collector.NewResumeCollector(collector.ResumeConfig{
			ProjectRoot:  opts.ProjectRoot,
			LocalPath:    filepath.FromSlash(opts.ResumePath),
			SiteURL:      opts.SiteURL,
			ChunkSize:    opts.ChunkSize,
			ChunkOverlap: opts.ChunkOverlap,
		}, repo, nil),
		collector.NewGitHubCollector(repo, collector.NewGitHubClient(collector.GitHubConfig{
			Token:     opts.GitHubToken,
			Branches:  opts.GitHubBranches,
			TreeLimit: opts.GitHubTreeLimit,
		})),
	}
}

// newIngestor builds the orchestrator. submitter may be nil for synchronous runs.
func (cfg *Config) newIngestor(c *components, submitter biz.Submitter) *biz.Ingestor {
	return biz.NewIngestor(
		c.index,
		c.embedder,
		cfg.collectors(c.repo),
		c.status,
		submitter,
		biz.IngestorConfig{
			Index:     cfg.indexSpec(),
			BatchSize: cfg.RAGOptions.BatchSize,
		},
		c.metrics,
	)
}

// newIngestionPool creates the background pool. Runs never overlap; the
// second slot covers a finished worker that has not returned to the pool yet.
func newIngestionPool() (*pool.Pool, error) {
	config := pool.BackgroundPoolConfig()
	config.Capacity = 2
	config.ExpiryDuration = 10 * time.Minute
	return pool.NewPool("ingestion", config)
}
