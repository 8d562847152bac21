package biz

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kart-io/logger"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/smaxiso/portfolio-rag/internal/portfolio/metrics"
	"github.com/smaxiso/portfolio-rag/internal/portfolio/model"
	"github.com/smaxiso/portfolio-rag/internal/portfolio/store"
	"github.com/smaxiso/portfolio-rag/pkg/llm"
)

// Retrieval defaults.
const (
	DefaultTopK     = 4
	DefaultMinScore = 0.35
)

// ErrQueryEmbedding is returned when the question could not be embedded.
var ErrQueryEmbedding = errors.New("failed to embed query")

// RetrieverConfig 检索器配置。
type RetrieverConfig struct {
	// IndexName 检索的索引。
	IndexName string
	// TopK 返回的结果数量。
	TopK int
	// MinScore 相关性阈值，得分必须严格大于该值。
	MinScore float64
}

// RetrievalResult 表示检索结果。
type RetrievalResult struct {
	// Context 拼接后的上下文，无相关结果时为空。
	Context string
	// HasRelevantContext 至少一个结果超过阈值。
	HasRelevantContext bool
	// Matches 超过阈值的结果，按得分降序。
	Matches []model.Match
}

// Retriever 负责问题检索。
type Retriever struct {
	embedder *Embedder
	index    store.VectorIndex
	config   RetrieverConfig
	metrics  *metrics.Metrics
	tracer   trace.Tracer
}

// NewRetriever 创建检索器实例。
func NewRetriever(embedder *Embedder, index store.VectorIndex, config RetrieverConfig, m *metrics.Metrics) *Retriever {
	if config.TopK <= 0 {
		config.TopK = DefaultTopK
	}
	return &Retriever{
		embedder: embedder,
		index:    index,
		config:   config,
		metrics:  m,
		tracer:   otel.Tracer(tracerName),
	}
}

// Retrieve embeds the query, fetches the nearest chunks and keeps those
// scoring strictly above the configured threshold.
func (r *Retriever) Retrieve(ctx context.Context, query string) (*RetrievalResult, error) {
	return r.RetrieveWith(ctx, query, r.config.TopK, r.config.MinScore)
}

// RetrieveWith is Retrieve with an explicit topK and threshold.
func (r *Retriever) RetrieveWith(ctx context.Context, query string, topK int, minScore float64) (*RetrievalResult, error) {
	ctx, span := r.tracer.Start(ctx, "chat.retrieve", trace.WithAttributes(
		attribute.Int("top_k", topK),
		attribute.Float64("min_score", minScore),
	))
	defer span.End()
	start := time.Now()

	vec, ok := r.embedder.Embed(ctx, query, llm.TaskQuery)
	if !ok {
		span.SetStatus(codes.Error, ErrQueryEmbedding.Error())
		return nil, ErrQueryEmbedding
	}

	matches, err := r.index.Query(ctx, r.config.IndexName, vec, topK)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("query index %s: %w", r.config.IndexName, err)
	}

	result := Select(matches, minScore)
	r.metrics.Retrieval(time.Since(start), result.HasRelevantContext)
	span.SetAttributes(
		attribute.Int("matches", len(matches)),
		attribute.Int("relevant", len(result.Matches)),
	)
	logger.Debugw("retrieval finished",
		"matches", len(matches),
		"relevant", len(result.Matches),
		"duration", time.Since(start).String(),
	)
	return result, nil
}

// Select keeps the matches scoring strictly above minScore, in the given
// order, and joins their text as the context.
func Select(matches []model.Match, minScore float64) *RetrievalResult {
	result := &RetrievalResult{}
	parts := make([]string, 0, len(matches))
	for _, m := range matches {
		if m.Score <= minScore {
			continue
		}
		result.Matches = append(result.Matches, m)
		parts = append(parts, "---\n"+m.Text()+"\n---")
	}
	result.HasRelevantContext = len(result.Matches) > 0
	result.Context = strings.Join(parts, "\n")
	return result
}
