package biz

import (
	"context"
	"time"

	"github.com/kart-io/logger"

	"github.com/smaxiso/portfolio-rag/internal/portfolio/metrics"
	"github.com/smaxiso/portfolio-rag/pkg/llm"
)

// DocumentTitle is the title attached to every document embedding.
const DocumentTitle = "Portfolio Content"

// defaultEmbedTimeout bounds one embedding call.
const defaultEmbedTimeout = 30 * time.Second

// Embedder turns text into vectors. Failures never propagate as errors:
// callers get ok=false and decide whether to skip or abort.
type Embedder struct {
	provider  llm.EmbeddingProvider
	dimension int
	timeout   time.Duration
	metrics   *metrics.Metrics
}

// NewEmbedder creates an Embedder producing vectors of the given dimension.
func NewEmbedder(provider llm.EmbeddingProvider, dimension int, m *metrics.Metrics) *Embedder {
	return &Embedder{
		provider:  provider,
		dimension: dimension,
		timeout:   defaultEmbedTimeout,
		metrics:   m,
	}
}

// Embed returns the vector for text. Document embeddings carry DocumentTitle.
func (e *Embedder) Embed(ctx context.Context, text string, task llm.TaskType) ([]float32, bool) {
	opts := llm.EmbedOptions{Task: task, Dimensions: e.dimension}
	if task == llm.TaskDocument {
		opts.Title = DocumentTitle
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	vec, err := e.provider.EmbedWithTask(ctx, text, opts)
	if err != nil {
		logger.Warnw("embedding failed",
			"provider", e.provider.Name(),
			"task", string(task),
			"chars", len(text),
			"error", err.Error(),
		)
		e.metrics.EmbeddingFailure(string(task))
		return nil, false
	}
	if len(vec) == 0 {
		e.metrics.EmbeddingFailure(string(task))
		return nil, false
	}
	return vec, true
}
