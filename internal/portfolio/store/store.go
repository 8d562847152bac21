// Package store adapts vector databases to the index contract used by the
// knowledge base: list, create, upsert and query by cosine similarity.
//
// The in-memory index lives here; the database backends are in milvusindex
// and qdrantindex.
package store

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/kart-io/logger"

	"github.com/smaxiso/portfolio-rag/internal/portfolio/model"
)

// MetricCosine is the only supported similarity metric.
const MetricCosine = "cosine"

var (
	// ErrIndexNotFound is returned when querying or writing a missing index.
	ErrIndexNotFound = errors.New("vector index not found")
	// ErrDimensionMismatch is returned when a vector does not fit the index.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
)

// IndexSpec describes an index to create.
type IndexSpec struct {
	Name      string
	Dimension int
	Metric    string
}

// VectorIndex is the vector store contract.
type VectorIndex interface {
	// ListIndexes returns the names of the existing indexes.
	ListIndexes(ctx context.Context) ([]string, error)
	// CreateIndex creates an index; creating an existing index is not an error.
	CreateIndex(ctx context.Context, spec IndexSpec) error
	// Upsert writes records, replacing those with the same id.
	Upsert(ctx context.Context, index string, records []model.VectorRecord) error
	// Query returns up to topK matches ordered by descending score.
	Query(ctx context.Context, index string, vector []float32, topK int) ([]model.Match, error)
	// Close releases the connection.
	Close() error
}

// EnsureIndex creates the index unless it is already listed. A listed index
// still goes through CreateIndex so a backend can finish a setup that an
// earlier run left half done; created reports whether the index is new.
func EnsureIndex(ctx context.Context, idx VectorIndex, spec IndexSpec) (created bool, err error) {
	if spec.Metric == "" {
		spec.Metric = MetricCosine
	}
	if !strings.EqualFold(spec.Metric, MetricCosine) {
		return false, fmt.Errorf("unsupported metric %q", spec.Metric)
	}

	names, err := idx.ListIndexes(ctx)
	if err != nil {
		return false, fmt.Errorf("list indexes: %w", err)
	}
	created = !slices.Contains(names, spec.Name)

	if created {
		logger.Infow("creating vector index", "index", spec.Name, "dimension", spec.Dimension, "metric", spec.Metric)
	}
	if err := idx.CreateIndex(ctx, spec); err != nil {
		return false, fmt.Errorf("create index %s: %w", spec.Name, err)
	}
	return created, nil
}
