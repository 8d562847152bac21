// Package collector turns portfolio sources into chunks for the knowledge base.
//
// Every collector isolates item failures: a broken record, repository or PDF
// page is logged and skipped so one bad item never aborts an ingestion run.
package collector

import (
	"context"

	"github.com/smaxiso/portfolio-rag/internal/portfolio/model"
)

// Collector produces chunks from one source.
type Collector interface {
	// Name identifies the source in logs and metrics.
	Name() string
	// Collect returns the chunks of the source. An error means the whole
	// source was unavailable, never that a single item failed.
	Collect(ctx context.Context) ([]model.Chunk, error)
}
