// Package milvusindex stores knowledge base vectors in Milvus collections.
//
// It is kept apart from the qdrant backend: both SDKs register a
// "common.proto" descriptor and cannot be linked into one binary.
package milvusindex

import (
	"context"
	"fmt"
	"slices"

	"github.com/kart-io/logger"

	"github.com/smaxiso/portfolio-rag/internal/portfolio/model"
	"github.com/smaxiso/portfolio-rag/internal/portfolio/store"
	"github.com/smaxiso/portfolio-rag/pkg/component/milvus"
)

// Milvus VARCHAR limits, in bytes.
const (
	TextMaxLen = 65535
	MetaMaxLen = 2048
)

// Index stores records in Milvus, one collection per index.
type Index struct {
	client *milvus.Client
}

var _ store.VectorIndex = (*Index)(nil)

// New wraps a connected client.
func New(client *milvus.Client) *Index {
	return &Index{client: client}
}

// ListIndexes implements store.VectorIndex.
func (m *Index) ListIndexes(ctx context.Context) ([]string, error) {
	return m.client.ListCollections(ctx)
}

// CreateIndex implements store.VectorIndex.
func (m *Index) CreateIndex(ctx context.Context, spec store.IndexSpec) error {
	return m.client.CreateCollection(ctx, &milvus.CollectionSchema{
		Name:        spec.Name,
		Description: "portfolio knowledge base",
		Dimension:   spec.Dimension,
		MetaFields:  metaFields(),
	})
}

func metaFields() []milvus.MetaField {
	fields := make([]milvus.MetaField, 0, len(model.MetadataKeys))
	for _, key := range model.MetadataKeys {
		fields = append(fields, milvus.MetaField{Name: key, MaxLen: fieldLimit(key)})
	}
	return fields
}

func fieldLimit(key string) int {
	if key == model.KeyText {
		return TextMaxLen
	}
	return MetaMaxLen
}

// Upsert implements store.VectorIndex. Records with a value longer than its
// column are skipped; a shortened copy would no longer match the chunk text.
func (m *Index) Upsert(ctx context.Context, index string, records []model.VectorRecord) error {
	data, skipped := toColumns(records)
	for _, id := range skipped {
		logger.Warnw("record exceeds milvus column size, skipped", "index", index, "id", id)
	}
	return m.client.Upsert(ctx, index, data)
}

// toColumns converts rows to columns. Every metadata key gets a value so the
// columns stay aligned. It returns the ids of the records left out.
func toColumns(records []model.VectorRecord) (*milvus.UpsertData, []string) {
	data := &milvus.UpsertData{
		IDs:        make([]string, 0, len(records)),
		Embeddings: make([][]float32, 0, len(records)),
		Metadata:   make(map[string][]string, len(model.MetadataKeys)),
	}
	for _, key := range model.MetadataKeys {
		data.Metadata[key] = make([]string, 0, len(records))
	}

	var skipped []string
	for _, r := range records {
		if !fits(r) {
			skipped = append(skipped, r.ID)
			continue
		}
		data.IDs = append(data.IDs, r.ID)
		data.Embeddings = append(data.Embeddings, r.Values)
		for _, key := range model.MetadataKeys {
			data.Metadata[key] = append(data.Metadata[key], r.Metadata[key])
		}
	}
	return data, skipped
}

func fits(r model.VectorRecord) bool {
	for _, key := range model.MetadataKeys {
		if len(r.Metadata[key]) > fieldLimit(key) {
			return false
		}
	}
	return true
}

// Query implements store.VectorIndex.
func (m *Index) Query(ctx context.Context, index string, vector []float32, topK int) ([]model.Match, error) {
	results, err := m.client.Search(ctx, index, vector, topK, slices.Clone(model.MetadataKeys))
	if err != nil {
		return nil, fmt.Errorf("milvus query: %w", err)
	}

	matches := make([]model.Match, 0, len(results))
	for _, r := range results {
		matches = append(matches, model.Match{ID: r.ID, Score: float64(r.Score), Metadata: r.Metadata})
	}
	return matches, nil
}

// Close implements store.VectorIndex.
func (m *Index) Close() error {
	return m.client.Close(context.Background())
}
