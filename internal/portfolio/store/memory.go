package store

import (
	"context"
	"fmt"
	"maps"
	"math"
	"slices"
	"sort"
	"sync"

	"github.com/smaxiso/portfolio-rag/internal/portfolio/model"
)

type memoryIndex struct {
	dimension int
	records   map[string]model.VectorRecord
}

// MemoryIndex is an in-process VectorIndex using exact cosine similarity.
// Used for local development and tests.
type MemoryIndex struct {
	mu      sync.RWMutex
	indexes map[string]*memoryIndex
}

var _ VectorIndex = (*MemoryIndex)(nil)

// NewMemoryIndex creates an empty in-memory store.
func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{indexes: make(map[string]*memoryIndex)}
}

// ListIndexes implements VectorIndex.
func (m *MemoryIndex) ListIndexes(context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := slices.Collect(maps.Keys(m.indexes))
	sort.Strings(names)
	return names, nil
}

// CreateIndex implements VectorIndex.
func (m *MemoryIndex) CreateIndex(_ context.Context, spec IndexSpec) error {
	if spec.Dimension <= 0 {
		return fmt.Errorf("dimension must be positive")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.indexes[spec.Name]; !ok {
		m.indexes[spec.Name] = &memoryIndex{dimension: spec.Dimension, records: make(map[string]model.VectorRecord)}
	}
	return nil
}

// Upsert implements VectorIndex.
func (m *MemoryIndex) Upsert(_ context.Context, index string, records []model.VectorRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	idx, ok := m.indexes[index]
	if !ok {
		return fmt.Errorf("%w: %s", ErrIndexNotFound, index)
	}
	for _, r := range records {
		if len(r.Values) != idx.dimension {
			return fmt.Errorf("%w: record %s has %d, index has %d", ErrDimensionMismatch, r.ID, len(r.Values), idx.dimension)
		}
	}
	for _, r := range records {
		idx.records[r.ID] = model.VectorRecord{
			ID:       r.ID,
			Values:   slices.Clone(r.Values),
			Metadata: maps.Clone(r.Metadata),
		}
	}
	return nil
}

// Query implements VectorIndex. Ties are broken by id for stable output.
func (m *MemoryIndex) Query(_ context.Context, index string, vector []float32, topK int) ([]model.Match, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	idx, ok := m.indexes[index]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrIndexNotFound, index)
	}
	if len(vector) != idx.dimension {
		return nil, fmt.Errorf("%w: query has %d, index has %d", ErrDimensionMismatch, len(vector), idx.dimension)
	}

	matches := make([]model.Match, 0, len(idx.records))
	for _, r := range idx.records {
		matches = append(matches, model.Match{
			ID:       r.ID,
			Score:    CosineSimilarity(vector, r.Values),
			Metadata: maps.Clone(r.Metadata),
		})
	}
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].ID < matches[j].ID
	})
	if topK > 0 && len(matches) > topK {
		matches = matches[:topK]
	}
	return matches, nil
}

// Len returns the number of records in index.
func (m *MemoryIndex) Len(index string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if idx, ok := m.indexes[index]; ok {
		return len(idx.records)
	}
	return 0
}

// Close implements VectorIndex.
func (m *MemoryIndex) Close() error { return nil }

// CosineSimilarity 计算两个向量的余弦相似度。
// 返回值范围为 [-1, 1]，长度不同或零向量返回 0。
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}
