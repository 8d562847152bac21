// Package qdrantindex stores knowledge base vectors in Qdrant collections.
//
// The default binaries link milvusindex; this backend is compiled in with
// the "qdrant" build tag because both SDKs register "common.proto".
package qdrantindex

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"

	"github.com/smaxiso/portfolio-rag/internal/portfolio/model"
	"github.com/smaxiso/portfolio-rag/internal/portfolio/store"
	qdrantopts "github.com/smaxiso/portfolio-rag/pkg/options/qdrant"
)

// payloadIDKey keeps the chunk id next to the derived point id.
const payloadIDKey = "chunk_id"

// Index stores records in Qdrant collections.
type Index struct {
	client *qdrant.Client
}

var _ store.VectorIndex = (*Index)(nil)

// New connects to Qdrant over gRPC.
func New(opts *qdrantopts.Options) (*Index, error) {
	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   opts.Host,
		Port:   opts.Port,
		APIKey: opts.APIKey,
		UseTLS: opts.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create qdrant client: %w", err)
	}
	return &Index{client: client}, nil
}

// ListIndexes implements store.VectorIndex.
func (q *Index) ListIndexes(ctx context.Context) ([]string, error) {
	return q.client.ListCollections(ctx)
}

// CreateIndex implements store.VectorIndex.
func (q *Index) CreateIndex(ctx context.Context, spec store.IndexSpec) error {
	exists, err := q.client.CollectionExists(ctx, spec.Name)
	if err != nil {
		return fmt.Errorf("check collection: %w", err)
	}
	if exists {
		return nil
	}

	err = q.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: spec.Name,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(spec.Dimension),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	// 并发创建时后到者失败，视为成功
	if err != nil && strings.Contains(strings.ToLower(err.Error()), "already exists") {
		return nil
	}
	return err
}

// PointID derives the Qdrant point id from a chunk id. Qdrant only accepts
// integers and UUIDs, so the chunk id is hashed into a name based UUID.
func PointID(chunkID string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(chunkID)).String()
}

func toPoints(records []model.VectorRecord) []*qdrant.PointStruct {
	points := make([]*qdrant.PointStruct, 0, len(records))
	for _, r := range records {
		payload := make(map[string]*qdrant.Value, len(model.MetadataKeys)+1)
		for _, key := range model.MetadataKeys {
			payload[key] = qdrant.NewValueString(r.Metadata[key])
		}
		payload[payloadIDKey] = qdrant.NewValueString(r.ID)

		points = append(points, &qdrant.PointStruct{
			Id:      qdrant.NewID(PointID(r.ID)),
			Vectors: qdrant.NewVectors(r.Values...),
			Payload: payload,
		})
	}
	return points
}

// Upsert implements store.VectorIndex.
func (q *Index) Upsert(ctx context.Context, index string, records []model.VectorRecord) error {
	if len(records) == 0 {
		return nil
	}
	wait := true
	_, err := q.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: index,
		Wait:           &wait,
		Points:         toPoints(records),
	})
	if err != nil {
		return fmt.Errorf("qdrant upsert: %w", err)
	}
	return nil
}

// Query implements store.VectorIndex.
func (q *Index) Query(ctx context.Context, index string, vector []float32, topK int) ([]model.Match, error) {
	limit := uint64(topK)
	points, err := q.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: index,
		Query:          qdrant.NewQuery(vector...),
		Limit:          &limit,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant query: %w", err)
	}

	matches := make([]model.Match, 0, len(points))
	for _, p := range points {
		meta := make(map[string]string, len(model.MetadataKeys))
		for _, key := range model.MetadataKeys {
			meta[key] = p.GetPayload()[key].GetStringValue()
		}
		id := p.GetPayload()[payloadIDKey].GetStringValue()
		if id == "" {
			id = p.GetId().GetUuid()
		}
		matches = append(matches, model.Match{ID: id, Score: float64(p.GetScore()), Metadata: meta})
	}
	return matches, nil
}

// Close implements store.VectorIndex.
func (q *Index) Close() error {
	return q.client.Close()
}
