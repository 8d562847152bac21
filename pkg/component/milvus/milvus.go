// Package milvus wraps the Milvus SDK for string keyed, cosine scored collections.
package milvus

import (
	"context"
	"fmt"

	"github.com/milvus-io/milvus/client/v2/column"
	"github.com/milvus-io/milvus/client/v2/entity"
	"github.com/milvus-io/milvus/client/v2/index"
	"github.com/milvus-io/milvus/client/v2/milvusclient"

	milvusopts "github.com/smaxiso/portfolio-rag/pkg/options/milvus"
)

const (
	// PrimaryField holds the deterministic record id.
	PrimaryField = "id"
	// VectorField holds the embedding.
	VectorField = "embedding"

	idMaxLength = 512
)

// Client wraps the Milvus SDK client.
type Client struct {
	client *milvusclient.Client
	opts   *milvusopts.Options
}

// New creates a new Milvus client.
func New(ctx context.Context, opts *milvusopts.Options) (*Client, error) {
	if opts == nil {
		return nil, fmt.Errorf("milvus options is nil")
	}

	ctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	c, err := milvusclient.New(ctx, &milvusclient.ClientConfig{
		Address:  opts.Address,
		Username: opts.Username,
		Password: opts.Password,
		DBName:   opts.Database,
		APIKey:   opts.APIKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to milvus: %w", err)
	}

	return &Client{
		client: c,
		opts:   opts,
	}, nil
}

// Close closes the Milvus client connection.
func (c *Client) Close(ctx context.Context) error {
	return c.client.Close(ctx)
}

// CollectionSchema defines the schema for a vector collection.
type CollectionSchema struct {
	Name        string
	Description string
	Dimension   int
	// MetaFields are VARCHAR columns stored next to the vector.
	MetaFields []MetaField
}

// MetaField defines a VARCHAR metadata field in the collection.
type MetaField struct {
	Name   string
	MaxLen int
}

// ListCollections returns the names of every collection in the database.
func (c *Client) ListCollections(ctx context.Context) ([]string, error) {
	names, err := c.client.ListCollections(ctx, milvusclient.NewListCollectionOption())
	if err != nil {
		return nil, fmt.Errorf("failed to list collections: %w", err)
	}
	return names, nil
}

// CreateCollection creates the collection, its cosine index and loads it.
// An existing collection keeps its data; its index and load state are
// completed when an earlier setup stopped half way.
func (c *Client) CreateCollection(ctx context.Context, schema *CollectionSchema) error {
	return ensureCollection(ctx, c, schema)
}

// collectionSetup is the part of the SDK used to prepare a collection.
type collectionSetup interface {
	hasCollection(ctx context.Context, name string) (bool, error)
	createCollection(ctx context.Context, schema *CollectionSchema) error
	isLoaded(ctx context.Context, name string) (bool, error)
	createIndex(ctx context.Context, name string) error
	load(ctx context.Context, name string) error
}

func ensureCollection(ctx context.Context, s collectionSetup, schema *CollectionSchema) error {
	exists, err := s.hasCollection(ctx, schema.Name)
	if err != nil {
		return fmt.Errorf("failed to check collection existence: %w", err)
	}
	if exists {
		loaded, err := s.isLoaded(ctx, schema.Name)
		if err != nil {
			return fmt.Errorf("failed to get load state: %w", err)
		}
		if loaded {
			return nil
		}
	} else if err := s.createCollection(ctx, schema); err != nil {
		return err
	}

	// 重复创建相同参数的索引是幂等的
	if err := s.createIndex(ctx, schema.Name); err != nil {
		return err
	}
	return s.load(ctx, schema.Name)
}

func (c *Client) hasCollection(ctx context.Context, name string) (bool, error) {
	return c.client.HasCollection(ctx, milvusclient.NewHasCollectionOption(name))
}

func (c *Client) isLoaded(ctx context.Context, name string) (bool, error) {
	state, err := c.client.GetLoadState(ctx, milvusclient.NewGetLoadStateOption(name))
	if err != nil {
		return false, err
	}
	return state.State == entity.LoadStateLoaded, nil
}

func (c *Client) createCollection(ctx context.Context, schema *CollectionSchema) error {
	// 主键使用确定性的字符串 id，重复导入时覆盖而不是追加
	collSchema := entity.NewSchema().
		WithName(schema.Name).
		WithDescription(schema.Description).
		WithAutoID(false)

	collSchema.WithField(
		entity.NewField().
			WithName(PrimaryField).
			WithDataType(entity.FieldTypeVarChar).
			WithMaxLength(idMaxLength).
			WithIsPrimaryKey(true),
	)

	collSchema.WithField(
		entity.NewField().
			WithName(VectorField).
			WithDataType(entity.FieldTypeFloatVector).
			WithDim(int64(schema.Dimension)),
	)

	for _, f := range schema.MetaFields {
		collSchema.WithField(
			entity.NewField().
				WithName(f.Name).
				WithDataType(entity.FieldTypeVarChar).
				WithMaxLength(int64(f.MaxLen)),
		)
	}

	if err := c.client.CreateCollection(ctx, milvusclient.NewCreateCollectionOption(schema.Name, collSchema)); err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}
	return nil
}

func (c *Client) createIndex(ctx context.Context, collectionName string) error {
	idx := index.NewAutoIndex(entity.COSINE)
	createIdxTask, err := c.client.CreateIndex(ctx, milvusclient.NewCreateIndexOption(collectionName, VectorField, idx))
	if err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}
	if err := createIdxTask.Await(ctx); err != nil {
		return fmt.Errorf("failed to wait for index creation: %w", err)
	}
	return nil
}

func (c *Client) load(ctx context.Context, collectionName string) error {
	loadTask, err := c.client.LoadCollection(ctx, milvusclient.NewLoadCollectionOption(collectionName))
	if err != nil {
		return fmt.Errorf("failed to load collection: %w", err)
	}
	if err := loadTask.Await(ctx); err != nil {
		return fmt.Errorf("failed to wait for collection loading: %w", err)
	}
	return nil
}

// UpsertData is a column oriented batch. Every metadata column has len(IDs) values.
type UpsertData struct {
	IDs        []string
	Embeddings [][]float32
	Metadata   map[string][]string
}

// Upsert writes the batch, replacing rows with the same id.
func (c *Client) Upsert(ctx context.Context, collectionName string, data *UpsertData) error {
	if len(data.IDs) == 0 {
		return nil
	}
	if len(data.Embeddings) != len(data.IDs) {
		return fmt.Errorf("ids and embeddings length mismatch: %d != %d", len(data.IDs), len(data.Embeddings))
	}

	columns := make([]column.Column, 0, len(data.Metadata)+2)
	columns = append(columns,
		column.NewColumnVarChar(PrimaryField, data.IDs),
		column.NewColumnFloatVector(VectorField, len(data.Embeddings[0]), data.Embeddings),
	)
	for name, values := range data.Metadata {
		if len(values) != len(data.IDs) {
			return fmt.Errorf("metadata field %s has %d values, want %d", name, len(values), len(data.IDs))
		}
		columns = append(columns, column.NewColumnVarChar(name, values))
	}

	if _, err := c.client.Upsert(ctx, milvusclient.NewColumnBasedInsertOption(collectionName, columns...)); err != nil {
		return fmt.Errorf("failed to upsert data: %w", err)
	}
	return nil
}

// SearchResult represents a single search result.
type SearchResult struct {
	ID       string
	Score    float32
	Metadata map[string]string
}

// Search returns the topK most similar rows, best first.
func (c *Client) Search(ctx context.Context, collectionName string, vector []float32, topK int, outputFields []string) ([]SearchResult, error) {
	searchVectors := []entity.Vector{entity.FloatVector(vector)}

	results, err := c.client.Search(ctx, milvusclient.NewSearchOption(
		collectionName,
		topK,
		searchVectors,
	).WithANNSField(VectorField).
		WithOutputFields(outputFields...))
	if err != nil {
		return nil, fmt.Errorf("failed to search: %w", err)
	}

	if len(results) == 0 {
		return []SearchResult{}, nil
	}

	rs := results[0]
	searchResults := make([]SearchResult, 0, rs.ResultCount)
	for i := 0; i < rs.ResultCount; i++ {
		result := SearchResult{
			Score:    rs.Scores[i],
			Metadata: make(map[string]string, len(outputFields)),
		}

		if idCol, ok := rs.IDs.(*column.ColumnVarChar); ok {
			result.ID = idCol.Data()[i]
		}

		for _, field := range rs.Fields {
			if col, ok := field.(*column.ColumnVarChar); ok {
				result.Metadata[col.Name()] = col.Data()[i]
			}
		}

		searchResults = append(searchResults, result)
	}

	return searchResults, nil
}
