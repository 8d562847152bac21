//go:build !qdrant

package portfolio

import (
	"context"
	"fmt"

	"github.com/smaxiso/portfolio-rag/internal/portfolio/store"
	"github.com/smaxiso/portfolio-rag/internal/portfolio/store/milvusindex"
	"github.com/smaxiso/portfolio-rag/pkg/component/milvus"
	storeopts "github.com/smaxiso/portfolio-rag/pkg/options/store"
)

// openRemoteIndex connects the database backend. Milvus and Qdrant cannot
// share a binary, so the default build serves milvus only.
func (cfg *Config) openRemoteIndex(ctx context.Context) (store.VectorIndex, error) {
	if cfg.StoreOptions.Backend != storeopts.BackendMilvus {
		return nil, fmt.Errorf("store backend %q is not compiled in, rebuild with -tags qdrant", cfg.StoreOptions.Backend)
	}
	client, err := milvus.New(ctx, cfg.MilvusOptions)
	if err != nil {
		return nil, err
	}
	return milvusindex.New(client), nil
}
