//go:build qdrant

package portfolio

import (
	"context"
	"fmt"

	"github.com/smaxiso/portfolio-rag/internal/portfolio/store"
	"github.com/smaxiso/portfolio-rag/internal/portfolio/store/qdrantindex"
	storeopts "github.com/smaxiso/portfolio-rag/pkg/options/store"
)

// openRemoteIndex connects the database backend. Builds tagged qdrant leave
// the milvus SDK out, see backend_milvus.go.
func (cfg *Config) openRemoteIndex(_ context.Context) (store.VectorIndex, error) {
	if cfg.StoreOptions.Backend != storeopts.BackendQdrant {
		return nil, fmt.Errorf("store backend %q is not compiled in, rebuild without -tags qdrant", cfg.StoreOptions.Backend)
	}
	return qdrantindex.New(cfg.QdrantOptions)
}
