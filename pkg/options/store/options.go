// Package store selects the vector index backend.
package store

import (
	"fmt"

	"github.com/spf13/pflag"

	"github.com/smaxiso/portfolio-rag/pkg/options"
)

// Supported backends.
const (
	BackendMilvus = "milvus"
	BackendQdrant = "qdrant"
	BackendMemory = "memory"
)

var _ options.IOptions = (*Options)(nil)

// Options selects the vector index implementation.
type Options struct {
	Backend string `json:"backend" mapstructure:"backend"`
}

// NewOptions creates new Options with defaults.
func NewOptions() *Options {
	return &Options{Backend: BackendMilvus}
}

// AddFlags adds flags to the flagset.
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.StringVar(&o.Backend, options.Join(prefixes...)+"store.backend", o.Backend, "Vector index backend (milvus|qdrant|memory).")
}

// Validate validates the options.
func (o *Options) Validate() []error {
	if o == nil {
		return nil
	}
	switch o.Backend {
	case BackendMilvus, BackendQdrant, BackendMemory:
		return nil
	default:
		return []error{fmt.Errorf("store backend %q is not supported", o.Backend)}
	}
}
