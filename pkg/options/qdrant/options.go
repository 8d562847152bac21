// Package qdrant provides options for the Qdrant vector database client.
package qdrant

import (
	"fmt"
	"os"

	"github.com/spf13/pflag"

	"github.com/smaxiso/portfolio-rag/pkg/options"
)

var _ options.IOptions = (*Options)(nil)

// Options contains Qdrant client configuration.
type Options struct {
	Host   string `json:"host" mapstructure:"host"`
	Port   int    `json:"port" mapstructure:"port"`
	APIKey string `json:"-" mapstructure:"api-key"`
	UseTLS bool   `json:"use-tls" mapstructure:"use-tls"`
}

// NewOptions creates new Options with defaults.
func NewOptions() *Options {
	return &Options{
		Host: "localhost",
		Port: 6334,
	}
}

// Complete reads the API key from QDRANT_API_KEY when it was not given.
func (o *Options) Complete() error {
	if o.APIKey == "" {
		o.APIKey = os.Getenv("QDRANT_API_KEY")
	}
	return nil
}

// AddFlags adds flags to the flagset.
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := options.Join(prefixes...) + "qdrant."
	fs.StringVar(&o.Host, p+"host", o.Host, "Qdrant host.")
	fs.IntVar(&o.Port, p+"port", o.Port, "Qdrant gRPC port.")
	fs.StringVar(&o.APIKey, p+"api-key", o.APIKey, "Qdrant API key.")
	fs.BoolVar(&o.UseTLS, p+"use-tls", o.UseTLS, "Use TLS for the Qdrant connection.")
}

// Validate validates the options.
func (o *Options) Validate() []error {
	if o == nil {
		return nil
	}

	var errs []error
	if o.Host == "" {
		errs = append(errs, fmt.Errorf("qdrant host is required"))
	}
	if o.Port <= 0 || o.Port > 65535 {
		errs = append(errs, fmt.Errorf("qdrant port %d is out of range", o.Port))
	}
	return errs
}
