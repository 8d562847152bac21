// Package options contains flags and options for initializing the portfolio server.
package options

import (
	"fmt"

	utilerrors "k8s.io/apimachinery/pkg/util/errors"

	"github.com/smaxiso/portfolio-rag/internal/portfolio"
	"github.com/smaxiso/portfolio-rag/pkg/infra/app"
	genericoptions "github.com/smaxiso/portfolio-rag/pkg/options"
	contentopts "github.com/smaxiso/portfolio-rag/pkg/options/content"
	geminiopts "github.com/smaxiso/portfolio-rag/pkg/options/gemini"
	httpopts "github.com/smaxiso/portfolio-rag/pkg/options/http"
	jwtopts "github.com/smaxiso/portfolio-rag/pkg/options/jwt"
	logopts "github.com/smaxiso/portfolio-rag/pkg/options/logger"
	milvusopts "github.com/smaxiso/portfolio-rag/pkg/options/milvus"
	qdrantopts "github.com/smaxiso/portfolio-rag/pkg/options/qdrant"
	ragopts "github.com/smaxiso/portfolio-rag/pkg/options/rag"
	ratelimitopts "github.com/smaxiso/portfolio-rag/pkg/options/ratelimit"
	redisopts "github.com/smaxiso/portfolio-rag/pkg/options/redis"
	storeopts "github.com/smaxiso/portfolio-rag/pkg/options/store"
	tracingopts "github.com/smaxiso/portfolio-rag/pkg/options/tracing"
)

var _ app.CliOptions = (*ServerOptions)(nil)

// ServerOptions contains the configuration options for the server.
type ServerOptions struct {
	// HTTPOptions contains HTTP server configuration.
	HTTPOptions *httpopts.Options `json:"http" mapstructure:"http"`

	// LogOptions contains logger configuration.
	LogOptions *logopts.Options `json:"log" mapstructure:"log"`

	// RAGOptions contains chunking, retrieval and collector configuration.
	RAGOptions *ragopts.Options `json:"rag" mapstructure:"rag"`

	// StoreOptions selects the vector index backend.
	StoreOptions *storeopts.Options `json:"store" mapstructure:"store"`

	// MilvusOptions contains Milvus configuration.
	MilvusOptions *milvusopts.Options `json:"milvus" mapstructure:"milvus"`

	// QdrantOptions contains Qdrant configuration.
	QdrantOptions *qdrantopts.Options `json:"qdrant" mapstructure:"qdrant"`

	// GeminiOptions contains the embedding and chat model configuration.
	GeminiOptions *geminiopts.Options `json:"gemini" mapstructure:"gemini"`

	// RedisOptions contains the optional Redis configuration.
	RedisOptions *redisopts.Options `json:"redis" mapstructure:"redis"`

	// ContentOptions contains the portfolio database configuration.
	ContentOptions *contentopts.Options `json:"content" mapstructure:"content"`

	// RateLimitOptions contains chat rate limiting configuration.
	RateLimitOptions *ratelimitopts.Options `json:"ratelimit" mapstructure:"ratelimit"`

	// TracingOptions contains OpenTelemetry configuration.
	TracingOptions *tracingopts.Options `json:"tracing" mapstructure:"tracing"`

	// JWTOptions contains admin token configuration.
	JWTOptions *jwtopts.Options `json:"jwt" mapstructure:"jwt"`
}

// NewServerOptions creates a ServerOptions instance with default values.
func NewServerOptions() *ServerOptions {
	return &ServerOptions{
		HTTPOptions:      httpopts.NewOptions(),
		LogOptions:       logopts.NewOptions(),
		RAGOptions:       ragopts.NewOptions(),
		StoreOptions:     storeopts.NewOptions(),
		MilvusOptions:    milvusopts.NewOptions(),
		QdrantOptions:    qdrantopts.NewOptions(),
		GeminiOptions:    geminiopts.NewOptions(),
		RedisOptions:     redisopts.NewOptions(),
		ContentOptions:   contentopts.NewOptions(),
		RateLimitOptions: ratelimitopts.NewOptions(),
		TracingOptions:   tracingopts.NewOptions(),
		JWTOptions:       jwtopts.NewOptions(),
	}
}

// Flags returns flags for a specific server by section name.
func (o *ServerOptions) Flags() (fss app.NamedFlagSets) {
	o.HTTPOptions.AddFlags(fss.FlagSet("http"))
	o.LogOptions.AddFlags(fss.FlagSet("log"))
	o.RAGOptions.AddFlags(fss.FlagSet("rag"))
	o.StoreOptions.AddFlags(fss.FlagSet("store"))
	o.MilvusOptions.AddFlags(fss.FlagSet("milvus"))
	o.QdrantOptions.AddFlags(fss.FlagSet("qdrant"))
	o.GeminiOptions.AddFlags(fss.FlagSet("gemini"))
	o.RedisOptions.AddFlags(fss.FlagSet("redis"))
	o.ContentOptions.AddFlags(fss.FlagSet("content"))
	o.RateLimitOptions.AddFlags(fss.FlagSet("ratelimit"))
	o.TracingOptions.AddFlags(fss.FlagSet("tracing"))
	o.JWTOptions.AddFlags(fss.FlagSet("jwt"))
	return fss
}

// Complete completes all the required options.
func (o *ServerOptions) Complete() error {
	if err := o.GeminiOptions.Complete(); err != nil {
		return fmt.Errorf("gemini: %w", err)
	}
	if err := o.RedisOptions.Complete(); err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	if err := o.MilvusOptions.Complete(); err != nil {
		return fmt.Errorf("milvus: %w", err)
	}
	if err := o.QdrantOptions.Complete(); err != nil {
		return fmt.Errorf("qdrant: %w", err)
	}
	if err := o.JWTOptions.Complete(); err != nil {
		return fmt.Errorf("jwt: %w", err)
	}
	return nil
}

// Validate checks whether the options in ServerOptions are valid.
func (o *ServerOptions) Validate() error {
	errs := genericoptions.ValidateAll(
		o.HTTPOptions,
		o.LogOptions,
		o.RAGOptions,
		o.StoreOptions,
		o.MilvusOptions,
		o.QdrantOptions,
		o.GeminiOptions,
		o.RedisOptions,
		o.ContentOptions,
		o.RateLimitOptions,
		o.TracingOptions,
		o.JWTOptions,
	)
	return utilerrors.NewAggregate(errs)
}

// Config builds a portfolio.Config based on ServerOptions.
func (o *ServerOptions) Config() (*portfolio.Config, error) {
	return &portfolio.Config{
		HTTPOptions:      o.HTTPOptions,
		LogOptions:       o.LogOptions,
		RAGOptions:       o.RAGOptions,
		StoreOptions:     o.StoreOptions,
		MilvusOptions:    o.MilvusOptions,
		QdrantOptions:    o.QdrantOptions,
		GeminiOptions:    o.GeminiOptions,
		RedisOptions:     o.RedisOptions,
		ContentOptions:   o.ContentOptions,
		RateLimitOptions: o.RateLimitOptions,
		TracingOptions:   o.TracingOptions,
		JWTOptions:       o.JWTOptions,
	}, nil
}
