// Package options contains flags and options for the ingestion command.
package options

import (
	"errors"
	"fmt"

	"github.com/spf13/pflag"
	utilerrors "k8s.io/apimachinery/pkg/util/errors"

	"github.com/smaxiso/portfolio-rag/internal/portfolio"
	"github.com/smaxiso/portfolio-rag/pkg/infra/app"
	genericoptions "github.com/smaxiso/portfolio-rag/pkg/options"
	contentopts "github.com/smaxiso/portfolio-rag/pkg/options/content"
	geminiopts "github.com/smaxiso/portfolio-rag/pkg/options/gemini"
	jwtopts "github.com/smaxiso/portfolio-rag/pkg/options/jwt"
	logopts "github.com/smaxiso/portfolio-rag/pkg/options/logger"
	milvusopts "github.com/smaxiso/portfolio-rag/pkg/options/milvus"
	qdrantopts "github.com/smaxiso/portfolio-rag/pkg/options/qdrant"
	ragopts "github.com/smaxiso/portfolio-rag/pkg/options/rag"
	redisopts "github.com/smaxiso/portfolio-rag/pkg/options/redis"
	storeopts "github.com/smaxiso/portfolio-rag/pkg/options/store"
	tracingopts "github.com/smaxiso/portfolio-rag/pkg/options/tracing"
)

var (
	_ app.CliOptions = (*IngestOptions)(nil)
	_ app.CliOptions = (*TokenOptions)(nil)
)

// IngestOptions contains the options needed to rebuild the knowledge base.
type IngestOptions struct {
	LogOptions     *logopts.Options     `json:"log" mapstructure:"log"`
	RAGOptions     *ragopts.Options     `json:"rag" mapstructure:"rag"`
	StoreOptions   *storeopts.Options   `json:"store" mapstructure:"store"`
	MilvusOptions  *milvusopts.Options  `json:"milvus" mapstructure:"milvus"`
	QdrantOptions  *qdrantopts.Options  `json:"qdrant" mapstructure:"qdrant"`
	GeminiOptions  *geminiopts.Options  `json:"gemini" mapstructure:"gemini"`
	RedisOptions   *redisopts.Options   `json:"redis" mapstructure:"redis"`
	ContentOptions *contentopts.Options `json:"content" mapstructure:"content"`
	TracingOptions *tracingopts.Options `json:"tracing" mapstructure:"tracing"`
}

// NewIngestOptions creates IngestOptions with default values.
func NewIngestOptions() *IngestOptions {
	return &IngestOptions{
		LogOptions:     logopts.NewOptions(),
		RAGOptions:     ragopts.NewOptions(),
		StoreOptions:   storeopts.NewOptions(),
		MilvusOptions:  milvusopts.NewOptions(),
		QdrantOptions:  qdrantopts.NewOptions(),
		GeminiOptions:  geminiopts.NewOptions(),
		RedisOptions:   redisopts.NewOptions(),
		ContentOptions: contentopts.NewOptions(),
		TracingOptions: tracingopts.NewOptions(),
	}
}

// Flags returns the flag sets by section name.
func (o *IngestOptions) Flags() (fss app.NamedFlagSets) {
	o.LogOptions.AddFlags(fss.FlagSet("log"))
	o.RAGOptions.AddFlags(fss.FlagSet("rag"))
	o.StoreOptions.AddFlags(fss.FlagSet("store"))
	o.MilvusOptions.AddFlags(fss.FlagSet("milvus"))
	o.QdrantOptions.AddFlags(fss.FlagSet("qdrant"))
	o.GeminiOptions.AddFlags(fss.FlagSet("gemini"))
	o.RedisOptions.AddFlags(fss.FlagSet("redis"))
	o.ContentOptions.AddFlags(fss.FlagSet("content"))
	o.TracingOptions.AddFlags(fss.FlagSet("tracing"))
	return fss
}

// Complete completes all the required options.
func (o *IngestOptions) Complete() error {
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
	return nil
}

// Validate checks whether the options are valid.
func (o *IngestOptions) Validate() error {
	errs := genericoptions.ValidateAll(
		o.LogOptions,
		o.RAGOptions,
		o.StoreOptions,
		o.MilvusOptions,
		o.QdrantOptions,
		o.GeminiOptions,
		o.RedisOptions,
		o.ContentOptions,
		o.TracingOptions,
	)
	return utilerrors.NewAggregate(errs)
}

// Config builds a portfolio.Config for a one-shot ingestion run.
func (o *IngestOptions) Config() (*portfolio.Config, error) {
	return &portfolio.Config{
		LogOptions:     o.LogOptions,
		RAGOptions:     o.RAGOptions,
		StoreOptions:   o.StoreOptions,
		MilvusOptions:  o.MilvusOptions,
		QdrantOptions:  o.QdrantOptions,
		GeminiOptions:  o.GeminiOptions,
		RedisOptions:   o.RedisOptions,
		ContentOptions: o.ContentOptions,
		TracingOptions: o.TracingOptions,
	}, nil
}

// TokenOptions contains the options of the token subcommand.
type TokenOptions struct {
	JWTOptions *jwtopts.Options `json:"jwt" mapstructure:"jwt"`
	Email      string           `json:"email" mapstructure:"email"`
}

// NewTokenOptions creates TokenOptions with default values.
func NewTokenOptions() *TokenOptions {
	return &TokenOptions{JWTOptions: jwtopts.NewOptions()}
}

// Flags returns the flag sets by section name.
func (o *TokenOptions) Flags() (fss app.NamedFlagSets) {
	o.JWTOptions.AddFlags(fss.FlagSet("jwt"))
	o.addFlags(fss.FlagSet("token"))
	return fss
}

func (o *TokenOptions) addFlags(fs *pflag.FlagSet) {
	fs.StringVar(&o.Email, "email", o.Email, "Admin email the token is issued to.")
}

// Complete reads the signing key from the environment when missing.
func (o *TokenOptions) Complete() error {
	return o.JWTOptions.Complete()
}

// Validate checks whether the options are valid.
func (o *TokenOptions) Validate() error {
	errs := o.JWTOptions.Validate()
	if o.JWTOptions.DisableAuth {
		errs = append(errs, errors.New("jwt.disable-auth is set, tokens are not checked"))
	}
	if o.Email == "" {
		errs = append(errs, errors.New("--email is required"))
	}
	return utilerrors.NewAggregate(errs)
}

// Config builds a portfolio.Config carrying only the token settings.
func (o *TokenOptions) Config() (*portfolio.Config, error) {
	return &portfolio.Config{JWTOptions: o.JWTOptions}, nil
}
