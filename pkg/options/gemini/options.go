// Package gemini provides options for the Gemini embedding and generation provider.
package gemini

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/pflag"

	"github.com/smaxiso/portfolio-rag/pkg/options"
)

var _ options.IOptions = (*Options)(nil)

// Options contains Gemini provider configuration.
type Options struct {
	// BaseURL is the Generative Language API root.
	BaseURL string `json:"base-url" mapstructure:"base-url"`
	// APIKey falls back to GEMINI_API_KEY.
	APIKey string `json:"-" mapstructure:"api-key"`
	// EmbedModel is the embedding model.
	EmbedModel string `json:"embed-model" mapstructure:"embed-model"`
	// ChatModel is the generation model.
	ChatModel string `json:"chat-model" mapstructure:"chat-model"`
	// Timeout bounds a single non-streaming call.
	Timeout time.Duration `json:"timeout" mapstructure:"timeout"`
	// MaxRetries is the retry count for 5xx responses.
	MaxRetries int `json:"max-retries" mapstructure:"max-retries"`
	// BreakerFailures consecutive failures open the circuit breaker; zero disables it.
	BreakerFailures int `json:"breaker-failures" mapstructure:"breaker-failures"`
	// BreakerTimeout is how long the breaker stays open before probing again.
	BreakerTimeout time.Duration `json:"breaker-timeout" mapstructure:"breaker-timeout"`
}

// NewOptions creates new Options with defaults.
func NewOptions() *Options {
	return &Options{
		BaseURL:    "https://generativelanguage.googleapis.com/v1beta",
		EmbedModel: "text-embedding-004",
		ChatModel:  "gemini-flash-latest",
		Timeout:    120 * time.Second,
		MaxRetries: 3,

		BreakerFailures: 5,
		BreakerTimeout:  30 * time.Second,
	}
}

// ToConfigMap converts the options to the provider registry config map.
func (o *Options) ToConfigMap() map[string]any {
	return map[string]any{
		"base_url":    o.BaseURL,
		"api_key":     o.APIKey,
		"embed_model": o.EmbedModel,
		"chat_model":  o.ChatModel,
		"timeout":     o.Timeout,
		"max_retries": o.MaxRetries,
	}
}

// Configured reports whether the credentials needed to call the API are present.
func (o *Options) Configured() bool {
	return o != nil && o.APIKey != ""
}

// AddFlags adds flags to the flagset.
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := options.Join(prefixes...) + "gemini."
	fs.StringVar(&o.BaseURL, p+"base-url", o.BaseURL, "Gemini API base URL.")
	fs.StringVar(&o.APIKey, p+"api-key", o.APIKey, "Gemini API key (defaults to GEMINI_API_KEY).")
	fs.StringVar(&o.EmbedModel, p+"embed-model", o.EmbedModel, "Embedding model name.")
	fs.StringVar(&o.ChatModel, p+"chat-model", o.ChatModel, "Generation model name.")
	fs.DurationVar(&o.Timeout, p+"timeout", o.Timeout, "Request timeout.")
	fs.IntVar(&o.MaxRetries, p+"max-retries", o.MaxRetries, "Maximum retries on server errors.")
	fs.IntVar(&o.BreakerFailures, p+"breaker-failures", o.BreakerFailures, "Consecutive failures that open the circuit breaker (0 disables it).")
	fs.DurationVar(&o.BreakerTimeout, p+"breaker-timeout", o.BreakerTimeout, "How long the circuit breaker stays open.")
}

// Complete reads the API key from the environment when it was not given.
func (o *Options) Complete() error {
	if o.APIKey == "" {
		o.APIKey = os.Getenv("GEMINI_API_KEY")
	}
	if o.MaxRetries <= 0 {
		o.MaxRetries = 3
	}
	return nil
}

// Validate validates the options. A missing key is not an error here, the
// server degrades to 503 and the ingest command checks Configured itself.
func (o *Options) Validate() []error {
	if o == nil {
		return nil
	}

	var errs []error
	if o.BaseURL == "" {
		errs = append(errs, fmt.Errorf("gemini base-url is required"))
	}
	if o.EmbedModel == "" || o.ChatModel == "" {
		errs = append(errs, fmt.Errorf("gemini embed-model and chat-model are required"))
	}
	if o.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("gemini timeout must be positive"))
	}
	if o.BreakerFailures > 0 && o.BreakerTimeout <= 0 {
		errs = append(errs, fmt.Errorf("gemini breaker-timeout must be positive"))
	}
	return errs
}
