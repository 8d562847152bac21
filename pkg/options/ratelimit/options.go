// Package ratelimit provides chat rate limiting options.
package ratelimit

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"

	"github.com/smaxiso/portfolio-rag/pkg/options"
)

// Supported backends.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

var _ options.IOptions = (*Options)(nil)

// Options configures the per-client sliding window.
type Options struct {
	Enabled        bool          `json:"enabled" mapstructure:"enabled"`
	Backend        string        `json:"backend" mapstructure:"backend"`
	MaxRequests    int           `json:"max-requests" mapstructure:"max-requests"`
	Window         time.Duration `json:"window" mapstructure:"window"`
	TrustedProxies []string      `json:"trusted-proxies" mapstructure:"trusted-proxies"`
	KeyPrefix      string        `json:"key-prefix" mapstructure:"key-prefix"`
}

// NewOptions creates new Options with defaults.
func NewOptions() *Options {
	return &Options{
		Enabled:     true,
		Backend:     BackendMemory,
		MaxRequests: 10,
		Window:      60 * time.Second,
		KeyPrefix:   "ratelimit:chat:",
	}
}

// AddFlags adds flags to the flagset.
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := options.Join(prefixes...) + "ratelimit."
	fs.BoolVar(&o.Enabled, p+"enabled", o.Enabled, "Enable chat rate limiting.")
	fs.StringVar(&o.Backend, p+"backend", o.Backend, "Rate limit state backend (memory|redis).")
	fs.IntVar(&o.MaxRequests, p+"max-requests", o.MaxRequests, "Maximum chat requests per client per window.")
	fs.DurationVar(&o.Window, p+"window", o.Window, "Sliding window length.")
	fs.StringSliceVar(&o.TrustedProxies, p+"trusted-proxies", o.TrustedProxies, "Proxies whose X-Forwarded-For is trusted (IP or CIDR).")
	fs.StringVar(&o.KeyPrefix, p+"key-prefix", o.KeyPrefix, "Redis key prefix.")
}

// Validate validates the options.
func (o *Options) Validate() []error {
	if o == nil || !o.Enabled {
		return nil
	}

	var errs []error
	if o.MaxRequests <= 0 {
		errs = append(errs, fmt.Errorf("ratelimit max-requests must be positive"))
	}
	if o.Window <= 0 {
		errs = append(errs, fmt.Errorf("ratelimit window must be positive"))
	}
	if o.Backend != BackendMemory && o.Backend != BackendRedis {
		errs = append(errs, fmt.Errorf("ratelimit backend %q is not supported", o.Backend))
	}
	return errs
}
