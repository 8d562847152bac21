// Package jwt provides admin token options.
package jwt

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/pflag"

	"github.com/smaxiso/portfolio-rag/pkg/options"
)

const (
	// DefaultSigningMethod is the HMAC method used for admin tokens.
	DefaultSigningMethod = "HS256"

	// DefaultExpired is the lifetime of minted admin tokens.
	DefaultExpired = 12 * time.Hour

	// DefaultIssuer is the issuer claim.
	DefaultIssuer = "portfolio-rag"

	// MinKeyLength is the minimum HMAC key length.
	MinKeyLength = 32
)

var supportedSigningMethods = map[string]bool{
	"HS256": true,
	"HS384": true,
	"HS512": true,
}

var _ options.IOptions = (*Options)(nil)

// Options configures admin authentication.
type Options struct {
	// DisableAuth turns off admin checks. Only for local development.
	DisableAuth bool `json:"disable-auth" mapstructure:"disable-auth"`

	// Key is the HMAC secret, falls back to ADMIN_JWT_SECRET.
	Key string `json:"-" mapstructure:"key"`

	SigningMethod string        `json:"signing-method" mapstructure:"signing-method"`
	Expired       time.Duration `json:"expired" mapstructure:"expired"`
	Issuer        string        `json:"issuer" mapstructure:"issuer"`

	// AdminEmails is the allow-list of accounts that may trigger ingestion.
	AdminEmails []string `json:"admin-emails" mapstructure:"admin-emails"`
}

// NewOptions creates new Options with defaults.
func NewOptions() *Options {
	return &Options{
		SigningMethod: DefaultSigningMethod,
		Expired:       DefaultExpired,
		Issuer:        DefaultIssuer,
	}
}

// AddFlags adds flags to the flagset.
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := options.Join(prefixes...) + "jwt."
	fs.BoolVar(&o.DisableAuth, p+"disable-auth", o.DisableAuth, "Disable admin authentication (development only).")
	fs.StringVar(&o.Key, p+"key", o.Key, "HMAC key for admin tokens (defaults to ADMIN_JWT_SECRET).")
	fs.StringVar(&o.SigningMethod, p+"signing-method", o.SigningMethod, "Signing method (HS256|HS384|HS512).")
	fs.DurationVar(&o.Expired, p+"expired", o.Expired, "Lifetime of minted admin tokens.")
	fs.StringVar(&o.Issuer, p+"issuer", o.Issuer, "Token issuer.")
	fs.StringSliceVar(&o.AdminEmails, p+"admin-emails", o.AdminEmails, "Emails allowed to use admin endpoints.")
}

// Complete reads the key from the environment when it was not given.
func (o *Options) Complete() error {
	if o.Key == "" {
		o.Key = os.Getenv("ADMIN_JWT_SECRET")
	}
	return nil
}

// Validate validates the options.
func (o *Options) Validate() []error {
	if o == nil || o.DisableAuth {
		return nil
	}

	var errs []error
	if !supportedSigningMethods[o.SigningMethod] {
		errs = append(errs, fmt.Errorf("unsupported signing method: %s", o.SigningMethod))
	}
	if len(o.Key) < MinKeyLength {
		errs = append(errs, fmt.Errorf("jwt key must be at least %d characters", MinKeyLength))
	}
	if o.Expired <= 0 {
		errs = append(errs, fmt.Errorf("jwt expired must be positive"))
	}
	if len(o.AdminEmails) == 0 {
		errs = append(errs, fmt.Errorf("at least one admin email is required"))
	}
	return errs
}
