// Package jwt signs and verifies the admin bearer tokens that guard the
// ingestion endpoints.
//
// Usage:
//
//	j, err := jwt.New(jwt.WithOptions(opts))
//	token, expiresAt, err := j.Sign(ctx, "admin@example.com")
//	claims, err := j.Verify(ctx, token)
package jwt

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"

	"github.com/smaxiso/portfolio-rag/pkg/errors"
	jwtopts "github.com/smaxiso/portfolio-rag/pkg/options/jwt"
)

// Claims are the admin token claims. Email identifies the admin.
type Claims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// JWT signs and verifies admin tokens with an HMAC key.
type JWT struct {
	opts   *jwtopts.Options
	method jwt.SigningMethod
	now    func() time.Time
}

// Option is a functional option for JWT.
type Option func(*JWT)

// New creates a JWT. The key must be at least jwtopts.MinKeyLength long.
func New(opts ...Option) (*JWT, error) {
	j := &JWT{
		opts: jwtopts.NewOptions(),
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(j)
	}

	if err := j.opts.Complete(); err != nil {
		return nil, fmt.Errorf("complete options: %w", err)
	}
	if len(j.opts.Key) < jwtopts.MinKeyLength {
		return nil, fmt.Errorf("jwt key must be at least %d characters", jwtopts.MinKeyLength)
	}
	if j.opts.Expired <= 0 {
		return nil, fmt.Errorf("jwt expired must be positive")
	}

	j.method = jwt.GetSigningMethod(j.opts.SigningMethod)
	if j.method == nil || !strings.HasPrefix(j.method.Alg(), "HS") {
		return nil, fmt.Errorf("unsupported signing method: %s", j.opts.SigningMethod)
	}
	return j, nil
}

// WithOptions sets the JWT options.
func WithOptions(opts *jwtopts.Options) Option {
	return func(j *JWT) {
		if opts != nil {
			c := *opts
			j.opts = &c
		}
	}
}

// WithKey sets the signing key.
func WithKey(key string) Option {
	return func(j *JWT) {
		j.opts.Key = key
	}
}

// WithSigningMethod sets the signing algorithm.
func WithSigningMethod(method string) Option {
	return func(j *JWT) {
		j.opts.SigningMethod = method
	}
}

// WithExpired sets the token lifetime.
func WithExpired(d time.Duration) Option {
	return func(j *JWT) {
		j.opts.Expired = d
	}
}

// WithIssuer sets the token issuer.
func WithIssuer(issuer string) Option {
	return func(j *JWT) {
		j.opts.Issuer = issuer
	}
}

// Sign mints a token for email.
func (j *JWT) Sign(_ context.Context, email string) (string, time.Time, error) {
	email = NormalizeEmail(email)
	if email == "" {
		return "", time.Time{}, errors.ErrInvalidParam.WithMessage("email is required")
	}

	now := j.now()
	expiresAt := now.Add(j.opts.Expired)
	claims := &Claims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   email,
			Issuer:    j.opts.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			ID:        uuid.NewString(),
		},
	}

	signed, err := jwt.NewWithClaims(j.method, claims).SignedString([]byte(j.opts.Key))
	if err != nil {
		return "", time.Time{}, errors.ErrInternal.WithCause(err)
	}
	return signed, expiresAt, nil
}

// Verify parses tokenString and returns its claims. Every failure is an
// ErrInvalidToken carrying the parse error as cause.
func (j *JWT) Verify(_ context.Context, tokenString string) (*Claims, error) {
	if tokenString == "" {
		return nil, errors.ErrUnauthorized
	}

	claims := &Claims{}
	parser := jwt.Parser{ValidMethods: []string{j.method.Alg()}}
	token, err := parser.ParseWithClaims(tokenString, claims, func(*jwt.Token) (any, error) {
		return []byte(j.opts.Key), nil
	})
	if err != nil {
		return nil, errors.ErrInvalidToken.WithCause(err)
	}
	if !token.Valid {
		return nil, errors.ErrInvalidToken
	}
	if j.opts.Issuer != "" && claims.Issuer != j.opts.Issuer {
		return nil, errors.ErrInvalidToken.WithCause(fmt.Errorf("unexpected issuer %q", claims.Issuer))
	}

	claims.Email = NormalizeEmail(claims.Email)
	if claims.Email == "" {
		return nil, errors.ErrInvalidToken.WithCause(fmt.Errorf("token has no email claim"))
	}
	return claims, nil
}

// NormalizeEmail lowercases and trims an address for comparison.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
