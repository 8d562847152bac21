package resilience

import (
	"context"
	"errors"

	"github.com/smaxiso/portfolio-rag/pkg/llm"
)

// Provider wraps an llm.Provider with one breaker per direction, so a broken
// generation endpoint does not stop embeddings and the other way round.
type Provider struct {
	provider llm.Provider
	embed    *CircuitBreaker
	generate *CircuitBreaker
}

var _ llm.Provider = (*Provider)(nil)

// Wrap 为供应商加上熔断保护。
func Wrap(provider llm.Provider, config Config) *Provider {
	return &Provider{
		provider: provider,
		embed:    NewCircuitBreaker(provider.Name()+"/embed", config),
		generate: NewCircuitBreaker(provider.Name()+"/generate", config),
	}
}

// EmbedWithTask 带熔断的 Embedding。
func (p *Provider) EmbedWithTask(ctx context.Context, text string, opts llm.EmbedOptions) ([]float32, error) {
	var vec []float32
	err := p.embed.Execute(func() error {
		var err error
		vec, err = p.provider.EmbedWithTask(ctx, text, opts)
		return err
	}, upstreamFailure)
	return vec, err
}

// errDownstream marks errors returned by the caller's fragment callback.
type errDownstream struct{ err error }

func (e *errDownstream) Error() string { return e.err.Error() }
func (e *errDownstream) Unwrap() error { return e.err }

// GenerateStream 带熔断的流式生成。回调返回的错误说明下游（客户端）已断开，
// 不计入失败次数。
func (p *Provider) GenerateStream(ctx context.Context, prompt string, fn llm.FragmentFunc) error {
	err := p.generate.Execute(func() error {
		return p.provider.GenerateStream(ctx, prompt, func(fragment string) error {
			if err := fn(fragment); err != nil {
				return &errDownstream{err: err}
			}
			return nil
		})
	}, upstreamFailure)

	var down *errDownstream
	if errors.As(err, &down) {
		return down.err
	}
	return err
}

// Name 返回被包装供应商的名称。
func (p *Provider) Name() string {
	return p.provider.Name()
}

// upstreamFailure reports whether err says something about the upstream's
// health. Caller cancellation and downstream write errors do not.
func upstreamFailure(err error) bool {
	var down *errDownstream
	return !errors.Is(err, context.Canceled) && !errors.As(err, &down)
}
