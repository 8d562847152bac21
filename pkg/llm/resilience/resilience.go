// Package resilience 为 LLM 调用提供熔断保护：上游连续失败时快速失败，
// 超时后放行少量探测请求，探测成功即恢复。
package resilience

import (
	"errors"
	"sync"
	"time"

	"github.com/kart-io/logger"
)

// Config 熔断器配置。
type Config struct {
	// MaxFailures 连续失败多少次后打开熔断器。
	MaxFailures int
	// OpenTimeout 熔断器打开后多久进入半开状态。
	OpenTimeout time.Duration
	// HalfOpenMaxCalls 半开状态允许的并发探测次数。
	HalfOpenMaxCalls int
}

// DefaultConfig 返回默认熔断器配置。
func DefaultConfig() Config {
	return Config{
		MaxFailures:      5,
		OpenTimeout:      30 * time.Second,
		HalfOpenMaxCalls: 1,
	}
}

// State 熔断器状态。
type State int

const (
	// StateClosed 正常放行。
	StateClosed State = iota
	// StateOpen 拒绝所有请求。
	StateOpen
	// StateHalfOpen 放行探测请求。
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// ErrOpen is returned without calling upstream while the breaker is open.
var ErrOpen = errors.New("circuit breaker is open")

// CircuitBreaker 熔断器实现。
type CircuitBreaker struct {
	name   string
	config Config
	now    func() time.Time

	mu       sync.Mutex
	state    State
	failures int
	openedAt time.Time
	probes   int
}

// NewCircuitBreaker 创建熔断器，name 仅用于日志。
func NewCircuitBreaker(name string, config Config) *CircuitBreaker {
	if config.HalfOpenMaxCalls <= 0 {
		config.HalfOpenMaxCalls = 1
	}
	return &CircuitBreaker{
		name:   name,
		config: config,
		now:    time.Now,
		state:  StateClosed,
	}
}

// Execute runs fn unless the breaker is open. Errors for which counts
// returns false are passed through without affecting the state.
func (cb *CircuitBreaker) Execute(fn func() error, counts func(error) bool) error {
	if err := cb.before(); err != nil {
		return err
	}
	err := fn()
	cb.after(err != nil && counts(err))
	return err
}

func (cb *CircuitBreaker) before() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateOpen:
		if cb.now().Sub(cb.openedAt) < cb.config.OpenTimeout {
			return ErrOpen
		}
		logger.Infow("circuit breaker half-open", "breaker", cb.name)
		cb.state = StateHalfOpen
		cb.probes = 1
		return nil
	case StateHalfOpen:
		if cb.probes >= cb.config.HalfOpenMaxCalls {
			return ErrOpen
		}
		cb.probes++
		return nil
	default:
		return nil
	}
}

func (cb *CircuitBreaker) after(failed bool) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if !failed {
		if cb.state == StateHalfOpen {
			logger.Infow("circuit breaker closed", "breaker", cb.name)
		}
		cb.state = StateClosed
		cb.failures = 0
		cb.probes = 0
		return
	}

	cb.failures++
	switch {
	case cb.state == StateHalfOpen:
		logger.Warnw("circuit breaker re-opened after failed probe", "breaker", cb.name)
		cb.open()
	case cb.state == StateClosed && cb.failures >= cb.config.MaxFailures:
		logger.Warnw("circuit breaker opened",
			"breaker", cb.name,
			"failures", cb.failures,
			"open_timeout", cb.config.OpenTimeout.String(),
		)
		cb.open()
	}
}

func (cb *CircuitBreaker) open() {
	cb.state = StateOpen
	cb.openedAt = cb.now()
	cb.probes = 0
}

// State 获取当前状态。
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}
