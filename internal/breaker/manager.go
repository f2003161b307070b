// Package breaker wraps sony/gobreaker into a per-provider circuit breaker
// manager, grounded on CedrosPay-server's internal/circuitbreaker.Manager
// but keyed dynamically by provider name rather than a fixed ServiceType
// enum, since the provider set here is whatever the registry holds.
package breaker

import (
	"context"
	"errors"
	"sync"
	"time"

	"payment-orchestrator/internal/core/ports"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
)

// Config configures every breaker the manager lazily creates.
type Config struct {
	MaxRequests         uint32
	Interval            time.Duration
	Timeout             time.Duration
	ConsecutiveFailures uint32
	FailureRatio        float64
	MinRequests         uint32
	// CallTimeout bounds a single fn invocation passed to Execute. A provider
	// call that exceeds it is canceled and counted as a breaker failure.
	// Zero disables the wrap.
	CallTimeout time.Duration
}

// DefaultConfig mirrors the ambient defaults used for outbound provider
// calls: trip after 5 consecutive failures or a 50% failure rate over at
// least 5 requests, stay open for 30s before probing half-open.
func DefaultConfig() Config {
	return Config{
		MaxRequests:         1,
		Interval:            60 * time.Second,
		Timeout:             30 * time.Second,
		ConsecutiveFailures: 5,
		FailureRatio:        0.5,
		MinRequests:         5,
	}
}

// Manager hands out one gobreaker.CircuitBreaker per provider name,
// creating it on first use.
type Manager struct {
	mu       sync.Mutex
	cfg      Config
	log      zerolog.Logger
	breakers map[string]*gobreaker.CircuitBreaker
}

// NewManager builds a Manager with cfg applied to every provider breaker.
func NewManager(cfg Config, log zerolog.Logger) *Manager {
	return &Manager{
		cfg:      cfg,
		log:      log,
		breakers: make(map[string]*gobreaker.CircuitBreaker),
	}
}

func (m *Manager) breakerFor(provider string) *gobreaker.CircuitBreaker {
	m.mu.Lock()
	defer m.mu.Unlock()

	if b, ok := m.breakers[provider]; ok {
		return b
	}

	cfg := m.cfg
	settings := gobreaker.Settings{
		Name:        provider,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if cfg.ConsecutiveFailures > 0 && counts.ConsecutiveFailures >= cfg.ConsecutiveFailures {
				return true
			}
			if cfg.FailureRatio > 0 && cfg.MinRequests > 0 && counts.Requests >= cfg.MinRequests {
				failureRate := float64(counts.TotalFailures) / float64(counts.Requests)
				if failureRate >= cfg.FailureRatio {
					return true
				}
			}
			return false
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			m.log.Warn().
				Str("provider", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("circuit breaker state change")
		},
	}

	b := gobreaker.NewCircuitBreaker(settings)
	m.breakers[provider] = b
	return b
}

// Execute runs fn through the named provider's breaker. Implements
// ports.BreakerManager.
func (m *Manager) Execute(ctx context.Context, provider string, fn func(ctx context.Context) (any, error)) (any, error) {
	b := m.breakerFor(provider)
	result, err := b.Execute(func() (any, error) {
		callCtx := ctx
		if m.cfg.CallTimeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(ctx, m.cfg.CallTimeout)
			defer cancel()
		}
		return fn(callCtx)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, ports.ErrCircuitOpen
	}
	return result, err
}

// State reports the current breaker state for a provider: "closed",
// "half-open", "open", or "unknown" if never exercised.
func (m *Manager) State(provider string) string {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.breakers[provider]
	if !ok {
		return "unknown"
	}
	return b.State().String()
}
