// Package resilience provides circuit breakers, retry, and transient-error
// classification for outbound provider calls (DNS, HTTP probes, search).
package resilience

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// State is the position of a breaker's state machine.
type State int

const (
	// Closed is normal operation, calls flow through.
	Closed State = iota
	// Open means the provider tripped the failure threshold; calls are
	// rejected until the cooldown elapses.
	Open
	// HalfOpen admits exactly one trial call that decides between Closed
	// and Open.
	HalfOpen
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case HalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// ErrProviderOpen is returned by Allow when the provider's circuit is open.
// Callers must treat it as provider-unavailable: the attempt failed, but no
// network quota was consumed.
var ErrProviderOpen = eris.New("resilience: provider circuit open")

// BreakerConfig tunes a single provider's breaker.
type BreakerConfig struct {
	// FailureThreshold is the consecutive-failure count that opens the
	// circuit. Default: 5.
	FailureThreshold int

	// Cooldown is how long the circuit stays open before admitting a
	// half-open probe. Default: 30s.
	Cooldown time.Duration
}

// DefaultBreakerConfig returns sensible defaults.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		FailureThreshold: 5,
		Cooldown:         30 * time.Second,
	}
}

// breaker is the per-provider state machine. All transitions happen under
// the mutex; no other code writes its fields.
type breaker struct {
	cfg BreakerConfig

	mu       sync.Mutex
	state    State
	failures int
	openedAt time.Time
	probing  bool // a half-open trial call is in flight

	nowFunc func() time.Time
}

func newBreaker(cfg BreakerConfig) *breaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 30 * time.Second
	}
	return &breaker{cfg: cfg, state: Closed, nowFunc: time.Now}
}

func (b *breaker) allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case Closed:
		return nil
	case Open:
		if b.nowFunc().Sub(b.openedAt) < b.cfg.Cooldown {
			return ErrProviderOpen
		}
		// Cooldown elapsed: move to half-open and admit this call as the
		// single probe.
		b.state = HalfOpen
		b.probing = true
		return nil
	case HalfOpen:
		if b.probing {
			return ErrProviderOpen
		}
		b.probing = true
		return nil
	}
	return nil
}

func (b *breaker) recordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures = 0
	if b.state == HalfOpen {
		b.state = Closed
		b.probing = false
	}
}

func (b *breaker) recordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures++
	switch b.state {
	case HalfOpen:
		// The probe failed, back to open for another cooldown.
		b.state = Open
		b.openedAt = b.nowFunc()
		b.probing = false
	case Closed:
		if b.failures >= b.cfg.FailureThreshold {
			b.state = Open
			b.openedAt = b.nowFunc()
		}
	}
}

func (b *breaker) snapshot() (State, int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == Open && b.nowFunc().Sub(b.openedAt) >= b.cfg.Cooldown {
		return HalfOpen, b.failures
	}
	return b.state, b.failures
}

// Breakers manages one circuit breaker per upstream provider. It is shared
// across all workers and jobs; every outbound call is gated through it.
type Breakers struct {
	mu       sync.RWMutex
	byName   map[string]*breaker
	cfg      BreakerConfig
	onChange func(provider string, state State)
}

// NewBreakers creates a per-provider breaker registry.
func NewBreakers(cfg BreakerConfig) *Breakers {
	return &Breakers{
		byName: make(map[string]*breaker),
		cfg:    cfg,
	}
}

// OnStateChange registers a callback invoked after a provider's breaker
// opens or closes via RecordSuccess/RecordFailure.
func (r *Breakers) OnStateChange(fn func(provider string, state State)) {
	r.onChange = fn
}

func (r *Breakers) get(provider string) *breaker {
	r.mu.RLock()
	b, ok := r.byName[provider]
	r.mu.RUnlock()
	if ok {
		return b
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if b, ok = r.byName[provider]; ok {
		return b
	}
	b = newBreaker(r.cfg)
	r.byName[provider] = b
	return b
}

// Allow reports whether a call to the provider may proceed. It returns
// ErrProviderOpen while the circuit is open, and admits exactly one probe
// once the cooldown has elapsed.
func (r *Breakers) Allow(provider string) error {
	return r.get(provider).allow()
}

// RecordSuccess notes a successful call, closing a half-open circuit.
func (r *Breakers) RecordSuccess(provider string) {
	b := r.get(provider)
	before, _ := b.snapshot()
	b.recordSuccess()
	after, _ := b.snapshot()
	r.notify(provider, before, after)
}

// RecordFailure notes a failed call, opening the circuit once the provider
// trips its consecutive-failure threshold.
func (r *Breakers) RecordFailure(provider string) {
	b := r.get(provider)
	before, _ := b.snapshot()
	b.recordFailure()
	after, _ := b.snapshot()
	r.notify(provider, before, after)
}

func (r *Breakers) notify(provider string, before, after State) {
	if before == after {
		return
	}
	zap.L().Warn("resilience: circuit state change",
		zap.String("provider", provider),
		zap.String("from", before.String()),
		zap.String("to", after.String()),
	)
	if r.onChange != nil {
		r.onChange(provider, after)
	}
}

// State returns the provider's current breaker state.
func (r *Breakers) State(provider string) State {
	s, _ := r.get(provider).snapshot()
	return s
}

// States returns a snapshot of every known provider's state.
func (r *Breakers) States() map[string]State {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]State, len(r.byName))
	for name, b := range r.byName {
		s, _ := b.snapshot()
		out[name] = s
	}
	return out
}

// Execute gates fn through the provider's breaker and records the outcome.
// A rejected call returns ErrProviderOpen without invoking fn.
func (r *Breakers) Execute(ctx context.Context, provider string, fn func(ctx context.Context) error) error {
	if err := r.Allow(provider); err != nil {
		return err
	}
	err := fn(ctx)
	if err != nil && ctx.Err() == nil && !IsTransient(err) {
		// Non-transient application errors (e.g. "no match") do not count
		// against the provider.
		r.RecordSuccess(provider)
		return err
	}
	if err != nil {
		r.RecordFailure(provider)
		return err
	}
	r.RecordSuccess(provider)
	return nil
}

// ExecuteVal is Execute preserving a return value.
func ExecuteVal[T any](ctx context.Context, r *Breakers, provider string, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	if err := r.Allow(provider); err != nil {
		return zero, err
	}
	val, err := fn(ctx)
	if err != nil && ctx.Err() == nil && !IsTransient(err) {
		r.RecordSuccess(provider)
		return zero, err
	}
	if err != nil {
		r.RecordFailure(provider)
		return zero, err
	}
	r.RecordSuccess(provider)
	return val, nil
}
