// Package circuitbreaker stops calls to a failing dependency (the SMTP relay)
// after a run of failures and lets a single probe through after a cool-down.
package circuitbreaker

import (
	"context"
	"errors"
	"sync"
	"time"
)

// State of a breaker.
type State int

const (
	StateClosed State = iota
	StateOpen
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

var (
	// ErrCircuitOpen is returned without calling fn while the breaker is open.
	ErrCircuitOpen = errors.New("circuit breaker is open")

	// ErrTooManyRequests is returned while the half-open probe is still in flight.
	ErrTooManyRequests = errors.New("too many requests in half-open state")
)

// Config of a breaker. Zero thresholds fall back to New's defaults.
type Config struct {
	Name string

	// FailureThreshold consecutive failures open the breaker (default 5).
	FailureThreshold int

	// SuccessThreshold consecutive half-open successes close it (default 1).
	SuccessThreshold int

	// Timeout is the cool-down before a probe is allowed (default 30s).
	Timeout time.Duration

	// IsFailure decides which errors count; nil counts every error.
	IsFailure func(error) bool

	OnStateChange func(name string, from, to State)

	Now func() time.Time
}

// Option mutates Config.
type Option func(*Config)

func WithFailureThreshold(n int) Option        { return func(c *Config) { c.FailureThreshold = n } }
func WithSuccessThreshold(n int) Option        { return func(c *Config) { c.SuccessThreshold = n } }
func WithTimeout(d time.Duration) Option       { return func(c *Config) { c.Timeout = d } }
func WithIsFailure(fn func(error) bool) Option { return func(c *Config) { c.IsFailure = fn } }
func WithClock(now func() time.Time) Option    { return func(c *Config) { c.Now = now } }

func WithOnStateChange(fn func(name string, from, to State)) Option {
	return func(c *Config) { c.OnStateChange = fn }
}

// Counts are cumulative since New.
type Counts struct {
	Requests  int
	Successes int
	Failures  int
	Rejected  int
}

// CircuitBreaker is safe for concurrent use.
type CircuitBreaker struct {
	cfg Config

	mu       sync.Mutex
	state    State
	streak   int // consecutive failures when closed, successes when half-open
	openedAt time.Time
	probing  bool
	counts   Counts
}

// New returns a closed breaker.
func New(name string, opts ...Option) *CircuitBreaker {
	cfg := Config{Name: name}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.SuccessThreshold <= 0 {
		cfg.SuccessThreshold = 1
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &CircuitBreaker{cfg: cfg}
}

// Execute calls fn unless the breaker rejects the call, and records the outcome.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func(context.Context) error) error {
	if err := cb.admit(); err != nil {
		return err
	}
	err := fn(ctx)
	cb.record(err)
	return err
}

func (cb *CircuitBreaker) admit() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateOpen:
		if cb.cfg.Now().Sub(cb.openedAt) < cb.cfg.Timeout {
			cb.counts.Rejected++
			return ErrCircuitOpen
		}
		cb.transition(StateHalfOpen)
		cb.probing = true
	case StateHalfOpen:
		if cb.probing {
			cb.counts.Rejected++
			return ErrTooManyRequests
		}
		cb.probing = true
	}
	cb.counts.Requests++
	return nil
}

func (cb *CircuitBreaker) record(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.probing = false
	failed := err != nil && (cb.cfg.IsFailure == nil || cb.cfg.IsFailure(err))

	if !failed {
		cb.counts.Successes++
		switch cb.state {
		case StateClosed:
			cb.streak = 0
		case StateHalfOpen:
			cb.streak++
			if cb.streak >= cb.cfg.SuccessThreshold {
				cb.transition(StateClosed)
			}
		}
		return
	}

	cb.counts.Failures++
	switch cb.state {
	case StateClosed:
		cb.streak++
		if cb.streak >= cb.cfg.FailureThreshold {
			cb.trip()
		}
	case StateHalfOpen:
		cb.trip()
	}
}

func (cb *CircuitBreaker) trip() {
	cb.openedAt = cb.cfg.Now()
	cb.transition(StateOpen)
}

// transition resets the streak. The caller holds cb.mu.
func (cb *CircuitBreaker) transition(to State) {
	from := cb.state
	cb.state = to
	cb.streak = 0
	if cb.cfg.OnStateChange != nil && from != to {
		cb.cfg.OnStateChange(cb.cfg.Name, from, to)
	}
}

func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

func (cb *CircuitBreaker) Counts() Counts {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.counts
}

func (cb *CircuitBreaker) Name() string   { return cb.cfg.Name }
func (cb *CircuitBreaker) IsOpen() bool   { return cb.State() == StateOpen }
func (cb *CircuitBreaker) IsClosed() bool { return cb.State() == StateClosed }

// SMTPBreaker opens after 3 consecutive delivery failures and probes the
// relay again a minute later. Errors rejected by isFailure do not count.
func SMTPBreaker(isFailure func(error) bool, onStateChange func(name string, from, to State)) *CircuitBreaker {
	return New("smtp",
		WithFailureThreshold(3),
		WithTimeout(time.Minute),
		WithIsFailure(isFailure),
		WithOnStateChange(onStateChange),
	)
}
