// Package resilience guards calls to flaky backends.
package resilience

import (
	"context"
	"errors"
	"sync"
	"time"
)

// State is a circuit breaker state.
type State int

const (
	StateClosed   State = iota // normal operation
	StateOpen                  // rejecting calls
	StateHalfOpen              // allowing a probe call
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

var ErrCircuitOpen = errors.New("circuit breaker is open")

// BreakerOpts configures a Breaker.
type BreakerOpts struct {
	// Name identifies the breaker in logs and metrics.
	Name string
	// FailThreshold is how many consecutive failures trip the breaker.
	FailThreshold int
	// Timeout is how long the breaker stays open before a probe is allowed.
	Timeout time.Duration
	// OnStateChange, if set, is called after every transition with the lock released.
	OnStateChange func(name string, from, to State)
}

// DefaultBreakerOpts provides sensible defaults.
var DefaultBreakerOpts = BreakerOpts{
	FailThreshold: 5,
	Timeout:       30 * time.Second,
}

// Breaker is a closed/open/half-open circuit breaker that admits a
// single probe while half-open.
type Breaker struct {
	mu       sync.Mutex
	opts     BreakerOpts
	state    State
	failures int
	openedAt time.Time
	probing  bool
	now      func() time.Time
}

// NewBreaker creates a circuit breaker with the given options.
func NewBreaker(opts BreakerOpts) *Breaker {
	if opts.FailThreshold <= 0 {
		opts.FailThreshold = DefaultBreakerOpts.FailThreshold
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultBreakerOpts.Timeout
	}
	return &Breaker{opts: opts, now: time.Now}
}

// State returns the current breaker state.
func (b *Breaker) State() State {
	b.mu.Lock()
	st, notify := b.advance()
	b.mu.Unlock()
	if notify != nil {
		notify()
	}
	return st
}

// advance moves open to half-open once the timeout has elapsed. Must hold mu.
func (b *Breaker) advance() (State, func()) {
	if b.state == StateOpen && b.now().Sub(b.openedAt) >= b.opts.Timeout {
		notify := b.setState(StateHalfOpen)
		return b.state, notify
	}
	return b.state, nil
}

// setState records a transition and returns the deferred notification. Must hold mu.
func (b *Breaker) setState(to State) func() {
	from := b.state
	b.state = to
	b.probing = false
	if to == StateOpen {
		b.openedAt = b.now()
	}
	b.failures = 0
	if from == to || b.opts.OnStateChange == nil {
		return nil
	}
	name, cb := b.opts.Name, b.opts.OnStateChange
	return func() { cb(name, from, to) }
}

func (b *Breaker) admit() error {
	b.mu.Lock()
	st, notify := b.advance()
	var err error
	switch st {
	case StateOpen:
		err = ErrCircuitOpen
	case StateHalfOpen:
		if b.probing {
			err = ErrCircuitOpen
		} else {
			b.probing = true
		}
	}
	b.mu.Unlock()
	if notify != nil {
		notify()
	}
	return err
}

func (b *Breaker) record(err error) {
	b.mu.Lock()
	var notify func()
	switch {
	case err != nil && (b.state == StateHalfOpen || b.failures+1 >= b.opts.FailThreshold):
		notify = b.setState(StateOpen)
	case err != nil:
		b.failures++
	case b.state == StateHalfOpen:
		notify = b.setState(StateClosed)
	default:
		b.failures = 0
	}
	b.mu.Unlock()
	if notify != nil {
		notify()
	}
}

// Call executes f through the circuit breaker.
func (b *Breaker) Call(ctx context.Context, f func(context.Context) error) error {
	if err := b.admit(); err != nil {
		return err
	}
	err := f(ctx)
	b.record(err)
	return err
}

// Do is the value-returning form of Call.
func Do[T any](b *Breaker, ctx context.Context, f func(context.Context) (T, error)) (T, error) {
	var zero T
	if err := b.admit(); err != nil {
		return zero, err
	}
	v, err := f(ctx)
	b.record(err)
	return v, err
}
