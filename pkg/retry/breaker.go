package retry

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

// ErrBreakerOpen is returned while the breaker rejects calls.
var ErrBreakerOpen = errors.New("circuit breaker is open")

// BreakerState is the state of a circuit breaker.
type BreakerState int32

const (
	// BreakerClosed passes calls through normally.
	BreakerClosed BreakerState = iota
	// BreakerOpen rejects calls until the reset timeout passes.
	BreakerOpen
	// BreakerHalfOpen probes with real calls to decide recovery.
	BreakerHalfOpen
)

// String returns the state name.
func (s BreakerState) String() string {
	switch s {
	case BreakerClosed:
		return "closed"
	case BreakerOpen:
		return "open"
	case BreakerHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// BreakerConfig configures a circuit breaker.
type BreakerConfig struct {
	// MaxErrors is how many consecutive errors trip the breaker.
	MaxErrors int

	// ResetTimeout is how long the breaker stays open before probing.
	ResetTimeout time.Duration

	// SuccessThreshold is how many half-open successes close it again.
	SuccessThreshold int

	// OnStateChange is called on every transition.
	OnStateChange func(from, to BreakerState)
}

// DefaultBreakerConfig trips after five consecutive failures and probes
// again after thirty seconds.
func DefaultBreakerConfig() *BreakerConfig {
	return &BreakerConfig{
		MaxErrors:        5,
		ResetTimeout:     30 * time.Second,
		SuccessThreshold: 2,
	}
}

// Breaker is a circuit breaker. It sits in front of the generation API
// so a dead upstream fails fast instead of stalling every request.
type Breaker struct {
	config *BreakerConfig

	state        atomic.Int32
	errorCount   atomic.Int32
	successCount atomic.Int32
	lastError    atomic.Int64 // unix nanoseconds

	mu sync.Mutex
}

// NewBreaker creates a breaker; nil config means DefaultBreakerConfig.
func NewBreaker(config *BreakerConfig) *Breaker {
	if config == nil {
		config = DefaultBreakerConfig()
	}
	b := &Breaker{config: config}
	b.state.Store(int32(BreakerClosed))
	return b
}

// State returns the current state.
func (b *Breaker) State() BreakerState {
	return BreakerState(b.state.Load())
}

// Allow reports whether a call may proceed. An open breaker past its
// reset timeout moves to half-open and lets the call through as a
// probe.
func (b *Breaker) Allow() error {
	switch b.State() {
	case BreakerClosed, BreakerHalfOpen:
		return nil
	case BreakerOpen:
		lastErr := time.Unix(0, b.lastError.Load())
		if time.Since(lastErr) > b.config.ResetTimeout {
			b.setState(BreakerHalfOpen)
			return nil
		}
		return ErrBreakerOpen
	}
	return nil
}

// RecordSuccess notes a successful call.
func (b *Breaker) RecordSuccess() {
	switch b.State() {
	case BreakerClosed:
		b.errorCount.Store(0)
	case BreakerHalfOpen:
		if int(b.successCount.Add(1)) >= b.config.SuccessThreshold {
			b.setState(BreakerClosed)
			b.successCount.Store(0)
			b.errorCount.Store(0)
		}
	case BreakerOpen:
		b.errorCount.Store(0)
	}
}

// RecordError notes a failed call.
func (b *Breaker) RecordError() {
	b.lastError.Store(time.Now().UnixNano())

	switch b.State() {
	case BreakerClosed:
		if int(b.errorCount.Add(1)) >= b.config.MaxErrors {
			b.setState(BreakerOpen)
		}
	case BreakerHalfOpen:
		// A failed probe reopens immediately.
		b.setState(BreakerOpen)
		b.successCount.Store(0)
	case BreakerOpen:
	}
}

// Reset forces the breaker closed.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.setState(BreakerClosed)
	b.errorCount.Store(0)
	b.successCount.Store(0)
}

// Execute runs fn behind the breaker.
func (b *Breaker) Execute(fn func() error) error {
	if err := b.Allow(); err != nil {
		return err
	}
	err := fn()
	if err != nil {
		b.RecordError()
	} else {
		b.RecordSuccess()
	}
	return err
}

// ExecuteWithResult runs fn behind a breaker, returning its result.
func ExecuteWithResult[T any](b *Breaker, fn func() (T, error)) (T, error) {
	var zero T
	if err := b.Allow(); err != nil {
		return zero, err
	}
	result, err := fn()
	if err != nil {
		b.RecordError()
	} else {
		b.RecordSuccess()
	}
	return result, err
}

// BreakerMetrics is a snapshot of a breaker's counters.
type BreakerMetrics struct {
	State        BreakerState
	ErrorCount   int
	SuccessCount int
	LastError    time.Time
}

// Metrics returns the current counters.
func (b *Breaker) Metrics() BreakerMetrics {
	return BreakerMetrics{
		State:        b.State(),
		ErrorCount:   int(b.errorCount.Load()),
		SuccessCount: int(b.successCount.Load()),
		LastError:    time.Unix(0, b.lastError.Load()),
	}
}

func (b *Breaker) setState(newState BreakerState) {
	oldState := BreakerState(b.state.Swap(int32(newState)))
	if b.config.OnStateChange != nil && oldState != newState {
		b.config.OnStateChange(oldState, newState)
	}
}
