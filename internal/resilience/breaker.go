// Package resilience provides retry and circuit breaker primitives for the
// two external dependencies clipforge orchestrates: the Plex API and the
// ffmpeg binary. Breakers are plain injected values; nothing in this package
// is process-global.
package resilience

import (
	"sync"
	"time"

	"github.com/clipforge/clipforge/internal/config"
	"github.com/clipforge/clipforge/internal/models"
)

// CircuitState represents the state of a circuit breaker.
type CircuitState int

// Circuit breaker states.
const (
	CircuitClosed CircuitState = iota
	CircuitOpen
	CircuitHalfOpen
)

// String returns the state name.
func (s CircuitState) String() string {
	switch s {
	case CircuitClosed:
		return "closed"
	case CircuitOpen:
		return "open"
	case CircuitHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// defaultHalfOpenMax is the number of probe requests allowed while half-open.
const defaultHalfOpenMax = 1

// CircuitBreaker implements the circuit breaker pattern. After
// FailureThreshold consecutive failures the circuit opens and calls are
// rejected until ResetTimeout has elapsed, at which point a limited number
// of probes may pass through. A successful probe closes the circuit; a
// failed probe reopens it.
type CircuitBreaker struct {
	mu              sync.RWMutex
	state           CircuitState
	failures        int
	halfOpenCount   int
	lastFailureTime time.Time
	totalRequests   int64
	totalFailures   int64

	threshold    int
	resetTimeout time.Duration
	halfOpenMax  int

	// now is injectable for tests.
	now func() time.Time
}

// NewCircuitBreaker creates a new circuit breaker from config.
func NewCircuitBreaker(cfg config.BreakerConfig) *CircuitBreaker {
	return &CircuitBreaker{
		state:        CircuitClosed,
		threshold:    cfg.FailureThreshold,
		resetTimeout: cfg.ResetTimeout,
		halfOpenMax:  defaultHalfOpenMax,
		now:          time.Now,
	}
}

// Allow reports whether a request may proceed. An open circuit transitions
// to half-open once the reset timeout has elapsed, admitting the caller as
// the first probe.
func (cb *CircuitBreaker) Allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case CircuitClosed:
		return true

	case CircuitOpen:
		if cb.now().Sub(cb.lastFailureTime) >= cb.resetTimeout {
			cb.state = CircuitHalfOpen
			cb.halfOpenCount = 1 // Count this first probe
			return true
		}
		return false

	case CircuitHalfOpen:
		if cb.halfOpenCount < cb.halfOpenMax {
			cb.halfOpenCount++
			return true
		}
		return false

	default:
		return false
	}
}

// RecordSuccess records a successful request. A success while half-open
// closes the circuit and clears the failure count.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.totalRequests++

	if cb.state == CircuitHalfOpen {
		cb.state = CircuitClosed
		cb.failures = 0
		cb.halfOpenCount = 0
	}
}

// RecordFailure records a failed request. Reaching the failure threshold
// while closed opens the circuit; any failure while half-open reopens it.
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures++
	cb.lastFailureTime = cb.now()
	cb.totalRequests++
	cb.totalFailures++

	switch cb.state {
	case CircuitClosed:
		if cb.failures >= cb.threshold {
			cb.state = CircuitOpen
		}
	case CircuitHalfOpen:
		cb.state = CircuitOpen
		cb.halfOpenCount = 0
	}
}

// State returns the current circuit state without mutating it. A circuit
// that is open past its reset timeout still reports open until the next
// Allow call admits a probe.
func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	return cb.state
}

// Reset returns the circuit breaker to the closed state.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.state = CircuitClosed
	cb.failures = 0
	cb.halfOpenCount = 0
}

// Stats describes the current breaker state for diagnostics.
type Stats struct {
	State         string `json:"state"`
	Failures      int    `json:"failures"`
	TotalRequests int64  `json:"total_requests"`
	TotalFailures int64  `json:"total_failures"`
}

// Stats returns a snapshot of breaker counters.
func (cb *CircuitBreaker) Stats() Stats {
	cb.mu.RLock()
	defer cb.mu.RUnlock()

	return Stats{
		State:         cb.state.String(),
		Failures:      cb.failures,
		TotalRequests: cb.totalRequests,
		TotalFailures: cb.totalFailures,
	}
}

// ErrCircuitOpen is the error returned when a breaker rejects a call.
var ErrCircuitOpen = models.NewError(models.KindUnavailable, "circuit breaker is open")

// Execute runs fn under the breaker. When the circuit rejects the call,
// ErrCircuitOpen is returned without invoking fn. Only errors for which
// expected reports true count as breaker failures; unexpected errors pass
// through without affecting the circuit, so an unrelated bug cannot latch
// the breaker open.
func (cb *CircuitBreaker) Execute(fn func() error, expected func(error) bool) error {
	if !cb.Allow() {
		return ErrCircuitOpen
	}

	err := fn()
	if err == nil {
		cb.RecordSuccess()
		return nil
	}
	if expected == nil || expected(err) {
		cb.RecordFailure()
	}
	return err
}
