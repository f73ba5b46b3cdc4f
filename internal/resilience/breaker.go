package resilience

import (
	"sync"
	"time"

	"github.com/fil0s/virtuoso-gem-finder/pkg/models"
)

// Circuit Breaker
//
// Shared across every pipeline stage that talks to paid APIs. One breaker,
// three states:
//
//	CLOSED    normal operation, calls pass through
//	OPEN      calls rejected until the recovery timeout elapses
//	HALF_OPEN exactly one trial call allowed; its outcome decides the rest
//
// Effects observed elsewhere:
//   - the OHLCV batcher shrinks its semaphore as failures accumulate
//   - the market validator tightens how many finalists reach deep analysis
//   - the OHLCV analyzer skips the cycle entirely while OPEN

type BreakerState int

const (
	StateClosed BreakerState = iota
	StateOpen
	StateHalfOpen
)

func (s BreakerState) String() string {
	switch s {
	case StateClosed:
		return "CLOSED"
	case StateOpen:
		return "OPEN"
	case StateHalfOpen:
		return "HALF_OPEN"
	}
	return "UNKNOWN"
}

type CircuitBreaker struct {
	mu               sync.Mutex
	failureCount     int
	lastFailureTime  time.Time
	failureThreshold int
	recoveryTimeout  time.Duration
	halfOpenInFlight bool

	now func() time.Time // injectable for tests
}

func NewCircuitBreaker(failureThreshold int, recoveryTimeout time.Duration) *CircuitBreaker {
	if failureThreshold <= 0 {
		failureThreshold = 3
	}
	if recoveryTimeout <= 0 {
		recoveryTimeout = 60 * time.Second
	}
	return &CircuitBreaker{
		failureThreshold: failureThreshold,
		recoveryTimeout:  recoveryTimeout,
		now:              time.Now,
	}
}

// State reports the current breaker state without consuming the half-open
// trial slot.
func (b *CircuitBreaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.stateLocked()
}

func (b *CircuitBreaker) stateLocked() BreakerState {
	if b.failureCount < b.failureThreshold {
		return StateClosed
	}
	if b.now().Sub(b.lastFailureTime) >= b.recoveryTimeout {
		return StateHalfOpen
	}
	return StateOpen
}

// Allow reports whether a call may proceed. In HALF_OPEN exactly one caller
// gets a true until Update settles the trial's outcome.
func (b *CircuitBreaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.stateLocked() {
	case StateClosed:
		return true
	case StateHalfOpen:
		if b.halfOpenInFlight {
			return false
		}
		b.halfOpenInFlight = true
		return true
	default:
		return false
	}
}

// Update records a batch outcome. Any success from any stage fully closes
// the breaker; a failure increments the count and restarts the recovery
// clock.
func (b *CircuitBreaker) Update(failed bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.halfOpenInFlight = false
	if failed {
		b.failureCount++
		b.lastFailureTime = b.now()
		return
	}
	b.failureCount = 0
}

// FailureCount is read by the OHLCV batcher and market validator to size
// their concurrency and top-k limits.
func (b *CircuitBreaker) FailureCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failureCount
}

// Snapshot captures the externally visible state for cycle reports.
func (b *CircuitBreaker) Snapshot() models.BreakerSnapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	return models.BreakerSnapshot{
		State:           b.stateLocked().String(),
		FailureCount:    b.failureCount,
		LastFailureTime: b.lastFailureTime,
	}
}
