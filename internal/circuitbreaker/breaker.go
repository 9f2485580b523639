package circuitbreaker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/resilientlabs/analytics-api/internal/observability"
)

// State represents the state of a circuit breaker.
type State int

const (
	// StateClosed indicates the circuit is closed and calls are allowed.
	StateClosed State = iota

	// StateOpen indicates the circuit is open and calls are rejected.
	StateOpen

	// StateHalfOpen indicates the circuit is testing whether the protected
	// resource has recovered.
	StateHalfOpen
)

// String returns the string representation of the state.
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

// ErrCircuitOpen is returned when the circuit breaker rejects a call
// without invoking the protected operation, and when a recovery probe
// fails and reopens the circuit.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// errOperationPanicked marks a protected call that panicked instead of
// returning.
var errOperationPanicked = errors.New("operation panicked")

// Operation is a protected call guarded by a circuit breaker.
type Operation func(ctx context.Context) (any, error)

// CircuitBreaker guards a single downstream resource. All state reads and
// transitions happen under one mutex, so the open-timeout check, the probe
// claim, and the state write are a single atomic decision; the protected
// operation itself runs outside the lock.
type CircuitBreaker struct {
	name   string
	config *Config
	logger observability.Logger
	now    func() time.Time

	mu              sync.Mutex
	state           State
	failureCount    int
	successCount    int
	probing         bool
	lastFailure     time.Time
	lastStateChange time.Time
}

// Status is a point-in-time snapshot of a breaker.
type Status struct {
	Name            string    `json:"name"`
	State           string    `json:"state"`
	FailureCount    int       `json:"failure_count"`
	SuccessCount    int       `json:"success_count"`
	LastFailure     time.Time `json:"last_failure_time,omitempty"`
	LastStateChange time.Time `json:"last_state_change,omitempty"`
}

// New creates a circuit breaker for the named resource.
func New(name string, config *Config, logger observability.Logger) (*CircuitBreaker, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = observability.NopLogger()
	}

	now := config.Clock
	if now == nil {
		now = time.Now
	}

	cb := &CircuitBreaker{
		name:            name,
		config:          config,
		logger:          logger,
		now:             now,
		state:           StateClosed,
		lastStateChange: now(),
	}
	RecordState(name, StateClosed)
	return cb, nil
}

// Call invokes op under circuit breaker protection. While Open (or while
// another caller holds the half-open probe) the operation is never invoked
// and ErrCircuitOpen is returned. While Closed, operation failures are
// counted and propagated verbatim until the failure threshold trips the
// breaker. A failed recovery probe reopens the circuit and surfaces as
// ErrCircuitOpen.
func (cb *CircuitBreaker) Call(ctx context.Context, op Operation) (any, error) {
	probe, err := cb.beforeCall()
	if err != nil {
		RecordRejection(cb.name)
		return nil, err
	}

	// A panicking operation counts as a failure on its way out, so a
	// claimed probe is always released and never wedges the breaker.
	completed := false
	defer func() {
		if !completed {
			_ = cb.onFailure(probe, errOperationPanicked)
		}
	}()

	result, opErr := op(ctx)
	completed = true
	if opErr != nil {
		return nil, cb.onFailure(probe, opErr)
	}

	cb.onSuccess(probe)
	return result, nil
}

// beforeCall decides whether the call may proceed. It returns true when the
// caller has claimed the single half-open probe.
func (cb *CircuitBreaker) beforeCall() (bool, error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateClosed:
		return false, nil

	case StateOpen:
		if cb.now().Sub(cb.lastFailure) < cb.config.ResetTimeout {
			return false, ErrCircuitOpen
		}
		cb.transitionTo(StateHalfOpen)
		cb.probing = true
		return true, nil

	case StateHalfOpen:
		if cb.probing {
			return false, ErrCircuitOpen
		}
		cb.probing = true
		return true, nil

	default:
		return false, ErrCircuitOpen
	}
}

// onSuccess records a successful call.
func (cb *CircuitBreaker) onSuccess(probe bool) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	RecordSuccess(cb.name)

	if probe {
		cb.probing = false
		cb.transitionTo(StateClosed)
		cb.successCount = 1
		return
	}

	if cb.state == StateClosed {
		cb.failureCount = 0
		cb.successCount++
	}
}

// onFailure records a failed call and returns the error the caller should
// observe.
func (cb *CircuitBreaker) onFailure(probe bool, opErr error) error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	RecordFailure(cb.name)
	cb.lastFailure = cb.now()

	if probe {
		cb.probing = false
		cb.transitionTo(StateOpen)
		return fmt.Errorf("%w: recovery probe failed: %v", ErrCircuitOpen, opErr)
	}

	if cb.state == StateClosed {
		cb.failureCount++
		if cb.failureCount >= cb.config.FailureThreshold {
			cb.transitionTo(StateOpen)
		}
	}
	return opErr
}

// transitionTo moves the breaker to a new state. Counters are cleared only
// on entering Closed; an Open breaker keeps its failure history until it
// fully recovers. Caller must hold the lock.
func (cb *CircuitBreaker) transitionTo(newState State) {
	oldState := cb.state
	if oldState == newState {
		return
	}

	cb.state = newState
	cb.lastStateChange = cb.now()

	if newState == StateClosed {
		cb.failureCount = 0
		cb.successCount = 0
	}

	RecordStateChange(cb.name, oldState, newState)
	cb.logger.Info("circuit breaker state changed",
		observability.String("name", cb.name),
		observability.String("from", oldState.String()),
		observability.String("to", newState.String()))

	if cb.config.OnStateChange != nil {
		go cb.config.OnStateChange(cb.name, oldState, newState)
	}
}

// State returns the current state.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Name returns the name of the guarded resource.
func (cb *CircuitBreaker) Name() string {
	return cb.name
}

// Status returns a snapshot of the breaker.
func (cb *CircuitBreaker) Status() Status {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	return Status{
		Name:            cb.name,
		State:           cb.state.String(),
		FailureCount:    cb.failureCount,
		SuccessCount:    cb.successCount,
		LastFailure:     cb.lastFailure,
		LastStateChange: cb.lastStateChange,
	}
}

// Reset forces the breaker to Closed and clears all counters.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state != StateClosed {
		cb.transitionTo(StateClosed)
	} else {
		cb.failureCount = 0
		cb.successCount = 0
	}
	cb.probing = false

	cb.logger.Info("circuit breaker reset",
		observability.String("name", cb.name))
}
