// Package reliability provides fault-tolerance primitives for calls to external
// dependencies (key management service, database).
package reliability

import (
	"fmt"
	"sync"
	"time"

	apperrors "github.com/allisson/panvault/internal/errors"
)

// State represents the current state of the circuit breaker.
type State int

const (
	// StateClosed - normal operation, calls pass through.
	StateClosed State = iota
	// StateOpen - circuit is open, calls fail fast without executing.
	StateOpen
	// StateHalfOpen - cooldown elapsed, a limited number of trial calls is allowed.
	StateHalfOpen
)

// String returns the string representation of the circuit state.
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

// Config holds circuit breaker configuration.
type Config struct {
	// WindowSize is the number of recent call outcomes tracked in the sliding window.
	WindowSize int
	// FailureRate is the failure ratio within a full window that opens the circuit.
	FailureRate float64
	// Cooldown is how long the circuit stays open before transitioning to half-open.
	Cooldown time.Duration
	// HalfOpenMax is the maximum number of trial calls allowed in the half-open state.
	HalfOpenMax int
	// OnStateChange is called when the circuit state changes.
	OnStateChange func(name string, from, to State)
}

// DefaultConfig returns a default configuration: the circuit opens once half of
// the last ten calls have failed and stays open for thirty seconds.
func DefaultConfig() Config {
	return Config{
		WindowSize:  10,
		FailureRate: 0.5,
		Cooldown:    30 * time.Second,
		HalfOpenMax: 3,
	}
}

// CircuitBreaker is an explicit three-state machine with a sliding failure
// window. While open, calls are rejected immediately instead of being retried,
// protecting downstream latency budgets during an outage.
type CircuitBreaker struct {
	name   string
	config Config

	mu          sync.Mutex
	state       State
	window      []bool // ring buffer of outcomes, true = failure
	windowPos   int
	windowFull  bool
	openedAt    time.Time
	trialsInUse int
	trialFails  int
	trialOks    int
	now         func() time.Time
}

// New creates a new circuit breaker with the given configuration.
func New(name string, config Config) *CircuitBreaker {
	def := DefaultConfig()
	if config.WindowSize <= 0 {
		config.WindowSize = def.WindowSize
	}
	if config.FailureRate <= 0 || config.FailureRate > 1 {
		config.FailureRate = def.FailureRate
	}
	if config.Cooldown <= 0 {
		config.Cooldown = def.Cooldown
	}
	if config.HalfOpenMax <= 0 {
		config.HalfOpenMax = def.HalfOpenMax
	}

	return &CircuitBreaker{
		name:   name,
		config: config,
		state:  StateClosed,
		window: make([]bool, config.WindowSize),
		now:    time.Now,
	}
}

// ErrOpen is returned when a call is rejected because the circuit is open.
var ErrOpen = apperrors.Wrap(apperrors.ErrUnavailable, "circuit breaker open")

// Allow reports whether a call may proceed. Callers must report the outcome of
// every allowed call via Record.
func (cb *CircuitBreaker) Allow() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateClosed:
		return nil
	case StateOpen:
		if cb.now().Sub(cb.openedAt) < cb.config.Cooldown {
			return fmt.Errorf("%w: %s", ErrOpen, cb.name)
		}
		cb.setState(StateHalfOpen)
		cb.trialsInUse++
		return nil
	case StateHalfOpen:
		if cb.trialsInUse >= cb.config.HalfOpenMax {
			return fmt.Errorf("%w: %s", ErrOpen, cb.name)
		}
		cb.trialsInUse++
		return nil
	}
	return nil
}

// Record reports the outcome of a call previously admitted by Allow.
func (cb *CircuitBreaker) Record(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	failed := err != nil

	switch cb.state {
	case StateClosed:
		cb.push(failed)
		if cb.windowFull && cb.failureRate() >= cb.config.FailureRate {
			cb.setState(StateOpen)
		}
	case StateHalfOpen:
		if failed {
			cb.trialFails++
			// A single failed trial re-opens the circuit.
			cb.setState(StateOpen)
			return
		}
		cb.trialOks++
		if cb.trialOks >= cb.config.HalfOpenMax {
			cb.setState(StateClosed)
		}
	case StateOpen:
		// A call admitted in half-open may complete after the circuit re-opened;
		// its outcome no longer matters.
	}
}

// Execute runs fn with circuit breaker protection.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	if err := cb.Allow(); err != nil {
		return err
	}
	err := fn()
	cb.Record(err)
	return err
}

// State returns the current state of the circuit breaker.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// push adds an outcome to the sliding window.
func (cb *CircuitBreaker) push(failed bool) {
	cb.window[cb.windowPos] = failed
	cb.windowPos = (cb.windowPos + 1) % len(cb.window)
	if cb.windowPos == 0 {
		cb.windowFull = true
	}
}

// failureRate computes the failure ratio over the current window.
func (cb *CircuitBreaker) failureRate() float64 {
	size := len(cb.window)
	if !cb.windowFull {
		size = cb.windowPos
	}
	if size == 0 {
		return 0
	}
	failures := 0
	for i := 0; i < size; i++ {
		if cb.window[i] {
			failures++
		}
	}
	return float64(failures) / float64(size)
}

// setState transitions the state machine and resets per-state counters.
func (cb *CircuitBreaker) setState(state State) {
	if cb.state == state {
		return
	}
	from := cb.state
	cb.state = state

	switch state {
	case StateOpen:
		cb.openedAt = cb.now()
		cb.trialsInUse = 0
		cb.trialFails = 0
		cb.trialOks = 0
	case StateHalfOpen:
		cb.trialsInUse = 0
		cb.trialFails = 0
		cb.trialOks = 0
	case StateClosed:
		cb.window = make([]bool, cb.config.WindowSize)
		cb.windowPos = 0
		cb.windowFull = false
	}

	if cb.config.OnStateChange != nil {
		cb.config.OnStateChange(cb.name, from, state)
	}
}
