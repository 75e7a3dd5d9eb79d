package service

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"average-calculator/internal/repository"
)

// CircuitState represents the state of a circuit breaker
type CircuitState string

const (
	StateClosed   CircuitState = "closed"
	StateOpen     CircuitState = "open"
	StateHalfOpen CircuitState = "half-open"
)

// CircuitBreaker short-circuits calls to an upstream endpoint after repeated failures.
// Once open it rejects calls until resetTimeout has passed, then lets a single probe
// through; a successful probe closes it again.
type CircuitBreaker struct {
	mu               sync.Mutex
	clock            clockwork.Clock
	state            CircuitState
	failures         int
	failureThreshold int
	resetTimeout     time.Duration
	openedAt         time.Time
	probing          bool
}

// NewCircuitBreaker creates a closed breaker. A threshold of 0 disables it.
func NewCircuitBreaker(failureThreshold int, resetTimeout time.Duration, clock clockwork.Clock) *CircuitBreaker {
	return &CircuitBreaker{
		clock:            clock,
		state:            StateClosed,
		failureThreshold: failureThreshold,
		resetTimeout:     resetTimeout,
	}
}

// Call executes fn if the circuit allows it and records the outcome.
func (cb *CircuitBreaker) Call(fn func() error) error {
	if cb.failureThreshold <= 0 {
		return fn()
	}
	if !cb.acquire() {
		return ErrCircuitBreakerOpen
	}
	err := fn()
	cb.record(err)
	return err
}

func (cb *CircuitBreaker) acquire() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateOpen:
		if cb.clock.Since(cb.openedAt) < cb.resetTimeout {
			return false
		}
		cb.state = StateHalfOpen
		cb.probing = true
		return true
	case StateHalfOpen:
		if cb.probing {
			return false
		}
		cb.probing = true
		return true
	default:
		return true
	}
}

func (cb *CircuitBreaker) record(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == StateHalfOpen {
		cb.probing = false
		if err != nil {
			cb.trip()
			return
		}
		cb.state = StateClosed
		cb.failures = 0
		return
	}
	if err == nil {
		cb.failures = 0
		return
	}
	cb.failures++
	if cb.failures >= cb.failureThreshold {
		cb.trip()
	}
}

func (cb *CircuitBreaker) trip() {
	cb.state = StateOpen
	cb.openedAt = cb.clock.Now()
	cb.failures = 0
}

// State returns the current state
func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// CircuitBreakerPool holds one breaker per category endpoint.
type CircuitBreakerPool struct {
	breakers map[repository.Category]*CircuitBreaker
}

// NewCircuitBreakerPool creates a breaker for every category up front.
func NewCircuitBreakerPool(failureThreshold int, resetTimeout time.Duration, clock clockwork.Clock) *CircuitBreakerPool {
	p := &CircuitBreakerPool{breakers: make(map[repository.Category]*CircuitBreaker, len(repository.Categories))}
	for _, c := range repository.Categories {
		p.breakers[c] = NewCircuitBreaker(failureThreshold, resetTimeout, clock)
	}
	return p
}

// Get returns the breaker for c, or nil for an unknown category.
func (p *CircuitBreakerPool) Get(c repository.Category) *CircuitBreaker {
	return p.breakers[c]
}

// States reports the state of every breaker keyed by category name.
func (p *CircuitBreakerPool) States() map[string]CircuitState {
	out := make(map[string]CircuitState, len(p.breakers))
	for c, cb := range p.breakers {
		out[c.Name()] = cb.State()
	}
	return out
}
