package resilience

import (
	"errors"
	"sync"
	"time"

	"paper-agent-chat/backend/pkg/logger"
)

// ErrCircuitOpen is returned when the breaker rejects a call without
// attempting it.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// State of a circuit breaker.
type State string

const (
	StateClosed   State = "closed"
	StateOpen     State = "open"
	StateHalfOpen State = "half-open"
)

// CircuitBreakerConfig tunes one breaker instance.
type CircuitBreakerConfig struct {
	Name string
	// FailureThreshold is how many consecutive failures open the circuit.
	FailureThreshold uint
	// SuccessThreshold is how many consecutive probe successes close it again.
	SuccessThreshold uint
	// RetryTimeout is how long the circuit stays open before probing.
	RetryTimeout time.Duration
}

func DefaultCircuitBreakerConfig(name string) CircuitBreakerConfig {
	return CircuitBreakerConfig{
		Name:             name,
		FailureThreshold: 5,
		SuccessThreshold: 2,
		RetryTimeout:     30 * time.Second,
	}
}

// CircuitBreaker guards a flaky dependency. When enough consecutive calls
// fail it rejects further calls outright until the retry window passes,
// then lets probes through until the dependency proves itself again.
type CircuitBreaker struct {
	cfg CircuitBreakerConfig
	log *logger.Logger

	mu        sync.Mutex
	state     State
	failures  uint
	successes uint
	openedAt  time.Time
}

func NewCircuitBreaker(cfg CircuitBreakerConfig, log *logger.Logger) *CircuitBreaker {
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.SuccessThreshold == 0 {
		cfg.SuccessThreshold = 2
	}
	if cfg.RetryTimeout <= 0 {
		cfg.RetryTimeout = 30 * time.Second
	}
	return &CircuitBreaker{
		cfg:   cfg,
		log:   log,
		state: StateClosed,
	}
}

// Execute runs fn through the breaker. When the circuit is open the call
// is rejected with ErrCircuitOpen and fn is never invoked.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	if err := cb.beforeCall(); err != nil {
		return err
	}
	err := fn()
	cb.afterCall(err)
	return err
}

// State reports the breaker's current state.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

func (cb *CircuitBreaker) beforeCall() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == StateOpen {
		if time.Since(cb.openedAt) < cb.cfg.RetryTimeout {
			return ErrCircuitOpen
		}
		cb.state = StateHalfOpen
		cb.successes = 0
		cb.log.Info("circuit breaker probing", "name", cb.cfg.Name)
	}
	return nil
}

func (cb *CircuitBreaker) afterCall(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if err != nil {
		cb.failures++
		cb.successes = 0
		if cb.state == StateHalfOpen || cb.failures >= cb.cfg.FailureThreshold {
			if cb.state != StateOpen {
				cb.log.Warn("circuit breaker opened",
					"name", cb.cfg.Name,
					"failures", cb.failures,
				)
			}
			cb.state = StateOpen
			cb.openedAt = time.Now()
		}
		return
	}

	cb.failures = 0
	switch cb.state {
	case StateHalfOpen:
		cb.successes++
		if cb.successes >= cb.cfg.SuccessThreshold {
			cb.state = StateClosed
			cb.log.Info("circuit breaker closed", "name", cb.cfg.Name)
		}
	case StateClosed:
		// nothing to do
	}
}
