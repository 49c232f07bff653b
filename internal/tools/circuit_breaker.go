package tools

import (
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

var (
	ErrCircuitOpen     = errors.New("circuit breaker open")
	ErrTooManyRequests = errors.New("too many requests in half-open state")
)

var breakerLog = logrus.WithField("component", "breaker")

// CircuitState represents the state of the circuit breaker
type CircuitState string

const (
	StateClosed   CircuitState = "closed"    // Normal operation
	StateOpen     CircuitState = "open"      // Failing, reject calls
	StateHalfOpen CircuitState = "half-open" // Probing whether the upstream recovered
)

// CircuitBreaker stops calls to an upstream (a local model server, a
// website) after it has failed repeatedly.
type CircuitBreaker struct {
	name string

	mu                   sync.RWMutex
	state                CircuitState
	failureCount         int
	halfOpenInFlight     int
	consecutiveSuccesses int
	lastFailureTime      time.Time
	lastStateChange      time.Time

	failureThreshold int
	successThreshold int
	timeout          time.Duration
	halfOpenMax      int

	totalCalls      int64
	totalFailures   int64
	totalRejections int64
}

// NewCircuitBreaker creates a breaker that opens after failureThreshold
// consecutive failures and probes again once timeout has elapsed.
func NewCircuitBreaker(name string, failureThreshold int, timeout time.Duration) *CircuitBreaker {
	if failureThreshold < 1 {
		failureThreshold = 3
	}
	if timeout <= 0 {
		timeout = time.Minute
	}
	cb := &CircuitBreaker{
		name:             name,
		state:            StateClosed,
		failureThreshold: failureThreshold,
		successThreshold: 2,
		timeout:          timeout,
		halfOpenMax:      1,
		lastStateChange:  time.Now(),
	}
	breakerLog.WithFields(logrus.Fields{
		"breaker":   name,
		"threshold": failureThreshold,
		"timeout":   timeout,
	}).Debug("circuit breaker initialized")
	return cb
}

// Call runs fn unless the circuit is open, and records its outcome.
func (cb *CircuitBreaker) Call(fn func() error) error {
	if err := cb.beforeCall(); err != nil {
		return err
	}
	err := fn()
	cb.afterCall(err)
	return err
}

func (cb *CircuitBreaker) beforeCall() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.totalCalls++
	switch cb.state {
	case StateOpen:
		if time.Since(cb.lastFailureTime) <= cb.timeout {
			cb.totalRejections++
			return ErrCircuitOpen
		}
		cb.setState(StateHalfOpen)
		cb.consecutiveSuccesses = 0
		cb.halfOpenInFlight = 1
		return nil
	case StateHalfOpen:
		if cb.halfOpenInFlight >= cb.halfOpenMax {
			cb.totalRejections++
			return ErrTooManyRequests
		}
		cb.halfOpenInFlight++
		return nil
	default:
		return nil
	}
}

func (cb *CircuitBreaker) afterCall(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == StateHalfOpen && cb.halfOpenInFlight > 0 {
		cb.halfOpenInFlight--
	}

	if err != nil {
		cb.totalFailures++
		cb.failureCount++
		cb.consecutiveSuccesses = 0
		cb.lastFailureTime = time.Now()
		switch cb.state {
		case StateClosed:
			if cb.failureCount >= cb.failureThreshold {
				cb.setState(StateOpen)
			}
		case StateHalfOpen:
			cb.setState(StateOpen)
		}
		return
	}

	cb.consecutiveSuccesses++
	switch cb.state {
	case StateClosed:
		cb.failureCount = 0
	case StateHalfOpen:
		if cb.consecutiveSuccesses >= cb.successThreshold {
			cb.setState(StateClosed)
			cb.failureCount = 0
		}
	}
}

// setState must be called with mu held.
func (cb *CircuitBreaker) setState(next CircuitState) {
	prev := cb.state
	cb.state = next
	cb.lastStateChange = time.Now()
	if prev != next {
		breakerLog.WithFields(logrus.Fields{
			"breaker":  cb.name,
			"from":     prev,
			"to":       next,
			"failures": cb.failureCount,
		}).Warn("circuit breaker state change")
	}
}

// State returns the current state
func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	return cb.state
}

// IsOpen returns true if the circuit is open and still cooling down.
func (cb *CircuitBreaker) IsOpen() bool {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	return cb.state == StateOpen && time.Since(cb.lastFailureTime) <= cb.timeout
}

// Stats returns counters suitable for a health endpoint.
func (cb *CircuitBreaker) Stats() map[string]interface{} {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	return map[string]interface{}{
		"name":             cb.name,
		"state":            string(cb.state),
		"total_calls":      cb.totalCalls,
		"total_failures":   cb.totalFailures,
		"total_rejections": cb.totalRejections,
		"failure_count":    cb.failureCount,
		"time_in_state":    time.Since(cb.lastStateChange).String(),
	}
}

// Reset manually closes the circuit.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.setState(StateClosed)
	cb.failureCount = 0
	cb.consecutiveSuccesses = 0
	cb.halfOpenInFlight = 0
}
