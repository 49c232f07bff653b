package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"go-llmlab/internal/tools"
)

var ErrQueueFull = errors.New("queue full")

var queueLog = logrus.WithField("component", "llm-queue")

// Manager serializes calls to local model servers: a small number of
// concurrent slots, critical calls ahead of background ones, and a circuit
// breaker in front of the HTTP transport.
type Manager struct {
	criticalQueue   chan *Call
	backgroundQueue chan *Call

	semaphore chan struct{}

	circuitBreaker *tools.CircuitBreaker
	httpClient     *http.Client

	mu      sync.RWMutex
	metrics Metrics

	stopOnce sync.Once
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

// NewManager creates a queue manager and starts its dispatcher.
func NewManager(config *QueueConfig, circuitBreaker *tools.CircuitBreaker) *Manager {
	if config == nil {
		config = DefaultQueueConfig()
	}
	m := &Manager{
		criticalQueue:   make(chan *Call, config.CriticalQueueSize),
		backgroundQueue: make(chan *Call, config.BackgroundQueueSize),
		semaphore:       make(chan struct{}, config.MaxConcurrent),
		circuitBreaker:  circuitBreaker,
		httpClient: &http.Client{
			Transport: &http.Transport{MaxIdleConns: 10},
		},
		metrics: Metrics{
			CurrentQueueDepth: map[Priority]int{
				PriorityCritical:   0,
				PriorityBackground: 0,
			},
		},
		stopCh: make(chan struct{}),
	}

	m.wg.Add(1)
	go m.dispatcher()

	queueLog.WithField("slots", config.MaxConcurrent).Info("queue started")
	return m
}

// Submit enqueues a call without blocking; a full queue drops it.
func (m *Manager) Submit(call *Call) error {
	queue := m.backgroundQueue
	if call.Priority == PriorityCritical {
		queue = m.criticalQueue
	}

	m.mu.Lock()
	if call.Priority == PriorityCritical {
		m.metrics.CriticalEnqueued++
	} else {
		m.metrics.BackgroundEnqueued++
	}
	m.mu.Unlock()

	select {
	case queue <- call:
		return nil
	default:
		m.mu.Lock()
		if call.Priority == PriorityCritical {
			m.metrics.CriticalDropped++
		} else {
			m.metrics.BackgroundDropped++
		}
		m.mu.Unlock()
		queueLog.WithField("call", call.ID).Warn("queue full, dropping call")
		return ErrQueueFull
	}
}

// dispatcher picks the next call, critical first, and waits for a slot.
func (m *Manager) dispatcher() {
	defer m.wg.Done()

	for {
		var call *Call
		select {
		case <-m.stopCh:
			return
		case call = <-m.criticalQueue:
		case call = <-m.backgroundQueue:
			// A critical call may have arrived while background was picked.
			select {
			case crit := <-m.criticalQueue:
				m.requeue(call)
				call = crit
			default:
			}
		}

		select {
		case <-m.stopCh:
			call.ErrorCh <- ErrQueueFull
			return
		case m.semaphore <- struct{}{}:
		}

		m.wg.Add(1)
		go m.process(call)
	}
}

func (m *Manager) requeue(call *Call) {
	select {
	case m.backgroundQueue <- call:
	default:
		call.ErrorCh <- ErrQueueFull
	}
}

func (m *Manager) process(call *Call) {
	defer func() {
		<-m.semaphore
		m.wg.Done()

		m.mu.Lock()
		if call.Priority == PriorityCritical {
			m.metrics.CriticalProcessed++
		} else {
			m.metrics.BackgroundProcessed++
		}
		m.mu.Unlock()
	}()

	start := time.Now()
	entry := queueLog.WithField("call", call.ID)

	if err := call.Context.Err(); err != nil {
		call.ErrorCh <- err
		return
	}

	ctx := call.Context
	if call.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, call.Timeout)
		defer cancel()
	}

	result, err := m.execute(ctx, call)
	if err != nil {
		entry.WithError(err).WithField("elapsed", time.Since(start)).Warn("call failed")
		call.ErrorCh <- err
		return
	}
	entry.WithFields(logrus.Fields{
		"status":  result.StatusCode,
		"elapsed": time.Since(start),
	}).Debug("call completed")
	call.ResultCh <- result
}

func (m *Manager) execute(ctx context.Context, call *Call) (*CallResult, error) {
	body, err := json.Marshal(call.Payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}

	var result *CallResult
	run := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, call.URL, bytes.NewReader(body))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")
		for k, v := range call.Header {
			req.Header.Set(k, v)
		}

		resp, err := m.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("http request failed: %w", err)
		}
		defer resp.Body.Close()

		raw, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("failed to read response: %w", err)
		}
		result = &CallResult{StatusCode: resp.StatusCode, Body: raw}
		if resp.StatusCode >= http.StatusInternalServerError {
			return fmt.Errorf("server returned status %d", resp.StatusCode)
		}
		return nil
	}

	if m.circuitBreaker == nil {
		err = run()
	} else {
		err = m.circuitBreaker.Call(run)
	}
	// A 5xx still has a body worth classifying.
	if result != nil {
		return result, nil
	}
	return nil, err
}

// GetMetrics returns current queue statistics
func (m *Manager) GetMetrics() Metrics {
	m.mu.RLock()
	defer m.mu.RUnlock()

	metrics := m.metrics
	metrics.CurrentQueueDepth = map[Priority]int{
		PriorityCritical:   len(m.criticalQueue),
		PriorityBackground: len(m.backgroundQueue),
	}
	return metrics
}

// Stop shuts the dispatcher down and waits for in-flight calls.
func (m *Manager) Stop() {
	m.stopOnce.Do(func() {
		close(m.stopCh)
		m.wg.Wait()
		queueLog.Info("queue stopped")
	})
}
