package llm

import (
	"context"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"
)

var callSeq atomic.Int64

// StatusError is returned by Client.Call for any non-200 response.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("server returned status %d: %s", e.StatusCode, e.Body)
}

// Client wraps the queue for easy integration
type Client struct {
	manager  *Manager
	priority Priority
	timeout  time.Duration
}

// NewClient creates a new queue client
func NewClient(manager *Manager, priority Priority, timeout time.Duration) *Client {
	return &Client{
		manager:  manager,
		priority: priority,
		timeout:  timeout,
	}
}

// WithPriority returns a client sharing c's queue that submits at p.
func (c *Client) WithPriority(p Priority) *Client {
	if p == c.priority {
		return c
	}
	cp := *c
	cp.priority = p
	return &cp
}

// Call submits a POST through the queue and waits for the body.
func (c *Client) Call(ctx context.Context, url string, header map[string]string, payload interface{}) ([]byte, error) {
	resultCh := make(chan *CallResult, 1)
	errCh := make(chan error, 1)

	call := &Call{
		ID:         fmt.Sprintf("%d_%d", c.priority, callSeq.Add(1)),
		Priority:   c.priority,
		Context:    ctx,
		URL:        url,
		Header:     header,
		Payload:    payload,
		ResultCh:   resultCh,
		ErrorCh:    errCh,
		SubmitTime: time.Now(),
		Timeout:    c.timeout,
	}

	if err := c.manager.Submit(call); err != nil {
		return nil, fmt.Errorf("failed to submit: %w", err)
	}

	select {
	case res := <-resultCh:
		if res.StatusCode != http.StatusOK {
			return nil, &StatusError{StatusCode: res.StatusCode, Body: truncate(string(res.Body), 200)}
		}
		return res.Body, nil
	case err := <-errCh:
		return nil, err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
