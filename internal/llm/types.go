package llm

import (
	"context"
	"time"
)

// Role tags a message from the point of view of the speaker being prompted.
type Role string

const (
	RoleSelf  Role = "self"  // the requesting speaker's own past turn (assistant)
	RoleOther Role = "other" // anyone else's turn (user)
)

// Message is one role-tagged entry of a prompt.
type Message struct {
	Role Role
	Text string
}

// Request is what every backend receives: a persona instruction plus an
// ordered, role-tagged message history.
type Request struct {
	System    string
	Messages  []Message
	MaxTokens int  // 0 = backend default
	JSON      bool // ask for a JSON object response
	// Priority orders calls on queued backends; hosted APIs ignore it.
	Priority Priority
}

// Backend is a language-generation capability. Implementations classify
// their failures with ErrBackendUnavailable, ErrBackendRejected or
// ErrEmptyResponse.
type Backend interface {
	Name() string
	Generate(ctx context.Context, req Request) (string, error)
}

// Priority levels (just 2). Conversation turns use the zero value.
type Priority int

const (
	PriorityCritical   Priority = 0 // Conversation turns
	PriorityBackground Priority = 1 // Summaries, link selection, brochures
)

// Call encapsulates one queued HTTP call to an OpenAI-compatible server
type Call struct {
	ID       string
	Priority Priority
	Context  context.Context

	URL     string
	Header  map[string]string
	Payload interface{}

	ResultCh chan<- *CallResult
	ErrorCh  chan<- error

	SubmitTime time.Time
	Timeout    time.Duration
}

// CallResult encapsulates the raw server output
type CallResult struct {
	StatusCode int
	Body       []byte
}

// Metrics tracks queue performance
type Metrics struct {
	CriticalEnqueued    int64
	CriticalProcessed   int64
	CriticalDropped     int64
	BackgroundEnqueued  int64
	BackgroundProcessed int64
	BackgroundDropped   int64
	CurrentQueueDepth   map[Priority]int
}

// ModelInfo represents a model advertised by an OpenAI-compatible endpoint
type ModelInfo struct {
	Name    string `json:"id"`
	Object  string `json:"object"`
	Created int64  `json:"created"`
	OwnedBy string `json:"owned_by"`
}
