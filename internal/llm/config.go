package llm

import "time"

// QueueConfig controls queue behavior
type QueueConfig struct {
	// Concurrency control
	MaxConcurrent int // Total concurrent calls to local servers

	// Queue sizes
	CriticalQueueSize   int
	BackgroundQueueSize int

	// Circuit breaker
	FailureThreshold int
	BreakerTimeout   time.Duration
}

// DefaultQueueConfig returns sensible defaults
func DefaultQueueConfig() *QueueConfig {
	return &QueueConfig{
		MaxConcurrent:       2,
		CriticalQueueSize:   20,
		BackgroundQueueSize: 100,
		FailureThreshold:    3,
		BreakerTimeout:      time.Minute,
	}
}
