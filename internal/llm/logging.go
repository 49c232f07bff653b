package llm

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

var backendLog = logrus.WithField("component", "backend")

type loggingBackend struct {
	next Backend
}

// WithLogging wraps a backend so every call is logged with its latency.
// Wrapping twice is a no-op.
func WithLogging(b Backend) Backend {
	if _, ok := b.(*loggingBackend); ok {
		return b
	}
	return &loggingBackend{next: b}
}

func (l *loggingBackend) Name() string { return l.next.Name() }

func (l *loggingBackend) Generate(ctx context.Context, req Request) (string, error) {
	start := time.Now()
	out, err := l.next.Generate(ctx, req)
	entry := backendLog.WithFields(logrus.Fields{
		"backend":  l.next.Name(),
		"messages": len(req.Messages),
		"elapsed":  time.Since(start),
	})
	if err != nil {
		entry.WithError(err).Warn("generate failed")
		return "", err
	}
	entry.WithField("chars", len(out)).Debug("generate ok")
	return out, nil
}
