package convo

import (
	"context"
	"sync"

	"go-llmlab/internal/llm"
)

// stubBackend echoes "reply-from-<id>" and records every request.
type stubBackend struct {
	id   string
	err  error
	text string

	mu       sync.Mutex
	log      *[]string
	requests []llm.Request
}

func (s *stubBackend) Name() string { return "stub-" + s.id }

func (s *stubBackend) Generate(ctx context.Context, req llm.Request) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.log != nil {
		*s.log = append(*s.log, s.id)
	}
	s.requests = append(s.requests, req)
	if s.err != nil {
		return "", s.err
	}
	if s.text != "" {
		return s.text, nil
	}
	return "reply-from-" + s.id, nil
}

// abcSpeakers builds speakers A, B, C seeded with x, y, z.
func abcSpeakers(calls *[]string) ([]Speaker, map[string]*stubBackend) {
	backends := map[string]*stubBackend{}
	var speakers []Speaker
	for _, p := range []struct{ id, seed string }{{"A", "x"}, {"B", "y"}, {"C", "z"}} {
		b := &stubBackend{id: p.id, log: calls}
		backends[p.id] = b
		speakers = append(speakers, Speaker{
			ID:      p.id,
			Name:    "Speaker " + p.id,
			Persona: "You are " + p.id,
			Backend: b,
			History: []string{p.seed},
		})
	}
	return speakers, backends
}

func transcriptWith(histories map[string][]string, order ...string) *Transcript {
	var speakers []Speaker
	for _, id := range order {
		speakers = append(speakers, Speaker{ID: id, Persona: "persona " + id, History: histories[id]})
	}
	t, err := NewTranscript(speakers...)
	if err != nil {
		panic(err)
	}
	return t
}
