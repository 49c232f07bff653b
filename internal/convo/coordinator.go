package convo

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"go-llmlab/internal/llm"
)

var log = logrus.WithField("component", "coordinator")

// Coordinator runs rounds over a transcript. It is not safe for concurrent
// use: one backend call is outstanding at a time.
type Coordinator struct {
	transcript *Transcript
	policy     FreshnessPolicy
	maxTokens  int
	round      int
	observers  []func(Turn)
}

type Option func(*Coordinator)

func WithFreshness(p FreshnessPolicy) Option {
	return func(c *Coordinator) { c.policy = p }
}

// WithMaxTokens caps every reply; 0 leaves it to the backend.
func WithMaxTokens(n int) Option {
	return func(c *Coordinator) { c.maxTokens = n }
}

// NewCoordinator seeds a conversation. Every speaker needs a backend and
// exactly one seed line.
func NewCoordinator(speakers []Speaker, opts ...Option) (*Coordinator, error) {
	for _, s := range speakers {
		if s.Backend == nil {
			return nil, fmt.Errorf("%w: %s", ErrMissingBackend, s.ID)
		}
		if len(s.History) != 1 || strings.TrimSpace(s.History[0]) == "" {
			return nil, fmt.Errorf("%w: %s", ErrMissingSeed, s.ID)
		}
	}
	t, err := NewTranscript(speakers...)
	if err != nil {
		return nil, err
	}
	c := &Coordinator{transcript: t, policy: FreshnessSequential}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// OnReply registers fn to be called after each appended reply.
func (c *Coordinator) OnReply(fn func(Turn)) {
	c.observers = append(c.observers, fn)
}

// Round is the number of completed rounds.
func (c *Coordinator) Round() int { return c.round }

func (c *Coordinator) Policy() FreshnessPolicy { return c.policy }

func (c *Coordinator) Transcript() *Transcript { return c.transcript }

func (c *Coordinator) Histories() map[string][]string { return c.transcript.Histories() }

func (c *Coordinator) Turns() []Turn { return c.transcript.Turns() }

// GenerateReply submits a turn request to the speaker's backend. The reply
// is trimmed; whitespace-only text counts as an empty response.
func (c *Coordinator) GenerateReply(ctx context.Context, s *Speaker, req TurnRequest) (string, error) {
	out, err := s.Backend.Generate(ctx, req.LLMRequest(c.maxTokens))
	if err != nil {
		return "", err
	}
	out = strings.TrimSpace(out)
	if out == "" {
		return "", &llm.BackendError{Backend: s.Backend.Name(), Kind: llm.ErrEmptyResponse}
	}
	return out, nil
}

// AdvanceRound lets every speaker reply once, in declaration order. The
// first failure aborts the round: replies already appended stay, later
// speakers are not called, and the error is returned as a *TurnError.
func (c *Coordinator) AdvanceRound(ctx context.Context) error {
	round := c.round
	for _, s := range c.transcript.Speakers() {
		req, err := BuildTurnRequest(c.transcript, s.ID, round, c.policy)
		if err != nil {
			return err
		}

		entry := log.WithFields(logrus.Fields{
			"round":    round + 1,
			"speaker":  s.ID,
			"backend":  s.Backend.Name(),
			"messages": len(req.Messages),
		})
		entry.Debug("requesting reply")

		reply, err := c.GenerateReply(ctx, s, req)
		if err != nil {
			entry.WithError(err).Error("round aborted")
			return &TurnError{SpeakerID: s.ID, Round: round + 1, Err: err}
		}

		turn, err := c.transcript.Append(s.ID, reply)
		if err != nil {
			return err
		}
		for _, fn := range c.observers {
			fn(turn)
		}
	}
	c.round++
	return nil
}

// Run advances the given number of rounds, stopping at the first error.
func (c *Coordinator) Run(ctx context.Context, rounds int) error {
	log.WithFields(logrus.Fields{
		"speakers":  len(c.transcript.Speakers()),
		"rounds":    rounds,
		"freshness": c.policy,
	}).Info("conversation started")

	for i := 0; i < rounds; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := c.AdvanceRound(ctx); err != nil {
			return err
		}
	}

	log.WithField("rounds", c.round).Info("conversation finished")
	return nil
}
