package convo

import (
	"errors"
	"fmt"

	"go-llmlab/internal/llm"
)

var (
	ErrUnknownSpeaker   = errors.New("unknown speaker")
	ErrNoSpeakers       = errors.New("conversation needs at least one speaker")
	ErrDuplicateSpeaker = errors.New("duplicate speaker id")
	ErrMissingSeed      = errors.New("speaker has no seed line")
	ErrMissingBackend   = errors.New("speaker has no backend")
	ErrInvalidCast      = errors.New("invalid cast")
)

// Role is shared with the backend capability so a turn request maps onto
// a backend request without translation.
type Role = llm.Role

const (
	RoleSelf  = llm.RoleSelf
	RoleOther = llm.RoleOther
)

// FreshnessPolicy decides whether a speaker sees replies produced earlier
// in the same round.
type FreshnessPolicy string

const (
	// FreshnessSequential appends same-round replies of speakers declared
	// earlier, so later speakers react to them. Earlier speakers never see
	// later ones for that round.
	FreshnessSequential FreshnessPolicy = "sequential"
	// FreshnessSymmetric shows every speaker only fully completed rounds.
	FreshnessSymmetric FreshnessPolicy = "symmetric"
)

// ParseFreshness maps a config string to a policy; empty means sequential.
func ParseFreshness(s string) (FreshnessPolicy, error) {
	switch FreshnessPolicy(s) {
	case "", FreshnessSequential:
		return FreshnessSequential, nil
	case FreshnessSymmetric:
		return FreshnessSymmetric, nil
	default:
		return "", fmt.Errorf("unknown freshness policy %q", s)
	}
}

// Message is one role-tagged entry of a turn request.
type Message struct {
	Role      Role
	SpeakerID string
	Text      string
}

// Speaker is one participant. History holds its own utterances only, in
// chronological order; index 0 is the seed line.
type Speaker struct {
	ID      string
	Name    string
	Persona string
	Backend llm.Backend
	History []string
}

// TurnRequest is the speaker-specific view submitted to a backend.
type TurnRequest struct {
	SpeakerID string
	Round     int
	Persona   string
	Messages  []Message
}

// LLMRequest converts the view into the backend request shape.
func (r TurnRequest) LLMRequest(maxTokens int) llm.Request {
	msgs := make([]llm.Message, len(r.Messages))
	for i, m := range r.Messages {
		msgs[i] = llm.Message{Role: m.Role, Text: m.Text}
	}
	return llm.Request{System: r.Persona, Messages: msgs, MaxTokens: maxTokens, Priority: llm.PriorityCritical}
}

// Turn is one appended history entry. Index is the position in the
// speaker's history: 0 for the seed, r for the reply of round r.
type Turn struct {
	Index       int    `json:"index"`
	SpeakerID   string `json:"speaker_id"`
	SpeakerName string `json:"speaker_name"`
	Text        string `json:"text"`
}

// TurnError wraps a backend failure with the speaker and round it aborted.
type TurnError struct {
	SpeakerID string
	Round     int
	Err       error
}

func (e *TurnError) Error() string {
	return fmt.Sprintf("round %d, speaker %s: %v", e.Round, e.SpeakerID, e.Err)
}

func (e *TurnError) Unwrap() error { return e.Err }
