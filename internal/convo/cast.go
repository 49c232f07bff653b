package convo

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"go-llmlab/internal/llm"
)

//go:embed casts/rugby.yaml
var rugbyCast []byte

// CastMember declares one speaker of a cast file.
type CastMember struct {
	ID      string `yaml:"id" json:"id"`
	Name    string `yaml:"name" json:"name"`
	Persona string `yaml:"persona" json:"persona"`
	Backend string `yaml:"backend" json:"backend"`
	Seed    string `yaml:"seed" json:"seed"`
}

// Cast is a reusable conversation setup.
type Cast struct {
	Name     string       `yaml:"name" json:"name"`
	Rounds   int          `yaml:"rounds" json:"rounds"`
	Speakers []CastMember `yaml:"speakers" json:"speakers"`
}

// DefaultCast returns the built-in rugby supporters' debate.
func DefaultCast() *Cast {
	c, err := ParseCast(rugbyCast)
	if err != nil {
		panic(fmt.Sprintf("built-in cast is invalid: %v", err))
	}
	return c
}

func LoadCast(path string) (*Cast, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read cast file: %w", err)
	}
	return ParseCast(raw)
}

func ParseCast(raw []byte) (*Cast, error) {
	var c Cast
	if err := yaml.Unmarshal(raw, &c); err != nil {
		return nil, fmt.Errorf("invalid cast format: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate checks that every member can take part in a conversation.
func (c *Cast) Validate() error {
	if len(c.Speakers) == 0 {
		return ErrNoSpeakers
	}
	if c.Rounds < 0 {
		return fmt.Errorf("%w: rounds must not be negative", ErrInvalidCast)
	}
	seen := make(map[string]struct{}, len(c.Speakers))
	for i, m := range c.Speakers {
		if m.ID == "" {
			return fmt.Errorf("%w: speaker %d has no id", ErrInvalidCast, i)
		}
		if _, dup := seen[m.ID]; dup {
			return fmt.Errorf("%w: %s", ErrDuplicateSpeaker, m.ID)
		}
		seen[m.ID] = struct{}{}
		if strings.TrimSpace(m.Seed) == "" {
			return fmt.Errorf("%w: %s", ErrMissingSeed, m.ID)
		}
		if strings.TrimSpace(m.Persona) == "" {
			return fmt.Errorf("%w: speaker %s has no persona", ErrInvalidCast, m.ID)
		}
		if m.Backend == "" {
			return fmt.Errorf("%w: %s", ErrMissingBackend, m.ID)
		}
	}
	return nil
}

// Resolve looks up each member's backend by name and seeds its history.
func (c *Cast) Resolve(resolve func(name string) (llm.Backend, error)) ([]Speaker, error) {
	out := make([]Speaker, 0, len(c.Speakers))
	for _, m := range c.Speakers {
		b, err := resolve(m.Backend)
		if err != nil {
			return nil, fmt.Errorf("speaker %s: %w", m.ID, err)
		}
		name := m.Name
		if name == "" {
			name = m.ID
		}
		out = append(out, Speaker{
			ID:      m.ID,
			Name:    name,
			Persona: m.Persona,
			Backend: b,
			History: []string{m.Seed},
		})
	}
	return out, nil
}
