package convo

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-llmlab/internal/llm"
)

func TestDefaultCast_Rugby(t *testing.T) {
	c := DefaultCast()
	assert.Equal(t, "rugby", c.Name)
	assert.Equal(t, 5, c.Rounds)
	require.Len(t, c.Speakers, 3)

	assert.Equal(t, "bok", c.Speakers[0].ID)
	assert.Equal(t, "gpt", c.Speakers[0].Backend)
	assert.Equal(t, "Here we go again.", c.Speakers[1].Seed)
	assert.Equal(t, "claude", c.Speakers[2].Backend)
	assert.Contains(t, c.Speakers[2].Persona, "New Zealand accent")
	assert.NotContains(t, c.Speakers[0].Persona, "\n")
}

func TestParseCast_Invalid(t *testing.T) {
	cases := map[string]string{
		"not yaml":   "speakers: [",
		"no speaker": "name: empty\n",
		"no seed":    "speakers:\n  - {id: a, persona: p, backend: gpt}\n",
		"no backend": "speakers:\n  - {id: a, persona: p, seed: hi}\n",
		"dup": "speakers:\n" +
			"  - {id: a, persona: p, backend: gpt, seed: hi}\n" +
			"  - {id: a, persona: p, backend: gpt, seed: hi}\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseCast([]byte(body))
			assert.Error(t, err)
		})
	}
}

func TestValidate_InvalidCastKind(t *testing.T) {
	noID := DefaultCast()
	noID.Speakers[0].ID = ""
	noPersona := DefaultCast()
	noPersona.Speakers[2].Persona = " "
	negative := DefaultCast()
	negative.Rounds = -1

	for _, c := range []*Cast{noID, noPersona, negative} {
		assert.ErrorIs(t, c.Validate(), ErrInvalidCast)
	}
}

func TestLoadCast_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cast.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
name: duo
rounds: 2
speakers:
  - id: a
    persona: You are A
    backend: gpt
    seed: hello
  - id: b
    name: Bee
    persona: You are B
    backend: llama
    seed: hi
`), 0644))

	c, err := LoadCast(path)
	require.NoError(t, err)
	assert.Equal(t, "duo", c.Name)

	speakers, err := c.Resolve(func(name string) (llm.Backend, error) {
		return &stubBackend{id: name}, nil
	})
	require.NoError(t, err)
	require.Len(t, speakers, 2)
	assert.Equal(t, "a", speakers[0].Name)
	assert.Equal(t, "Bee", speakers[1].Name)
	assert.Equal(t, []string{"hi"}, speakers[1].History)
	assert.Equal(t, "stub-llama", speakers[1].Backend.Name())

	_, err = LoadCast(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestCast_ResolveError(t *testing.T) {
	boom := errors.New("no such backend")
	_, err := DefaultCast().Resolve(func(string) (llm.Backend, error) { return nil, boom })
	assert.ErrorIs(t, err, boom)
}
