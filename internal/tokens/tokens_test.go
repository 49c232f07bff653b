package tokens

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// wordEncoder gives every whitespace separated word an id by position in a vocabulary.
type wordEncoder struct {
	vocab []string
}

func (w *wordEncoder) Encode(text string, _, _ []string) []int {
	var ids []int
	for _, word := range strings.Fields(text) {
		id := -1
		for i, v := range w.vocab {
			if v == word {
				id = i
			}
		}
		if id < 0 {
			w.vocab = append(w.vocab, word)
			id = len(w.vocab) - 1
		}
		ids = append(ids, id)
	}
	return ids
}

func (w *wordEncoder) Decode(ids []int) string {
	words := make([]string, 0, len(ids))
	for _, id := range ids {
		words = append(words, w.vocab[id])
	}
	return strings.Join(words, " ")
}

func fakeInspector(enc Encoder, err error) *Inspector {
	return &Inspector{load: func(string) (Encoder, error) { return enc, err }}
}

func TestInspect(t *testing.T) {
	in := fakeInspector(&wordEncoder{}, nil)

	toks, err := in.Inspect("gpt-4.1-mini", "Hi my name is Andrew and I am a Hippopotamus")
	require.NoError(t, err)
	require.Len(t, toks, 10)
	assert.Equal(t, Token{ID: 0, Text: "Hi"}, toks[0])
	assert.Equal(t, Token{ID: 9, Text: "Hippopotamus"}, toks[9])

	text, err := in.Decode("gpt-4.1-mini", []int{4, 9})
	require.NoError(t, err)
	assert.Equal(t, "Andrew Hippopotamus", text)

	n, err := in.Count("gpt-4.1-mini", "Hi Hi Hi")
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestInspect_LoadError(t *testing.T) {
	boom := errors.New("offline")
	in := fakeInspector(nil, boom)

	_, err := in.Inspect("m", "x")
	assert.ErrorIs(t, err, boom)
	_, err = in.Decode("m", []int{1})
	assert.ErrorIs(t, err, boom)
	_, err = in.Count("m", "x")
	assert.ErrorIs(t, err, boom)
}
