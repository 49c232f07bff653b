package tokens

import (
	"fmt"

	"github.com/pkoukk/tiktoken-go"
)

// FallbackEncoding is used for models tiktoken does not know by name.
const FallbackEncoding = "o200k_base"

// Token is one token id and the text it decodes to on its own.
type Token struct {
	ID   int    `json:"id"`
	Text string `json:"text"`
}

// Encoder is the part of a BPE encoding the inspector needs.
type Encoder interface {
	Encode(text string, allowedSpecial, disallowedSpecial []string) []int
	Decode(tokens []int) string
}

// Inspector tokenizes text the way a given model would.
type Inspector struct {
	load func(model string) (Encoder, error)
}

func NewInspector() *Inspector {
	return &Inspector{load: loadEncoding}
}

func loadEncoding(model string) (Encoder, error) {
	enc, err := tiktoken.EncodingForModel(model)
	if err == nil {
		return enc, nil
	}
	enc, err = tiktoken.GetEncoding(FallbackEncoding)
	if err != nil {
		return nil, fmt.Errorf("load encoding for %s: %w", model, err)
	}
	return enc, nil
}

// Inspect returns the token ids of text and each token's own text.
func (i *Inspector) Inspect(model, text string) ([]Token, error) {
	enc, err := i.load(model)
	if err != nil {
		return nil, err
	}
	ids := enc.Encode(text, nil, nil)
	out := make([]Token, len(ids))
	for n, id := range ids {
		out[n] = Token{ID: id, Text: enc.Decode([]int{id})}
	}
	return out, nil
}

// Decode turns token ids back into text.
func (i *Inspector) Decode(model string, ids []int) (string, error) {
	enc, err := i.load(model)
	if err != nil {
		return "", err
	}
	return enc.Decode(ids), nil
}

// Count is the number of tokens text encodes to.
func (i *Inspector) Count(model, text string) (int, error) {
	enc, err := i.load(model)
	if err != nil {
		return 0, err
	}
	return len(enc.Encode(text, nil, nil)), nil
}
