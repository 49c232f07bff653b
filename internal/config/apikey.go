package config

import (
	"errors"
	"strings"
)

var (
	ErrKeyMissing    = errors.New("no API key was found")
	ErrKeyPrefix     = errors.New("API key was found, but it doesn't start with sk-proj-")
	ErrKeyWhitespace = errors.New("API key was found, but it has space or tab characters at the start or end")
)

// CheckAPIKey performs the sanity checks an OpenAI project key should pass
// before any request is made with it.
func CheckAPIKey(key string) error {
	if key == "" {
		return ErrKeyMissing
	}
	if !strings.HasPrefix(key, "sk-proj-") {
		return ErrKeyPrefix
	}
	if strings.TrimSpace(key) != key {
		return ErrKeyWhitespace
	}
	return nil
}
