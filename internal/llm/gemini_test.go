package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGeminiBackend_Generate(t *testing.T) {
	var got map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/models/gemini-2.0-flash:generateContent"), r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"candidates":[{"content":{"role":"model","parts":[{"text":"Howzit"},{"text":", bru."}]}}]}`))
	}))
	defer srv.Close()

	b := NewGeminiBackend("gemini", "gemini-2.0-flash", "test-key", srv.URL+"/", 64, 5*time.Second)
	out, err := b.Generate(context.Background(), sampleRequest())
	require.NoError(t, err)
	assert.Equal(t, "Howzit, bru.", out)

	contents := got["contents"].([]interface{})
	require.Len(t, contents, 2)
	assert.Equal(t, "user", contents[0].(map[string]interface{})["role"])
	assert.Equal(t, "model", contents[1].(map[string]interface{})["role"])
	assert.Contains(t, got, "systemInstruction")
}

func TestGeminiBackend_NoCandidates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"candidates":[]}`))
	}))
	defer srv.Close()

	b := NewGeminiBackend("gemini", "gemini-2.0-flash", "test-key", srv.URL+"/", 0, 5*time.Second)
	_, err := b.Generate(context.Background(), sampleRequest())
	assert.ErrorIs(t, err, ErrEmptyResponse)
}

func TestGeminiBackend_StatusKinds(t *testing.T) {
	cases := []struct {
		status int
		body   string
		want   error
	}{
		{http.StatusServiceUnavailable, `{"error":{"code":503,"message":"The model is overloaded.","status":"UNAVAILABLE"}}`, ErrBackendUnavailable},
		{http.StatusInternalServerError, `{"error":{"code":500,"message":"internal","status":"INTERNAL"}}`, ErrBackendUnavailable},
		{http.StatusTooManyRequests, `{"error":{"code":429,"message":"quota","status":"RESOURCE_EXHAUSTED"}}`, ErrBackendRejected},
	}
	for _, tc := range cases {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(tc.status)
			w.Write([]byte(tc.body))
		}))

		b := NewGeminiBackend("gemini", "gemini-2.0-flash", "test-key", srv.URL+"/", 0, 5*time.Second)
		_, err := b.Generate(context.Background(), sampleRequest())
		srv.Close()
		assert.ErrorIs(t, err, tc.want, "status %d", tc.status)
	}
}
