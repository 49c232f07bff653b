package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// LocalBackend talks to a self-hosted OpenAI-compatible server (llama.cpp,
// vLLM, LM Studio) through the shared call queue.
type LocalBackend struct {
	name      string
	model     string
	url       string
	apiKey    string
	maxTokens int
	client    *Client
}

// NewLocalBackend builds a backend posting to baseURL + "/chat/completions".
func NewLocalBackend(name, model, baseURL, apiKey string, maxTokens int, manager *Manager, timeout time.Duration) *LocalBackend {
	return &LocalBackend{
		name:      name,
		model:     model,
		url:       strings.TrimRight(baseURL, "/") + "/chat/completions",
		apiKey:    apiKey,
		maxTokens: maxTokens,
		client:    NewClient(manager, PriorityCritical, timeout),
	}
}

func (b *LocalBackend) Name() string { return b.name }

func (b *LocalBackend) Generate(ctx context.Context, req Request) (string, error) {
	payload := map[string]interface{}{
		"model":    b.model,
		"messages": chatMessages(req),
		"stream":   false,
	}
	if n := maxTokens(req.MaxTokens, b.maxTokens); n > 0 {
		payload["max_tokens"] = n
	}
	if req.JSON {
		payload["response_format"] = map[string]string{"type": "json_object"}
	}

	var header map[string]string
	if b.apiKey != "" {
		header = map[string]string{"Authorization": "Bearer " + b.apiKey}
	}

	body, err := b.client.WithPriority(req.Priority).Call(ctx, b.url, header, payload)
	if err != nil {
		var statusErr *StatusError
		if errors.As(err, &statusErr) {
			return "", classifyStatus(b.name, statusErr.StatusCode, err)
		}
		// Queue full or circuit open: the server cannot take the call right now.
		return "", unavailable(b.name, err)
	}

	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", rejected(b.name, fmt.Errorf("malformed response: %w", err))
	}
	if len(parsed.Choices) == 0 || parsed.Choices[0].Message.Content == "" {
		return "", empty(b.name)
	}
	return parsed.Choices[0].Message.Content, nil
}

// chatMessages flattens a Request into OpenAI chat roles.
func chatMessages(req Request) []chatMessage {
	out := make([]chatMessage, 0, len(req.Messages)+1)
	if req.System != "" {
		out = append(out, chatMessage{Role: "system", Content: req.System})
	}
	for _, m := range req.Messages {
		out = append(out, chatMessage{Role: chatRole(m.Role), Content: m.Text})
	}
	return out
}

func chatRole(r Role) string {
	if r == RoleSelf {
		return "assistant"
	}
	return "user"
}

func maxTokens(requested, configured int) int {
	if requested > 0 {
		return requested
	}
	return configured
}
