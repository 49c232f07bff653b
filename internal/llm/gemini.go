package llm

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"google.golang.org/genai"
)

// GeminiBackend calls the Gemini API. The SDK client is created on first
// use so a missing key only fails the speakers that need it.
type GeminiBackend struct {
	name      string
	model     string
	apiKey    string
	baseURL   string
	maxTokens int
	timeout   time.Duration

	once    sync.Once
	client  *genai.Client
	initErr error
}

func NewGeminiBackend(name, model, apiKey, baseURL string, maxTokens int, timeout time.Duration) *GeminiBackend {
	return &GeminiBackend{
		name:      name,
		model:     model,
		apiKey:    apiKey,
		baseURL:   baseURL,
		maxTokens: maxTokens,
		timeout:   timeout,
	}
}

func (b *GeminiBackend) Name() string { return b.name }

func (b *GeminiBackend) init(ctx context.Context) (*genai.Client, error) {
	b.once.Do(func() {
		cfg := &genai.ClientConfig{
			APIKey:  b.apiKey,
			Backend: genai.BackendGeminiAPI,
		}
		if b.baseURL != "" {
			cfg.HTTPOptions.BaseURL = b.baseURL
		}
		b.client, b.initErr = genai.NewClient(ctx, cfg)
	})
	return b.client, b.initErr
}

func (b *GeminiBackend) Generate(ctx context.Context, req Request) (string, error) {
	client, err := b.init(ctx)
	if err != nil {
		return "", rejected(b.name, err)
	}

	if b.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.timeout)
		defer cancel()
	}

	contents := make([]*genai.Content, 0, len(req.Messages))
	for _, m := range req.Messages {
		role := "user"
		if m.Role == RoleSelf {
			role = "model"
		}
		contents = append(contents, &genai.Content{Role: role, Parts: []*genai.Part{{Text: m.Text}}})
	}

	cfg := &genai.GenerateContentConfig{}
	if req.System != "" {
		cfg.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: req.System}}}
	}
	if n := maxTokens(req.MaxTokens, b.maxTokens); n > 0 {
		cfg.MaxOutputTokens = int32(n)
	}
	if req.JSON {
		cfg.ResponseMIMEType = "application/json"
	}

	resp, err := client.Models.GenerateContent(ctx, b.model, contents, cfg)
	if err != nil {
		var apiErr genai.APIError
		if errors.As(err, &apiErr) && apiErr.Code != 0 {
			return "", classifyStatus(b.name, apiErr.Code, err)
		}
		return "", classifyTransport(b.name, err)
	}

	var sb strings.Builder
	if resp != nil && len(resp.Candidates) > 0 && resp.Candidates[0].Content != nil {
		for _, p := range resp.Candidates[0].Content.Parts {
			if p != nil {
				sb.WriteString(p.Text)
			}
		}
	}
	if sb.Len() == 0 {
		return "", empty(b.name)
	}
	return sb.String(), nil
}
