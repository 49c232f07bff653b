package llm

import (
	"context"
	"errors"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
)

const OllamaBaseURL = "http://localhost:11434/v1"

// OpenAIBackend serves both the OpenAI API and anything speaking its chat
// completions dialect at another base URL (Ollama).
type OpenAIBackend struct {
	name      string
	model     string
	maxTokens int
	client    openai.Client

	// Ollama only understands max_tokens; reasoning models only max_completion_tokens.
	legacyMaxTokens bool
}

// NewOpenAIBackend builds a backend. An empty baseURL means api.openai.com.
// SDK retries are disabled so a failed turn surfaces immediately.
func NewOpenAIBackend(name, model, apiKey, baseURL string, maxTokens int, timeout time.Duration) *OpenAIBackend {
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	if timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(timeout))
	}
	return &OpenAIBackend{
		name:      name,
		model:     model,
		maxTokens: maxTokens,
		client:    openai.NewClient(opts...),
	}
}

// NewOllamaBackend points the OpenAI client at a local Ollama server.
func NewOllamaBackend(name, model, baseURL string, maxTokens int, timeout time.Duration) *OpenAIBackend {
	if baseURL == "" {
		baseURL = OllamaBaseURL
	}
	b := NewOpenAIBackend(name, model, "ollama", baseURL, maxTokens, timeout)
	b.legacyMaxTokens = true
	return b
}

func (b *OpenAIBackend) Name() string { return b.name }

func (b *OpenAIBackend) Generate(ctx context.Context, req Request) (string, error) {
	msgs := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.Messages)+1)
	if req.System != "" {
		msgs = append(msgs, openai.SystemMessage(req.System))
	}
	for _, m := range req.Messages {
		if m.Role == RoleSelf {
			msgs = append(msgs, openai.AssistantMessage(m.Text))
		} else {
			msgs = append(msgs, openai.UserMessage(m.Text))
		}
	}

	params := openai.ChatCompletionNewParams{
		Model:    shared.ChatModel(b.model),
		Messages: msgs,
	}
	if n := maxTokens(req.MaxTokens, b.maxTokens); n > 0 {
		if b.legacyMaxTokens {
			params.MaxTokens = openai.Int(int64(n))
		} else {
			params.MaxCompletionTokens = openai.Int(int64(n))
		}
	}
	if req.JSON {
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		}
	}

	completion, err := b.client.Chat.Completions.New(ctx, params)
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			return "", classifyStatus(b.name, apiErr.StatusCode, err)
		}
		return "", classifyTransport(b.name, err)
	}
	if len(completion.Choices) == 0 || completion.Choices[0].Message.Content == "" {
		return "", empty(b.name)
	}
	return completion.Choices[0].Message.Content, nil
}
