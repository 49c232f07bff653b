package llm

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// The messages API requires an explicit ceiling.
const anthropicDefaultMaxTokens = 500

type AnthropicBackend struct {
	name      string
	model     string
	maxTokens int
	client    anthropic.Client
}

func NewAnthropicBackend(name, model, apiKey, baseURL string, maxTokens int, timeout time.Duration) *AnthropicBackend {
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
	return &AnthropicBackend{
		name:      name,
		model:     model,
		maxTokens: maxTokens,
		client:    anthropic.NewClient(opts...),
	}
}

func (b *AnthropicBackend) Name() string { return b.name }

func (b *AnthropicBackend) Generate(ctx context.Context, req Request) (string, error) {
	n := maxTokens(req.MaxTokens, b.maxTokens)
	if n <= 0 {
		n = anthropicDefaultMaxTokens
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(b.model),
		MaxTokens: int64(n),
		Messages:  anthropicMessages(req.Messages),
	}
	system := req.System
	if req.JSON {
		system += "\nRespond with a single JSON object and nothing else."
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}

	msg, err := b.client.Messages.New(ctx, params)
	if err != nil {
		var apiErr *anthropic.Error
		if errors.As(err, &apiErr) {
			return "", classifyStatus(b.name, apiErr.StatusCode, err)
		}
		return "", classifyTransport(b.name, err)
	}

	var sb strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	if sb.Len() == 0 {
		return "", empty(b.name)
	}
	return sb.String(), nil
}

// replyPrompt closes a view that ends on the speaker's own line.
const replyPrompt = "Your turn."

// anthropicMessages maps roles and merges consecutive same-role entries,
// since the messages API expects user and assistant turns to alternate.
func anthropicMessages(in []Message) []anthropic.MessageParam {
	type run struct {
		role  Role
		texts []string
	}
	var runs []run
	for _, m := range in {
		role := RoleOther
		if m.Role == RoleSelf {
			role = RoleSelf
		}
		if len(runs) > 0 && runs[len(runs)-1].role == role {
			runs[len(runs)-1].texts = append(runs[len(runs)-1].texts, m.Text)
			continue
		}
		runs = append(runs, run{role: role, texts: []string{m.Text}})
	}

	out := make([]anthropic.MessageParam, 0, len(runs)+1)
	for _, r := range runs {
		block := anthropic.NewTextBlock(strings.Join(r.texts, "\n\n"))
		if r.role == RoleSelf {
			out = append(out, anthropic.NewAssistantMessage(block))
		} else {
			out = append(out, anthropic.NewUserMessage(block))
		}
	}
	// A trailing assistant turn would be continued rather than answered.
	if len(runs) > 0 && runs[len(runs)-1].role == RoleSelf {
		out = append(out, anthropic.NewUserMessage(anthropic.NewTextBlock(replyPrompt)))
	}
	return out
}
