package summary

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"go-llmlab/internal/llm"
)

var log = logrus.WithField("component", "summary")

const SystemPrompt = `You are a snarky assistant that analyzes the contents of a website,
and provides a short, snarky, humorous summary, ignoring text that might be navigation related.
Respond in markdown. Do not wrap the markdown in a code block - respond just with the markdown.`

const UserPromptPrefix = `Here are the contents of a website.
Provide a short summary of this website.
If it includes news or announcements, then summarize these too.

`

// Fetcher returns the readable text of a page.
type Fetcher interface {
	FetchWebsiteContents(ctx context.Context, url string) (string, error)
}

type Summarizer struct {
	pages   Fetcher
	backend llm.Backend
}

func New(pages Fetcher, backend llm.Backend) *Summarizer {
	return &Summarizer{pages: pages, backend: backend}
}

// Request builds the backend request for already fetched website text.
func Request(website string) llm.Request {
	return llm.Request{
		System:   SystemPrompt,
		Messages: []llm.Message{{Role: llm.RoleOther, Text: UserPromptPrefix + website}},
		Priority: llm.PriorityBackground,
	}
}

// Summarize fetches url and asks the backend for a markdown summary.
func (s *Summarizer) Summarize(ctx context.Context, url string) (string, error) {
	website, err := s.pages.FetchWebsiteContents(ctx, url)
	if err != nil {
		return "", fmt.Errorf("fetch %s: %w", url, err)
	}

	out, err := s.backend.Generate(ctx, Request(website))
	if err != nil {
		return "", err
	}
	out = strings.TrimSpace(out)
	if out == "" {
		return "", &llm.BackendError{Backend: s.backend.Name(), Kind: llm.ErrEmptyResponse}
	}

	log.WithFields(logrus.Fields{"url": url, "chars": len(out)}).Info("website summarized")
	return out, nil
}
