package brochure

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-llmlab/internal/llm"
)

type fakePages struct {
	contents map[string]string
	links    []string
}

func (f *fakePages) FetchWebsiteContents(_ context.Context, url string) (string, error) {
	text, ok := f.contents[url]
	if !ok {
		return "", errors.New("HTTP 404")
	}
	return text, nil
}

func (f *fakePages) FetchWebsiteLinks(context.Context, string) ([]string, error) {
	return f.links, nil
}

type scriptedBackend struct {
	name  string
	reply string
	err   error
	reqs  []llm.Request
}

func (s *scriptedBackend) Name() string { return s.name }

func (s *scriptedBackend) Generate(_ context.Context, req llm.Request) (string, error) {
	s.reqs = append(s.reqs, req)
	return s.reply, s.err
}

func acmePages() *fakePages {
	return &fakePages{
		contents: map[string]string{
			"https://acme.test":         "Acme Rockets\n\nWe build rockets",
			"https://acme.test/about":   "About Acme\n\nFounded 1949",
			"https://acme.test/careers": "Careers\n\nHiring coyotes",
		},
		links: []string{"/about", "https://acme.test/careers", "/privacy", "mailto:x@acme.test"},
	}
}

const selectionJSON = `{"links":[{"type":"about page","url":"/about"},{"type":"careers page","url":"https://acme.test/careers"},{"type":"blog","url":"https://acme.test/blog"}]}`

func TestSelectRelevantLinks(t *testing.T) {
	linker := &scriptedBackend{name: "links", reply: selectionJSON}
	g := NewGenerator(acmePages(), linker, &scriptedBackend{name: "writer"}, 0)

	sel, err := g.SelectRelevantLinks(context.Background(), "https://acme.test")
	require.NoError(t, err)
	require.Len(t, sel.Links, 3)
	assert.Equal(t, Link{Type: "about page", URL: "https://acme.test/about"}, sel.Links[0])

	require.Len(t, linker.reqs, 1)
	req := linker.reqs[0]
	assert.True(t, req.JSON)
	assert.Equal(t, llm.PriorityBackground, req.Priority)
	assert.Equal(t, LinkSystemPrompt, req.System)
	assert.Contains(t, req.Messages[0].Text, "Here is the list of links on the website https://acme.test -")
	assert.Contains(t, req.Messages[0].Text, "/about\nhttps://acme.test/careers\n/privacy")
}

func TestSelectRelevantLinks_BadJSONIsRejected(t *testing.T) {
	g := NewGenerator(acmePages(), &scriptedBackend{name: "links", reply: "sure! here are some links"}, nil, 0)
	_, err := g.SelectRelevantLinks(context.Background(), "https://acme.test")
	assert.ErrorIs(t, err, llm.ErrBackendRejected)
}

func TestParseLinkSelection(t *testing.T) {
	sel, err := ParseLinkSelection("```json\n" + `{"links":[{"type":"about","url":"https://a.test/about"},{"type":"none","url":" "}]}` + "\n```")
	require.NoError(t, err)
	assert.Equal(t, []Link{{Type: "about", URL: "https://a.test/about"}}, sel.Links)

	sel, err = ParseLinkSelection(`{"links":[]}`)
	require.NoError(t, err)
	assert.Empty(t, sel.Links)
}

func TestFetchPageAndRelevantLinks(t *testing.T) {
	g := NewGenerator(acmePages(), &scriptedBackend{name: "links", reply: selectionJSON}, nil, 0)

	doc, links, err := g.FetchPageAndRelevantLinks(context.Background(), "https://acme.test")
	require.NoError(t, err)
	assert.Len(t, links, 3)
	assert.True(t, strings.HasPrefix(doc, "## Landing Page:\n\nAcme Rockets\n\nWe build rockets\n## Relevant Links:\n"), doc)
	assert.Contains(t, doc, "\n\n### Link: about page\nAbout Acme\n\nFounded 1949")
	assert.Contains(t, doc, "\n\n### Link: careers page\nCareers\n\nHiring coyotes")
	// The blog link 404s and is skipped.
	assert.NotContains(t, doc, "### Link: blog")
}

func TestCreateBrochure(t *testing.T) {
	writer := &scriptedBackend{name: "writer", reply: "\n# Acme Rockets\nBeep beep.\n"}
	g := NewGenerator(acmePages(), &scriptedBackend{name: "links", reply: selectionJSON}, writer, 0)

	b, err := g.CreateBrochure(context.Background(), "Acme", "https://acme.test")
	require.NoError(t, err)
	assert.Equal(t, "# Acme Rockets\nBeep beep.", b.Markdown)
	assert.Equal(t, "Acme", b.Company)
	assert.Len(t, b.Links, 3)
	assert.False(t, b.CreatedAt.IsZero())

	require.Len(t, writer.reqs, 1)
	assert.Equal(t, SystemPrompt, writer.reqs[0].System)
	assert.Equal(t, llm.PriorityBackground, writer.reqs[0].Priority)
	assert.True(t, strings.HasPrefix(writer.reqs[0].Messages[0].Text, "You are looking at a company called: Acme\n"))
}

func TestCreateBrochure_PromptTruncated(t *testing.T) {
	pages := acmePages()
	pages.contents["https://acme.test"] = strings.Repeat("ü", 10000)
	writer := &scriptedBackend{name: "writer", reply: "ok"}
	g := NewGenerator(pages, &scriptedBackend{name: "links", reply: `{"links":[]}`}, writer, 5000)

	_, err := g.CreateBrochure(context.Background(), "Acme", "https://acme.test")
	require.NoError(t, err)
	assert.Equal(t, 5000, len([]rune(writer.reqs[0].Messages[0].Text)))
}

func TestCreateBrochure_EmptyReply(t *testing.T) {
	g := NewGenerator(acmePages(), &scriptedBackend{name: "links", reply: `{"links":[]}`}, &scriptedBackend{name: "writer", reply: "  "}, 0)
	_, err := g.CreateBrochure(context.Background(), "Acme", "https://acme.test")
	assert.ErrorIs(t, err, llm.ErrEmptyResponse)
}

func TestCreateBrochure_LandingPageFails(t *testing.T) {
	linker := &scriptedBackend{name: "links", reply: selectionJSON}
	g := NewGenerator(acmePages(), linker, nil, 0)
	_, err := g.CreateBrochure(context.Background(), "Nope", "https://nope.test")
	assert.ErrorContains(t, err, "HTTP 404")
	assert.Empty(t, linker.reqs)
}
