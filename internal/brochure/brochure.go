package brochure

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/sirupsen/logrus"

	"go-llmlab/internal/llm"
)

var log = logrus.WithField("component", "brochure")

const LinkSystemPrompt = `You are provided with a list of links found on a webpage.
You are able to decide which of the links would be most relevant to include in a brochure about the company,
such as links to an About page, or a Company page, or Careers/Jobs pages.
You should respond in JSON as in this example:

{
    "links": [
        {"type": "about page", "url": "https://full.url/goes/here/about"},
        {"type": "careers page", "url": "https://another.full.url/careers"}
    ]
}`

const SystemPrompt = `You are an assistant that analyzes the contents of several relevant pages from a company website
and creates a short, humorous, entertaining, witty brochure about the company for prospective customers, investors and recruits.
Respond in markdown without code blocks.
Include details of company culture, customers and careers/jobs if you have the information.`

// Pages is the scraper surface the generator uses.
type Pages interface {
	FetchWebsiteContents(ctx context.Context, url string) (string, error)
	FetchWebsiteLinks(ctx context.Context, url string) ([]string, error)
}

type Link struct {
	Type string `json:"type"`
	URL  string `json:"url"`
}

type LinkSelection struct {
	Links []Link `json:"links"`
}

type Brochure struct {
	Company   string    `json:"company"`
	URL       string    `json:"url"`
	Markdown  string    `json:"markdown"`
	Links     []Link    `json:"links"`
	CreatedAt time.Time `json:"created_at"`
}

type Generator struct {
	pages          Pages
	linkBackend    llm.Backend
	backend        llm.Backend
	maxPromptChars int
}

// NewGenerator uses linkBackend to pick pages and backend to write the
// brochure. maxPromptChars caps the brochure prompt.
func NewGenerator(pages Pages, linkBackend, backend llm.Backend, maxPromptChars int) *Generator {
	if maxPromptChars <= 0 {
		maxPromptChars = 5000
	}
	return &Generator{pages: pages, linkBackend: linkBackend, backend: backend, maxPromptChars: maxPromptChars}
}

// LinksUserPrompt lists every link found on the page for the selector.
func (g *Generator) LinksUserPrompt(ctx context.Context, pageURL string) (string, error) {
	links, err := g.pages.FetchWebsiteLinks(ctx, pageURL)
	if err != nil {
		return "", fmt.Errorf("fetch links of %s: %w", pageURL, err)
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "Here is the list of links on the website %s -\n", pageURL)
	sb.WriteString("Please decide which of these are relevant web links for a brochure about the company,\n")
	sb.WriteString("respond with the full https URL in JSON format.\n")
	sb.WriteString("Do not include Terms of Service, Privacy, email links.\n\n")
	sb.WriteString("Links (some might be relative links):\n\n")
	sb.WriteString(strings.Join(links, "\n"))
	return sb.String(), nil
}

// SelectRelevantLinks asks the link backend, in JSON mode, which pages
// belong in a brochure. Relative URLs are resolved against pageURL.
func (g *Generator) SelectRelevantLinks(ctx context.Context, pageURL string) (*LinkSelection, error) {
	prompt, err := g.LinksUserPrompt(ctx, pageURL)
	if err != nil {
		return nil, err
	}
	out, err := g.linkBackend.Generate(ctx, llm.Request{
		System:   LinkSystemPrompt,
		Messages: []llm.Message{{Role: llm.RoleOther, Text: prompt}},
		JSON:     true,
		Priority: llm.PriorityBackground,
	})
	if err != nil {
		return nil, err
	}

	sel, err := ParseLinkSelection(out)
	if err != nil {
		return nil, &llm.BackendError{Backend: g.linkBackend.Name(), Kind: llm.ErrBackendRejected, Err: err}
	}
	base, _ := url.Parse(pageURL)
	for i, l := range sel.Links {
		sel.Links[i].URL = resolve(base, l.URL)
	}
	log.WithFields(logrus.Fields{"url": pageURL, "links": len(sel.Links)}).Info("relevant links selected")
	return sel, nil
}

// ParseLinkSelection decodes the selector's JSON, tolerating a markdown
// code fence around it.
func ParseLinkSelection(raw string) (*LinkSelection, error) {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(raw, "```")

	var sel LinkSelection
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &sel); err != nil {
		return nil, fmt.Errorf("invalid link selection: %w", err)
	}
	kept := sel.Links[:0]
	for _, l := range sel.Links {
		if strings.TrimSpace(l.URL) != "" {
			kept = append(kept, l)
		}
	}
	sel.Links = kept
	return &sel, nil
}

func resolve(base *url.URL, ref string) string {
	if base == nil {
		return ref
	}
	u, err := url.Parse(strings.TrimSpace(ref))
	if err != nil {
		return ref
	}
	return base.ResolveReference(u).String()
}

// FetchPageAndRelevantLinks assembles the landing page and every selected
// page into one markdown document. Pages that fail to load are skipped.
func (g *Generator) FetchPageAndRelevantLinks(ctx context.Context, pageURL string) (string, []Link, error) {
	contents, err := g.pages.FetchWebsiteContents(ctx, pageURL)
	if err != nil {
		return "", nil, fmt.Errorf("fetch %s: %w", pageURL, err)
	}
	sel, err := g.SelectRelevantLinks(ctx, pageURL)
	if err != nil {
		return "", nil, err
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "## Landing Page:\n\n%s\n## Relevant Links:\n", contents)
	for _, l := range sel.Links {
		page, err := g.pages.FetchWebsiteContents(ctx, l.URL)
		if err != nil {
			log.WithError(err).WithField("url", l.URL).Warn("skipping relevant link")
			continue
		}
		fmt.Fprintf(&sb, "\n\n### Link: %s\n%s", l.Type, page)
	}
	return sb.String(), sel.Links, nil
}

// UserPrompt builds the brochure prompt, truncated to the configured
// number of characters.
func (g *Generator) UserPrompt(ctx context.Context, company, pageURL string) (string, []Link, error) {
	pages, links, err := g.FetchPageAndRelevantLinks(ctx, pageURL)
	if err != nil {
		return "", nil, err
	}
	prompt := fmt.Sprintf("You are looking at a company called: %s\n"+
		"Here are the contents of its landing page and other relevant pages;\n"+
		"use this information to build a short brochure of the company in markdown without code blocks.\n\n", company)
	return truncate(prompt+pages, g.maxPromptChars), links, nil
}

// CreateBrochure writes a markdown brochure for the company at pageURL.
func (g *Generator) CreateBrochure(ctx context.Context, company, pageURL string) (*Brochure, error) {
	prompt, links, err := g.UserPrompt(ctx, company, pageURL)
	if err != nil {
		return nil, err
	}
	out, err := g.backend.Generate(ctx, llm.Request{
		System:   SystemPrompt,
		Messages: []llm.Message{{Role: llm.RoleOther, Text: prompt}},
		Priority: llm.PriorityBackground,
	})
	if err != nil {
		return nil, err
	}
	out = strings.TrimSpace(out)
	if out == "" {
		return nil, &llm.BackendError{Backend: g.backend.Name(), Kind: llm.ErrEmptyResponse}
	}
	return &Brochure{
		Company:   company,
		URL:       pageURL,
		Markdown:  out,
		Links:     links,
		CreatedAt: time.Now().UTC(),
	}, nil
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
