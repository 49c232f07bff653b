package tools

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-shiori/go-readability"
	"github.com/ledongthuc/pdf"
	"github.com/sirupsen/logrus"
)

var (
	ErrUnsupportedContent = errors.New("unsupported content type")
	ErrInvalidURL         = errors.New("invalid URL")
	ErrFetchFailed        = errors.New("failed to fetch URL")
)

var scraperLog = logrus.WithField("component", "scraper")

// WebParserClient fetches pages and turns them into plain text and links.
type WebParserClient struct {
	httpClient *http.Client
	userAgent  string
	maxSizeMB  int
	maxChars   int
	cache      Cache
}

// ParsedContent represents cleaned web page content
type ParsedContent struct {
	URL             string   `json:"url"`
	Title           string   `json:"title"`
	CleanText       string   `json:"clean_text"`
	Links           []string `json:"links"`
	Headings        []string `json:"headings"`
	WordCount       int      `json:"word_count"`
	EstimatedTokens int      `json:"estimated_tokens"`
}

type ParserOption func(*WebParserClient)

// WithCache serves repeated fetches of the same URL from c.
func WithCache(c Cache) ParserOption {
	return func(w *WebParserClient) { w.cache = c }
}

// WithMaxChars sets the FetchWebsiteContents truncation length.
func WithMaxChars(n int) ParserOption {
	return func(w *WebParserClient) { w.maxChars = n }
}

const defaultMaxSizeMB = 10

// NewWebParserClient creates a new web parser client. A non-positive
// maxSizeMB falls back to 10MB.
func NewWebParserClient(timeout time.Duration, userAgent string, maxSizeMB int, opts ...ParserOption) *WebParserClient {
	if maxSizeMB <= 0 {
		maxSizeMB = defaultMaxSizeMB
	}
	c := &WebParserClient{
		httpClient: &http.Client{
			Timeout: timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return fmt.Errorf("stopped after 10 redirects")
				}
				return nil
			},
		},
		userAgent: userAgent,
		maxSizeMB: maxSizeMB,
		maxChars:  2000,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FetchWebsiteContents returns the page title and text, truncated to the
// configured number of characters.
func (c *WebParserClient) FetchWebsiteContents(ctx context.Context, pageURL string) (string, error) {
	content, err := c.FetchAndParse(ctx, pageURL)
	if err != nil {
		return "", err
	}
	return truncateRunes(content.Title+"\n\n"+content.CleanText, c.maxChars), nil
}

// FetchWebsiteLinks returns every non-empty href on the page, in document
// order. Relative links are returned as found.
func (c *WebParserClient) FetchWebsiteLinks(ctx context.Context, pageURL string) ([]string, error) {
	content, err := c.FetchAndParse(ctx, pageURL)
	if err != nil {
		return nil, err
	}
	return content.Links, nil
}

// FetchAndParse fetches a URL and parses it into clean content
func (c *WebParserClient) FetchAndParse(ctx context.Context, pageURL string) (*ParsedContent, error) {
	parsedURL, err := url.Parse(pageURL)
	if err != nil || (parsedURL.Scheme != "http" && parsedURL.Scheme != "https") {
		return nil, fmt.Errorf("%w %q", ErrInvalidURL, pageURL)
	}

	if c.cache != nil {
		if cached, ok := c.cache.Get(ctx, pageURL); ok {
			scraperLog.WithField("url", pageURL).Debug("cache hit")
			return cached, nil
		}
	}

	data, contentType, err := c.fetch(ctx, pageURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFetchFailed, err)
	}

	var content *ParsedContent
	switch {
	case strings.Contains(contentType, "application/pdf"):
		content, err = parsePDF(parsedURL, data)
	case contentType == "" || strings.Contains(contentType, "text/html") || strings.Contains(contentType, "application/xhtml"):
		content, err = parseHTML(parsedURL, data)
	default:
		err = fmt.Errorf("%w: %s", ErrUnsupportedContent, contentType)
	}
	if err != nil {
		return nil, err
	}

	content.WordCount = len(strings.Fields(content.CleanText))
	content.EstimatedTokens = EstimateTokens(content.CleanText)

	if c.cache != nil {
		c.cache.Set(ctx, pageURL, content)
	}
	scraperLog.WithFields(logrus.Fields{
		"url":   pageURL,
		"words": content.WordCount,
		"links": len(content.Links),
	}).Debug("page parsed")
	return content, nil
}

func (c *WebParserClient) fetch(ctx context.Context, pageURL string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create request: %w", err)
	}

	// Browser-like headers; many sites answer 403 to bare clients.
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,application/pdf,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-GB,en;q=0.9")
	req.Header.Set("DNT", "1")
	req.Header.Set("Upgrade-Insecure-Requests", "1")
	req.Header.Set("Sec-Fetch-Dest", "document")
	req.Header.Set("Sec-Fetch-Mode", "navigate")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("HTTP %d", resp.StatusCode)
	}

	maxBytes := int64(c.maxSizeMB) * 1024 * 1024
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBytes+1))
	if err != nil {
		return nil, "", fmt.Errorf("failed to read body: %w", err)
	}
	if int64(len(body)) > maxBytes {
		return nil, "", fmt.Errorf("content exceeds size limit of %dMB", c.maxSizeMB)
	}
	return body, resp.Header.Get("Content-Type"), nil
}

// parseHTML prefers the readability article and falls back to the whole
// body with scripts, styles, images and inputs stripped.
func parseHTML(pageURL *url.URL, data []byte) (*ParsedContent, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	content := &ParsedContent{
		URL:   pageURL.String(),
		Title: strings.TrimSpace(doc.Find("title").First().Text()),
	}
	if content.Title == "" {
		content.Title = "No title found"
	}

	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		if href := strings.TrimSpace(s.AttrOr("href", "")); href != "" {
			content.Links = append(content.Links, href)
		}
	})
	doc.Find("h1, h2, h3, h4").Each(func(_ int, s *goquery.Selection) {
		if h := strings.TrimSpace(s.Text()); h != "" {
			content.Headings = append(content.Headings, h)
		}
	})

	article, err := readability.FromReader(bytes.NewReader(data), pageURL)
	if err == nil && strings.TrimSpace(article.TextContent) != "" {
		content.CleanText = normalizeSpace(article.TextContent)
		return content, nil
	}

	doc.Find("script, style, img, input, noscript").Remove()
	content.CleanText = normalizeSpace(extractText(doc.Find("body")))
	return content, nil
}

func parsePDF(pageURL *url.URL, data []byte) (*ParsedContent, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF: %w", err)
	}

	var sb strings.Builder
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			scraperLog.WithError(err).WithField("page", i).Warn("failed to extract PDF page")
			continue
		}
		sb.WriteString(text)
		sb.WriteString("\n")
	}

	return &ParsedContent{
		URL:       pageURL.String(),
		Title:     "PDF Document: " + pageURL.Path,
		CleanText: normalizeSpace(sb.String()),
	}, nil
}

// extractText walks a selection, keeping block boundaries as blank lines.
func extractText(sel *goquery.Selection) string {
	var builder strings.Builder

	sel.Contents().Each(func(_ int, s *goquery.Selection) {
		switch goquery.NodeName(s) {
		case "#text":
			if text := strings.TrimSpace(s.Text()); text != "" {
				builder.WriteString(text)
				builder.WriteString(" ")
			}
		case "br":
			builder.WriteString("\n")
		case "p", "div", "section", "h1", "h2", "h3", "h4", "h5", "h6", "li", "blockquote", "tr":
			if inner := strings.TrimSpace(extractText(s)); inner != "" {
				builder.WriteString(inner)
				builder.WriteString("\n\n")
			}
		default:
			builder.WriteString(extractText(s))
		}
	})

	return builder.String()
}

// normalizeSpace trims every line and collapses runs of blank lines.
func normalizeSpace(s string) string {
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	blank := false
	for _, line := range lines {
		line = strings.Join(strings.Fields(line), " ")
		if line == "" {
			if !blank && len(out) > 0 {
				out = append(out, "")
			}
			blank = true
			continue
		}
		out = append(out, line)
		blank = false
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}

func truncateRunes(s string, n int) string {
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n])
}

// EstimateTokens estimates token count from text length
// Uses ~4 characters per token with 10% buffer
func EstimateTokens(text string) int {
	if text == "" {
		return 0
	}
	return int(float64(len(text)) / 4.0 * 1.1)
}
