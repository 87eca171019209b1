// Package citations gathers background context for cited sources.
// Citations that are URLs are fetched, reduced to their readable
// content, and converted to markdown snippets the formatter can feed
// into its prompts. Plain-text citations pass through untouched.
package citations

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	md "github.com/JohannesKaufmann/html-to-markdown"
	readability "github.com/go-shiori/go-readability"
	"golang.org/x/net/html"
)

// maxFetchSize caps how much of a cited page is read.
const maxFetchSize = 2 * 1024 * 1024 // 2MB

// DefaultSnippetRunes bounds each source's contribution to the prompt.
const DefaultSnippetRunes = 1200

// Fetcher resolves URL citations into markdown snippets. Results are
// cached per URL for the lifetime of the fetcher; a failed fetch is
// cached as empty so a flaky source is not re-fetched every cycle.
type Fetcher struct {
	httpClient   *http.Client
	converter    *md.Converter
	snippetRunes int
	logger       *slog.Logger

	mu    sync.Mutex
	cache map[string]string
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(f *Fetcher) {
		f.httpClient = c
	}
}

// WithSnippetRunes sets the per-source snippet bound.
func WithSnippetRunes(n int) Option {
	return func(f *Fetcher) {
		f.snippetRunes = n
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(f *Fetcher) {
		f.logger = logger
	}
}

// NewFetcher creates a citation context fetcher.
func NewFetcher(opts ...Option) *Fetcher {
	f := &Fetcher{
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
		converter:    md.NewConverter("", true, nil),
		snippetRunes: DefaultSnippetRunes,
		logger:       slog.Default(),
		cache:        make(map[string]string),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Context implements formatter.ContextSource: it returns one combined
// background block for the URL citations of a section, or "" when none
// of the citations resolve to usable content.
func (f *Fetcher) Context(ctx context.Context, citations []string) string {
	var blocks []string
	for _, c := range citations {
		u, ok := citationURL(c)
		if !ok {
			continue
		}
		snippet := f.snippet(ctx, u)
		if snippet == "" {
			continue
		}
		blocks = append(blocks, fmt.Sprintf("Source: %s\n%s", u, snippet))
	}
	return strings.Join(blocks, "\n\n")
}

// citationURL reports whether a citation entry is an absolute
// http(s) URL.
func citationURL(citation string) (string, bool) {
	citation = strings.TrimSpace(citation)
	u, err := url.Parse(citation)
	if err != nil {
		return "", false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", false
	}
	return u.String(), true
}

// snippet returns the cached or freshly fetched snippet for a URL.
func (f *Fetcher) snippet(ctx context.Context, rawURL string) string {
	f.mu.Lock()
	if cached, ok := f.cache[rawURL]; ok {
		f.mu.Unlock()
		return cached
	}
	f.mu.Unlock()

	snippet := f.fetch(ctx, rawURL)

	f.mu.Lock()
	f.cache[rawURL] = snippet
	f.mu.Unlock()
	return snippet
}

func (f *Fetcher) fetch(ctx context.Context, rawURL string) string {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return ""
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		f.logger.Debug("Citation fetch failed", "url", rawURL, "error", err)
		return ""
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		f.logger.Debug("Citation fetch non-OK", "url", rawURL, "status", resp.StatusCode)
		return ""
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFetchSize))
	if err != nil {
		return ""
	}

	parsed, _ := url.Parse(rawURL)
	article, err := readability.FromReader(strings.NewReader(string(body)), parsed)
	if err != nil {
		f.logger.Debug("Citation not readable", "url", rawURL, "error", err)
		return ""
	}

	markdown, err := f.converter.ConvertString(article.Content)
	if err != nil {
		return ""
	}
	markdown = strings.TrimSpace(markdown)

	title := article.Title
	if title == "" {
		title = extractHTMLTitle(body)
	}
	if title != "" {
		markdown = "# " + title + "\n\n" + markdown
	}

	return truncateRunes(markdown, f.snippetRunes)
}

// extractHTMLTitle pulls the <title> element from raw HTML.
func extractHTMLTitle(content []byte) string {
	doc, err := html.Parse(strings.NewReader(string(content)))
	if err != nil {
		return ""
	}

	var title string
	var extract func(*html.Node)
	extract = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "title" && n.FirstChild != nil {
			title = strings.TrimSpace(n.FirstChild.Data)
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if title != "" {
				return
			}
			extract(c)
		}
	}
	extract(doc)

	return title
}

func truncateRunes(s string, limit int) string {
	if limit <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "…"
}
