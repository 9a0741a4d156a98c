// Package webfetch performs HTML web searches and page fetches for the web
// search tool. Searches go through a configurable HTML endpoint (DuckDuckGo's
// HTML frontend by default) and fetched pages are converted to markdown.
package webfetch

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/assero/internal/common"
)

const (
	// DefaultTimeout is the default HTTP timeout.
	DefaultTimeout = 20 * time.Second

	// DefaultMaxResults bounds how many search hits are returned.
	DefaultMaxResults = 5

	// DefaultMaxBodySize caps response bodies in bytes.
	DefaultMaxBodySize = 2 * 1024 * 1024

	queryPlaceholder = "{query}"
)

// Result is a single web search hit.
type Result struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet,omitempty"`
}

// Service queries an HTML search endpoint and fetches result pages. It holds
// no connection state beyond the shared HTTP client and is safe for
// concurrent use.
type Service struct {
	endpoint     string
	userAgent    string
	httpClient   *http.Client
	logger       arbor.ILogger
	maxResults   int
	maxBodySize  int64
	fetchContent bool
}

// Option configures the Service.
type Option func(*Service)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(s *Service) {
		s.httpClient = httpClient
	}
}

// WithLogger sets a logger.
func WithLogger(logger arbor.ILogger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// NewService creates a web search service from configuration. The endpoint
// must contain a {query} placeholder which is replaced with the URL-escaped
// search terms.
func NewService(config *common.WebSearchConfig, opts ...Option) (*Service, error) {
	endpoint := strings.TrimSpace(config.Endpoint)
	if endpoint == "" {
		return nil, fmt.Errorf("web search endpoint is required (websearch.endpoint)")
	}
	if !strings.Contains(endpoint, queryPlaceholder) {
		return nil, fmt.Errorf("web search endpoint must contain a %s placeholder", queryPlaceholder)
	}

	timeout := DefaultTimeout
	if config.Timeout != "" {
		parsed, err := time.ParseDuration(config.Timeout)
		if err != nil {
			return nil, fmt.Errorf("invalid timeout duration '%s': %w", config.Timeout, err)
		}
		timeout = parsed
	}

	maxResults := config.MaxResults
	if maxResults <= 0 {
		maxResults = DefaultMaxResults
	}
	maxBodySize := int64(config.MaxBodySize)
	if maxBodySize <= 0 {
		maxBodySize = DefaultMaxBodySize
	}

	s := &Service{
		endpoint:     endpoint,
		userAgent:    config.UserAgent,
		httpClient:   &http.Client{Timeout: timeout},
		maxResults:   maxResults,
		maxBodySize:  maxBodySize,
		fetchContent: config.FetchContent,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s, nil
}

// PageContentEnabled reports whether the top result page should be fetched
// and converted to markdown for tool output.
func (s *Service) PageContentEnabled() bool {
	return s.fetchContent
}

// FetchError represents a non-OK HTTP response.
type FetchError struct {
	StatusCode int
	URL        string
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("web fetch error: status %d fetching %s", e.StatusCode, e.URL)
}

// Retriable reports whether the failure is transient (throttling or upstream
// unavailability).
func (e *FetchError) Retriable() bool {
	return e.StatusCode == http.StatusTooManyRequests ||
		e.StatusCode >= http.StatusInternalServerError
}

// Search runs the query through the HTML search endpoint and returns up to
// maxResults hits. A maxResults of zero or less falls back to the configured
// limit.
func (s *Service) Search(ctx context.Context, query string, maxResults int) ([]Result, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("search query is required")
	}
	if maxResults <= 0 {
		maxResults = s.maxResults
	}

	searchURL := strings.Replace(s.endpoint, queryPlaceholder, url.QueryEscape(query), 1)

	body, err := s.fetch(ctx, searchURL)
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to parse search results: %w", err)
	}

	results := parseResults(doc, maxResults)

	if s.logger != nil {
		s.logger.Debug().
			Str("query", query).
			Int("results", len(results)).
			Msg("Web search completed")
	}

	return results, nil
}

// FetchMarkdown downloads a page and converts its HTML body to markdown.
// Relative links are resolved against the page URL.
func (s *Service) FetchMarkdown(ctx context.Context, pageURL string) (string, error) {
	parsed, err := url.Parse(pageURL)
	if err != nil || parsed.Host == "" {
		return "", fmt.Errorf("invalid page URL '%s'", pageURL)
	}

	body, err := s.fetch(ctx, pageURL)
	if err != nil {
		return "", err
	}

	converter := md.NewConverter(pageURL, true, nil)
	markdown, err := converter.ConvertString(string(body))
	if err != nil {
		return "", fmt.Errorf("failed to convert page to markdown: %w", err)
	}

	if s.logger != nil {
		s.logger.Debug().
			Str("url", pageURL).
			Int("markdown_size", len(markdown)).
			Msg("Page converted to markdown")
	}

	return strings.TrimSpace(markdown), nil
}

// fetch performs a GET with the configured user agent and a capped body read.
func (s *Service) fetch(ctx context.Context, target string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if s.userAgent != "" {
		req.Header.Set("User-Agent", s.userAgent)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &FetchError{StatusCode: resp.StatusCode, URL: target}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, s.maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	return body, nil
}

// parseResults extracts hits from an HTML results page. DuckDuckGo's result
// markup is tried first within each result node; a plain anchor is accepted
// as a fallback so searx-style endpoints work too.
func parseResults(doc *goquery.Document, maxResults int) []Result {
	results := make([]Result, 0, maxResults)

	doc.Find(".result").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		anchor := sel.Find("a.result__a").First()
		if anchor.Length() == 0 {
			anchor = sel.Find("a[href]").First()
		}
		href, ok := anchor.Attr("href")
		if !ok {
			return true
		}
		title := strings.TrimSpace(anchor.Text())
		if title == "" {
			return true
		}

		snippet := strings.TrimSpace(sel.Find(".result__snippet").First().Text())
		if snippet == "" {
			snippet = strings.TrimSpace(sel.Find("p").First().Text())
		}

		results = append(results, Result{
			Title:   title,
			URL:     decodeRedirect(href),
			Snippet: snippet,
		})
		return len(results) < maxResults
	})

	return results
}

// decodeRedirect unwraps DuckDuckGo redirect links (//duckduckgo.com/l/?uddg=...)
// to the target URL and defaults protocol-relative links to https.
func decodeRedirect(href string) string {
	parsed, err := url.Parse(href)
	if err != nil {
		return href
	}
	if target := parsed.Query().Get("uddg"); target != "" {
		return target
	}
	if parsed.Scheme == "" && parsed.Host != "" {
		parsed.Scheme = "https"
		return parsed.String()
	}
	return href
}
