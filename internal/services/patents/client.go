// Package patents provides a client for EPO Open Patent Services style
// published-data APIs.
package patents

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/assero/internal/common"
	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/time/rate"
)

const (
	// DefaultTimeout is the default HTTP timeout.
	DefaultTimeout = 30 * time.Second

	// DefaultRateLimit is the default rate limit (requests per second).
	// OPS throttles aggressively; stay conservative.
	DefaultRateLimit = 2

	// DefaultMaxResults bounds search result pages.
	DefaultMaxResults = 5
)

// Client is a published-patent-data API client. Authentication uses OAuth2
// client credentials; every request passes the shared rate limiter first.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     arbor.ILogger
	limiter    *rate.Limiter
	maxResults int
}

// ClientOption configures the Client.
type ClientOption func(*Client)

// WithBaseURL sets a custom base URL.
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(baseURL, "/")
	}
}

// WithHTTPClient sets a custom HTTP client, replacing the OAuth2 transport.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithLogger sets a logger.
func WithLogger(logger arbor.ILogger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithRateLimit sets a custom rate limit.
func WithRateLimit(requestsPerSecond int) ClientOption {
	return func(c *Client) {
		c.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), requestsPerSecond)
	}
}

// NewClient creates a new patent API client from configuration. The OAuth2
// token source refreshes client-credential tokens transparently.
func NewClient(config *common.PatentsConfig, opts ...ClientOption) (*Client, error) {
	if config.ConsumerKey == "" || config.ConsumerSecret == "" {
		return nil, fmt.Errorf("patent API credentials are required (patents.consumer_key / patents.consumer_secret)")
	}

	timeout := DefaultTimeout
	if config.Timeout != "" {
		parsed, err := time.ParseDuration(config.Timeout)
		if err != nil {
			return nil, fmt.Errorf("invalid timeout duration '%s': %w", config.Timeout, err)
		}
		timeout = parsed
	}

	creds := clientcredentials.Config{
		ClientID:     config.ConsumerKey,
		ClientSecret: config.ConsumerSecret,
		TokenURL:     config.TokenURL,
	}
	httpClient := creds.Client(context.Background())
	httpClient.Timeout = timeout

	rateLimit := config.RateLimit
	if rateLimit <= 0 {
		rateLimit = DefaultRateLimit
	}
	maxResults := config.MaxResults
	if maxResults <= 0 {
		maxResults = DefaultMaxResults
	}

	c := &Client{
		baseURL:    strings.TrimRight(config.BaseURL, "/"),
		httpClient: httpClient,
		limiter:    rate.NewLimiter(rate.Limit(rateLimit), rateLimit),
		maxResults: maxResults,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// APIError represents an error from the patent API.
type APIError struct {
	StatusCode int
	Message    string
	Endpoint   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("patent API error: %s (status %d, endpoint: %s)", e.Message, e.StatusCode, e.Endpoint)
}

// Retriable reports whether the failure is transient (throttling or
// upstream unavailability).
func (e *APIError) Retriable() bool {
	return e.StatusCode == http.StatusTooManyRequests ||
		e.StatusCode == http.StatusServiceUnavailable ||
		e.StatusCode == http.StatusForbidden // OPS signals quota exhaustion with 403
}

// get performs a GET request to the API.
func (c *Client) get(ctx context.Context, path string, params url.Values, result interface{}) error {
	// Wait for rate limiter
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait aborted: %w", err)
	}

	// Build URL
	reqURL := fmt.Sprintf("%s%s", c.baseURL, path)
	if len(params) > 0 {
		reqURL = fmt.Sprintf("%s?%s", reqURL, params.Encode())
	}

	// Create request
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	if c.logger != nil {
		c.logger.Debug().
			Str("url", c.baseURL+path).
			Msg("Patent API request")
	}

	// Execute request
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	// Check status
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return &APIError{
			StatusCode: resp.StatusCode,
			Message:    string(body),
			Endpoint:   path,
		}
	}

	// Parse response
	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return nil
}

// SearchPublished runs a CQL query against the published-data search
// endpoint and returns publication references. maxResults <= 0 uses the
// configured default.
func (c *Client) SearchPublished(ctx context.Context, query string, maxResults int) ([]string, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("search query cannot be empty")
	}
	if maxResults <= 0 {
		maxResults = c.maxResults
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("Range", fmt.Sprintf("1-%d", maxResults))

	var response searchResponse
	if err := c.get(ctx, "/published-data/search", params, &response); err != nil {
		return nil, fmt.Errorf("failed to search published data: %w", err)
	}

	refs := response.WorldPatentData.BiblioSearch.SearchResult.PublicationReferences
	numbers := make([]string, 0, len(refs))
	for _, ref := range refs {
		if n := ref.DocumentID.Number(); n != "" {
			numbers = append(numbers, n)
		}
	}
	return numbers, nil
}

// FetchBiblio retrieves title and abstract for a publication number.
func (c *Client) FetchBiblio(ctx context.Context, publicationNumber string) (*PatentDocument, error) {
	if publicationNumber == "" {
		return nil, fmt.Errorf("publication number cannot be empty")
	}

	path := fmt.Sprintf("/published-data/publication/epodoc/%s/biblio", url.PathEscape(publicationNumber))

	var response biblioResponse
	if err := c.get(ctx, path, nil, &response); err != nil {
		return nil, fmt.Errorf("failed to fetch biblio for %s: %w", publicationNumber, err)
	}

	docs := response.WorldPatentData.ExchangeDocuments.ExchangeDocument
	if len(docs) == 0 {
		return nil, fmt.Errorf("no bibliographic data returned for %s", publicationNumber)
	}

	doc := docs[0]
	result := &PatentDocument{PublicationNumber: publicationNumber}

	// Prefer the English title, fall back to the first one
	for _, title := range doc.BibliographicData.InventionTitle {
		if result.Title == "" || title.Lang == "en" {
			result.Title = title.Value
		}
		if title.Lang == "en" {
			break
		}
	}

	for _, abs := range doc.Abstract {
		if abs.Lang != "" && abs.Lang != "en" && result.Abstract != "" {
			continue
		}
		var parts []string
		for _, p := range abs.Paragraphs {
			if p.Value != "" {
				parts = append(parts, p.Value)
			}
		}
		if len(parts) > 0 {
			result.Abstract = strings.Join(parts, "\n")
		}
		if abs.Lang == "en" {
			break
		}
	}

	for _, id := range doc.BibliographicData.PublicationReference.DocumentID {
		if id.Date.Value != "" {
			result.PublicationDate = id.Date.Value
			break
		}
	}

	return result, nil
}

// SearchWithBiblio searches published data and enriches each hit with its
// bibliographic record. Hits whose biblio fetch fails are returned with the
// publication number only rather than failing the whole search.
func (c *Client) SearchWithBiblio(ctx context.Context, query string, maxResults int) ([]PatentDocument, error) {
	numbers, err := c.SearchPublished(ctx, query, maxResults)
	if err != nil {
		return nil, err
	}

	docs := make([]PatentDocument, 0, len(numbers))
	for _, number := range numbers {
		doc, err := c.FetchBiblio(ctx, number)
		if err != nil {
			if c.logger != nil {
				c.logger.Warn().
					Err(err).
					Str("publication", number).
					Msg("Biblio fetch failed, returning bare reference")
			}
			docs = append(docs, PatentDocument{PublicationNumber: number})
			continue
		}
		docs = append(docs, *doc)
	}
	return docs, nil
}
