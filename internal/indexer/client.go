package indexer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"harvest/internal/config"
	"harvest/internal/logging"
	"harvest/internal/release"
	"harvest/internal/services"
)

const maxResponseBytes = 16 << 20

// Searcher is the search surface the acquisition pipeline depends on.
type Searcher interface {
	Search(ctx context.Context, query string) ([]release.CandidateRelease, error)
}

// HTTPDoer describes the HTTP client used by Client.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client queries the indexer search API.
type Client struct {
	apiKey  string
	builder QueryBuilder
	client  HTTPDoer
	logger  *slog.Logger
}

var _ Searcher = (*Client)(nil)

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client HTTPDoer) Option {
	return func(c *Client) {
		if client != nil {
			c.client = client
		}
	}
}

// WithLogger attaches a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logging.NewComponentLogger(logger, "indexer")
	}
}

// New creates an indexer client from configuration.
func New(cfg config.Indexer, opts ...Option) (*Client, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, services.Wrap(services.ErrConfiguration, "indexer", "new", "base_url required", nil)
	}
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	client := &Client{
		apiKey: strings.TrimSpace(cfg.APIKey),
		builder: QueryBuilder{
			BaseURL:    cfg.BaseURL,
			Categories: cfg.Categories,
			IndexerIDs: cfg.IndexerIDs,
			Limit:      100,
		},
		client: &http.Client{Timeout: timeout},
		logger: logging.NewComponentLogger(nil, "indexer"),
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// Search runs one query and returns the decoded candidates.
func (c *Client) Search(ctx context.Context, query string) ([]release.CandidateRelease, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, services.Wrap(services.ErrValidation, "indexer", "search", "query must not be empty", nil)
	}
	endpoint, err := c.builder.URL(query)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "indexer", "search", "build url", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-Api-Key", c.apiKey)
	}

	start := time.Now()
	resp, err := c.client.Do(req)
	latency := time.Since(start)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		return nil, services.Wrap(services.ErrTransient, "indexer", "search", fmt.Sprintf("request failed (latency=%v)", latency), err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, services.Wrap(services.ErrConfiguration, "indexer", "search", fmt.Sprintf("indexer rejected api key (status %d)", resp.StatusCode), nil)
	case resp.StatusCode != http.StatusOK:
		return nil, services.Wrap(services.ErrTransient, "indexer", "search", fmt.Sprintf("indexer returned %d (latency=%v)", resp.StatusCode, latency), nil)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "indexer", "search", "read response", err)
	}
	candidates := DecodeCandidates(body)
	c.logger.Debug("indexer search complete",
		logging.String("query", query),
		logging.Int("results", len(candidates)),
		logging.Duration("latency", latency),
	)
	return candidates, nil
}
