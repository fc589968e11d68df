package indexer

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// DefaultCategories are the Newznab audio category codes: Audio, MP3, Lossless.
var DefaultCategories = []int{3000, 3010, 3040}

// QueryBuilder expands a query string into an indexer search URL.
type QueryBuilder struct {
	BaseURL    string
	Categories []int
	IndexerIDs []int
	Limit      int
}

// URL returns the search URL for query. Categories and indexer IDs are emitted
// as repeated "categories" and "indexerIds" parameters.
func (b QueryBuilder) URL(query string) (string, error) {
	base := strings.TrimRight(strings.TrimSpace(b.BaseURL), "/")
	if base == "" {
		return "", fmt.Errorf("indexer base url required")
	}
	endpoint, err := url.Parse(base + "/api/v1/search")
	if err != nil {
		return "", fmt.Errorf("parse indexer url: %w", err)
	}

	params := url.Values{}
	params.Set("query", strings.TrimSpace(query))
	params.Set("type", "search")
	categories := b.Categories
	if len(categories) == 0 {
		categories = DefaultCategories
	}
	for _, category := range categories {
		params.Add("categories", strconv.Itoa(category))
	}
	for _, id := range b.IndexerIDs {
		params.Add("indexerIds", strconv.Itoa(id))
	}
	if b.Limit > 0 {
		params.Set("limit", strconv.Itoa(b.Limit))
	}
	endpoint.RawQuery = params.Encode()
	return endpoint.String(), nil
}
