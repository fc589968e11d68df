// Package indexer searches a Prowlarr/Newznab style indexer aggregator for
// release candidates.
//
// BuildQueries produces the broad-first query ladder for a release, the
// QueryBuilder turns one query into a search URL carrying the configured audio
// categories and indexer IDs, and Client performs the request. Responses are
// decoded with a tolerant structural decoder: field names are matched
// case-insensitively across several aliases and a malformed item degrades to
// absent fields instead of failing the whole response.
package indexer
