package indexer

import (
	"strconv"
	"strings"
)

// BuildQueries returns the ordered search queries for a release, broadest
// first. A year of zero or less is treated as unknown.
func BuildQueries(artist, album string, year int) []string {
	base := strings.Join(strings.Fields(strings.TrimSpace(artist)+" "+strings.TrimSpace(album)), " ")
	if base == "" {
		return nil
	}
	queries := make([]string, 0, 4)
	queries = append(queries, base)
	if year > 0 {
		queries = append(queries, base+" "+strconv.Itoa(year))
	}
	queries = append(queries, base+" 320", base+" FLAC")
	return queries
}
