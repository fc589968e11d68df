package indexer

import (
	"net/url"
	"path"
	"strconv"
	"strings"

	jsoniter "github.com/json-iterator/go"

	"harvest/internal/ranking"
	"harvest/internal/release"
)

// Field aliases, matched case-insensitively.
var (
	titleKeys    = []string{"title", "name", "releaseTitle"}
	downloadKeys = []string{"downloadUrl", "download_url", "link", "url"}
	magnetKeys   = []string{"magnetUrl", "magnetUri", "magnet"}
	nzbKeys      = []string{"nzbUrl", "nzb"}
	guidKeys     = []string{"guid", "id"}
	protocolKeys = []string{"protocol", "type"}
	sizeKeys     = []string{"size", "sizeBytes", "length"}
	ageKeys      = []string{"age", "ageDays", "rank"}
	seederKeys   = []string{"seeders", "seeds"}
	indexerKeys  = []string{"indexer", "indexerName", "tracker"}
	listKeys     = []string{"results", "items", "data"}
)

// DecodeCandidates parses a search response body. Non-array payloads (other
// than an object wrapping a results array) yield an empty list.
func DecodeCandidates(body []byte) []release.CandidateRelease {
	root := jsoniter.Get(body)
	items := root
	if root.ValueType() == jsoniter.ObjectValue {
		items = lookup(root, indexKeys(root), listKeys)
	}
	if items == nil || items.ValueType() != jsoniter.ArrayValue {
		return nil
	}

	out := make([]release.CandidateRelease, 0, items.Size())
	for i := 0; i < items.Size(); i++ {
		item := items.Get(i)
		if item.ValueType() != jsoniter.ObjectValue {
			continue
		}
		if candidate, ok := decodeCandidate(item); ok {
			out = append(out, candidate)
		}
	}
	return out
}

func decodeCandidate(item jsoniter.Any) (release.CandidateRelease, bool) {
	keys := indexKeys(item)
	title := stringField(item, keys, titleKeys)
	if title == "" {
		return release.CandidateRelease{}, false
	}

	candidate := release.CandidateRelease{
		Title:     title,
		GUID:      stringField(item, keys, guidKeys),
		Indexer:   stringField(item, keys, indexerKeys),
		SizeBytes: intField(item, keys, sizeKeys),
		Seeders:   int(intField(item, keys, seederKeys)),
	}
	if age, ok := optionalInt(item, keys, ageKeys); ok {
		candidate.AgeOrRankHint = &age
	}

	download := stringField(item, keys, downloadKeys)
	magnet := stringField(item, keys, magnetKeys)
	if isMagnet(download) {
		if magnet == "" {
			magnet = download
		}
		download = ""
	}
	if magnet == "" && isMagnet(candidate.GUID) {
		magnet = candidate.GUID
	}
	if isMagnet(magnet) {
		candidate.MagnetURI = magnet
	}
	if nzb := stringField(item, keys, nzbKeys); nzb != "" {
		candidate.DirectDownloadURL = nzb
	}

	switch strings.ToLower(stringField(item, keys, protocolKeys)) {
	case "usenet", "nzb":
		if candidate.DirectDownloadURL == "" {
			candidate.DirectDownloadURL = download
		}
	case "torrent":
		candidate.TorrentFileURL = download
	default:
		switch {
		case download == "":
		case ranking.IsTorrentFile(download):
			candidate.TorrentFileURL = download
		case looksLikeNZB(download) && candidate.DirectDownloadURL == "":
			candidate.DirectDownloadURL = download
		}
	}
	return candidate, true
}

// indexKeys maps lowercased keys to their original spelling.
func indexKeys(obj jsoniter.Any) map[string]string {
	keys := obj.Keys()
	index := make(map[string]string, len(keys))
	for _, key := range keys {
		lower := strings.ToLower(key)
		if _, seen := index[lower]; !seen {
			index[lower] = key
		}
	}
	return index
}

func lookup(obj jsoniter.Any, keys map[string]string, aliases []string) jsoniter.Any {
	for _, alias := range aliases {
		if original, ok := keys[strings.ToLower(alias)]; ok {
			value := obj.Get(original)
			if value.ValueType() != jsoniter.InvalidValue && value.ValueType() != jsoniter.NilValue {
				return value
			}
		}
	}
	return nil
}

func stringField(obj jsoniter.Any, keys map[string]string, aliases []string) string {
	value := lookup(obj, keys, aliases)
	if value == nil {
		return ""
	}
	switch value.ValueType() {
	case jsoniter.StringValue, jsoniter.NumberValue:
		return strings.TrimSpace(value.ToString())
	default:
		return ""
	}
}

func optionalInt(obj jsoniter.Any, keys map[string]string, aliases []string) (int, bool) {
	value := lookup(obj, keys, aliases)
	if value == nil {
		return 0, false
	}
	switch value.ValueType() {
	case jsoniter.NumberValue:
		return int(value.ToInt64()), true
	case jsoniter.StringValue:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(value.ToString()), 64)
		if err != nil {
			return 0, false
		}
		return int(parsed), true
	default:
		return 0, false
	}
}

func intField(obj jsoniter.Any, keys map[string]string, aliases []string) int64 {
	value := lookup(obj, keys, aliases)
	if value == nil {
		return 0
	}
	var n int64
	switch value.ValueType() {
	case jsoniter.NumberValue:
		n = value.ToInt64()
	case jsoniter.StringValue:
		parsed, err := strconv.ParseInt(strings.TrimSpace(value.ToString()), 10, 64)
		if err != nil {
			return 0
		}
		n = parsed
	}
	if n < 0 {
		return 0
	}
	return n
}

func isMagnet(value string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(value)), "magnet:?")
}

func looksLikeNZB(raw string) bool {
	parsed, err := url.Parse(raw)
	if err != nil {
		return false
	}
	if strings.EqualFold(path.Ext(parsed.Path), ".nzb") {
		return true
	}
	query := parsed.Query()
	return strings.EqualFold(query.Get("t"), "get") || strings.Contains(strings.ToLower(parsed.Path), "nzb")
}
