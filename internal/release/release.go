// Package release holds the value types shared by the indexer, ranking, and
// selection packages: a search candidate and the transports that can reach it.
package release

import "strings"

// Transport identifies how a candidate can be fetched.
type Transport int

const (
	None Transport = iota
	DirectFile
	Magnet
	TorrentFile
)

func (t Transport) String() string {
	switch t {
	case DirectFile:
		return "direct_file"
	case Magnet:
		return "magnet"
	case TorrentFile:
		return "torrent_file"
	default:
		return "none"
	}
}

// CandidateRelease is one indexer search result. The presence of each URL
// field decides which transports can reach it.
type CandidateRelease struct {
	Title             string
	DirectDownloadURL string
	MagnetURI         string
	TorrentFileURL    string
	// SizeBytes is zero when the indexer did not report a size.
	SizeBytes int64
	// AgeOrRankHint is the indexer's age in days or rank, nil when absent.
	AgeOrRankHint *int
	Seeders       int
	Indexer       string
	GUID          string
}

// Target returns the URL or magnet string for transport t, or "" when the
// candidate cannot be reached that way.
func (c CandidateRelease) Target(t Transport) string {
	switch t {
	case DirectFile:
		return strings.TrimSpace(c.DirectDownloadURL)
	case Magnet:
		return strings.TrimSpace(c.MagnetURI)
	case TorrentFile:
		return strings.TrimSpace(c.TorrentFileURL)
	default:
		return ""
	}
}

// Reachable reports whether the candidate carries a target for t.
func (c CandidateRelease) Reachable(t Transport) bool {
	return c.Target(t) != ""
}

// Transports lists the reachable transports in DirectFile, Magnet, TorrentFile order.
func (c CandidateRelease) Transports() []Transport {
	out := make([]Transport, 0, 3)
	for _, t := range []Transport{DirectFile, Magnet, TorrentFile} {
		if c.Reachable(t) {
			out = append(out, t)
		}
	}
	return out
}

// Key identifies the candidate for de-duplication across queries.
func (c CandidateRelease) Key() string {
	if guid := strings.TrimSpace(c.GUID); guid != "" {
		return "guid:" + guid
	}
	for _, t := range []Transport{DirectFile, Magnet, TorrentFile} {
		if target := c.Target(t); target != "" {
			return t.String() + ":" + target
		}
	}
	return "title:" + strings.ToLower(strings.TrimSpace(c.Title))
}
