package ranking

import (
	"net/url"
	"path"
	"strings"

	"harvest/internal/matching"
	"harvest/internal/release"
	"harvest/internal/textutil"
)

// unrelatedWorkWords mark titles that are a different work by the same
// artist. They only count when the requested album does not contain them.
var unrelatedWorkWords = []string{
	"live", "karaoke", "tribute", "cover", "covers", "remix", "remixes",
	"instrumental", "acapella", "demo", "demos", "bootleg", "single",
}

// CalculateRelevanceScore ranks candidate against the requested artist and album.
// Higher is better; non-music titles score below zero.
func CalculateRelevanceScore(candidate release.CandidateRelease, artist, album string) float64 {
	title := candidate.Title
	if NonMusicReason(title) != "" {
		return -100
	}

	var score float64
	switch {
	case matching.TitleMatches(title, artist, album):
		score += 100
	case matching.ArtistMatches(title, artist):
		score += 30
	}

	wanted := textutil.NewFingerprint(artist + " " + album)
	got := textutil.NewFingerprint(title)
	score += 40 * wanted.Coverage(got)
	score += 20 * textutil.CosineSimilarity(wanted, got)

	if textutil.Fold(title) == textutil.Fold(artist+" "+album) {
		score += 10
	}
	if matching.IsDiscographyTitle(title, artist) {
		score -= 25
	}

	titleWords := wordSet(textutil.Words(title))
	albumWords := wordSet(textutil.Words(album))
	for _, word := range unrelatedWorkWords {
		_, inTitle := titleWords[word]
		_, inAlbum := albumWords[word]
		if inTitle && !inAlbum {
			score -= 15
		}
	}

	score += formatBonus(titleWords)
	return score
}

func formatBonus(words map[string]struct{}) float64 {
	has := func(w string) bool {
		_, ok := words[w]
		return ok
	}
	var bonus float64
	switch {
	case has("flac"), has("lossless"), has("alac"):
		bonus += 8
		if has("24bit") || has("24") {
			bonus += 2
		}
	case has("320"), has("v0"):
		bonus += 5
	case has("mp3"), has("aac"):
		bonus += 2
	}
	return bonus
}

func wordSet(words []string) map[string]struct{} {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}

// IsTorrentFile reports whether urlOrPath points at a .torrent file. Indexer
// redirect URLs often lack an extension, so query parameters such as
// type=torrent or file=name.torrent are honoured too.
func IsTorrentFile(urlOrPath string) bool {
	raw := strings.TrimSpace(urlOrPath)
	if raw == "" || strings.HasPrefix(strings.ToLower(raw), "magnet:") {
		return false
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return strings.Contains(strings.ToLower(raw), ".torrent")
	}
	if strings.EqualFold(path.Ext(parsed.Path), ".torrent") {
		return true
	}
	for key, values := range parsed.Query() {
		key = strings.ToLower(key)
		for _, value := range values {
			value = strings.ToLower(strings.TrimSpace(value))
			if strings.HasSuffix(value, ".torrent") {
				return true
			}
			if (key == "type" || key == "t" || key == "format") && value == "torrent" {
				return true
			}
		}
	}
	return false
}
