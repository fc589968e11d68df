package matching

import (
	"regexp"
	"strings"

	"harvest/internal/textutil"
)

var (
	leadingTagPattern = regexp.MustCompile(`^\s*(?:\[[^\]]*\]|\([^)]*\)|\{[^}]*\})\s*`)
	qualifierPattern  = regexp.MustCompile(`\s*(?:\([^)]*\)|\[[^\]]*\])\s*`)
	yearPattern       = regexp.MustCompile(`^(?:19|20)\d{2}$`)
	separatorPattern  = regexp.MustCompile(`\s+[-~|]+\s+|\s*[–—|:]\s*|\s*-{2,}\s*`)
)

// noiseWords are release-format words that trail album names in indexer titles.
var noiseWords = map[string]struct{}{
	"flac": {}, "mp3": {}, "aac": {}, "alac": {}, "ogg": {}, "wav": {},
	"320": {}, "256": {}, "192": {}, "v0": {}, "v2": {}, "kbps": {},
	"lossless": {}, "24bit": {}, "16bit": {}, "hi": {}, "res": {}, "web": {},
	"cd": {}, "vinyl": {}, "deluxe": {}, "edition": {}, "remastered": {},
	"remaster": {}, "expanded": {}, "bonus": {}, "tracks": {},
}

var discographyMarkers = []string{
	"discography",
	"discografia",
	"discographie",
	"diskografie",
	"complete albums",
	"complete studio albums",
	"all albums",
	"studio albums collection",
}

// TitleMatches reports whether title names albumName by artistName.
func TitleMatches(title, artistName, albumName string) bool {
	if strings.TrimSpace(albumName) == "" || strings.TrimSpace(artistName) == "" {
		return false
	}
	if strings.EqualFold(strings.TrimSpace(title), strings.TrimSpace(artistName)+" - "+strings.TrimSpace(albumName)) {
		return true
	}

	artist := textutil.Words(artistName)
	rest, full, ok := matchArtist(titleWords(title), artist)
	if !ok {
		return false
	}
	rest = skipYears(rest)
	if len(rest) == 0 {
		return false
	}

	bounded := full && artistEndsAtSeparator(title, artist)
	for _, album := range albumVariants(albumName) {
		if prefixMatches(rest, album) {
			return true
		}
		if full && containsAlbum(rest, album, bounded) {
			return true
		}
	}
	return false
}

// ArtistMatches reports whether title leads with artistName or a short alias of it.
func ArtistMatches(title, artistName string) bool {
	_, _, ok := matchArtist(titleWords(title), textutil.Words(artistName))
	return ok
}

// IsDiscographyTitle reports whether title describes a catalog pack for artistName.
func IsDiscographyTitle(title, artistName string) bool {
	folded := " " + textutil.Fold(title) + " "
	marked := false
	for _, marker := range discographyMarkers {
		if strings.Contains(folded, " "+marker+" ") {
			marked = true
			break
		}
	}
	if !marked {
		return false
	}
	artist := textutil.Words(artistName)
	rest, full, ok := matchArtist(titleWords(title), artist)
	if !ok || !full {
		return false
	}
	return artistEndsAtSeparator(title, artist) || len(coreWords(beforeMarker(rest))) == 0
}

func titleWords(title string) []string {
	return textutil.Words(stripLeadingTags(title))
}

func stripLeadingTags(title string) string {
	for {
		stripped := leadingTagPattern.ReplaceAllString(title, "")
		if stripped == title || strings.TrimSpace(stripped) == "" {
			return title
		}
		title = stripped
	}
}

// artistEndsAtSeparator reports whether the segment before the first
// separator ("Artist - Album") is exactly the artist plus format or year noise.
func artistEndsAtSeparator(title string, artist []string) bool {
	parts := separatorPattern.Split(stripLeadingTags(title), 2)
	if len(parts) < 2 {
		return false
	}
	rest, full, ok := matchArtist(textutil.Words(parts[0]), artist)
	return ok && full && len(coreWords(rest)) == 0
}

// beforeMarker returns the words preceding the first discography marker, or
// all of words when none occurs.
func beforeMarker(words []string) []string {
	joined := " " + strings.Join(words, " ") + " "
	cut := -1
	for _, marker := range discographyMarkers {
		if i := strings.Index(joined, " "+marker+" "); i >= 0 && (cut < 0 || i < cut) {
			cut = i
		}
	}
	if cut < 0 {
		return words
	}
	return textutil.Words(joined[:cut])
}

// matchArtist consumes the artist prefix of words. full is false when only a
// leading subset of the artist's words matched.
func matchArtist(words, artist []string) (rest []string, full bool, ok bool) {
	if len(words) == 0 || len(artist) == 0 {
		return nil, false, false
	}
	if len(artist) > 1 && words[0] == strings.Join(artist, "") {
		return words[1:], true, true
	}
	if len(artist) > 1 && artist[0] == "the" && words[0] != "the" {
		artist = artist[1:]
	}

	matched := 0
	for matched < len(artist) && matched < len(words) && wordEqual(words[matched], artist[matched]) {
		matched++
	}
	switch {
	case matched == len(artist):
		return words[matched:], true, true
	case matched > 0 && len(artist[0]) >= 3:
		return words[matched:], false, true
	default:
		return nil, false, false
	}
}

func wordEqual(a, b string) bool {
	if a == b {
		return true
	}
	return len(a) >= 5 && len(b) >= 5 && textutil.NearlyEqual(a, b)
}

func skipYears(words []string) []string {
	for len(words) > 0 && yearPattern.MatchString(words[0]) {
		words = words[1:]
	}
	return words
}

// albumVariants returns the folded album name, plus a variant with bracketed
// qualifiers such as "(Deluxe Edition)" removed when that differs.
func albumVariants(album string) [][]string {
	variants := make([][]string, 0, 2)
	if full := textutil.Words(album); len(full) > 0 {
		variants = append(variants, full)
	}
	core := textutil.Words(qualifierPattern.ReplaceAllString(album, " "))
	if len(core) > 0 && (len(variants) == 0 || strings.Join(core, " ") != strings.Join(variants[0], " ")) {
		variants = append(variants, core)
	}
	return variants
}

func prefixMatches(rest, album []string) bool {
	n := len(album)
	if n > len(rest) {
		n = len(rest)
	}
	candidate := strings.Join(rest[:n], " ")
	return textutil.NearlyEqual(candidate, strings.Join(album, " "))
}

// containsAlbum finds album inside rest. Words ahead of it must be noise
// unless the artist was already closed off by a separator.
func containsAlbum(rest, album []string, bounded bool) bool {
	needle := strings.Join(album, " ")
	if idx := indexWords(rest, album); idx >= 0 {
		return bounded || len(coreWords(rest[:idx])) == 0
	}
	core := coreWords(rest)
	if len(core) == 0 {
		return false
	}
	return strings.Contains(" "+needle+" ", " "+strings.Join(core, " ")+" ") && len(strings.Join(core, " ")) >= 4
}

func indexWords(words, seq []string) int {
	for i := 0; i+len(seq) <= len(words); i++ {
		match := true
		for j := range seq {
			if words[i+j] != seq[j] {
				match = false
				break
			}
		}
		if match {
			return i
		}
	}
	return -1
}

func coreWords(words []string) []string {
	out := make([]string, 0, len(words))
	for _, word := range words {
		if _, noise := noiseWords[word]; noise {
			continue
		}
		if yearPattern.MatchString(word) {
			continue
		}
		out = append(out, word)
	}
	return out
}
