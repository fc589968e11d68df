package queuebuild

import (
	"fmt"
	"path"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/samber/lo"

	"harvest/internal/textutil"
)

var (
	discPattern        = regexp.MustCompile(`(?i)\b(?:cd|disc|disk)\s*0*(\d{1,2})\b`)
	discTrackPattern   = regexp.MustCompile(`^\s*(\d)[-.](\d{2})\b`)
	leadingNumber      = regexp.MustCompile(`^\s*(\d{1,4})(?:\D|$)`)
	leadingNumberStrip = regexp.MustCompile(`^\s*(?:\d[-.])?\d{1,4}\s*(?:[-._)]\s*)*`)
	bracketed          = regexp.MustCompile(`\s*(?:\([^)]*\)|\[[^\]]*\])`)
)

// exclusionHints mark alternate versions that are dropped when no explicit
// track titles are known.
var exclusionHints = []string{"bonus", "live", "re recorded", "rerecorded", "demo", "karaoke", "instrumental", "remix"}

const trackCeiling = 30

// candidate is an accepted audio file with its parsed path context.
type candidate struct {
	entry     RawSearchFileEntry
	segments  []string
	fileName  string
	ext       string
	albumPath string
	disc      int
	tail      string
	shaped    bool
}

type groupKey struct {
	albumPath string
	disc      int
}

// Build returns the download plan for entries. It never panics and returns an
// empty plan only when no entry is an accepted audio file.
func Build(entries []RawSearchFileEntry, req Request) []QueueItem {
	audio := acceptAudio(entries, req.MinBitrate)
	if len(audio) == 0 {
		return nil
	}

	artist := textutil.Fold(req.Artist)
	album := textutil.Fold(req.Release)
	for i := range audio {
		locateRelease(&audio[i], artist, album)
	}

	primary := primaryGroup(lo.Filter(audio, func(c candidate, _ int) bool { return c.shaped }))
	if len(primary) == 0 {
		primary = audio
	}

	selected := filterTracks(primary, req, album)
	if len(selected) == 0 {
		selected = audio
	}

	numbered := lo.Map(selected, func(c candidate, _ int) numberedFile {
		return numberedFile{candidate: c, track: trackNumber(c.fileName, req.ExpectedTrackCount)}
	})
	sort.SliceStable(numbered, func(i, j int) bool {
		a, b := numbered[i], numbered[j]
		switch {
		case a.track != nil && b.track != nil && *a.track != *b.track:
			return *a.track < *b.track
		case a.track != nil && b.track == nil:
			return true
		case a.track == nil && b.track != nil:
			return false
		}
		return strings.ToLower(a.fileName) < strings.ToLower(b.fileName)
	})
	if req.ExpectedTrackCount > 0 && len(numbered) > req.ExpectedTrackCount {
		numbered = numbered[:req.ExpectedTrackCount]
	}

	items := make([]QueueItem, 0, len(numbered))
	for i, file := range numbered {
		items = append(items, QueueItem{
			Owner:               file.entry.Owner,
			RemoteFileName:      file.entry.RemotePath,
			LocalFileName:       localName(i+1, file.fileName, file.ext),
			AssignedTrackNumber: file.track,
			SizeBytes:           file.entry.SizeBytes,
		})
	}
	return items
}

type numberedFile struct {
	candidate
	track *int
}

func acceptAudio(entries []RawSearchFileEntry, minBitrate int) []candidate {
	if minBitrate <= 0 {
		minBitrate = DefaultMinBitrate
	}
	out := make([]candidate, 0, len(entries))
	for _, entry := range entries {
		segments := splitRemotePath(entry.RemotePath)
		if len(segments) == 0 {
			continue
		}
		fileName := segments[len(segments)-1]
		ext := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(entry.Extension), "."))
		if ext == "" {
			ext = strings.ToLower(strings.TrimPrefix(path.Ext(fileName), "."))
		}
		if !lo.Contains(AudioExtensions, ext) {
			continue
		}
		if entry.Bitrate < minBitrate {
			_, lossless := losslessExtensions[ext]
			if !(lossless && entry.Bitrate <= 0) {
				continue
			}
		}
		out = append(out, candidate{entry: entry, segments: segments, fileName: fileName, ext: ext, disc: 1})
	}
	return out
}

func splitRemotePath(remote string) []string {
	parts := strings.FieldsFunc(remote, func(r rune) bool { return r == '/' || r == '\\' })
	return lo.Filter(parts, func(p string, _ int) bool { return strings.TrimSpace(p) != "" })
}

// locateRelease finds an artist folder followed by a release folder among the
// directory segments and records the group key. A single folder naming both
// counts too.
func locateRelease(c *candidate, artist, album string) {
	dirs := c.segments[:len(c.segments)-1]
	folded := lo.Map(dirs, func(s string, _ int) string { return textutil.Fold(s) })

	artistAt := -1
	for i, seg := range folded {
		if namesFolder(seg, artist) {
			artistAt = i
			break
		}
	}
	if artistAt < 0 || album == "" {
		return
	}
	albumAt := -1
	for j := artistAt; j < len(folded); j++ {
		seg := folded[j]
		if j == artistAt {
			seg = stripName(seg, artist)
		}
		if namesFolder(seg, album) {
			albumAt = j
			break
		}
	}
	if albumAt < 0 {
		return
	}

	c.shaped = true
	c.albumPath = strings.Join(folded[:albumAt+1], "/")
	c.tail = textutil.Fold(strings.Join(append(append([]string(nil), dirs[albumAt+1:]...), c.fileName), " "))
	for _, seg := range dirs[albumAt:] {
		if m := discPattern.FindStringSubmatch(seg); m != nil {
			if n, err := strconv.Atoi(m[1]); err == nil && n > 0 {
				c.disc = n
			}
		}
	}
}

// namesFolder reports whether the folded folder segment seg carries name.
// Names too short for substring matching must appear as whole words.
func namesFolder(seg, name string) bool {
	if textutil.ContainsEither(seg, name) {
		return true
	}
	return name != "" && strings.Contains(" "+seg+" ", " "+name+" ")
}

func stripName(seg, name string) string {
	if padded := " " + seg + " "; strings.Contains(padded, " "+name+" ") {
		return strings.TrimSpace(strings.Replace(padded, " "+name+" ", " ", 1))
	}
	return strings.TrimSpace(strings.Replace(seg, name, "", 1))
}

// primaryGroup prefers disc 1, then the largest group.
func primaryGroup(shaped []candidate) []candidate {
	if len(shaped) == 0 {
		return nil
	}
	groups := lo.GroupBy(shaped, func(c candidate) groupKey {
		return groupKey{albumPath: c.albumPath, disc: c.disc}
	})
	keys := lo.Keys(groups)
	sort.Slice(keys, func(i, j int) bool {
		a, b := keys[i], keys[j]
		if (a.disc == 1) != (b.disc == 1) {
			return a.disc == 1
		}
		if len(groups[a]) != len(groups[b]) {
			return len(groups[a]) > len(groups[b])
		}
		if a.disc != b.disc {
			return a.disc < b.disc
		}
		return a.albumPath < b.albumPath
	})
	return groups[keys[0]]
}

// filterTracks applies the strict filter and relaxes it through the hint
// filter and the unfiltered group until something survives.
func filterTracks(group []candidate, req Request, album string) []candidate {
	threshold := 5
	if req.ExpectedTrackCount > 0 {
		threshold = max(2, req.ExpectedTrackCount-1)
	}

	hinted := lo.Filter(group, func(c candidate, _ int) bool { return !hasExclusionHint(c, album) })
	strict := hinted
	if titles := expectedTitles(req.ExpectedTrackTitles); len(titles) > 0 {
		strict = lo.Filter(group, func(c candidate, _ int) bool { return matchesExpectedTitle(c.fileName, titles) })
	}
	if len(strict) >= threshold {
		return strict
	}
	if len(hinted) > 0 {
		return hinted
	}
	if len(strict) > 0 {
		return strict
	}
	return group
}

func hasExclusionHint(c candidate, album string) bool {
	text := " " + c.tail + " "
	if !c.shaped {
		text = " " + textutil.Fold(strings.Join(c.segments, " ")) + " "
	}
	for _, hint := range exclusionHints {
		if strings.Contains(" "+album+" ", " "+hint+" ") {
			continue
		}
		if strings.Contains(text, " "+hint+" ") {
			return true
		}
	}
	return false
}

func expectedTitles(titles []string) []string {
	out := make([]string, 0, len(titles))
	for _, title := range titles {
		if folded := textutil.Fold(bracketed.ReplaceAllString(title, "")); folded != "" {
			out = append(out, folded)
		}
	}
	return out
}

func matchesExpectedTitle(fileName string, titles []string) bool {
	base := cleanTitle(fileName)
	folded := textutil.Fold(base)
	if folded == "" {
		return false
	}
	return lo.ContainsBy(titles, func(title string) bool {
		return folded == title || textutil.ContainsEither(folded, title)
	})
}

// cleanTitle strips the extension, leading track numbers, and bracketed qualifiers.
func cleanTitle(fileName string) string {
	base := strings.TrimSuffix(fileName, path.Ext(fileName))
	base = leadingNumberStrip.ReplaceAllString(base, "")
	base = bracketed.ReplaceAllString(base, "")
	return strings.TrimSpace(base)
}

// trackNumber parses the leading number of fileName. Values above 99 are read
// as disc and track combined ("103" is track 3) when the last two digits fall
// within the expected track count, or 30 when the count is unknown.
func trackNumber(fileName string, expected int) *int {
	if m := discTrackPattern.FindStringSubmatch(fileName); m != nil {
		if n, err := strconv.Atoi(m[2]); err == nil && n > 0 {
			return &n
		}
	}
	m := leadingNumber.FindStringSubmatch(fileName)
	if m == nil {
		return nil
	}
	n, err := strconv.Atoi(m[1])
	if err != nil || n <= 0 {
		return nil
	}
	if n <= 99 {
		return &n
	}
	ceiling := trackCeiling
	if expected > 0 {
		ceiling = expected
	}
	folded := n % 100
	if folded < 1 || folded > ceiling {
		return nil
	}
	return &folded
}

func localName(index int, fileName, ext string) string {
	title := textutil.SanitizeFileName(cleanTitle(fileName))
	if title == "" {
		title = "Track"
	}
	return fmt.Sprintf("%02d - %s.%s", index, title, ext)
}
