package ranking

import (
	"regexp"
	"strings"

	"harvest/internal/matching"
	"harvest/internal/release"
)

// Rejection reasons returned by GetRejectionReason.
const (
	ReasonEmptyTitle     = "Empty title"
	ReasonEpisode        = "TV episode pattern"
	ReasonVideo          = "Video release"
	ReasonArtistMismatch = "Artist mismatch"
	ReasonAlbumMismatch  = "Album mismatch"
)

var (
	episodePattern = regexp.MustCompile(`(?i)\bs\d{1,2}\s?e\d{1,3}\b|\bseason\s+\d+\b`)
	videoPattern   = regexp.MustCompile(`(?i)\b(?:480p|576p|720p|1080p|1080i|2160p|4k|uhd|x264|x265|h\.?264|h\.?265|hevc|xvid|bluray|blu-ray|bdrip|brrip|webrip|web-dl|hdtv|dvdrip|remux)\b`)
	audioPattern   = regexp.MustCompile(`(?i)\b(?:flac|mp3|aac|alac|ogg|opus|wav|lossless|320|256|v0|kbps|24bit|16bit|24-bit|16-bit|vinyl|cd|album|discography|ost|soundtrack)\b`)
)

// NonMusicReason returns a rejection reason when title looks like video
// content, or "" when it is plausibly music.
func NonMusicReason(title string) string {
	title = strings.TrimSpace(title)
	if title == "" {
		return ReasonEmptyTitle
	}
	if episodePattern.MatchString(title) {
		return ReasonEpisode
	}
	if videoPattern.MatchString(title) && !audioPattern.MatchString(title) {
		return ReasonVideo
	}
	return ""
}

// IsValidMusicResult reports whether candidate is plausible music for the
// requested artist and album.
func IsValidMusicResult(candidate release.CandidateRelease, artist, album string) bool {
	return GetRejectionReason(candidate, artist, album) == ""
}

// GetRejectionReason explains why a candidate was rejected, or returns "" when
// it is acceptable. The result is for diagnostics only.
func GetRejectionReason(candidate release.CandidateRelease, artist, album string) string {
	if reason := NonMusicReason(candidate.Title); reason != "" {
		return reason
	}
	if !matching.ArtistMatches(candidate.Title, artist) {
		return ReasonArtistMismatch
	}
	if !matching.TitleMatches(candidate.Title, artist, album) {
		return ReasonAlbumMismatch
	}
	return ""
}
