package library

import (
	"path/filepath"
	"strconv"
	"strings"

	"github.com/bogem/id3v2/v2"
)

const trackFrame = "Track number/Position in set"

// tagTrackNumber reads the track number ("7" or "7/12") from an MP3's ID3v2
// tag. It returns zero for other formats, untagged files, and read errors.
func tagTrackNumber(path string) int {
	if !strings.EqualFold(filepath.Ext(path), ".mp3") {
		return 0
	}
	tag, err := id3v2.Open(path, id3v2.Options{Parse: true, ParseFrames: []string{trackFrame}})
	if err != nil {
		return 0
	}
	defer tag.Close()

	value, _, _ := strings.Cut(strings.TrimSpace(tag.GetTextFrame(tag.CommonID(trackFrame)).Text), "/")
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil || n < 0 {
		return 0
	}
	return n
}
