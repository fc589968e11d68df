package textutil

import (
	"strings"
	"unicode"

	"github.com/gosimple/unidecode"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Fold normalizes text for comparison. The result contains only lowercase
// ASCII letters, digits, and single spaces.
func Fold(text string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return ""
	}
	text = stripMarks(text)
	if !isASCII(text) {
		text = unidecode.Unidecode(text)
	}
	text = strings.ReplaceAll(text, "&", " and ")
	text = strings.ReplaceAll(text, "'", "")

	var b strings.Builder
	b.Grow(len(text))
	space := true
	for _, r := range strings.ToLower(text) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			space = false
			continue
		}
		if !space {
			b.WriteByte(' ')
			space = true
		}
	}
	return strings.TrimSpace(b.String())
}

// Words splits folded text into tokens, keeping short tokens.
func Words(text string) []string {
	folded := Fold(text)
	if folded == "" {
		return nil
	}
	return strings.Split(folded, " ")
}

func stripMarks(text string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, text)
	if err != nil {
		return text
	}
	return out
}

func isASCII(text string) bool {
	for i := 0; i < len(text); i++ {
		if text[i] >= utf8RuneSelf {
			return false
		}
	}
	return true
}

const utf8RuneSelf = 0x80
