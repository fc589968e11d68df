package textutil

import (
	"strings"

	"github.com/agnivade/levenshtein"
)

// CosineSimilarity computes the cosine similarity between two fingerprints.
// Returns 0 if either fingerprint is nil or has zero norm.
func CosineSimilarity(a, b *Fingerprint) float64 {
	if a == nil || b == nil || a.norm == 0 || b.norm == 0 {
		return 0
	}
	var dot float64
	for token, count := range a.tokens {
		if other, ok := b.tokens[token]; ok {
			dot += count * other
		}
	}
	if dot == 0 {
		return 0
	}
	return dot / (a.norm * b.norm)
}

// EditDistance returns the Levenshtein distance between a and b.
func EditDistance(a, b string) int {
	return levenshtein.ComputeDistance(a, b)
}

// NearlyEqual reports whether two folded strings are the same modulo a small
// number of edits. Strings shorter than four characters must match exactly;
// longer ones tolerate one edit per four characters of the longer string.
func NearlyEqual(a, b string) bool {
	if a == b {
		return true
	}
	shorter, longer := len(a), len(b)
	if shorter > longer {
		shorter, longer = longer, shorter
	}
	if shorter < 4 {
		return false
	}
	budget := longer / 4
	if budget < 1 {
		budget = 1
	}
	if longer-shorter > budget {
		return false
	}
	return EditDistance(a, b) <= budget
}

// ContainsEither reports whether either folded string contains the other.
// Fragments shorter than four characters only count as exact matches.
func ContainsEither(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	if a == b {
		return true
	}
	if len(a) >= 4 && strings.Contains(b, a) {
		return true
	}
	return len(b) >= 4 && strings.Contains(a, b)
}
