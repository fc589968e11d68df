package textutil

import "math"

// Fingerprint represents a term-frequency vector for text similarity comparison.
type Fingerprint struct {
	tokens map[string]float64
	norm   float64
}

// NewFingerprint creates a fingerprint from the provided text.
// Returns nil if the text produces no valid tokens.
func NewFingerprint(text string) *Fingerprint {
	tokens := Tokenize(text)
	if len(tokens) == 0 {
		return nil
	}
	counts := make(map[string]float64, len(tokens))
	for _, token := range tokens {
		counts[token]++
	}
	var norm float64
	for _, count := range counts {
		norm += count * count
	}
	return &Fingerprint{
		tokens: counts,
		norm:   math.Sqrt(norm),
	}
}

// Tokenize folds text and drops tokens shorter than two characters.
func Tokenize(text string) []string {
	words := Words(text)
	terms := make([]string, 0, len(words))
	for _, token := range words {
		if len(token) < 2 {
			continue
		}
		terms = append(terms, token)
	}
	return terms
}

// TokenCount returns the number of unique tokens in the fingerprint.
func (f *Fingerprint) TokenCount() int {
	if f == nil {
		return 0
	}
	return len(f.tokens)
}

// Coverage returns the fraction of f's distinct tokens that also appear in other.
func (f *Fingerprint) Coverage(other *Fingerprint) float64 {
	if f == nil || other == nil || len(f.tokens) == 0 {
		return 0
	}
	hits := 0
	for token := range f.tokens {
		if _, ok := other.tokens[token]; ok {
			hits++
		}
	}
	return float64(hits) / float64(len(f.tokens))
}
