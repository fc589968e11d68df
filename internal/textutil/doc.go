// Package textutil provides the text primitives the matcher, scorer, and queue
// builder share: folding titles into comparable token streams, edit distance,
// token fingerprints with cosine similarity, and filename sanitization.
//
// Folding lowercases, strips diacritics, transliterates non-Latin scripts to
// ASCII, turns "&" into "and", and collapses every run of punctuation or
// whitespace into a single space. Every comparison in the acquisition pipeline
// goes through Fold so "Björk - Homogenic [FLAC]" and "bjork homogenic flac"
// compare equal.
package textutil
