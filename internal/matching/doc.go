// Package matching decides whether a free-form indexer title names a requested
// (artist, album) pair.
//
// Titles arrive in whatever shape the uploader chose: "Artist - Album (2019)
// [FLAC]", "[WEB] artist_album-2019", "Artist Discography 1990-2010". Matching
// works on folded word sequences from textutil: the artist must lead the
// title, either in full or as a short alias ("Zara" for "Zara Larsson"), and
// the words that follow must name the album within a small edit tolerance.
// All functions are pure.
package matching
