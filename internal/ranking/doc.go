// Package ranking filters and scores indexer candidates for a requested
// release.
//
// The filter rejects titles that look like video (episode markers, resolution
// and codec tags without any audio context) and titles that name a different
// artist or album, returning a short operator-facing reason. The scorer ranks
// candidates of one transport type by title semantics: artist and album
// agreement, token coverage, audio format hints, and penalties for unrelated
// works such as live recordings or tributes. File attributes like size never
// raise a score on their own.
package ranking
