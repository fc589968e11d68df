// Package library persists the releases harvest is expected to own and the
// per-track availability of their audio.
//
// The Store is backed by SQLite. A release is incomplete while any of its
// tracks lacks audio; the finalization worker reads that set, copies finished
// transfers into ReleaseDir, and then marks the copied tracks available.
//
// Schema changes bump schemaVersion in schema.go; an older database is
// rejected with ErrSchemaMismatch rather than migrated in place.
package library
