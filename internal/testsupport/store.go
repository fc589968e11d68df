package testsupport

import (
	"context"
	"testing"

	"harvest/internal/config"
	"harvest/internal/library"
)

// MustOpenLibrary opens a library.Store for tests and registers cleanup.
func MustOpenLibrary(t testing.TB, cfg *config.Config) *library.Store {
	t.Helper()

	store, err := library.Open(cfg)
	if err != nil {
		t.Fatalf("library.Open: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})
	return store
}

// AddRelease registers a release with numbered placeholder tracks.
func AddRelease(t testing.TB, store *library.Store, artist, title string, year, tracks int) library.Release {
	t.Helper()

	rel, err := store.AddRelease(context.Background(), library.NewRelease{
		Artist:     artist,
		Title:      title,
		Year:       year,
		TrackCount: tracks,
	})
	if err != nil {
		t.Fatalf("store.AddRelease: %v", err)
	}
	return rel
}
