package library

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	"harvest/internal/services"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := OpenPath(filepath.Join(t.TempDir(), "library.db"))
	if err != nil {
		t.Fatalf("OpenPath: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestAddReleaseAndIncomplete(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	rel, err := store.AddRelease(ctx, NewRelease{
		Artist:      "Zara Larsson",
		Title:       "Introduction",
		Year:        2013,
		TrackTitles: []string{"Uncover", "She's Not Me", "Bad Boys"},
	})
	if err != nil {
		t.Fatalf("AddRelease: %v", err)
	}
	if rel.FolderName != "Introduction (2013)" || rel.TrackCount != 3 || rel.ArtistID == 0 {
		t.Fatalf("unexpected release %+v", rel)
	}
	if _, err := store.AddRelease(ctx, NewRelease{Artist: "zara larsson", Title: "Introduction", Year: 2013, TrackCount: 3}); !errors.Is(err, ErrReleaseExists) {
		t.Fatalf("expected ErrReleaseExists, got %v", err)
	}
	if _, err := store.AddRelease(ctx, NewRelease{Artist: "Zara Larsson", Title: "1", TrackCount: 2}); err != nil {
		t.Fatalf("AddRelease second: %v", err)
	}

	incomplete, err := store.GetIncompleteReleases(ctx, 1)
	if err != nil {
		t.Fatalf("GetIncompleteReleases: %v", err)
	}
	if len(incomplete) != 1 || incomplete[0].Missing != 3 || incomplete[0].Artist != "Zara Larsson" {
		t.Fatalf("unexpected incomplete %+v", incomplete)
	}
	all, err := store.GetIncompleteReleases(ctx, 0)
	if err != nil || len(all) != 2 {
		t.Fatalf("expected both releases, got %+v (%v)", all, err)
	}
}

func TestAddReleaseValidates(t *testing.T) {
	store := openTestStore(t)
	_, err := store.AddRelease(context.Background(), NewRelease{Artist: "A", Title: "B"})
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestMarkTracksAvailableByNumber(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)
	rel, err := store.AddRelease(ctx, NewRelease{Artist: "A", Title: "B", TrackCount: 3})
	if err != nil {
		t.Fatalf("AddRelease: %v", err)
	}

	marked, err := store.MarkTracksAvailable(ctx, rel.ArtistID, rel.FolderName, "/lib/A/B",
		[]string{"01 - One.flac", "03 - Three.flac", "cover.flac"})
	if err != nil {
		t.Fatalf("MarkTracksAvailable: %v", err)
	}
	if marked != 2 {
		t.Fatalf("expected 2 marked, got %d", marked)
	}
	tracks, err := store.GetTrackAudioAvailability(ctx, rel.ArtistID, rel.FolderName)
	if err != nil {
		t.Fatalf("GetTrackAudioAvailability: %v", err)
	}
	if !tracks[0].Available || tracks[1].Available || !tracks[2].Available {
		t.Fatalf("unexpected availability %+v", tracks)
	}
	if tracks[0].Path != filepath.Join("/lib/A/B", "01 - One.flac") {
		t.Fatalf("unexpected path %q", tracks[0].Path)
	}

	again, err := store.MarkTracksAvailable(ctx, rel.ArtistID, rel.FolderName, "/lib/A/B", []string{"01 - One.flac"})
	if err != nil || again != 0 {
		t.Fatalf("expected idempotent mark, got %d (%v)", again, err)
	}
}

func TestMarkTracksAvailableNestedPaths(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)
	rel, err := store.AddRelease(ctx, NewRelease{Artist: "A", Title: "B", TrackCount: 1})
	if err != nil {
		t.Fatalf("AddRelease: %v", err)
	}
	nested := filepath.Join("A - B [FLAC]", "01 - One.flac")
	if marked, err := store.MarkTracksAvailable(ctx, rel.ArtistID, rel.FolderName, "/lib/A/B", []string{nested}); err != nil || marked != 1 {
		t.Fatalf("expected 1 marked, got %d (%v)", marked, err)
	}
	tracks, err := store.GetTrackAudioAvailability(ctx, rel.ArtistID, rel.FolderName)
	if err != nil {
		t.Fatalf("GetTrackAudioAvailability: %v", err)
	}
	if want := filepath.Join("/lib/A/B", nested); tracks[0].Path != want {
		t.Fatalf("path = %q, want %q", tracks[0].Path, want)
	}
}

func TestMarkTracksAvailableInOrderWhenUnnumbered(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)
	rel, err := store.AddRelease(ctx, NewRelease{Artist: "A", Title: "B", TrackCount: 2})
	if err != nil {
		t.Fatalf("AddRelease: %v", err)
	}
	marked, err := store.MarkTracksAvailable(ctx, rel.ArtistID, rel.FolderName, "/lib", []string{"alpha.mp3", "beta.mp3"})
	if err != nil || marked != 2 {
		t.Fatalf("expected 2 marked, got %d (%v)", marked, err)
	}
	incomplete, err := store.GetIncompleteReleases(ctx, 0)
	if err != nil || len(incomplete) != 0 {
		t.Fatalf("expected release complete, got %+v (%v)", incomplete, err)
	}
}

func TestMarkTracksUnknownRelease(t *testing.T) {
	store := openTestStore(t)
	_, err := store.MarkTracksAvailable(context.Background(), 99, "missing", "/lib", []string{"01.mp3"})
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestFileTrackNumber(t *testing.T) {
	cases := map[string]int{
		"01 - One.flac":    1,
		"7. Seven.mp3":     7,
		"1-05 Five.flac":   5,
		"105 - Five.flac":  5,
		"Track.mp3":        0,
		"/x/12 Twelve.m4a": 12,
	}
	for name, want := range cases {
		if got := fileTrackNumber(name); got != want {
			t.Errorf("fileTrackNumber(%q) = %d, want %d", name, got, want)
		}
	}
}

func TestReopenKeepsSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "library.db")
	store, err := OpenPath(path)
	if err != nil {
		t.Fatalf("OpenPath: %v", err)
	}
	if _, err := store.AddRelease(context.Background(), NewRelease{Artist: "A", Title: "B", TrackCount: 1}); err != nil {
		t.Fatalf("AddRelease: %v", err)
	}
	_ = store.Close()

	reopened, err := OpenPath(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	releases, err := reopened.ListReleases(context.Background())
	if err != nil || len(releases) != 1 {
		t.Fatalf("expected persisted release, got %+v (%v)", releases, err)
	}
}

func TestOpenRejectsNewerSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "library.db")
	store, err := OpenPath(path)
	if err != nil {
		t.Fatalf("OpenPath: %v", err)
	}
	_ = store.Close()

	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("sql.Open: %v", err)
	}
	if _, err := db.Exec("PRAGMA user_version = 99"); err != nil {
		t.Fatalf("bump version: %v", err)
	}
	_ = db.Close()

	if _, err := OpenPath(path); !errors.Is(err, ErrSchemaMismatch) {
		t.Fatalf("expected ErrSchemaMismatch, got %v", err)
	}
}

func TestReleaseDir(t *testing.T) {
	got := ReleaseDir("/music", Release{Artist: "AC/DC", FolderName: "Back in Black (1980)"})
	want := filepath.Join("/music", "AC-DC", "Back in Black (1980)")
	if got != want {
		t.Fatalf("ReleaseDir = %q, want %q", got, want)
	}
}
