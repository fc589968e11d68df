package finalize

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"harvest/internal/config"
	"harvest/internal/library"
	"harvest/internal/transport"
)

type fakeLibrary struct {
	releases []library.Release
	marked   map[string][]string
	dirs     map[string]string
}

func (f *fakeLibrary) GetIncompleteReleases(_ context.Context, limit int) ([]library.Release, error) {
	if limit > 0 && limit < len(f.releases) {
		return f.releases[:limit], nil
	}
	return f.releases, nil
}

func (f *fakeLibrary) MarkTracksAvailable(_ context.Context, artistID int64, folder, dir string, files []string) (int, error) {
	if f.marked == nil {
		f.marked = map[string][]string{}
		f.dirs = map[string]string{}
	}
	key := library.Release{ArtistID: artistID, FolderName: folder}.Key()
	f.marked[key] = files
	f.dirs[key] = dir
	return len(files), nil
}

type fakeSource struct {
	name        string
	transfers   []transport.Transfer
	listCalls   int
	relocateErr error
	relocated   string
	onRelocate  func(target string)
}

func (f *fakeSource) Name() string { return f.name }

func (f *fakeSource) ListTransfers(context.Context) ([]transport.Transfer, error) {
	f.listCalls++
	return f.transfers, nil
}

func (f *fakeSource) Relocate(_ context.Context, handle, target string) error {
	if f.relocateErr != nil {
		return f.relocateErr
	}
	f.relocated = handle + "->" + target
	if f.onRelocate != nil {
		f.onRelocate(target)
	}
	return nil
}

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

var zara = library.Release{ID: 1, ArtistID: 7, Artist: "Zara Larsson", FolderName: "Introduction (2013)", Title: "Introduction", TrackCount: 2, Missing: 2}

func newTestWorker(t *testing.T, lib Library, sources ...transport.Source) (*Worker, *clock, string) {
	t.Helper()
	cfg := config.Default()
	cfg.Paths.LibraryDir = t.TempDir()
	cfg.Finalize.CooldownMinutes = 30
	cfg.Finalize.BatchSize = 10
	cfg.Finalize.CompletionThreshold = 0.999
	clk := &clock{t: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
	return New(&cfg, lib, sources, WithClock(clk.now)), clk, cfg.Paths.LibraryDir
}

func writeAudio(t *testing.T, dir string, names ...string) {
	t.Helper()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	for _, name := range names {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(name), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

func TestScanOnceHonoursCooldown(t *testing.T) {
	lib := &fakeLibrary{releases: []library.Release{zara}}
	source := &fakeSource{name: "qbittorrent"}
	worker, clk, _ := newTestWorker(t, lib, source)
	ctx := context.Background()

	first, err := worker.ScanOnce(ctx)
	if err != nil {
		t.Fatalf("ScanOnce: %v", err)
	}
	if first.Results[0].Outcome != OutcomeNoMatch {
		t.Fatalf("expected no match, got %s", first.Results[0].Outcome)
	}

	clk.t = clk.t.Add(10 * time.Minute)
	second, err := worker.ScanOnce(ctx)
	if err != nil {
		t.Fatalf("ScanOnce: %v", err)
	}
	if second.Results[0].Outcome != OutcomeCooldown {
		t.Fatalf("expected cooldown, got %s", second.Results[0].Outcome)
	}
	if source.listCalls != 1 {
		t.Fatalf("cooldown scan must not query the client, got %d list calls", source.listCalls)
	}

	clk.t = clk.t.Add(25 * time.Minute)
	third, err := worker.ScanOnce(ctx)
	if err != nil {
		t.Fatalf("ScanOnce: %v", err)
	}
	if third.Results[0].Outcome != OutcomeNoMatch || source.listCalls != 2 {
		t.Fatalf("expected a fresh attempt after cooldown, got %s with %d list calls", third.Results[0].Outcome, source.listCalls)
	}
}

func TestScanOnceSkipsIncompleteTransfer(t *testing.T) {
	content := filepath.Join(t.TempDir(), "Zara Larsson - Introduction")
	writeAudio(t, content, "01 - Uncover.flac")
	lib := &fakeLibrary{releases: []library.Release{zara}}
	source := &fakeSource{name: "qbittorrent", transfers: []transport.Transfer{
		{Name: "Zara Larsson - Introduction (2013) [FLAC]", Progress: 0.7, ContentPath: content, Handle: "abc"},
	}}
	worker, _, libraryDir := newTestWorker(t, lib, source)

	report, err := worker.ScanOnce(context.Background())
	if err != nil {
		t.Fatalf("ScanOnce: %v", err)
	}
	if got := report.Results[0]; got.Outcome != OutcomeIncomplete || got.Progress != 0.7 {
		t.Fatalf("expected incomplete, got %+v", got)
	}
	if _, err := os.Stat(library.ReleaseDir(libraryDir, zara)); !os.IsNotExist(err) {
		t.Fatal("incomplete transfer must not be copied")
	}
}

func TestScanOnceCopiesCompleteTransfer(t *testing.T) {
	content := filepath.Join(t.TempDir(), "Zara Larsson - Introduction")
	writeAudio(t, content, "01 - Uncover.flac", "02 - She's Not Me.flac", "cover.jpg")
	lib := &fakeLibrary{releases: []library.Release{zara}}
	source := &fakeSource{name: "qbittorrent", transfers: []transport.Transfer{
		{Name: "zara larsson - introduction", Progress: 0.9995, ContentPath: content, Handle: "abc"},
	}}
	worker, _, libraryDir := newTestWorker(t, lib, source)

	report, err := worker.ScanOnce(context.Background())
	if err != nil {
		t.Fatalf("ScanOnce: %v", err)
	}
	got := report.Results[0]
	if got.Outcome != OutcomeCopied || len(got.Files) != 2 {
		t.Fatalf("expected 2 copied files, got %+v", got)
	}
	target := library.ReleaseDir(libraryDir, zara)
	if _, err := os.Stat(filepath.Join(target, "01 - Uncover.flac")); err != nil {
		t.Fatalf("expected copied file: %v", err)
	}
	if lib.dirs[zara.Key()] != target || len(lib.marked[zara.Key()]) != 2 {
		t.Fatalf("library not updated: %+v", lib.marked)
	}
	if source.relocated != "" {
		t.Fatal("relocate must not run after a successful copy")
	}
	if report.Finalized() != 1 {
		t.Fatalf("expected one finalized release, got %d", report.Finalized())
	}
	if last, ok := worker.LastReport(); !ok || last.Finalized() != 1 {
		t.Fatal("expected last report to be recorded")
	}
}

func TestScanOnceFallsBackToSavePath(t *testing.T) {
	save := t.TempDir()
	writeAudio(t, save, "01 - Uncover.mp3")
	lib := &fakeLibrary{releases: []library.Release{zara}}
	source := &fakeSource{name: "sabnzbd", transfers: []transport.Transfer{
		{Name: "Zara Larsson - Introduction", Progress: 1, ContentPath: filepath.Join(save, "missing"), SavePath: save},
	}}
	worker, _, _ := newTestWorker(t, lib, source)

	report, err := worker.ScanOnce(context.Background())
	if err != nil {
		t.Fatalf("ScanOnce: %v", err)
	}
	if got := report.Results[0]; got.Outcome != OutcomeCopied || got.Source != "sabnzbd" {
		t.Fatalf("expected copy from save path, got %+v", got)
	}
}

func TestScanOnceRelocatesAsLastResort(t *testing.T) {
	lib := &fakeLibrary{releases: []library.Release{zara}}
	source := &fakeSource{name: "qbittorrent", transfers: []transport.Transfer{
		{Name: "Zara Larsson - Introduction", Progress: 1, ContentPath: "/nonexistent/a", SavePath: "/nonexistent", Handle: "abc"},
	}}
	source.onRelocate = func(target string) {
		writeAudio(t, filepath.Join(target, "Zara Larsson - Introduction"), "01 - Uncover.flac", "cover.jpg")
	}
	worker, _, libraryDir := newTestWorker(t, lib, source)

	report, err := worker.ScanOnce(context.Background())
	if err != nil {
		t.Fatalf("ScanOnce: %v", err)
	}
	got := report.Results[0]
	if got.Outcome != OutcomeRelocated {
		t.Fatalf("expected relocation, got %+v", got)
	}
	if source.relocated != "abc->"+library.ReleaseDir(libraryDir, zara) {
		t.Fatalf("unexpected relocate call %q", source.relocated)
	}
	want := filepath.Join("Zara Larsson - Introduction", "01 - Uncover.flac")
	if files := lib.marked[zara.Key()]; len(files) != 1 || files[0] != want {
		t.Fatalf("expected nested relocated file to be marked, got %+v", lib.marked)
	}
}

func TestScanOnceRecognisesEarlierRelocation(t *testing.T) {
	lib := &fakeLibrary{releases: []library.Release{zara}}
	worker, _, libraryDir := newTestWorker(t, lib)
	target := library.ReleaseDir(libraryDir, zara)
	moved := filepath.Join(target, "Zara Larsson - Introduction")
	writeAudio(t, moved, "01 - Uncover.flac", "02 - She's Not Me.flac")
	source := &fakeSource{name: "qbittorrent", transfers: []transport.Transfer{
		{Name: "Zara Larsson - Introduction", Progress: 1, ContentPath: moved, SavePath: target, Handle: "abc"},
	}}
	worker.sources = []transport.Source{source}

	report, err := worker.ScanOnce(context.Background())
	if err != nil {
		t.Fatalf("ScanOnce: %v", err)
	}
	got := report.Results[0]
	if got.Outcome != OutcomeRelocated || len(got.Files) != 2 {
		t.Fatalf("expected relocated files to be recognised, got %+v", got)
	}
	if source.relocated != "" {
		t.Fatal("relocate must not run twice")
	}
	if _, err := os.Stat(filepath.Join(target, "01 - Uncover.flac")); !os.IsNotExist(err) {
		t.Fatalf("relocated files must not be copied flat again: %v", err)
	}
}

func TestScanOnceReportsAlreadyPresentFiles(t *testing.T) {
	content := filepath.Join(t.TempDir(), "Zara Larsson - Introduction")
	writeAudio(t, content, "01 - Uncover.flac", "02 - She's Not Me.flac")
	lib := &fakeLibrary{releases: []library.Release{zara}}
	source := &fakeSource{name: "sabnzbd", transfers: []transport.Transfer{
		{Name: "Zara Larsson - Introduction", Progress: 1, ContentPath: content},
	}}
	worker, _, libraryDir := newTestWorker(t, lib, source)
	writeAudio(t, library.ReleaseDir(libraryDir, zara), "01 - Uncover.flac", "02 - She's Not Me.flac")

	report, err := worker.ScanOnce(context.Background())
	if err != nil {
		t.Fatalf("ScanOnce: %v", err)
	}
	got := report.Results[0]
	if got.Outcome != OutcomeAlreadyPresent || got.Outcome.String() != "already_present" {
		t.Fatalf("expected already_present, got %+v", got)
	}
	if report.Finalized() != 0 {
		t.Fatalf("nothing was copied, finalized = %d", report.Finalized())
	}
	if len(lib.marked[zara.Key()]) != 2 {
		t.Fatalf("present files should still be marked, got %+v", lib.marked)
	}
}

func TestScanOnceRelocateFailureIsSkip(t *testing.T) {
	lib := &fakeLibrary{releases: []library.Release{zara}}
	source := &fakeSource{name: "slskd", relocateErr: errors.New("not supported"), transfers: []transport.Transfer{
		{Name: "Zara Larsson - Introduction", Progress: 1},
	}}
	worker, _, _ := newTestWorker(t, lib, source)

	report, err := worker.ScanOnce(context.Background())
	if err != nil {
		t.Fatalf("ScanOnce must not fail on a per-release skip: %v", err)
	}
	if got := report.Results[0]; got.Outcome != OutcomeNoFiles || got.Err == nil {
		t.Fatalf("expected no-files outcome with error, got %+v", got)
	}
	if len(lib.marked) != 0 {
		t.Fatal("nothing should be marked available")
	}
}

func TestScanOncePrefersCompleteTransferAcrossSources(t *testing.T) {
	content := t.TempDir()
	writeAudio(t, content, "01.flac")
	lib := &fakeLibrary{releases: []library.Release{zara}}
	slow := &fakeSource{name: "qbittorrent", transfers: []transport.Transfer{{Name: "Zara Larsson - Introduction", Progress: 0.4}}}
	done := &fakeSource{name: "sabnzbd", transfers: []transport.Transfer{{Name: "Zara Larsson - Introduction", Progress: 1, ContentPath: content}}}
	worker, _, _ := newTestWorker(t, lib, slow, done)

	report, err := worker.ScanOnce(context.Background())
	if err != nil {
		t.Fatalf("ScanOnce: %v", err)
	}
	if got := report.Results[0]; got.Outcome != OutcomeCopied || got.Source != "sabnzbd" {
		t.Fatalf("expected complete transfer from sabnzbd, got %+v", got)
	}
}

func TestScanOnceStopsOnCancel(t *testing.T) {
	lib := &fakeLibrary{releases: []library.Release{zara, {ArtistID: 8, Artist: "B", FolderName: "C", Title: "C"}}}
	worker, _, _ := newTestWorker(t, lib, &fakeSource{name: "x"})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := worker.ScanOnce(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
	if len(report.Results) != 0 {
		t.Fatalf("expected no releases processed, got %d", len(report.Results))
	}
}

func TestRunStopsWhenContextDone(t *testing.T) {
	lib := &fakeLibrary{}
	worker, _, _ := newTestWorker(t, lib)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- worker.Run(ctx) }()
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}
