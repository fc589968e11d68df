package fileutil

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestCopyFile(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.txt")
	dst := filepath.Join(dir, "dst.txt")
	writeFile(t, src, "hello world")

	if err := CopyFile(src, dst); err != nil {
		t.Fatal(err)
	}
	got, err := os.ReadFile(dst)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "hello world" {
		t.Fatalf("content mismatch: got %q", got)
	}
}

func TestCopyFileNeverOverwrites(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.flac")
	dst := filepath.Join(dir, "dst.flac")
	writeFile(t, src, "new")
	writeFile(t, dst, "original")

	if err := CopyFile(src, dst); !errors.Is(err, fs.ErrExist) {
		t.Fatalf("expected ErrExist, got %v", err)
	}
	got, _ := os.ReadFile(dst)
	if string(got) != "original" {
		t.Fatalf("destination was modified: %q", got)
	}
}

func TestCopyAudioFlattensAndSkipsExisting(t *testing.T) {
	src := t.TempDir()
	dst := filepath.Join(t.TempDir(), "Artist", "Album")
	writeFile(t, filepath.Join(src, "CD1", "01 - One.flac"), "one")
	writeFile(t, filepath.Join(src, "CD1", "02 - Two.mp3"), "two")
	writeFile(t, filepath.Join(src, "cover.jpg"), "img")
	writeFile(t, filepath.Join(src, "info.nfo"), "nfo")
	writeFile(t, filepath.Join(dst, "02 - Two.mp3"), "kept")

	result, err := CopyAudio(src, dst)
	if err != nil {
		t.Fatalf("CopyAudio: %v", err)
	}
	if len(result.Copied) != 1 || result.Copied[0] != "01 - One.flac" {
		t.Fatalf("unexpected copied %v", result.Copied)
	}
	if len(result.Skipped) != 1 || result.Skipped[0] != "02 - Two.mp3" {
		t.Fatalf("unexpected skipped %v", result.Skipped)
	}
	kept, _ := os.ReadFile(filepath.Join(dst, "02 - Two.mp3"))
	if string(kept) != "kept" {
		t.Fatalf("existing file overwritten: %q", kept)
	}
	if _, err := os.Stat(filepath.Join(dst, "cover.jpg")); !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("non-audio file copied: %v", err)
	}
}

func TestCopyAudioSingleFileSource(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "track.ogg")
	writeFile(t, src, "x")
	result, err := CopyAudio(src, filepath.Join(dir, "out"))
	if err != nil {
		t.Fatalf("CopyAudio: %v", err)
	}
	if len(result.Copied) != 1 {
		t.Fatalf("expected one copied file, got %+v", result)
	}
}

func TestCopyAudioMissingSource(t *testing.T) {
	dst := filepath.Join(t.TempDir(), "out")
	result, err := CopyAudio(filepath.Join(t.TempDir(), "missing"), dst)
	if err != nil {
		t.Fatalf("CopyAudio: %v", err)
	}
	if len(result.Copied) != 0 {
		t.Fatalf("expected nothing copied, got %+v", result)
	}
	if _, err := os.Stat(dst); !errors.Is(err, fs.ErrNotExist) {
		t.Fatal("destination should not be created when nothing is copied")
	}
}

func TestEnsureDirIdempotent(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "a", "b")
	for range 2 {
		if err := EnsureDir(dir); err != nil {
			t.Fatalf("EnsureDir: %v", err)
		}
	}
}

func TestIsAudioFile(t *testing.T) {
	cases := map[string]bool{
		"a.MP3":  true,
		"a.flac": true,
		"a.m4a":  true,
		"a.wav":  true,
		"a.ogg":  true,
		"a.jpg":  false,
		"a":      false,
		"a.cue":  false,
	}
	for name, want := range cases {
		if got := IsAudioFile(name); got != want {
			t.Errorf("IsAudioFile(%q) = %v, want %v", name, got, want)
		}
	}
}

func TestFreeBytes(t *testing.T) {
	free, err := FreeBytes(t.TempDir())
	if err != nil {
		t.Fatalf("FreeBytes: %v", err)
	}
	if free == 0 {
		t.Skip("temp filesystem reports no free space")
	}
}
