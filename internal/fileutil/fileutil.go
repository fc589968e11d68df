// Package fileutil holds the filesystem primitives used when materializing
// finished transfers into the library.
package fileutil

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/sys/unix"
)

// AudioExtensions lists the extensions copied into the library.
var AudioExtensions = []string{".mp3", ".flac", ".m4a", ".wav", ".ogg"}

// IsAudioFile reports whether name carries an accepted audio extension.
func IsAudioFile(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, candidate := range AudioExtensions {
		if ext == candidate {
			return true
		}
	}
	return false
}

// EnsureDir creates dir and its parents. Existing directories are fine.
func EnsureDir(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	return nil
}

// CopyFile streams src to dst using io.Copy with default permissions (0o644).
// An existing dst is never replaced; fs.ErrExist is returned instead.
func CopyFile(src, dst string) error {
	return CopyFileMode(src, dst, 0o644)
}

// CopyFileMode streams src to dst, setting the given file mode on a newly
// created dst. A partially written dst is removed on failure.
func CopyFileMode(src, dst string, mode os.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_EXCL, mode)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		_ = os.Remove(dst)
		return err
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(dst)
		return err
	}
	return nil
}

// CopyResult reports what CopyAudio did.
type CopyResult struct {
	Copied  []string
	Skipped []string
}

// CopyAudio copies every audio file found under src (a file or a directory
// tree) flat into dstDir. Files already present at the destination are
// skipped, never overwritten. A missing src yields an empty result.
func CopyAudio(src, dstDir string) (CopyResult, error) {
	var result CopyResult
	sources, err := audioFiles(src)
	if err != nil || len(sources) == 0 {
		return result, err
	}
	if err := EnsureDir(dstDir); err != nil {
		return result, err
	}
	for _, path := range sources {
		name := filepath.Base(path)
		dst := filepath.Join(dstDir, name)
		if _, err := os.Lstat(dst); err == nil {
			result.Skipped = append(result.Skipped, name)
			continue
		}
		if err := CopyFile(path, dst); err != nil {
			if errors.Is(err, fs.ErrExist) {
				result.Skipped = append(result.Skipped, name)
				continue
			}
			return result, fmt.Errorf("copy %s: %w", name, err)
		}
		result.Copied = append(result.Copied, name)
	}
	return result, nil
}

func audioFiles(src string) ([]string, error) {
	src = strings.TrimSpace(src)
	if src == "" {
		return nil, nil
	}
	info, err := os.Stat(src)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		if IsAudioFile(src) {
			return []string{src}, nil
		}
		return nil, nil
	}
	var files []string
	err = filepath.WalkDir(src, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.Type().IsRegular() && IsAudioFile(d.Name()) {
			files = append(files, path)
		}
		return nil
	})
	sort.Strings(files)
	return files, err
}

// FreeBytes returns the space available to unprivileged users on the
// filesystem holding path.
func FreeBytes(path string) (uint64, error) {
	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil {
		return 0, fmt.Errorf("statfs %s: %w", path, err)
	}
	return stat.Bavail * uint64(stat.Bsize), nil
}
