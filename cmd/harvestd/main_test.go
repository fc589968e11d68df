package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestRootCommandRejectsBadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "harvest.toml")
	if err := os.WriteFile(path, []byte("[logging]\nlevel = \"loud\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	cmd := newRootCommand()
	cmd.SetArgs([]string{"--config", path})
	if err := cmd.Execute(); err == nil {
		t.Fatal("expected invalid log level to fail")
	}
}

func TestRootCommandRunsUntilCancelled(t *testing.T) {
	base := t.TempDir()
	t.Setenv("HOME", base)
	path := filepath.Join(base, "harvest.toml")
	content := "[paths]\n" +
		"library_dir = \"" + filepath.Join(base, "library") + "\"\n" +
		"log_dir = \"" + filepath.Join(base, "logs") + "\"\n" +
		"state_dir = \"" + filepath.Join(base, "state") + "\"\n" +
		"download_dir = \"" + filepath.Join(base, "downloads") + "\"\n" +
		"[daemon]\napi_bind = \"\"\n[logging]\nlevel = \"error\"\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	cmd := newRootCommand()
	cmd.SetArgs([]string{"--config", path})
	if err := cmd.ExecuteContext(ctx); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if _, err := os.Stat(filepath.Join(base, "state", "library.db")); err != nil {
		t.Fatalf("expected library database: %v", err)
	}
}
