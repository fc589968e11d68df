package daemon_test

import (
	"context"
	"testing"

	"harvest/internal/config"
	"harvest/internal/daemon"
	"harvest/internal/finalize"
	"harvest/internal/testsupport"
)

func newDaemon(t *testing.T, cfg *config.Config) *daemon.Daemon {
	t.Helper()
	store := testsupport.MustOpenLibrary(t, cfg)
	worker := finalize.New(cfg, store, nil)
	d, err := daemon.New(cfg, store, worker, nil)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	return d
}

func TestDaemonStartStop(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Daemon.APIBind = ""
	d := newDaemon(t, cfg)
	t.Cleanup(func() { d.Stop() })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	status := d.Status(ctx)
	if !status.Running || status.LockFilePath != cfg.LockPath() {
		t.Fatalf("unexpected status %+v", status)
	}
	if err := d.Start(ctx); err == nil {
		t.Fatal("expected second start to fail")
	}

	d.Stop()
	if d.Status(ctx).Running {
		t.Fatal("expected daemon to be stopped")
	}
}

func TestDaemonLockPreventsSecondInstance(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Daemon.APIBind = ""
	first := newDaemon(t, cfg)
	second := newDaemon(t, cfg)
	t.Cleanup(func() {
		first.Stop()
		second.Stop()
	})

	ctx := context.Background()
	if err := first.Start(ctx); err != nil {
		t.Fatalf("first Start: %v", err)
	}
	if err := second.Start(ctx); err == nil {
		t.Fatal("expected lock contention error")
	}
	first.Stop()
	if err := second.Start(ctx); err != nil {
		t.Fatalf("second Start after release: %v", err)
	}
}

func TestDaemonScanNowUpdatesStatus(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Daemon.APIBind = ""
	d := newDaemon(t, cfg)
	ctx := context.Background()

	if _, err := d.ScanNow(ctx); err != nil {
		t.Fatalf("ScanNow: %v", err)
	}
	status := d.Status(ctx)
	if status.LastScan == nil {
		t.Fatal("expected last scan summary")
	}
	if status.Missing != 0 {
		t.Fatalf("expected no missing releases, got %d", status.Missing)
	}
}
