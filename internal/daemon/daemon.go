package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"
	"golang.org/x/sync/errgroup"

	"harvest/internal/config"
	"harvest/internal/finalize"
	"harvest/internal/library"
	"harvest/internal/logging"
)

// Daemon runs the finalization worker and enforces single-instance execution.
type Daemon struct {
	cfg    *config.Config
	logger *slog.Logger
	store  *library.Store
	worker *finalize.Worker
	api    *apiServer

	lockPath string
	lock     *flock.Flock

	running   atomic.Bool
	mu        sync.Mutex
	cancel    context.CancelFunc
	group     *errgroup.Group
	startedAt time.Time
}

// ScanSummary condenses a finalization report for status output.
type ScanSummary struct {
	Started   time.Time      `json:"started"`
	Finished  time.Time      `json:"finished"`
	Releases  int            `json:"releases"`
	Finalized int            `json:"finalized"`
	Outcomes  map[string]int `json:"outcomes"`
}

// Summarize converts a finalization report.
func Summarize(report finalize.Report) ScanSummary {
	outcomes := make(map[string]int)
	for outcome, n := range report.Counts() {
		outcomes[outcome.String()] = n
	}
	return ScanSummary{
		Started:   report.Started,
		Finished:  report.Finished,
		Releases:  len(report.Results),
		Finalized: report.Finalized(),
		Outcomes:  outcomes,
	}
}

// Status represents daemon runtime information.
type Status struct {
	Running       bool         `json:"running"`
	PID           int          `json:"pid"`
	StartedAt     time.Time    `json:"started_at"`
	LockFilePath  string       `json:"lock_file"`
	LibraryDBPath string       `json:"library_db"`
	Missing       int          `json:"missing_releases"`
	LastScan      *ScanSummary `json:"last_scan,omitempty"`
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, store *library.Store, worker *finalize.Worker, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || store == nil || worker == nil {
		return nil, errors.New("daemon requires config, library store, and finalize worker")
	}
	d := &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		store:    store,
		worker:   worker,
		lockPath: cfg.LockPath(),
		lock:     flock.New(cfg.LockPath()),
	}
	d.api = newAPIServer(cfg, d, logging.NewComponentLogger(logger, "api-server"))
	return d, nil
}

// Start acquires the daemon lock and launches the worker and status API.
func (d *Daemon) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another harvest daemon instance is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	if err := d.api.start(runCtx); err != nil {
		cancel()
		_ = d.lock.Unlock()
		return err
	}
	group, groupCtx := errgroup.WithContext(runCtx)
	group.Go(func() error { return d.worker.Run(groupCtx) })

	d.cancel = cancel
	d.group = group
	d.startedAt = time.Now()
	d.running.Store(true)
	d.logger.Info("harvest daemon started",
		logging.String("lock", d.lockPath),
		logging.String("library_db", d.store.Path()),
	)
	return nil
}

// Wait blocks until the background goroutines exit.
func (d *Daemon) Wait() error {
	d.mu.Lock()
	group := d.group
	d.mu.Unlock()
	if group == nil {
		return nil
	}
	return group.Wait()
}

// Stop stops background processing and releases the daemon lock.
func (d *Daemon) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.running.Load() {
		return
	}
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	if d.group != nil {
		if err := d.group.Wait(); err != nil {
			d.logger.Warn("worker exited with error", logging.Error(err))
		}
		d.group = nil
	}
	d.api.stop()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("harvest daemon stopped")
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// ScanNow runs one finalization scan outside the regular interval.
func (d *Daemon) ScanNow(ctx context.Context) (finalize.Report, error) {
	return d.worker.ScanOnce(ctx)
}

// Missing lists releases still lacking audio.
func (d *Daemon) Missing(ctx context.Context) ([]library.Release, error) {
	return d.store.GetIncompleteReleases(ctx, 0)
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) Status {
	status := Status{
		Running:       d.running.Load(),
		PID:           os.Getpid(),
		LockFilePath:  d.lockPath,
		LibraryDBPath: d.store.Path(),
	}
	d.mu.Lock()
	if status.Running {
		status.StartedAt = d.startedAt
	}
	d.mu.Unlock()
	if missing, err := d.store.GetIncompleteReleases(ctx, 0); err == nil {
		status.Missing = len(missing)
	} else {
		d.logger.Debug("status: count missing releases failed", logging.Error(err))
	}
	if report, ok := d.worker.LastReport(); ok {
		summary := Summarize(report)
		status.LastScan = &summary
	}
	return status
}
