package finalize

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"harvest/internal/config"
	"harvest/internal/fileutil"
	"harvest/internal/library"
	"harvest/internal/logging"
	"harvest/internal/notifications"
	"harvest/internal/services"
	"harvest/internal/transport"
)

// Library is the library surface the worker reads and updates.
type Library interface {
	GetIncompleteReleases(ctx context.Context, limit int) ([]library.Release, error)
	MarkTracksAvailable(ctx context.Context, artistID int64, folder, dir string, files []string) (int, error)
}

type attemptKey struct {
	artistID int64
	folder   string
}

// Worker runs finalization scans.
type Worker struct {
	library    Library
	sources    []transport.Source
	libraryDir string
	batchSize  int
	cooldown   time.Duration
	threshold  float64
	interval   time.Duration
	notifier   notifications.Service
	logger     *slog.Logger
	now        func() time.Time

	scanMu sync.Mutex

	mu       sync.Mutex
	attempts map[attemptKey]time.Time
	last     *Report
}

// Option configures a Worker.
type Option func(*Worker)

// WithLogger attaches a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(w *Worker) { w.logger = logging.NewComponentLogger(logger, "finalize") }
}

// WithNotifier attaches a notifier.
func WithNotifier(n notifications.Service) Option {
	return func(w *Worker) {
		if n != nil {
			w.notifier = n
		}
	}
}

// WithClock overrides the time source used for cooldown bookkeeping.
func WithClock(now func() time.Time) Option {
	return func(w *Worker) {
		if now != nil {
			w.now = now
		}
	}
}

// New builds a worker over lib and the given transfer clients.
func New(cfg *config.Config, lib Library, sources []transport.Source, opts ...Option) *Worker {
	w := &Worker{
		library:    lib,
		sources:    sources,
		libraryDir: cfg.Paths.LibraryDir,
		batchSize:  cfg.Finalize.BatchSize,
		cooldown:   cfg.Cooldown(),
		threshold:  cfg.Finalize.CompletionThreshold,
		interval:   cfg.ScanInterval(),
		notifier:   notifications.Noop(),
		logger:     logging.NewComponentLogger(nil, "finalize"),
		now:        time.Now,
		attempts:   make(map[attemptKey]time.Time),
	}
	if w.threshold <= 0 || w.threshold > 1 {
		w.threshold = 0.999
	}
	if w.interval <= 0 {
		w.interval = 5 * time.Minute
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// claim stamps the attempt for key unless the previous one is inside the
// cooldown window.
func (w *Worker) claim(key attemptKey) bool {
	now := w.now()
	w.mu.Lock()
	defer w.mu.Unlock()
	if last, ok := w.attempts[key]; ok && now.Sub(last) < w.cooldown {
		return false
	}
	w.attempts[key] = now
	return true
}

// LastReport returns the most recent completed scan.
func (w *Worker) LastReport() (Report, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.last == nil {
		return Report{}, false
	}
	return *w.last, true
}

// Run scans immediately and then on every interval until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	w.logger.Info("finalization worker started",
		logging.Duration("interval", w.interval),
		logging.Duration("cooldown", w.cooldown),
		logging.Int("sources", len(w.sources)),
	)
	for {
		if _, err := w.ScanOnce(ctx); err != nil && ctx.Err() == nil {
			logging.WarnWithContext(w.logger, "finalization scan failed", "scan_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check library database access"),
				logging.String(logging.FieldImpact, "scan retried next interval"),
			)
			_ = w.notifier.NotifyError(ctx, err, "finalization scan")
		}
		select {
		case <-ctx.Done():
			w.logger.Info("finalization worker stopped")
			return nil
		case <-ticker.C:
		}
	}
}

// ScanOnce performs one finalization pass. Releases are handled one at a
// time; cancellation stops the pass before the next release.
func (w *Worker) ScanOnce(ctx context.Context) (Report, error) {
	w.scanMu.Lock()
	defer w.scanMu.Unlock()

	ctx = services.WithRequestID(ctx, uuid.NewString())
	logger := logging.WithContext(ctx, w.logger)
	report := Report{Started: w.now()}

	releases, err := w.library.GetIncompleteReleases(ctx, w.batchSize)
	if err != nil {
		return report, services.Wrap(services.ErrTransient, "finalize", "load releases", "", err)
	}

	transfers := newTransferCache(w.sources, logger)
	for _, rel := range releases {
		if err := ctx.Err(); err != nil {
			report.Finished = w.now()
			return report, err
		}
		result := w.finalizeRelease(ctx, rel, transfers)
		report.Results = append(report.Results, result)
	}
	report.Finished = w.now()

	w.mu.Lock()
	w.last = &report
	w.mu.Unlock()

	counts := report.Counts()
	logger.Info("finalization scan complete",
		logging.Int("releases", len(releases)),
		logging.Int("finalized", report.Finalized()),
		logging.Int("cooldown", counts[OutcomeCooldown]),
		logging.Int("no_match", counts[OutcomeNoMatch]),
		logging.Int("incomplete", counts[OutcomeIncomplete]),
		logging.Int("no_files", counts[OutcomeNoFiles]),
		logging.Int("already_present", counts[OutcomeAlreadyPresent]),
	)
	_ = w.notifier.NotifyScanCompleted(ctx, report.Finalized(), len(releases)-report.Finalized(), report.Finished.Sub(report.Started))
	return report, nil
}

func (w *Worker) finalizeRelease(ctx context.Context, rel library.Release, transfers *transferCache) ReleaseResult {
	ctx = services.WithReleaseKey(ctx, rel.Key())
	logger := logging.WithContext(ctx, w.logger)
	result := ReleaseResult{Release: rel}

	if !w.claim(attemptKey{artistID: rel.ArtistID, folder: rel.FolderName}) {
		result.Outcome = OutcomeCooldown
		logger.Debug("release in cooldown", logging.String("reason", "attempted within cooldown window"))
		return result
	}

	match, source, found := transfers.find(ctx, rel, w.threshold)
	if !found {
		result.Outcome = OutcomeNoMatch
		logger.Info("finalization skipped", logging.String("reason", "no matching transfer"))
		return result
	}
	result.Source = source.Name()
	result.Progress = match.Progress
	if match.Progress < w.threshold {
		result.Outcome = OutcomeIncomplete
		logger.Info("finalization skipped",
			logging.String("reason", "transfer incomplete"),
			logging.String("source", source.Name()),
			logging.Float64("progress", match.Progress),
		)
		return result
	}

	target := library.ReleaseDir(w.libraryDir, rel)
	if within(target, match.ContentPath) || within(target, match.SavePath) {
		result.Outcome = OutcomeRelocated
		result.Files = audioIn(target)
		w.complete(ctx, logger, &result, target)
		return result
	}
	for _, src := range []string{match.ContentPath, match.SavePath} {
		copied, err := fileutil.CopyAudio(src, target)
		if err != nil {
			result.Err = err
			logging.WarnWithContext(logger, "audio copy failed", "copy_failed",
				logging.String("source_path", src),
				logging.Error(err),
				logging.String(logging.FieldImpact, "trying next source path"),
			)
		}
		files := append(copied.Copied, copied.Skipped...)
		if len(copied.Copied) > 0 || len(copied.Skipped) > 0 {
			result.Outcome = OutcomeCopied
			if len(copied.Copied) == 0 {
				result.Outcome = OutcomeAlreadyPresent
			}
			result.Files = files
			w.complete(ctx, logger, &result, target)
			return result
		}
	}

	if err := source.Relocate(ctx, match.Handle, target); err != nil {
		result.Outcome = OutcomeNoFiles
		result.Err = err
		logger.Info("finalization skipped",
			logging.String("reason", "no audio files and relocate failed"),
			logging.String("source", source.Name()),
			logging.String("error_kind", services.Kind(err)),
			logging.Error(err),
		)
		return result
	}
	result.Outcome = OutcomeRelocated
	result.Err = nil
	result.Files = audioIn(target)
	w.complete(ctx, logger, &result, target)
	return result
}

func (w *Worker) complete(ctx context.Context, logger *slog.Logger, result *ReleaseResult, target string) {
	rel := result.Release
	marked, err := w.library.MarkTracksAvailable(ctx, rel.ArtistID, rel.FolderName, target, result.Files)
	if err != nil {
		result.Err = err
		logging.WarnWithContext(logger, "marking tracks available failed", "library_update_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "release stays listed as missing until the next scan"),
		)
	}
	logger.Info("release finalized",
		logging.String("outcome", result.Outcome.String()),
		logging.String("source", result.Source),
		logging.String("target", target),
		logging.Int("files", len(result.Files)),
		logging.Int("tracks_marked", marked),
		logging.String(logging.FieldEventType, "release_finalized"),
	)
	if result.Outcome.Finalized() && len(result.Files) > 0 {
		_ = w.notifier.NotifyReleaseFinalized(ctx, rel.Artist, rel.Title, len(result.Files))
	}
}

// audioIn lists audio under dir, relative to dir. A client relocation nests
// the transfer's own folder below dir and may still be moving files.
func audioIn(dir string) []string {
	var names []string
	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.Type().IsRegular() && fileutil.IsAudioFile(d.Name()) {
			if rel, err := filepath.Rel(dir, path); err == nil {
				names = append(names, rel)
			}
		}
		return nil
	})
	sort.Strings(names)
	return names
}

// within reports whether path lies inside dir.
func within(dir, path string) bool {
	if strings.TrimSpace(path) == "" {
		return false
	}
	rel, err := filepath.Rel(filepath.Clean(dir), filepath.Clean(path))
	return err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// transferCache lists each source at most once per scan.
type transferCache struct {
	sources []transport.Source
	logger  *slog.Logger
	listed  map[int][]transport.Transfer
}

func newTransferCache(sources []transport.Source, logger *slog.Logger) *transferCache {
	return &transferCache{sources: sources, logger: logger, listed: map[int][]transport.Transfer{}}
}

func (c *transferCache) list(ctx context.Context, i int) []transport.Transfer {
	if transfers, ok := c.listed[i]; ok {
		return transfers
	}
	transfers, err := c.sources[i].ListTransfers(ctx)
	if err != nil {
		logging.WarnWithContext(c.logger, "listing transfers failed", "list_transfers_failed",
			logging.String("source", c.sources[i].Name()),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, fmt.Sprintf("check %s connectivity", c.sources[i].Name())),
			logging.String(logging.FieldImpact, "source ignored for this scan"),
		)
		if ctx.Err() != nil {
			return nil
		}
	}
	c.listed[i] = transfers
	return transfers
}

// find returns the first complete matching transfer across sources, or the
// first incomplete one when none is complete.
func (c *transferCache) find(ctx context.Context, rel library.Release, threshold float64) (transport.Transfer, transport.Source, bool) {
	var (
		fallback       transport.Transfer
		fallbackSource transport.Source
		found          bool
	)
	for i, source := range c.sources {
		match, ok := transport.MatchRelease(c.list(ctx, i), rel.Artist, rel.Title)
		if !ok {
			continue
		}
		if match.Progress >= threshold {
			return match, source, true
		}
		if !found {
			fallback, fallbackSource, found = match, source, true
		}
	}
	return fallback, fallbackSource, found
}
