package daemonrun

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"harvest/internal/acquire"
	"harvest/internal/config"
	"harvest/internal/daemon"
	"harvest/internal/finalize"
	"harvest/internal/indexer"
	"harvest/internal/library"
	"harvest/internal/logging"
	"harvest/internal/notifications"
	"harvest/internal/transport"
	"harvest/internal/transport/qbittorrent"
	"harvest/internal/transport/sabnzbd"
	"harvest/internal/transport/slskd"
)

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel    string
	Development bool
}

// Run starts the harvest daemon and blocks until SIGINT/SIGTERM or ctx ends.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return fmt.Errorf("ensure directories: %w", err)
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	runID := time.Now().UTC().Format("20060102T150405.000Z")
	logPath := filepath.Join(cfg.Paths.LogDir, fmt.Sprintf("harvestd-%s.log", runID))
	level := opts.LogLevel
	if strings.TrimSpace(level) == "" {
		level = cfg.Logging.Level
	}
	logger, err := logging.New(logging.Options{
		Level:       level,
		Format:      cfg.Logging.Format,
		OutputPaths: []string{"stdout", logPath},
		Development: opts.Development,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	logServiceSnapshot(logger, cfg)
	if err := ensureCurrentLogPointer(cfg.Paths.LogDir, logPath); err != nil {
		fmt.Fprintf(os.Stderr, "warn: unable to update harvestd.log link: %v\n", err)
	}
	logging.CleanupOldLogs(logger, cfg.Logging.RetentionDays,
		logging.RetentionTarget{Dir: cfg.Paths.LogDir, Pattern: "harvestd-*.log", Exclude: []string{logPath}},
		logging.RetentionTarget{Dir: cfg.Paths.LogDir, Pattern: "harvest-*.log"},
	)

	store, err := library.Open(cfg)
	if err != nil {
		logger.Error("open library store", logging.Error(err))
		return err
	}

	notifier := notifications.NewService(cfg)
	sources, err := Sources(cfg, logger)
	if err != nil {
		_ = store.Close()
		return err
	}
	if len(sources) == 0 {
		logging.WarnWithContext(logger, "no transfer clients enabled", "no_transfer_sources",
			logging.String(logging.FieldErrorHint, "enable qbittorrent, sabnzbd, or slskd in the config"),
			logging.String(logging.FieldImpact, "finalization scans will find no transfers"),
		)
	}
	worker := finalize.New(cfg, store, sources,
		finalize.WithLogger(logger),
		finalize.WithNotifier(notifier),
	)

	d, err := daemon.New(cfg, store, worker, logger)
	if err != nil {
		_ = store.Close()
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	if err := d.Start(signalCtx); err != nil {
		return err
	}
	pidPath := cfg.PIDPath()
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	<-signalCtx.Done()
	logger.Info("harvest daemon shutting down")
	return nil
}

// Sources builds the transfer clients enabled in configuration, in
// qBittorrent, SABnzbd, slskd order.
func Sources(cfg *config.Config, logger *slog.Logger) ([]transport.Source, error) {
	var sources []transport.Source
	if cfg.QBittorrent.Enabled {
		client, err := qbittorrent.New(cfg.QBittorrent, qbittorrent.WithLogger(logger))
		if err != nil {
			return nil, err
		}
		sources = append(sources, client)
	}
	if cfg.SABnzbd.Enabled {
		client, err := sabnzbd.New(cfg.SABnzbd, sabnzbd.WithLogger(logger))
		if err != nil {
			return nil, err
		}
		sources = append(sources, client)
	}
	if cfg.Slskd.Enabled {
		client, err := slskd.New(cfg.Slskd, slskd.WithLogger(logger))
		if err != nil {
			return nil, err
		}
		sources = append(sources, client)
	}
	return sources, nil
}

// Acquirer builds the acquisition service with the downloaders enabled in
// configuration. A disabled downloader leaves its transports unavailable.
func Acquirer(cfg *config.Config, logger *slog.Logger, notifier notifications.Service) (*acquire.Service, error) {
	searcher, err := indexer.New(cfg.Indexer, indexer.WithLogger(logger))
	if err != nil {
		return nil, err
	}
	opts := []acquire.Option{acquire.WithLogger(logger), acquire.WithNotifier(notifier)}
	if cfg.SABnzbd.Enabled {
		client, err := sabnzbd.New(cfg.SABnzbd, sabnzbd.WithLogger(logger))
		if err != nil {
			return nil, err
		}
		opts = append(opts, acquire.WithDirectDownloader(client))
	}
	if cfg.QBittorrent.Enabled {
		client, err := qbittorrent.New(cfg.QBittorrent, qbittorrent.WithLogger(logger))
		if err != nil {
			return nil, err
		}
		opts = append(opts, acquire.WithSwarmClient(client))
	}
	return acquire.NewService(cfg, searcher, opts...), nil
}

func ensureCurrentLogPointer(logDir, target string) error {
	if logDir == "" || target == "" {
		return nil
	}
	current := filepath.Join(logDir, "harvestd.log")
	if err := os.Remove(current); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove existing log pointer: %w", err)
	}
	if err := os.Symlink(target, current); err == nil {
		return nil
	}
	if err := os.Link(target, current); err != nil {
		return fmt.Errorf("link log pointer: %w", err)
	}
	return nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}

func logServiceSnapshot(logger *slog.Logger, cfg *config.Config) {
	if logger == nil || cfg == nil {
		return
	}
	logger.Info("service snapshot",
		logging.String(logging.FieldEventType, "service_snapshot"),
		logging.Bool("indexer_key_present", strings.TrimSpace(cfg.Indexer.APIKey) != ""),
		logging.Bool("qbittorrent_enabled", cfg.QBittorrent.Enabled),
		logging.Bool("sabnzbd_enabled", cfg.SABnzbd.Enabled),
		logging.Bool("slskd_enabled", cfg.Slskd.Enabled),
		logging.Bool("ntfy_enabled", strings.TrimSpace(cfg.Notifications.NtfyTopic) != ""),
		logging.String("api_bind", cfg.Daemon.APIBind),
		logging.Duration("scan_interval", cfg.ScanInterval()),
	)
}
