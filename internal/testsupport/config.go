package testsupport

import (
	"path/filepath"
	"testing"

	"harvest/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// External services are pointed at unroutable defaults and disabled.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.LibraryDir = filepath.Join(base, "library")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.StateDir = filepath.Join(base, "state")
	cfgVal.Paths.DownloadDir = filepath.Join(base, "downloads")
	cfgVal.Indexer.APIKey = "test"
	cfgVal.QBittorrent.Enabled = false
	cfgVal.SABnzbd.Enabled = false
	cfgVal.Slskd.Enabled = false
	cfgVal.Notifications.NtfyTopic = ""

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}
	for _, opt := range opts {
		opt(builder)
	}
	return builder.cfg
}

// WithIndexer points the indexer at baseURL.
func WithIndexer(baseURL string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Indexer.BaseURL = baseURL
	}
}

// WithCooldown sets the finalization cooldown in minutes.
func WithCooldown(minutes int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Finalize.CooldownMinutes = minutes
	}
}

// WithEnsuredDirectories creates the configured directories up front.
func WithEnsuredDirectories() ConfigOption {
	return func(b *configBuilder) {
		if err := b.cfg.EnsureDirectories(); err != nil {
			b.t.Fatalf("ensure directories: %v", err)
		}
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.StateDir)
}
