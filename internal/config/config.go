package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	LibraryDir  string `toml:"library_dir"`
	LogDir      string `toml:"log_dir"`
	StateDir    string `toml:"state_dir"`
	DownloadDir string `toml:"download_dir"`
}

// Indexer contains configuration for the Prowlarr/Newznab style search API.
type Indexer struct {
	BaseURL        string `toml:"base_url"`
	APIKey         string `toml:"api_key"`
	IndexerIDs     []int  `toml:"indexer_ids"`
	Categories     []int  `toml:"categories"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
	MinResults     int    `toml:"min_results"`
}

// QBittorrent contains configuration for the BitTorrent client Web API.
type QBittorrent struct {
	Enabled        bool   `toml:"enabled"`
	BaseURL        string `toml:"base_url"`
	Username       string `toml:"username"`
	Password       string `toml:"password"`
	Category       string `toml:"category"`
	SavePath       string `toml:"save_path"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// SABnzbd contains configuration for the Usenet client API.
type SABnzbd struct {
	Enabled        bool   `toml:"enabled"`
	BaseURL        string `toml:"base_url"`
	APIKey         string `toml:"api_key"`
	Category       string `toml:"category"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Slskd contains configuration for the peer-search network daemon.
type Slskd struct {
	Enabled              bool   `toml:"enabled"`
	BaseURL              string `toml:"base_url"`
	APIKey               string `toml:"api_key"`
	SearchTimeoutSeconds int    `toml:"search_timeout_seconds"`
	MinBitrate           int    `toml:"min_bitrate"`
	DownloadDir          string `toml:"download_dir"`
}

// Acquire contains the transport policy used when grabbing releases.
type Acquire struct {
	DiscographyEnabled  bool `toml:"discography_enabled"`
	AllowDirectDownload bool `toml:"allow_direct_download"`
	AllowSwarmClient    bool `toml:"allow_swarm_client"`
}

// Finalize contains timing for the background finalization worker.
type Finalize struct {
	ScanIntervalSeconds int     `toml:"scan_interval_seconds"`
	CooldownMinutes     int     `toml:"cooldown_minutes"`
	BatchSize           int     `toml:"batch_size"`
	CompletionThreshold float64 `toml:"completion_threshold"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	Finalized      bool   `toml:"finalized"`
	Errors         bool   `toml:"errors"`
}

// Daemon contains configuration for the background process status API.
type Daemon struct {
	APIBind  string `toml:"api_bind"`
	APIToken string `toml:"api_token"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Config encapsulates all configuration values for harvest.
//
// Configuration sections by subsystem:
//   - Paths: library, log, state, and download directories
//   - Indexer: release search API
//   - QBittorrent: magnet and torrent-file transfers
//   - SABnzbd: direct-download (NZB) transfers
//   - Slskd: peer-search network transfers
//   - Acquire: transport policy for release selection
//   - Finalize: finalization worker cadence and cooldown
//   - Notifications: ntfy push notification settings
//   - Daemon: loopback status API for the background process
//   - Logging: log format, level, and retention
type Config struct {
	Paths         Paths         `toml:"paths"`
	Indexer       Indexer       `toml:"indexer"`
	QBittorrent   QBittorrent   `toml:"qbittorrent"`
	SABnzbd       SABnzbd       `toml:"sabnzbd"`
	Slskd         Slskd         `toml:"slskd"`
	Acquire       Acquire       `toml:"acquire"`
	Finalize      Finalize      `toml:"finalize"`
	Notifications Notifications `toml:"notifications"`
	Daemon        Daemon        `toml:"daemon"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns harvest/config.toml under the XDG config home
// ($XDG_CONFIG_HOME, falling back to ~/.config).
func DefaultConfigPath() (string, error) {
	xdg.Reload()
	if strings.TrimSpace(xdg.ConfigHome) == "" {
		return "", errors.New("cannot determine the user config directory")
	}
	return filepath.Join(xdg.ConfigHome, "harvest", "config.toml"), nil
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	loadDotEnv(filepath.Dir(resolvedPath))

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

// loadDotEnv reads .env files beside the config and in the working directory.
// Variables already present in the environment win.
func loadDotEnv(configDir string) {
	candidates := []string{".env"}
	if configDir != "" && configDir != "." {
		candidates = append([]string{filepath.Join(configDir, ".env")}, candidates...)
	}
	for _, candidate := range candidates {
		if info, err := os.Stat(candidate); err != nil || info.IsDir() {
			continue
		}
		_ = godotenv.Load(candidate)
	}
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("harvest.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
// LibraryDir and DownloadDir are created on a best-effort basis so the daemon can run when
// external storage is temporarily unavailable.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.LogDir, c.Paths.StateDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	for _, dir := range []string{c.Paths.LibraryDir, c.Paths.DownloadDir} {
		if strings.TrimSpace(dir) != "" {
			_ = os.MkdirAll(dir, 0o755)
		}
	}
	return nil
}

// LibraryDBPath returns the sqlite database backing the library collaborator.
func (c *Config) LibraryDBPath() string {
	return filepath.Join(c.Paths.StateDir, "library.db")
}

// LockPath returns the daemon single-instance lock file.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.StateDir, "harvestd.lock")
}

// PIDPath returns the file the running daemon records its process id in.
func (c *Config) PIDPath() string {
	return filepath.Join(c.Paths.StateDir, "harvestd.pid")
}

// ScanInterval returns the delay between finalization scans.
func (c *Config) ScanInterval() time.Duration {
	return time.Duration(c.Finalize.ScanIntervalSeconds) * time.Second
}

// Cooldown returns the minimum delay between attempts on one release.
func (c *Config) Cooldown() time.Duration {
	return time.Duration(c.Finalize.CooldownMinutes) * time.Minute
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
