package config

import (
	"fmt"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	env, err := readSecretEnv()
	if err != nil {
		return err
	}
	c.applySecretEnv(env)
	c.normalizeIndexer()
	c.normalizeQBittorrent()
	c.normalizeSABnzbd()
	if err := c.normalizeSlskd(); err != nil {
		return err
	}
	c.normalizeFinalize()
	c.normalizeNotifications()
	c.Daemon.APIBind = strings.TrimSpace(c.Daemon.APIBind)
	c.Daemon.APIToken = strings.TrimSpace(c.Daemon.APIToken)
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.LibraryDir) == "" {
		c.Paths.LibraryDir = defaultLibraryDir
	}
	if c.Paths.LibraryDir, err = expandPath(c.Paths.LibraryDir); err != nil {
		return fmt.Errorf("paths.library_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.DownloadDir) == "" {
		c.Paths.DownloadDir = defaultDownloadDir
	}
	if c.Paths.DownloadDir, err = expandPath(c.Paths.DownloadDir); err != nil {
		return fmt.Errorf("paths.download_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeIndexer() {
	c.Indexer.BaseURL = strings.TrimRight(strings.TrimSpace(c.Indexer.BaseURL), "/")
	if c.Indexer.BaseURL == "" {
		c.Indexer.BaseURL = defaultIndexerBaseURL
	}
	c.Indexer.APIKey = strings.TrimSpace(c.Indexer.APIKey)
	if len(c.Indexer.Categories) == 0 {
		c.Indexer.Categories = defaultCategories()
	}
	c.Indexer.IndexerIDs = dedupePositive(c.Indexer.IndexerIDs)
	c.Indexer.Categories = dedupePositive(c.Indexer.Categories)
	if c.Indexer.TimeoutSeconds <= 0 {
		c.Indexer.TimeoutSeconds = defaultIndexerTimeout
	}
	if c.Indexer.MinResults <= 0 {
		c.Indexer.MinResults = defaultIndexerMinResults
	}
}

func (c *Config) normalizeQBittorrent() {
	c.QBittorrent.BaseURL = strings.TrimRight(strings.TrimSpace(c.QBittorrent.BaseURL), "/")
	if c.QBittorrent.BaseURL == "" {
		c.QBittorrent.BaseURL = defaultQBittorrentBaseURL
	}
	c.QBittorrent.Username = strings.TrimSpace(c.QBittorrent.Username)
	c.QBittorrent.Category = strings.TrimSpace(c.QBittorrent.Category)
	c.QBittorrent.SavePath = strings.TrimSpace(c.QBittorrent.SavePath)
	if c.QBittorrent.TimeoutSeconds <= 0 {
		c.QBittorrent.TimeoutSeconds = defaultTransportTimeout
	}
}

func (c *Config) normalizeSABnzbd() {
	c.SABnzbd.BaseURL = strings.TrimRight(strings.TrimSpace(c.SABnzbd.BaseURL), "/")
	if c.SABnzbd.BaseURL == "" {
		c.SABnzbd.BaseURL = defaultSABnzbdBaseURL
	}
	c.SABnzbd.APIKey = strings.TrimSpace(c.SABnzbd.APIKey)
	c.SABnzbd.Category = strings.TrimSpace(c.SABnzbd.Category)
	if c.SABnzbd.TimeoutSeconds <= 0 {
		c.SABnzbd.TimeoutSeconds = defaultTransportTimeout
	}
}

func (c *Config) normalizeSlskd() error {
	c.Slskd.BaseURL = strings.TrimRight(strings.TrimSpace(c.Slskd.BaseURL), "/")
	if c.Slskd.BaseURL == "" {
		c.Slskd.BaseURL = defaultSlskdBaseURL
	}
	c.Slskd.APIKey = strings.TrimSpace(c.Slskd.APIKey)
	if c.Slskd.SearchTimeoutSeconds <= 0 {
		c.Slskd.SearchTimeoutSeconds = defaultSlskdSearchTimeout
	}
	if c.Slskd.MinBitrate < 0 {
		c.Slskd.MinBitrate = 0
	}
	if strings.TrimSpace(c.Slskd.DownloadDir) != "" {
		var err error
		if c.Slskd.DownloadDir, err = expandPath(c.Slskd.DownloadDir); err != nil {
			return fmt.Errorf("slskd.download_dir: %w", err)
		}
	}
	return nil
}

func (c *Config) normalizeFinalize() {
	if c.Finalize.ScanIntervalSeconds <= 0 {
		c.Finalize.ScanIntervalSeconds = defaultScanIntervalSeconds
	}
	if c.Finalize.CooldownMinutes < 0 {
		c.Finalize.CooldownMinutes = defaultCooldownMinutes
	}
	if c.Finalize.BatchSize <= 0 {
		c.Finalize.BatchSize = defaultBatchSize
	}
	if c.Finalize.CompletionThreshold <= 0 {
		c.Finalize.CompletionThreshold = defaultCompletionThreshold
	}
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultNotifyRequestTimeout
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.RetentionDays < 0 {
		c.Logging.RetentionDays = 0
	}
}

func dedupePositive(values []int) []int {
	if len(values) == 0 {
		return nil
	}
	out := make([]int, 0, len(values))
	seen := make(map[int]struct{}, len(values))
	for _, v := range values {
		if v <= 0 {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
