package config

const (
	defaultLibraryDir              = "~/music"
	defaultLogDir                  = "~/.local/share/harvest/logs"
	defaultStateDir                = "~/.local/share/harvest/state"
	defaultDownloadDir             = "~/.local/share/harvest/downloads"
	defaultLogRetentionDays        = 30
	defaultLogFormat               = "console"
	defaultLogLevel                = "info"
	defaultIndexerBaseURL          = "http://localhost:9696"
	defaultIndexerTimeout          = 30
	defaultIndexerMinResults       = 1
	defaultQBittorrentBaseURL      = "http://localhost:8080"
	defaultQBittorrentCategory     = "music"
	defaultSABnzbdBaseURL          = "http://localhost:8081"
	defaultSABnzbdCategory         = "music"
	defaultSlskdBaseURL            = "http://localhost:5030"
	defaultSlskdSearchTimeout      = 30
	defaultSlskdMinBitrate         = 192
	defaultTransportTimeout        = 20
	defaultScanIntervalSeconds     = 300
	defaultCooldownMinutes         = 30
	defaultBatchSize               = 25
	defaultCompletionThreshold     = 0.999
	defaultNotifyRequestTimeout    = 10
	defaultDaemonAPIBind           = "127.0.0.1:7488"
	defaultIndexerCategoryAudio    = 3000
	defaultIndexerCategoryMP3      = 3010
	defaultIndexerCategoryLossless = 3040
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			LibraryDir:  defaultLibraryDir,
			LogDir:      defaultLogDir,
			StateDir:    defaultStateDir,
			DownloadDir: defaultDownloadDir,
		},
		Indexer: Indexer{
			BaseURL:        defaultIndexerBaseURL,
			Categories:     defaultCategories(),
			TimeoutSeconds: defaultIndexerTimeout,
			MinResults:     defaultIndexerMinResults,
		},
		QBittorrent: QBittorrent{
			BaseURL:        defaultQBittorrentBaseURL,
			Category:       defaultQBittorrentCategory,
			TimeoutSeconds: defaultTransportTimeout,
		},
		SABnzbd: SABnzbd{
			BaseURL:        defaultSABnzbdBaseURL,
			Category:       defaultSABnzbdCategory,
			TimeoutSeconds: defaultTransportTimeout,
		},
		Slskd: Slskd{
			BaseURL:              defaultSlskdBaseURL,
			SearchTimeoutSeconds: defaultSlskdSearchTimeout,
			MinBitrate:           defaultSlskdMinBitrate,
		},
		Acquire: Acquire{
			AllowDirectDownload: true,
			AllowSwarmClient:    true,
		},
		Finalize: Finalize{
			ScanIntervalSeconds: defaultScanIntervalSeconds,
			CooldownMinutes:     defaultCooldownMinutes,
			BatchSize:           defaultBatchSize,
			CompletionThreshold: defaultCompletionThreshold,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyRequestTimeout,
			Finalized:      true,
			Errors:         true,
		},
		Daemon: Daemon{
			APIBind: defaultDaemonAPIBind,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}

func defaultCategories() []int {
	return []int{defaultIndexerCategoryAudio, defaultIndexerCategoryMP3, defaultIndexerCategoryLossless}
}
