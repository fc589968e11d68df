package preflight

import (
	"context"
	"net/url"
	"strings"

	"harvest/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// MinFreeBytes is the free space below which the download directory check fails.
const MinFreeBytes = 1 << 30

// RunAll executes all applicable preflight checks for the given config.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Library directory", cfg.Paths.LibraryDir),
		CheckDirectoryAccess("State directory", cfg.Paths.StateDir),
		CheckDirectoryAccess("Download directory", cfg.Paths.DownloadDir),
		CheckFreeSpace("Download free space", cfg.Paths.DownloadDir, MinFreeBytes),
	}

	if strings.TrimSpace(cfg.Indexer.BaseURL) != "" {
		results = append(results, CheckEndpoint(ctx, Endpoint{
			Name:   "Indexer",
			URL:    joinURL(cfg.Indexer.BaseURL, "/api/v1/system/status"),
			Header: "X-Api-Key",
			Secret: cfg.Indexer.APIKey,
		}))
	}
	if cfg.QBittorrent.Enabled {
		// The version endpoint answers 403 before login; reachability is enough here.
		results = append(results, CheckEndpoint(ctx, Endpoint{
			Name:          "qBittorrent",
			URL:           joinURL(cfg.QBittorrent.BaseURL, "/api/v2/app/version"),
			AllowDenied:   true,
			AllowNoSecret: true,
		}))
	}
	if cfg.SABnzbd.Enabled {
		results = append(results, CheckEndpoint(ctx, Endpoint{
			Name:   "SABnzbd",
			URL:    joinURL(cfg.SABnzbd.BaseURL, "/api") + "?" + url.Values{"mode": {"version"}, "output": {"json"}, "apikey": {cfg.SABnzbd.APIKey}}.Encode(),
			Secret: cfg.SABnzbd.APIKey,
		}))
	}
	if cfg.Slskd.Enabled {
		results = append(results, CheckEndpoint(ctx, Endpoint{
			Name:          "slskd",
			URL:           joinURL(cfg.Slskd.BaseURL, "/api/v0/application"),
			Header:        "X-API-Key",
			Secret:        cfg.Slskd.APIKey,
			AllowNoSecret: true,
		}))
	}
	return results
}

// Failed returns the results that did not pass.
func Failed(results []Result) []Result {
	var out []Result
	for _, r := range results {
		if !r.Passed {
			out = append(out, r)
		}
	}
	return out
}

func joinURL(base, path string) string {
	base = strings.TrimRight(strings.TrimSpace(base), "/")
	if base == "" {
		return ""
	}
	return base + path
}
