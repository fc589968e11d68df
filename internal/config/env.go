package config

import (
	"fmt"
	"strings"

	"github.com/kelseyhightower/envconfig"
)

// secretEnv lists credentials that may be supplied through the environment
// (or a .env file) instead of the config file.
type secretEnv struct {
	IndexerAPIKey       string `envconfig:"INDEXER_API_KEY"`
	ProwlarrAPIKey      string `envconfig:"PROWLARR_API_KEY"`
	QBittorrentPassword string `envconfig:"QBITTORRENT_PASSWORD"`
	SABnzbdAPIKey       string `envconfig:"SABNZBD_API_KEY"`
	SlskdAPIKey         string `envconfig:"SLSKD_API_KEY"`
	DaemonAPIToken      string `envconfig:"HARVEST_API_TOKEN"`
}

func readSecretEnv() (secretEnv, error) {
	var env secretEnv
	if err := envconfig.Process("", &env); err != nil {
		return secretEnv{}, fmt.Errorf("read environment: %w", err)
	}
	return env, nil
}

// applySecretEnv fills credentials left empty in the file. Values from the
// file always win.
func (c *Config) applySecretEnv(env secretEnv) {
	fill := func(dst *string, candidates ...string) {
		if strings.TrimSpace(*dst) != "" {
			return
		}
		for _, v := range candidates {
			if v = strings.TrimSpace(v); v != "" {
				*dst = v
				return
			}
		}
	}
	fill(&c.Indexer.APIKey, env.IndexerAPIKey, env.ProwlarrAPIKey)
	fill(&c.SABnzbd.APIKey, env.SABnzbdAPIKey)
	fill(&c.Slskd.APIKey, env.SlskdAPIKey)
	fill(&c.Daemon.APIToken, env.DaemonAPIToken)
	if c.QBittorrent.Password == "" {
		c.QBittorrent.Password = env.QBittorrentPassword
	}
}
