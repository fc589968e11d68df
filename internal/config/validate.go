package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := validateURL("indexer.base_url", c.Indexer.BaseURL); err != nil {
		return err
	}
	if c.QBittorrent.Enabled {
		if err := validateURL("qbittorrent.base_url", c.QBittorrent.BaseURL); err != nil {
			return err
		}
	}
	if c.SABnzbd.Enabled {
		if err := validateURL("sabnzbd.base_url", c.SABnzbd.BaseURL); err != nil {
			return err
		}
		if c.SABnzbd.APIKey == "" {
			return errors.New("sabnzbd.api_key: required when sabnzbd is enabled (or set SABNZBD_API_KEY)")
		}
	}
	if c.Slskd.Enabled {
		if err := validateURL("slskd.base_url", c.Slskd.BaseURL); err != nil {
			return err
		}
	}
	if err := c.validateFinalize(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.LibraryDir) == "" {
		return errors.New("paths.library_dir: must be set")
	}
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		return errors.New("paths.state_dir: must be set")
	}
	return nil
}

func (c *Config) validateFinalize() error {
	if c.Finalize.CompletionThreshold > 1 {
		return fmt.Errorf("finalize.completion_threshold: must be <= 1, got %v", c.Finalize.CompletionThreshold)
	}
	if c.Finalize.BatchSize > 1000 {
		return fmt.Errorf("finalize.batch_size: must be <= 1000, got %d", c.Finalize.BatchSize)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
		return nil
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
}

func validateURL(key, value string) error {
	parsed, err := url.Parse(value)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("%s: scheme must be http or https, got %q", key, value)
	}
	if parsed.Host == "" {
		return fmt.Errorf("%s: missing host in %q", key, value)
	}
	return nil
}
