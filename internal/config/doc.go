// Package config loads, normalizes, and validates harvest configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, loads an optional .env file, and honours
// environment fallbacks for transport credentials such as INDEXER_API_KEY and
// QBITTORRENT_PASSWORD. The Config type centralizes every knob the daemon and
// CLI need so the library, indexer, and transport clients are discovered in one
// pass.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
