// Package qbittorrent drives the qBittorrent Web API for magnet and
// torrent-file transfers.
//
// Authentication state lives in an explicit Session holding the SID cookie.
// The session is acquired lazily and re-acquired once when the API answers
// 403, so callers treat the client as a stateless request/response surface.
package qbittorrent
