// Package transport defines the contracts shared by the transfer clients
// (qBittorrent, SABnzbd, slskd) and the helpers the finalization worker uses
// to reconcile their reported transfers with library releases.
package transport

import (
	"context"
	"strings"
)

// Transfer is one in-flight or completed transfer as reported by a client.
type Transfer struct {
	Name        string
	Progress    float64
	ContentPath string
	SavePath    string
	Handle      string
	State       string
}

// Lister reports a client's transfers.
type Lister interface {
	ListTransfers(ctx context.Context) ([]Transfer, error)
}

// Relocator moves a transfer's storage to a new directory.
type Relocator interface {
	Relocate(ctx context.Context, handle, targetDir string) error
}

// Source is a named transfer client the finalization worker can reconcile.
type Source interface {
	Lister
	Relocator
	Name() string
}

// MatchRelease returns the first transfer whose name contains both the
// artist name and the release title, compared case-insensitively.
func MatchRelease(transfers []Transfer, artist, title string) (Transfer, bool) {
	artist = strings.ToLower(strings.TrimSpace(artist))
	title = strings.ToLower(strings.TrimSpace(title))
	if artist == "" || title == "" {
		return Transfer{}, false
	}
	for _, transfer := range transfers {
		name := strings.ToLower(transfer.Name)
		if strings.Contains(name, artist) && strings.Contains(name, title) {
			return transfer, true
		}
	}
	return Transfer{}, false
}
