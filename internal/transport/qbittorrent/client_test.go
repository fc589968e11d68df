package qbittorrent

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"harvest/internal/config"
	"harvest/internal/services"
)

const testMagnet = "magnet:?xt=urn:btih:0123456789abcdef0123456789abcdef01234567&dn=Zara+Larsson+-+Introduction"

type fakeServer struct {
	logins   atomic.Int32
	validSID string
	added    []string
	savePath string
	category string
	moved    string
}

func (f *fakeServer) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v2/auth/login", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse login form: %v", err)
		}
		if r.PostForm.Get("username") != "admin" || r.PostForm.Get("password") != "secret" {
			_, _ = w.Write([]byte("Fails."))
			return
		}
		f.logins.Add(1)
		http.SetCookie(w, &http.Cookie{Name: "SID", Value: f.validSID})
		_, _ = w.Write([]byte("Ok."))
	})
	authed := func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie("SID")
			if err != nil || cookie.Value != f.validSID {
				w.WriteHeader(http.StatusForbidden)
				return
			}
			next(w, r)
		}
	}
	mux.HandleFunc("/api/v2/torrents/add", authed(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse add form: %v", err)
		}
		f.added = append(f.added, r.PostForm.Get("urls"))
		f.savePath = r.PostForm.Get("savepath")
		f.category = r.PostForm.Get("category")
		_, _ = w.Write([]byte("Ok."))
	}))
	mux.HandleFunc("/api/v2/torrents/info", authed(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("category") != "music" {
			t.Errorf("expected category filter, got %q", r.URL.RawQuery)
		}
		_, _ = w.Write([]byte(`[
			{"hash":"abc","name":"Zara Larsson - Introduction","progress":0.7,"content_path":"/dl/Zara Larsson - Introduction","save_path":"/dl","state":"downloading"},
			{"hash":"def","name":"Other","progress":1,"content_path":"/dl/Other","save_path":"/dl","state":"uploading"}
		]`))
	}))
	mux.HandleFunc("/api/v2/torrents/setLocation", authed(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse setLocation form: %v", err)
		}
		f.moved = r.PostForm.Get("hashes") + "->" + r.PostForm.Get("location")
	}))
	return mux
}

func newTestClient(t *testing.T, f *fakeServer) *Client {
	t.Helper()
	server := httptest.NewServer(f.handler(t))
	t.Cleanup(server.Close)
	client, err := New(config.QBittorrent{
		BaseURL:  server.URL,
		Username: "admin",
		Password: "secret",
		Category: "music",
		SavePath: "/downloads/music",
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return client
}

func TestAddMagnetLogsInOnce(t *testing.T) {
	f := &fakeServer{validSID: "sid-1"}
	client := newTestClient(t, f)

	if err := client.AddMagnet(context.Background(), testMagnet, ""); err != nil {
		t.Fatalf("AddMagnet: %v", err)
	}
	if err := client.AddMagnet(context.Background(), testMagnet, "/custom"); err != nil {
		t.Fatalf("AddMagnet: %v", err)
	}
	if f.logins.Load() != 1 {
		t.Fatalf("expected a single login, got %d", f.logins.Load())
	}
	if len(f.added) != 2 || f.added[0] != testMagnet {
		t.Fatalf("unexpected submissions %v", f.added)
	}
	if f.savePath != "/custom" || f.category != "music" {
		t.Fatalf("unexpected save path %q category %q", f.savePath, f.category)
	}
}

func TestAddMagnetRejectsInvalidURI(t *testing.T) {
	client := newTestClient(t, &fakeServer{validSID: "sid"})
	err := client.AddMagnet(context.Background(), "magnet:?dn=missing-hash", "")
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestSessionReacquiredOnForbidden(t *testing.T) {
	f := &fakeServer{validSID: "fresh"}
	client := newTestClient(t, f)
	client.session.Set("stale")

	if err := client.AddByURL(context.Background(), "https://tracker.example/a.torrent", ""); err != nil {
		t.Fatalf("AddByURL: %v", err)
	}
	if f.logins.Load() != 1 {
		t.Fatalf("expected re-login after 403, got %d logins", f.logins.Load())
	}
	if client.session.SID() != "fresh" {
		t.Fatalf("session not refreshed: %q", client.session.SID())
	}
	if f.savePath != "/downloads/music" {
		t.Fatalf("expected default save path, got %q", f.savePath)
	}
}

func TestAddByURLRejectsNonHTTP(t *testing.T) {
	client := newTestClient(t, &fakeServer{validSID: "sid"})
	if err := client.AddByURL(context.Background(), "ftp://x/a.torrent", ""); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestLoginFailure(t *testing.T) {
	f := &fakeServer{validSID: "sid"}
	client := newTestClient(t, f)
	client.password = "wrong"
	if _, err := client.ListTransfers(context.Background()); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestListTransfersAndRelocate(t *testing.T) {
	f := &fakeServer{validSID: "sid"}
	client := newTestClient(t, f)

	transfers, err := client.ListTransfers(context.Background())
	if err != nil {
		t.Fatalf("ListTransfers: %v", err)
	}
	if len(transfers) != 2 {
		t.Fatalf("expected 2 transfers, got %d", len(transfers))
	}
	first := transfers[0]
	if first.Handle != "abc" || first.Progress != 0.7 || first.ContentPath != "/dl/Zara Larsson - Introduction" || first.SavePath != "/dl" {
		t.Fatalf("unexpected transfer %+v", first)
	}

	if err := client.Relocate(context.Background(), "def", "/music/Other"); err != nil {
		t.Fatalf("Relocate: %v", err)
	}
	if f.moved != "def->/music/Other" {
		t.Fatalf("unexpected relocation %q", f.moved)
	}
	if err := client.Relocate(context.Background(), "", "/x"); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestNewRequiresBaseURL(t *testing.T) {
	if _, err := New(config.QBittorrent{}); err == nil {
		t.Fatal("expected error without base url")
	}
}
