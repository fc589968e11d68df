package slskd

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"harvest/internal/config"
	"harvest/internal/queuebuild"
	"harvest/internal/services"
)

func newTestClient(t *testing.T, handler http.Handler, cfg config.Slskd) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	cfg.BaseURL = server.URL
	cfg.APIKey = "key"
	client, err := New(cfg, WithPollInterval(5*time.Millisecond))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return client
}

func TestSearchPollsUntilComplete(t *testing.T) {
	var polls atomic.Int32
	var searchID string
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v0/searches", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-API-Key") != "key" {
			t.Errorf("missing api key header")
		}
		var req searchRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode search: %v", err)
		}
		if req.SearchText != "Zara Larsson Introduction" || req.ID == "" {
			t.Errorf("unexpected search request %+v", req)
		}
		searchID = req.ID
		_, _ = w.Write([]byte(`{"id":"` + req.ID + `","state":"InProgress","isComplete":false}`))
	})
	mux.HandleFunc("GET /api/v0/searches/{id}", func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("id") != searchID {
			t.Errorf("polled unknown search %q", r.PathValue("id"))
		}
		complete := polls.Add(1) >= 3
		if complete {
			_, _ = w.Write([]byte(`{"state":"Completed","isComplete":true}`))
			return
		}
		_, _ = w.Write([]byte(`{"state":"InProgress","isComplete":false}`))
	})
	mux.HandleFunc("GET /api/v0/searches/{id}/responses", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`[
			{"username":"peer1","files":[
				{"filename":"@@music\\Zara Larsson\\Introduction\\01 - Uncover.mp3","size":8000000,"bitRate":320,"extension":"mp3"},
				{"filename":"","size":1}
			]},
			{"username":"peer2","files":[
				{"filename":"share/Zara Larsson/Introduction/01 Uncover.flac","size":30000000,"bitRate":0,"extension":"flac"}
			]}
		]`))
	})

	client := newTestClient(t, mux, config.Slskd{SearchTimeoutSeconds: 5})
	entries, err := client.Search(context.Background(), "Zara Larsson Introduction")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if polls.Load() < 3 {
		t.Fatalf("expected polling until complete, got %d polls", polls.Load())
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %+v", entries)
	}
	first := entries[0]
	if first.Owner != "peer1" || first.Bitrate != 320 || first.Extension != "mp3" || first.SizeBytes != 8000000 {
		t.Fatalf("unexpected first entry %+v", first)
	}
	if entries[1].Owner != "peer2" {
		t.Fatalf("unexpected second entry %+v", entries[1])
	}
}

func TestSearchTimeoutReturnsPartialResponses(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v0/searches", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"isComplete":false}`))
	})
	mux.HandleFunc("GET /api/v0/searches/{id}", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"isComplete":false}`))
	})
	mux.HandleFunc("GET /api/v0/searches/{id}/responses", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`[{"username":"peer","files":[{"filename":"a/b/01.mp3","bitRate":256}]}]`))
	})
	client := newTestClient(t, mux, config.Slskd{SearchTimeoutSeconds: 1})
	client.searchTimeout = 30 * time.Millisecond

	entries, err := client.Search(context.Background(), "a b")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected partial responses, got %+v", entries)
	}
}

func TestSearchRejectsEmptyQuery(t *testing.T) {
	client := newTestClient(t, http.NotFoundHandler(), config.Slskd{})
	_, err := client.Search(context.Background(), "  ")
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestSearchMapsAuthFailure(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}), config.Slskd{})
	_, err := client.Search(context.Background(), "query")
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestEnqueueGroupsByOwnerInOrder(t *testing.T) {
	var mu sync.Mutex
	var calls []string
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v0/transfers/downloads/{user}", func(w http.ResponseWriter, r *http.Request) {
		var files []enqueueFile
		if err := json.NewDecoder(r.Body).Decode(&files); err != nil {
			t.Errorf("decode enqueue: %v", err)
		}
		names := make([]string, 0, len(files))
		for _, f := range files {
			names = append(names, f.Filename)
		}
		mu.Lock()
		calls = append(calls, r.PathValue("user")+"="+strings.Join(names, ","))
		mu.Unlock()
		w.WriteHeader(http.StatusCreated)
	})
	client := newTestClient(t, mux, config.Slskd{})

	items := []queuebuild.QueueItem{
		{Owner: "b", RemoteFileName: "b1"},
		{Owner: "a", RemoteFileName: "a1"},
		{Owner: "b", RemoteFileName: "b2"},
	}
	if err := client.Enqueue(context.Background(), items); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	want := []string{"b=b1,b2", "a=a1"}
	if len(calls) != len(want) {
		t.Fatalf("expected %v, got %v", want, calls)
	}
	for i := range want {
		if calls[i] != want[i] {
			t.Fatalf("call %d: expected %q, got %q", i, want[i], calls[i])
		}
	}
}

func TestListTransfersGroupsByFolder(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v0/transfers/downloads", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `[
			{"username":"peer","directories":[
				{"directory":"@@music\\Zara Larsson\\Introduction","files":[
					{"filename":"01.mp3","state":"Completed, Succeeded","percentComplete":100},
					{"filename":"02.mp3","state":"InProgress","percentComplete":50}
				]},
				{"directory":"@@music\\Empty","files":[]}
			]}
		]`)
	})
	client := newTestClient(t, mux, config.Slskd{DownloadDir: "/srv/slskd"})

	transfers, err := client.ListTransfers(context.Background())
	if err != nil {
		t.Fatalf("ListTransfers: %v", err)
	}
	if len(transfers) != 1 {
		t.Fatalf("expected one transfer, got %+v", transfers)
	}
	got := transfers[0]
	if got.Name != "Zara Larsson - Introduction" {
		t.Fatalf("unexpected name %q", got.Name)
	}
	if got.Progress != 0.75 {
		t.Fatalf("expected progress 0.75, got %v", got.Progress)
	}
	if got.ContentPath != filepath.Join("/srv/slskd", "Introduction") {
		t.Fatalf("unexpected content path %q", got.ContentPath)
	}
}

func TestRelocateUnsupported(t *testing.T) {
	client := newTestClient(t, http.NotFoundHandler(), config.Slskd{})
	if err := client.Relocate(context.Background(), "h", "/tmp"); !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected external tool error, got %v", err)
	}
}
