package daemonctl

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"harvest/internal/testsupport"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	cfg := testsupport.NewConfig(t)
	cfg.Daemon.APIBind = srv.Listener.Addr().String()
	cfg.Daemon.APIToken = "secret"
	client, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return client
}

func TestClientCallsAPI(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/status", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(`{"running":true,"pid":42,"missing_releases":3,"last_scan":{"releases":2,"finalized":1,"outcomes":{"copied":1,"no_match":1}}}`))
	})
	mux.HandleFunc("GET /api/releases/missing", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"releases":[{"artist":"Zara Larsson","title":"Introduction","folder":"Introduction (2013)","track_count":2,"missing":2}]}`))
	})
	mux.HandleFunc("POST /api/scan", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"releases":1,"finalized":1,"outcomes":{"copied":1}}`))
	})
	client := newTestClient(t, mux)
	ctx := context.Background()

	status, err := client.Status(ctx)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if !status.Running || status.PID != 42 || status.Missing != 3 {
		t.Fatalf("unexpected status %+v", status)
	}
	if status.LastScan == nil || status.LastScan.Outcomes["copied"] != 1 {
		t.Fatalf("unexpected last scan %+v", status.LastScan)
	}

	missing, err := client.Missing(ctx)
	if err != nil {
		t.Fatalf("Missing: %v", err)
	}
	if len(missing) != 1 || missing[0].Artist != "Zara Larsson" || missing[0].Missing != 2 {
		t.Fatalf("unexpected missing %+v", missing)
	}

	summary, err := client.Scan(ctx)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if summary.Finalized != 1 {
		t.Fatalf("unexpected summary %+v", summary)
	}
}

func TestClientSurfacesAPIError(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"database locked"}`))
	}))
	_, err := client.Scan(context.Background())
	if err == nil || !strings.Contains(err.Error(), "database locked") {
		t.Fatalf("expected api error message, got %v", err)
	}
}

func TestClientReportsNotRunning(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := listener.Addr().String()
	_ = listener.Close()

	cfg := testsupport.NewConfig(t)
	cfg.Daemon.APIBind = addr
	client, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := client.Status(context.Background()); !errors.Is(err, ErrDaemonNotRunning) {
		t.Fatalf("expected ErrDaemonNotRunning, got %v", err)
	}
}

func TestNewRequiresBind(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Daemon.APIBind = ""
	if _, err := New(cfg); err == nil {
		t.Fatal("expected error when api disabled")
	}
}

func TestReadPID(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "harvestd.pid")
	if _, err := ReadPID(path); !errors.Is(err, ErrDaemonNotRunning) {
		t.Fatalf("expected ErrDaemonNotRunning, got %v", err)
	}
	if err := os.WriteFile(path, []byte("1234\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	pid, err := ReadPID(path)
	if err != nil || pid != 1234 {
		t.Fatalf("ReadPID = %d, %v", pid, err)
	}
	if err := os.WriteFile(path, []byte("junk"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := ReadPID(path); err == nil {
		t.Fatal("expected error for invalid pid")
	}
}

func TestTerminateRefusesSelf(t *testing.T) {
	path := filepath.Join(t.TempDir(), "harvestd.pid")
	if err := os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Terminate(path, time.Second); err == nil {
		t.Fatal("expected refusal to signal own process")
	}
}
