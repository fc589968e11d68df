package daemon

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"harvest/internal/finalize"
	"harvest/internal/testsupport"
)

func newTestAPI(t *testing.T, token string) *apiServer {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	cfg.Daemon.APIBind = "127.0.0.1:0"
	cfg.Daemon.APIToken = token
	store := testsupport.MustOpenLibrary(t, cfg)
	testsupport.AddRelease(t, store, "Zara Larsson", "Introduction", 2013, 5)
	d, err := New(cfg, store, finalize.New(cfg, store, nil), nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return d.api
}

func TestAPIServerHandleMissing(t *testing.T) {
	srv := newTestAPI(t, "")
	req := httptest.NewRequest(http.MethodGet, "/api/releases/missing", nil)
	w := httptest.NewRecorder()
	srv.server.Handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 OK, got %d", w.Code)
	}
	var resp struct {
		Releases []ReleaseView `json:"releases"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(resp.Releases) != 1 || resp.Releases[0].Folder != "Introduction (2013)" || resp.Releases[0].Missing != 5 {
		t.Fatalf("unexpected releases %+v", resp.Releases)
	}
}

func TestAPIServerScanRequiresPost(t *testing.T) {
	srv := newTestAPI(t, "")
	w := httptest.NewRecorder()
	srv.server.Handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/scan", nil))
	if w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", w.Code)
	}

	w = httptest.NewRecorder()
	srv.server.Handler.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/scan", nil).WithContext(context.Background()))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var summary ScanSummary
	if err := json.Unmarshal(w.Body.Bytes(), &summary); err != nil {
		t.Fatalf("decode summary: %v", err)
	}
	if summary.Releases != 1 || summary.Outcomes["no_match"] != 1 {
		t.Fatalf("unexpected summary %+v", summary)
	}
}

func TestAPIServerRequiresToken(t *testing.T) {
	srv := newTestAPI(t, "secret")

	w := httptest.NewRecorder()
	srv.server.Handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/status", nil))
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", w.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	req.Header.Set("Authorization", "Bearer secret")
	w = httptest.NewRecorder()
	srv.server.Handler.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 with token, got %d", w.Code)
	}
	var status Status
	if err := json.Unmarshal(w.Body.Bytes(), &status); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if status.Missing != 1 || status.Running {
		t.Fatalf("unexpected status %+v", status)
	}
}
