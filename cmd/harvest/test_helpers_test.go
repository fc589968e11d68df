package main

import (
	"bytes"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type cliTestEnv struct {
	baseDir    string
	configPath string
	libraryDir string
	stateDir   string
}

type testConfig struct {
	indexerURL string
	slskdURL   string
	apiBind    string
	swarm      bool
}

func setupCLITestEnv(t *testing.T, tc testConfig) *cliTestEnv {
	t.Helper()

	base := t.TempDir()
	t.Setenv("HOME", filepath.Join(base, "home"))
	t.Setenv("INDEXER_API_KEY", "test-key")
	t.Setenv("HARVEST_API_TOKEN", "")

	env := &cliTestEnv{
		baseDir:    base,
		configPath: filepath.Join(base, "harvest.toml"),
		libraryDir: filepath.Join(base, "library"),
		stateDir:   filepath.Join(base, "state"),
	}
	if tc.indexerURL == "" {
		tc.indexerURL = "http://127.0.0.1:1"
	}
	if tc.apiBind == "" {
		tc.apiBind = closedAddress(t)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "[paths]\nlibrary_dir = %q\nlog_dir = %q\nstate_dir = %q\ndownload_dir = %q\n\n",
		env.libraryDir, filepath.Join(base, "logs"), env.stateDir, filepath.Join(base, "downloads"))
	fmt.Fprintf(&b, "[indexer]\nbase_url = %q\n\n", tc.indexerURL)
	if tc.swarm {
		b.WriteString("[qbittorrent]\nenabled = true\nbase_url = \"http://127.0.0.1:1\"\n\n")
	}
	if tc.slskdURL != "" {
		fmt.Fprintf(&b, "[slskd]\nenabled = true\nbase_url = %q\nsearch_timeout_seconds = 2\n\n", tc.slskdURL)
	}
	fmt.Fprintf(&b, "[daemon]\napi_bind = %q\n\n[logging]\nlevel = \"error\"\n", tc.apiBind)

	if err := os.WriteFile(env.configPath, []byte(b.String()), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return env
}

// closedAddress returns a loopback address nothing listens on.
func closedAddress(t *testing.T) string {
	t.Helper()
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := listener.Addr().String()
	_ = listener.Close()
	return addr
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
