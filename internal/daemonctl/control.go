package daemonctl

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"syscall"
	"time"

	jsoniter "github.com/json-iterator/go"

	"harvest/internal/config"
	"harvest/internal/daemon"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ErrDaemonNotRunning indicates the daemon API is unreachable.
var ErrDaemonNotRunning = errors.New("daemon not running")

// Client calls the daemon status API.
type Client struct {
	baseURL string
	token   string
	client  *http.Client
}

// New builds a client for the API bound by cfg.Daemon.
func New(cfg *config.Config) (*Client, error) {
	bind := strings.TrimSpace(cfg.Daemon.APIBind)
	if bind == "" {
		return nil, errors.New("daemon api disabled (daemon.api_bind is empty)")
	}
	return &Client{
		baseURL: "http://" + bind,
		token:   strings.TrimSpace(cfg.Daemon.APIToken),
		client:  &http.Client{Timeout: 10 * time.Minute},
	}, nil
}

// Status fetches the daemon status.
func (c *Client) Status(ctx context.Context) (daemon.Status, error) {
	var status daemon.Status
	err := c.do(ctx, http.MethodGet, "/api/status", &status)
	return status, err
}

// Missing lists releases the library still lacks audio for.
func (c *Client) Missing(ctx context.Context) ([]daemon.ReleaseView, error) {
	var payload struct {
		Releases []daemon.ReleaseView `json:"releases"`
	}
	err := c.do(ctx, http.MethodGet, "/api/releases/missing", &payload)
	return payload.Releases, err
}

// Scan asks the daemon to run one finalization scan now.
func (c *Client) Scan(ctx context.Context) (daemon.ScanSummary, error) {
	var summary daemon.ScanSummary
	err := c.do(ctx, http.MethodPost, "/api/scan", &summary)
	return summary, err
}

func (c *Client) do(ctx context.Context, method, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		if isConnRefused(err) {
			return ErrDaemonNotRunning
		}
		return fmt.Errorf("daemon request: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return fmt.Errorf("read daemon response: %w", err)
	}
	if resp.StatusCode >= 300 {
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("daemon %s %s: %s (status %d)", method, path, apiErr.Error, resp.StatusCode)
		}
		return fmt.Errorf("daemon %s %s: status %d", method, path, resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode daemon response: %w", err)
	}
	return nil
}

func isConnRefused(err error) bool {
	return errors.Is(err, syscall.ECONNREFUSED)
}

// Launch starts a detached "harvest daemon run" process.
func Launch(executablePath, configPath string) error {
	if strings.TrimSpace(executablePath) == "" {
		return fmt.Errorf("resolve executable: executable path is empty")
	}
	args := []string{"daemon", "run"}
	if cfg := strings.TrimSpace(configPath); cfg != "" {
		args = append(args, "--config", cfg)
	}
	proc := exec.Command(executablePath, args...)
	proc.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	if err := proc.Start(); err != nil {
		return fmt.Errorf("launch daemon: %w", err)
	}
	return proc.Process.Release()
}

// WaitForStatus polls the API until the daemon reports running or timeout elapses.
func WaitForStatus(ctx context.Context, c *Client, timeout time.Duration) (daemon.Status, error) {
	deadline := time.Now().Add(timeout)
	var lastErr error
	for time.Now().Before(deadline) {
		status, err := c.Status(ctx)
		if err == nil && status.Running {
			return status, nil
		}
		lastErr = err
		select {
		case <-ctx.Done():
			return daemon.Status{}, ctx.Err()
		case <-time.After(200 * time.Millisecond):
		}
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("timeout waiting for daemon")
	}
	return daemon.Status{}, fmt.Errorf("daemon failed to start: %w", lastErr)
}

// ReadPID returns the process id recorded in pidPath.
func ReadPID(pidPath string) (int, error) {
	data, err := os.ReadFile(pidPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, ErrDaemonNotRunning
		}
		return 0, fmt.Errorf("read daemon pid file %q: %w", pidPath, err)
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0, fmt.Errorf("invalid pid in %s", pidPath)
	}
	return pid, nil
}

// Terminate sends SIGTERM to the daemon recorded in pidPath and waits for it
// to remove the pid file.
func Terminate(pidPath string, grace time.Duration) (int, error) {
	pid, err := ReadPID(pidPath)
	if err != nil {
		return 0, err
	}
	if pid == os.Getpid() {
		return 0, fmt.Errorf("refusing to signal current process (pid %d)", pid)
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return 0, fmt.Errorf("locate daemon process %d: %w", pid, err)
	}
	if err := proc.Signal(syscall.SIGTERM); err != nil {
		if errors.Is(err, os.ErrProcessDone) {
			_ = os.Remove(pidPath)
			return 0, ErrDaemonNotRunning
		}
		return 0, fmt.Errorf("signal daemon process %d: %w", pid, err)
	}
	deadline := time.Now().Add(grace)
	for time.Now().Before(deadline) {
		if _, err := os.Stat(pidPath); errors.Is(err, os.ErrNotExist) {
			return pid, nil
		}
		time.Sleep(100 * time.Millisecond)
	}
	return pid, fmt.Errorf("daemon process %d did not exit within %s", pid, grace)
}
