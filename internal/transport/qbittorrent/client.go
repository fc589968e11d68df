package qbittorrent

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/anacrolix/torrent/metainfo"
	jsoniter "github.com/json-iterator/go"

	"harvest/internal/config"
	"harvest/internal/logging"
	"harvest/internal/services"
	"harvest/internal/transport"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const sidCookie = "SID"

// HTTPDoer describes the HTTP client used by Client.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client talks to one qBittorrent instance.
type Client struct {
	baseURL  string
	username string
	password string
	category string
	savePath string
	session  *Session
	client   HTTPDoer
	logger   *slog.Logger
}

var _ transport.Source = (*Client)(nil)

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client HTTPDoer) Option {
	return func(c *Client) {
		if client != nil {
			c.client = client
		}
	}
}

// WithLogger attaches a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logging.NewComponentLogger(logger, "qbittorrent")
	}
}

// New builds a client from configuration.
func New(cfg config.QBittorrent, opts ...Option) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, services.Wrap(services.ErrConfiguration, "qbittorrent", "new", "base_url required", nil)
	}
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	c := &Client{
		baseURL:  base,
		username: cfg.Username,
		password: cfg.Password,
		category: strings.TrimSpace(cfg.Category),
		savePath: strings.TrimSpace(cfg.SavePath),
		session:  &Session{},
		client:   &http.Client{Timeout: timeout},
		logger:   logging.NewComponentLogger(nil, "qbittorrent"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Name identifies the client in logs and status output.
func (c *Client) Name() string { return "qbittorrent" }

// AddMagnet submits a magnet URI. savePath overrides the configured default when set.
func (c *Client) AddMagnet(ctx context.Context, uri, savePath string) error {
	magnet, err := metainfo.ParseMagnetUri(strings.TrimSpace(uri))
	if err != nil {
		return services.Wrap(services.ErrValidation, "qbittorrent", "add magnet", "invalid magnet uri", err)
	}
	if err := c.add(ctx, strings.TrimSpace(uri), savePath); err != nil {
		return err
	}
	c.logger.Info("magnet submitted",
		logging.String("info_hash", magnet.InfoHash.HexString()),
		logging.String("display_name", magnet.DisplayName),
		logging.String(logging.FieldEventType, "transfer_submitted"),
	)
	return nil
}

// AddByURL asks qBittorrent to download a .torrent file from torrentURL.
func (c *Client) AddByURL(ctx context.Context, torrentURL, savePath string) error {
	parsed, err := url.Parse(strings.TrimSpace(torrentURL))
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return services.Wrap(services.ErrValidation, "qbittorrent", "add url", fmt.Sprintf("unsupported torrent url %q", torrentURL), err)
	}
	if err := c.add(ctx, parsed.String(), savePath); err != nil {
		return err
	}
	c.logger.Info("torrent url submitted",
		logging.String("host", parsed.Host),
		logging.String(logging.FieldEventType, "transfer_submitted"),
	)
	return nil
}

func (c *Client) add(ctx context.Context, target, savePath string) error {
	form := url.Values{}
	form.Set("urls", target)
	if savePath = strings.TrimSpace(savePath); savePath == "" {
		savePath = c.savePath
	}
	if savePath != "" {
		form.Set("savepath", savePath)
	}
	if c.category != "" {
		form.Set("category", c.category)
	}
	body, err := c.postForm(ctx, "/api/v2/torrents/add", form)
	if err != nil {
		return err
	}
	if strings.EqualFold(strings.TrimSpace(string(body)), "Fails.") {
		return services.Wrap(services.ErrExternalTool, "qbittorrent", "add", "torrent rejected", nil)
	}
	return nil
}

type torrentInfo struct {
	Hash        string  `json:"hash"`
	Name        string  `json:"name"`
	Progress    float64 `json:"progress"`
	ContentPath string  `json:"content_path"`
	SavePath    string  `json:"save_path"`
	State       string  `json:"state"`
}

// ListTransfers returns the torrents in the configured category, or all
// torrents when no category is set.
func (c *Client) ListTransfers(ctx context.Context) ([]transport.Transfer, error) {
	query := url.Values{}
	if c.category != "" {
		query.Set("category", c.category)
	}
	body, err := c.do(ctx, func() (*http.Request, error) {
		endpoint := c.baseURL + "/api/v2/torrents/info"
		if len(query) > 0 {
			endpoint += "?" + query.Encode()
		}
		return http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	})
	if err != nil {
		return nil, err
	}
	var infos []torrentInfo
	if err := json.Unmarshal(body, &infos); err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "qbittorrent", "list", "decode torrent list", err)
	}
	transfers := make([]transport.Transfer, 0, len(infos))
	for _, info := range infos {
		transfers = append(transfers, transport.Transfer{
			Name:        info.Name,
			Progress:    info.Progress,
			ContentPath: info.ContentPath,
			SavePath:    info.SavePath,
			Handle:      info.Hash,
			State:       info.State,
		})
	}
	return transfers, nil
}

// Relocate moves a torrent's storage to targetDir via setLocation.
func (c *Client) Relocate(ctx context.Context, handle, targetDir string) error {
	handle = strings.TrimSpace(handle)
	if handle == "" || strings.TrimSpace(targetDir) == "" {
		return services.Wrap(services.ErrValidation, "qbittorrent", "relocate", "handle and target required", nil)
	}
	form := url.Values{}
	form.Set("hashes", handle)
	form.Set("location", targetDir)
	_, err := c.postForm(ctx, "/api/v2/torrents/setLocation", form)
	return err
}

func (c *Client) postForm(ctx context.Context, path string, form url.Values) ([]byte, error) {
	encoded := form.Encode()
	return c.do(ctx, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, strings.NewReader(encoded))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		return req, nil
	})
}

// do executes an authenticated request, logging in first when no session
// exists and once more when the server answers 403.
func (c *Client) do(ctx context.Context, build func() (*http.Request, error)) ([]byte, error) {
	for attempt := 0; attempt < 2; attempt++ {
		sid := c.session.SID()
		if sid == "" {
			var err error
			if sid, err = c.login(ctx); err != nil {
				return nil, err
			}
		}
		req, err := build()
		if err != nil {
			return nil, fmt.Errorf("build request: %w", err)
		}
		req.AddCookie(&http.Cookie{Name: sidCookie, Value: sid})
		req.Header.Set("Referer", c.baseURL)

		resp, err := c.client.Do(req)
		if err != nil {
			return nil, wrapRequestError("request", err)
		}
		body, readErr := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
		resp.Body.Close()
		if resp.StatusCode == http.StatusForbidden {
			c.session.Invalidate(sid)
			c.logger.Debug("qbittorrent session rejected; re-authenticating")
			continue
		}
		if readErr != nil {
			return nil, wrapRequestError("read response", readErr)
		}
		if resp.StatusCode >= http.StatusBadRequest {
			return nil, services.Wrap(services.ErrTransient, "qbittorrent", req.URL.Path,
				fmt.Sprintf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(body))), nil)
		}
		return body, nil
	}
	return nil, services.Wrap(services.ErrConfiguration, "qbittorrent", "auth", "session rejected after re-login", nil)
}

func (c *Client) login(ctx context.Context) (string, error) {
	form := url.Values{}
	form.Set("username", c.username)
	form.Set("password", c.password)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v2/auth/login", bytes.NewBufferString(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("build login request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Referer", c.baseURL)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", wrapRequestError("login", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if resp.StatusCode != http.StatusOK || strings.EqualFold(strings.TrimSpace(string(body)), "Fails.") {
		return "", services.Wrap(services.ErrConfiguration, "qbittorrent", "login",
			fmt.Sprintf("login rejected (status %d)", resp.StatusCode), nil)
	}
	for _, cookie := range resp.Cookies() {
		if cookie.Name == sidCookie && cookie.Value != "" {
			c.session.Set(cookie.Value)
			return cookie.Value, nil
		}
	}
	return "", services.Wrap(services.ErrExternalTool, "qbittorrent", "login", "no SID cookie in response", nil)
}

func wrapRequestError(op string, err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	return services.Wrap(services.ErrTransient, "qbittorrent", op, "", err)
}
