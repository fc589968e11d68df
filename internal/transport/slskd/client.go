package slskd

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"

	"harvest/internal/config"
	"harvest/internal/logging"
	"harvest/internal/queuebuild"
	"harvest/internal/services"
	"harvest/internal/transport"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// HTTPDoer describes the HTTP client used by Client.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client talks to one slskd instance.
type Client struct {
	baseURL       string
	apiKey        string
	downloadDir   string
	searchTimeout time.Duration
	pollInterval  time.Duration
	client        HTTPDoer
	logger        *slog.Logger
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
		c.logger = logging.NewComponentLogger(logger, "slskd")
	}
}

// WithPollInterval overrides how often search state is polled.
func WithPollInterval(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.pollInterval = d
		}
	}
}

// New builds a client from configuration.
func New(cfg config.Slskd, opts ...Option) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, services.Wrap(services.ErrConfiguration, "slskd", "new", "base_url required", nil)
	}
	timeout := time.Duration(cfg.SearchTimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	c := &Client{
		baseURL:       base,
		apiKey:        strings.TrimSpace(cfg.APIKey),
		downloadDir:   strings.TrimSpace(cfg.DownloadDir),
		searchTimeout: timeout,
		pollInterval:  time.Second,
		client:        &http.Client{Timeout: 30 * time.Second},
		logger:        logging.NewComponentLogger(nil, "slskd"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Name identifies the client in logs and status output.
func (c *Client) Name() string { return "slskd" }

type searchRequest struct {
	ID            string `json:"id"`
	SearchText    string `json:"searchText"`
	SearchTimeout int64  `json:"searchTimeout"`
}

type searchState struct {
	ID         string `json:"id"`
	State      string `json:"state"`
	IsComplete bool   `json:"isComplete"`
	FileCount  int    `json:"fileCount"`
}

type searchResponse struct {
	Username string       `json:"username"`
	Files    []searchFile `json:"files"`
}

type searchFile struct {
	Filename  string `json:"filename"`
	Size      int64  `json:"size"`
	BitRate   int    `json:"bitRate"`
	Extension string `json:"extension"`
}

// Search runs a network search for query and returns every file offered.
// Responses collected before the search timeout are returned even when
// slskd has not marked the search complete.
func (c *Client) Search(ctx context.Context, query string) ([]queuebuild.RawSearchFileEntry, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, services.Wrap(services.ErrValidation, "slskd", "search", "query must not be empty", nil)
	}
	id := uuid.NewString()
	var state searchState
	if err := c.doJSON(ctx, http.MethodPost, "/api/v0/searches", searchRequest{
		ID:            id,
		SearchText:    query,
		SearchTimeout: c.searchTimeout.Milliseconds(),
	}, &state); err != nil {
		return nil, err
	}

	if err := c.awaitSearch(ctx, id); err != nil {
		return nil, err
	}

	var responses []searchResponse
	if err := c.doJSON(ctx, http.MethodGet, "/api/v0/searches/"+url.PathEscape(id)+"/responses", nil, &responses); err != nil {
		return nil, err
	}
	entries := flatten(responses)
	c.logger.Debug("slskd search complete",
		logging.String("query", query),
		logging.Int("peers", len(responses)),
		logging.Int("files", len(entries)),
	)
	return entries, nil
}

func (c *Client) awaitSearch(ctx context.Context, id string) error {
	deadline := time.NewTimer(c.searchTimeout)
	defer deadline.Stop()
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		var state searchState
		if err := c.doJSON(ctx, http.MethodGet, "/api/v0/searches/"+url.PathEscape(id), nil, &state); err != nil {
			return err
		}
		if state.IsComplete {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline.C:
			c.logger.Debug("slskd search timed out; using partial responses", logging.String("search_id", id))
			return nil
		case <-ticker.C:
		}
	}
}

func flatten(responses []searchResponse) []queuebuild.RawSearchFileEntry {
	var entries []queuebuild.RawSearchFileEntry
	for _, response := range responses {
		for _, file := range response.Files {
			if strings.TrimSpace(file.Filename) == "" {
				continue
			}
			entries = append(entries, queuebuild.RawSearchFileEntry{
				RemotePath: file.Filename,
				Owner:      response.Username,
				Bitrate:    file.BitRate,
				Extension:  file.Extension,
				SizeBytes:  file.Size,
			})
		}
	}
	return entries
}

type enqueueFile struct {
	Filename string `json:"filename"`
	Size     int64  `json:"size"`
}

// Enqueue submits items to their owners. Items for one owner are posted in a
// single request preserving plan order; owners are contacted in the order
// they first appear.
func (c *Client) Enqueue(ctx context.Context, items []queuebuild.QueueItem) error {
	var owners []string
	byOwner := map[string][]enqueueFile{}
	for _, item := range items {
		if _, seen := byOwner[item.Owner]; !seen {
			owners = append(owners, item.Owner)
		}
		byOwner[item.Owner] = append(byOwner[item.Owner], enqueueFile{Filename: item.RemoteFileName, Size: item.SizeBytes})
	}
	for _, owner := range owners {
		if err := c.doJSON(ctx, http.MethodPost, "/api/v0/transfers/downloads/"+url.PathEscape(owner), byOwner[owner], nil); err != nil {
			return err
		}
		c.logger.Info("slskd downloads enqueued",
			logging.String("owner", owner),
			logging.Int("files", len(byOwner[owner])),
			logging.String(logging.FieldEventType, "transfer_submitted"),
		)
	}
	return nil
}

type downloadUser struct {
	Username    string              `json:"username"`
	Directories []downloadDirectory `json:"directories"`
}

type downloadDirectory struct {
	Directory string         `json:"directory"`
	Files     []downloadFile `json:"files"`
}

type downloadFile struct {
	Filename        string  `json:"filename"`
	State           string  `json:"state"`
	PercentComplete float64 `json:"percentComplete"`
}

// ListTransfers reports one transfer per remote folder. Progress is the mean
// of the folder's file progress; failed files count as zero.
func (c *Client) ListTransfers(ctx context.Context) ([]transport.Transfer, error) {
	var users []downloadUser
	if err := c.doJSON(ctx, http.MethodGet, "/api/v0/transfers/downloads", nil, &users); err != nil {
		return nil, err
	}
	var transfers []transport.Transfer
	for _, user := range users {
		for _, dir := range user.Directories {
			if len(dir.Files) == 0 {
				continue
			}
			var total float64
			for _, file := range dir.Files {
				if strings.Contains(file.State, "Succeeded") {
					total += 100
					continue
				}
				if strings.Contains(file.State, "Completed") {
					continue
				}
				total += file.PercentComplete
			}
			folder := lastSegment(dir.Directory)
			transfer := transport.Transfer{
				Name:     remoteTail(dir.Directory),
				Progress: total / float64(len(dir.Files)) / 100,
				Handle:   user.Username + ":" + dir.Directory,
			}
			if c.downloadDir != "" {
				transfer.ContentPath = filepath.Join(c.downloadDir, folder)
				transfer.SavePath = c.downloadDir
			}
			transfers = append(transfers, transfer)
		}
	}
	return transfers, nil
}

// Relocate is not offered by slskd; completed folders are copied instead.
func (c *Client) Relocate(context.Context, string, string) error {
	return services.Wrap(services.ErrExternalTool, "slskd", "relocate", "not supported", nil)
}

func (c *Client) doJSON(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return err
		}
		return services.Wrap(services.ErrTransient, "slskd", path, "", err)
	}
	defer resp.Body.Close()
	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return services.Wrap(services.ErrConfiguration, "slskd", path, "api key rejected", nil)
	case resp.StatusCode >= http.StatusBadRequest:
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return services.Wrap(services.ErrTransient, "slskd", path,
			fmt.Sprintf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(detail))), nil)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return services.Wrap(services.ErrExternalTool, "slskd", path, "decode response", err)
	}
	return nil
}

func splitRemote(remote string) []string {
	return strings.FieldsFunc(remote, func(r rune) bool { return r == '\\' || r == '/' })
}

func lastSegment(remote string) string {
	parts := splitRemote(remote)
	if len(parts) == 0 {
		return ""
	}
	return parts[len(parts)-1]
}

// remoteTail keeps the last two folder names ("Artist/Album") so transfer
// names carry both artist and release for matching.
func remoteTail(remote string) string {
	parts := splitRemote(remote)
	if len(parts) > 2 {
		parts = parts[len(parts)-2:]
	}
	return strings.Join(parts, " - ")
}
