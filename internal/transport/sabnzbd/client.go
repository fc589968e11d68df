// Package sabnzbd drives a SABnzbd instance for direct-download (NZB)
// transfers: fetching NZB files from an indexer, uploading them with
// mode=addfile, and reporting queue and history as transfers.
package sabnzbd

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	jsoniter "github.com/json-iterator/go"

	"harvest/internal/config"
	"harvest/internal/logging"
	"harvest/internal/services"
	"harvest/internal/textutil"
	"harvest/internal/transport"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	maxNZBBytes = 32 << 20
	sniffBytes  = 3072
)

// HTTPDoer describes the HTTP client used by Client.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client talks to one SABnzbd instance.
type Client struct {
	baseURL  string
	apiKey   string
	category string
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
		c.logger = logging.NewComponentLogger(logger, "sabnzbd")
	}
}

// New builds a client from configuration.
func New(cfg config.SABnzbd, opts ...Option) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, services.Wrap(services.ErrConfiguration, "sabnzbd", "new", "base_url required", nil)
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, services.Wrap(services.ErrConfiguration, "sabnzbd", "new", "api_key required", nil)
	}
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	c := &Client{
		baseURL:  base,
		apiKey:   strings.TrimSpace(cfg.APIKey),
		category: strings.TrimSpace(cfg.Category),
		client:   &http.Client{Timeout: timeout},
		logger:   logging.NewComponentLogger(nil, "sabnzbd"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Name identifies the client in logs and status output.
func (c *Client) Name() string { return "sabnzbd" }

// Fetch downloads an NZB document from an indexer URL. The caller closes the reader.
func (c *Client) Fetch(ctx context.Context, nzbURL string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimSpace(nzbURL), nil)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "sabnzbd", "fetch", "invalid nzb url", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, wrapRequestError("fetch", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, services.Wrap(services.ErrTransient, "sabnzbd", "fetch", fmt.Sprintf("indexer returned %d", resp.StatusCode), nil)
	}
	body := io.LimitReader(resp.Body, maxNZBBytes)
	head := make([]byte, sniffBytes)
	n, err := io.ReadFull(body, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		resp.Body.Close()
		return nil, wrapRequestError("fetch", err)
	}
	head = head[:n]
	// Indexers answer auth and rate-limit failures with a page instead of an NZB.
	if mt := mimetype.Detect(head); mt.Is("text/html") || mt.Is("application/json") {
		resp.Body.Close()
		return nil, services.Wrap(services.ErrTransient, "sabnzbd", "fetch",
			"indexer returned "+mt.String()+" instead of an nzb", nil)
	}
	return struct {
		io.Reader
		io.Closer
	}{io.MultiReader(bytes.NewReader(head), body), resp.Body}, nil
}

type apiStatus struct {
	Status bool     `json:"status"`
	NzoIDs []string `json:"nzo_ids"`
	Error  string   `json:"error"`
}

// Upload posts an NZB document with mode=addfile. name becomes the job name.
func (c *Client) Upload(ctx context.Context, r io.Reader, name string) error {
	name = textutil.SanitizeFileName(name)
	if name == "" {
		name = "harvest"
	}
	if !strings.HasSuffix(strings.ToLower(name), ".nzb") {
		name += ".nzb"
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("name", name)
	if err != nil {
		return fmt.Errorf("create multipart part: %w", err)
	}
	n, err := io.Copy(part, r)
	if err != nil {
		return wrapRequestError("read nzb", err)
	}
	if n == 0 {
		return services.Wrap(services.ErrValidation, "sabnzbd", "upload", "empty nzb document", nil)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("close multipart body: %w", err)
	}

	params := c.params("addfile")
	params.Set("nzbname", strings.TrimSuffix(name, filepath.Ext(name)))
	if c.category != "" {
		params.Set("cat", c.category)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api?"+params.Encode(), &body)
	if err != nil {
		return fmt.Errorf("build upload request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	var status apiStatus
	if err := c.doJSON(req, "upload", &status); err != nil {
		return err
	}
	if !status.Status {
		detail := strings.TrimSpace(status.Error)
		if detail == "" {
			detail = "upload rejected"
		}
		return services.Wrap(services.ErrExternalTool, "sabnzbd", "upload", detail, nil)
	}
	c.logger.Info("nzb uploaded",
		logging.String("job", name),
		logging.Int("jobs", len(status.NzoIDs)),
		logging.String(logging.FieldEventType, "transfer_submitted"),
	)
	return nil
}

type queueResponse struct {
	Queue struct {
		Slots []struct {
			NzoID      string `json:"nzo_id"`
			Filename   string `json:"filename"`
			Percentage string `json:"percentage"`
			Status     string `json:"status"`
			Category   string `json:"cat"`
		} `json:"slots"`
	} `json:"queue"`
}

type historyResponse struct {
	History struct {
		Slots []struct {
			NzoID    string `json:"nzo_id"`
			Name     string `json:"name"`
			Status   string `json:"status"`
			Storage  string `json:"storage"`
			Path     string `json:"path"`
			Category string `json:"category"`
		} `json:"slots"`
	} `json:"history"`
}

// ListTransfers merges the download queue with completed history entries.
// History entries that failed are reported with zero progress.
func (c *Client) ListTransfers(ctx context.Context) ([]transport.Transfer, error) {
	queueParams := c.params("queue")
	historyParams := c.params("history")
	historyParams.Set("limit", "100")
	if c.category != "" {
		queueParams.Set("cat", c.category)
		historyParams.Set("category", c.category)
	}

	var queue queueResponse
	if err := c.get(ctx, queueParams, "queue", &queue); err != nil {
		return nil, err
	}
	var history historyResponse
	if err := c.get(ctx, historyParams, "history", &history); err != nil {
		return nil, err
	}

	transfers := make([]transport.Transfer, 0, len(queue.Queue.Slots)+len(history.History.Slots))
	for _, slot := range queue.Queue.Slots {
		pct, _ := strconv.ParseFloat(strings.TrimSpace(slot.Percentage), 64)
		transfers = append(transfers, transport.Transfer{
			Name:     slot.Filename,
			Progress: clampFraction(pct / 100),
			Handle:   slot.NzoID,
			State:    strings.ToLower(slot.Status),
		})
	}
	for _, slot := range history.History.Slots {
		progress := 0.0
		if strings.EqualFold(slot.Status, "Completed") {
			progress = 1
		}
		storage := slot.Storage
		if storage == "" {
			storage = slot.Path
		}
		transfer := transport.Transfer{
			Name:        slot.Name,
			Progress:    progress,
			ContentPath: storage,
			Handle:      slot.NzoID,
			State:       strings.ToLower(slot.Status),
		}
		if storage != "" {
			transfer.SavePath = filepath.Dir(storage)
		}
		transfers = append(transfers, transfer)
	}
	return transfers, nil
}

// Relocate is not offered by SABnzbd; completed jobs are copied instead.
func (c *Client) Relocate(context.Context, string, string) error {
	return services.Wrap(services.ErrExternalTool, "sabnzbd", "relocate", "not supported", nil)
}

func (c *Client) params(mode string) url.Values {
	params := url.Values{}
	params.Set("mode", mode)
	params.Set("apikey", c.apiKey)
	params.Set("output", "json")
	return params
}

func (c *Client) get(ctx context.Context, params url.Values, op string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api?"+params.Encode(), nil)
	if err != nil {
		return fmt.Errorf("build %s request: %w", op, err)
	}
	return c.doJSON(req, op, out)
}

func (c *Client) doJSON(req *http.Request, op string, out any) error {
	resp, err := c.client.Do(req)
	if err != nil {
		return wrapRequestError(op, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return services.Wrap(services.ErrConfiguration, "sabnzbd", op, "api key rejected", nil)
	}
	if resp.StatusCode != http.StatusOK {
		return services.Wrap(services.ErrTransient, "sabnzbd", op, fmt.Sprintf("status %d", resp.StatusCode), nil)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return services.Wrap(services.ErrExternalTool, "sabnzbd", op, "decode response", err)
	}
	return nil
}

func clampFraction(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

func wrapRequestError(op string, err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	return services.Wrap(services.ErrTransient, "sabnzbd", op, "", err)
}
