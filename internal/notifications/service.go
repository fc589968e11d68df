package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"harvest/internal/config"
)

const userAgent = "harvest/0.1"

// Service defines the notification surface used by the acquire and finalize
// workflows.
type Service interface {
	NotifyAcquireStarted(ctx context.Context, artist, album, transport string) error
	NotifyAcquireFailed(ctx context.Context, artist, album string, err error) error
	NotifyReleaseFinalized(ctx context.Context, artist, title string, files int) error
	NotifyScanCompleted(ctx context.Context, finalized, skipped int, duration time.Duration) error
	NotifyError(ctx context.Context, err error, context string) error
	TestNotification(ctx context.Context) error
}

// NewService builds a notification service backed by ntfy when configured.
func NewService(cfg *config.Config) Service {
	if cfg == nil {
		return noopService{}
	}
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &ntfyService{
		endpoint:  topic,
		client:    &http.Client{Timeout: timeout},
		finalized: cfg.Notifications.Finalized,
		errors:    cfg.Notifications.Errors,
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint  string
	client    *http.Client
	finalized bool
	errors    bool
}

func (n *ntfyService) NotifyAcquireStarted(ctx context.Context, artist, album, transport string) error {
	return n.send(ctx, payload{
		title:   "Harvest - Transfer Started",
		message: fmt.Sprintf("⬇️ %s - %s via %s", strings.TrimSpace(artist), strings.TrimSpace(album), transport),
		tags:    []string{"harvest", "acquire", transport},
	})
}

func (n *ntfyService) NotifyAcquireFailed(ctx context.Context, artist, album string, err error) error {
	if !n.errors {
		return nil
	}
	message := fmt.Sprintf("No transfer started for %s - %s", strings.TrimSpace(artist), strings.TrimSpace(album))
	if err != nil {
		message += ": " + strings.TrimSpace(err.Error())
	}
	return n.send(ctx, payload{
		title:    "Harvest - Acquire Failed",
		message:  message,
		tags:     []string{"harvest", "acquire", "failed"},
		priority: "high",
	})
}

func (n *ntfyService) NotifyReleaseFinalized(ctx context.Context, artist, title string, files int) error {
	if !n.finalized {
		return nil
	}
	message := fmt.Sprintf("✅ In library: %s - %s", strings.TrimSpace(artist), strings.TrimSpace(title))
	if files > 0 {
		message = fmt.Sprintf("%s (%d files)", message, files)
	}
	return n.send(ctx, payload{
		title:   "Harvest - Release Finalized",
		message: message,
		tags:    []string{"harvest", "finalize", "completed"},
	})
}

func (n *ntfyService) NotifyScanCompleted(ctx context.Context, finalized, skipped int, duration time.Duration) error {
	if !n.finalized || finalized == 0 {
		return nil
	}
	duration = max(duration.Round(time.Second), 0)
	return n.send(ctx, payload{
		title:   "Harvest - Scan Complete",
		message: fmt.Sprintf("Finalized %d releases, %d pending, in %s", finalized, skipped, duration),
		tags:    []string{"harvest", "finalize", "scan"},
	})
}

func (n *ntfyService) NotifyError(ctx context.Context, err error, contextLabel string) error {
	if !n.errors {
		return nil
	}
	var builder strings.Builder
	builder.WriteString("❌ Error")
	if contextLabel = strings.TrimSpace(contextLabel); contextLabel != "" {
		builder.WriteString(" during ")
		builder.WriteString(contextLabel)
	}
	builder.WriteString(": ")
	if err != nil {
		builder.WriteString(strings.TrimSpace(err.Error()))
	} else {
		builder.WriteString("unknown")
	}
	return n.send(ctx, payload{
		title:    "Harvest - Error",
		message:  builder.String(),
		tags:     []string{"harvest", "error", "alert"},
		priority: "high",
	})
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	return n.send(ctx, payload{
		title:    "Harvest - Test",
		message:  "🧪 Notification system test",
		tags:     []string{"harvest", "test"},
		priority: "low",
	})
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) NotifyAcquireStarted(context.Context, string, string, string) error { return nil }
func (noopService) NotifyAcquireFailed(context.Context, string, string, error) error   { return nil }
func (noopService) NotifyReleaseFinalized(context.Context, string, string, int) error  { return nil }
func (noopService) NotifyScanCompleted(context.Context, int, int, time.Duration) error { return nil }
func (noopService) NotifyError(context.Context, error, string) error                   { return nil }
func (noopService) TestNotification(context.Context) error                             { return nil }

// Noop returns a Service that discards every notification.
func Noop() Service { return noopService{} }
