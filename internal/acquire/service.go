package acquire

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"harvest/internal/config"
	"harvest/internal/indexer"
	"harvest/internal/logging"
	"harvest/internal/notifications"
	"harvest/internal/release"
	"harvest/internal/selection"
	"harvest/internal/services"
)

// DirectDownloader fetches an NZB-style file and hands it to its handler.
type DirectDownloader interface {
	Fetch(ctx context.Context, url string) (io.ReadCloser, error)
	Upload(ctx context.Context, r io.Reader, name string) error
}

// SwarmClient starts magnet and torrent-file transfers.
type SwarmClient interface {
	AddMagnet(ctx context.Context, uri, savePath string) error
	AddByURL(ctx context.Context, torrentURL, savePath string) error
}

// Request names the release to acquire.
type Request struct {
	Artist   string
	Album    string
	Year     int
	SavePath string
}

// Attempt records one transport hand-off.
type Attempt struct {
	Transport release.Transport
	Target    string
	Err       error
}

// Result summarizes an acquisition.
type Result struct {
	RequestID  string
	Queries    []string
	Candidates []release.CandidateRelease
	Decision   selection.Decision
	// Used is the transport that accepted the transfer, None when nothing did.
	Used     release.Transport
	Attempts []Attempt
}

// Started reports whether a transfer was handed off.
func (r Result) Started() bool { return r.Used != release.None }

// Service wires the indexer, the selection engine, and the transfer clients.
type Service struct {
	searcher   indexer.Searcher
	direct     DirectDownloader
	swarm      SwarmClient
	acquire    config.Acquire
	minResults int
	savePath   string
	notifier   notifications.Service
	logger     *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithDirectDownloader enables the DirectFile transport.
func WithDirectDownloader(d DirectDownloader) Option {
	return func(s *Service) { s.direct = d }
}

// WithSwarmClient enables the Magnet and TorrentFile transports.
func WithSwarmClient(c SwarmClient) Option {
	return func(s *Service) { s.swarm = c }
}

// WithNotifier attaches a notifier.
func WithNotifier(n notifications.Service) Option {
	return func(s *Service) {
		if n != nil {
			s.notifier = n
		}
	}
}

// WithLogger attaches a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logging.NewComponentLogger(logger, "acquire") }
}

// NewService builds an acquisition service.
func NewService(cfg *config.Config, searcher indexer.Searcher, opts ...Option) *Service {
	s := &Service{
		searcher:   searcher,
		acquire:    cfg.Acquire,
		minResults: max(cfg.Indexer.MinResults, 1),
		savePath:   cfg.QBittorrent.SavePath,
		notifier:   notifications.Noop(),
		logger:     logging.NewComponentLogger(nil, "acquire"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Policy reports the effective selection policy: a transport is only allowed
// when both configuration permits it and a client for it is wired.
func (s *Service) Policy() selection.Policy {
	return selection.Policy{
		AllowDirectDownload: s.acquire.AllowDirectDownload && s.direct != nil,
		AllowSwarmClient:    s.acquire.AllowSwarmClient && s.swarm != nil,
		DiscographyEnabled:  s.acquire.DiscographyEnabled,
	}
}

// Search runs the query strategy and returns the de-duplicated candidate
// pool along with the queries actually sent. It stops early once at least
// min_results candidates survive filtering.
func (s *Service) Search(ctx context.Context, req Request) ([]release.CandidateRelease, []string, error) {
	if strings.TrimSpace(req.Artist) == "" || strings.TrimSpace(req.Album) == "" {
		return nil, nil, services.Wrap(services.ErrValidation, "acquire", "search", "artist and album are required", nil)
	}
	if s.searcher == nil {
		return nil, nil, services.Wrap(services.ErrConfiguration, "acquire", "search", "no indexer configured", nil)
	}
	logger := logging.WithContext(ctx, s.logger)

	var (
		pool    []release.CandidateRelease
		sent    []string
		seen    = map[string]struct{}{}
		lastErr error
		failed  int
	)
	for _, query := range indexer.BuildQueries(req.Artist, req.Album, req.Year) {
		if err := ctx.Err(); err != nil {
			return pool, sent, err
		}
		sent = append(sent, query)
		results, err := s.searcher.Search(ctx, query)
		if err != nil {
			if ctx.Err() != nil {
				return pool, sent, ctx.Err()
			}
			failed++
			lastErr = err
			logging.WarnWithContext(logger, "indexer query failed", "indexer_query_failed",
				logging.String("query", query),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check indexer base_url and api_key"),
				logging.String(logging.FieldImpact, "continuing with remaining queries"),
			)
			continue
		}
		for _, candidate := range results {
			key := candidate.Key()
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			pool = append(pool, candidate)
		}
		usable := countUsable(pool, req, s.acquire.DiscographyEnabled)
		logger.Debug("indexer query complete",
			logging.String("query", query),
			logging.Int("results", len(results)),
			logging.Int("pool", len(pool)),
			logging.Int("usable", usable),
		)
		if usable >= s.minResults {
			break
		}
	}
	if failed == len(sent) && lastErr != nil {
		return pool, sent, lastErr
	}
	return pool, sent, nil
}

func countUsable(pool []release.CandidateRelease, req Request, discography bool) int {
	n := 0
	for _, eval := range selection.Evaluate(pool, req.Artist, req.Album, discography) {
		if eval.Partition != selection.Rejected {
			n++
		}
	}
	return n
}

// Acquire searches, selects, and starts a transfer for req. A release with no
// usable candidate is not an error: the result carries a None decision.
func (s *Service) Acquire(ctx context.Context, req Request) (Result, error) {
	requestID, ok := services.RequestIDFromContext(ctx)
	if !ok {
		requestID = uuid.NewString()
		ctx = services.WithRequestID(ctx, requestID)
	}
	ctx = services.WithReleaseKey(ctx, strings.TrimSpace(req.Artist)+" - "+strings.TrimSpace(req.Album))
	logger := logging.WithContext(ctx, s.logger)
	result := Result{RequestID: requestID}

	pool, queries, err := s.Search(ctx, req)
	result.Queries = queries
	result.Candidates = pool
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			_ = s.notifier.NotifyAcquireFailed(ctx, req.Artist, req.Album, err)
		}
		return result, err
	}

	policy := s.Policy()
	decision := selection.Decide(pool, req.Artist, req.Album, policy)
	result.Decision = decision
	if !decision.Found() {
		reason := noDecisionReason(pool, req, policy)
		logger.Info("no transport selected",
			logging.Args(append(logging.DecisionAttrs("transport_selection", "none", reason),
				logging.Int("candidates", len(pool)))...)...)
		_ = s.notifier.NotifyAcquireFailed(ctx, req.Artist, req.Album, errors.New(reason))
		return result, nil
	}
	logger.Info("transport selected",
		logging.Args(append(logging.DecisionAttrs("transport_selection", decision.Type.String(), "best ranked reachable candidate"),
			logging.String("candidate", decision.Candidate.Title),
			logging.Bool("discography_pack", decision.IsDiscographyPack),
			logging.Float64("score", decision.Score))...)...)

	chain := append([]selection.Decision{decision}, selection.Alternatives(decision, pool, req.Artist, req.Album, policy)...)
	savePath := strings.TrimSpace(req.SavePath)
	if savePath == "" {
		savePath = s.savePath
	}
	for i, step := range chain {
		err := s.dispatch(ctx, step, savePath)
		result.Attempts = append(result.Attempts, Attempt{Transport: step.Type, Target: step.Target, Err: err})
		if err == nil {
			result.Used = step.Type
			logger.Info("transfer started",
				logging.String("transport", step.Type.String()),
				logging.String("candidate", step.Candidate.Title),
				logging.String(logging.FieldEventType, "transfer_started"),
			)
			_ = s.notifier.NotifyAcquireStarted(ctx, req.Artist, req.Album, step.Type.String())
			return result, nil
		}
		if ctx.Err() != nil {
			return result, ctx.Err()
		}
		impact := "release remains missing"
		if i+1 < len(chain) {
			impact = "falling back to " + chain[i+1].Type.String()
		}
		logging.WarnWithContext(logger, "transfer hand-off failed", "transfer_failed",
			logging.String("transport", step.Type.String()),
			logging.String("error_kind", services.Kind(err)),
			logging.Error(err),
			logging.String(logging.FieldImpact, impact),
		)
	}

	last := result.Attempts[len(result.Attempts)-1].Err
	err = services.Wrap(services.ErrTransient, "acquire", "dispatch",
		fmt.Sprintf("all %d transports failed", len(result.Attempts)), last)
	_ = s.notifier.NotifyAcquireFailed(ctx, req.Artist, req.Album, err)
	return result, err
}

func (s *Service) dispatch(ctx context.Context, decision selection.Decision, savePath string) error {
	switch decision.Type {
	case release.DirectFile:
		if s.direct == nil {
			return services.Wrap(services.ErrConfiguration, "acquire", "dispatch", "no direct download client", nil)
		}
		body, err := s.direct.Fetch(ctx, decision.Target)
		if err != nil {
			return err
		}
		defer body.Close()
		return s.direct.Upload(ctx, body, decision.Candidate.Title)
	case release.Magnet:
		if s.swarm == nil {
			return services.Wrap(services.ErrConfiguration, "acquire", "dispatch", "no swarm client", nil)
		}
		return s.swarm.AddMagnet(ctx, decision.Target, savePath)
	case release.TorrentFile:
		if s.swarm == nil {
			return services.Wrap(services.ErrConfiguration, "acquire", "dispatch", "no swarm client", nil)
		}
		return s.swarm.AddByURL(ctx, decision.Target, savePath)
	default:
		return services.Wrap(services.ErrValidation, "acquire", "dispatch", "no transport", nil)
	}
}

// noDecisionReason distinguishes "nothing matched" from "matched but no
// allowed transport" for operator logs.
func noDecisionReason(pool []release.CandidateRelease, req Request, policy selection.Policy) string {
	if len(pool) == 0 {
		return "no search results"
	}
	if countUsable(pool, req, policy.DiscographyEnabled) == 0 {
		return "no candidate matched"
	}
	if !policy.AllowDirectDownload && !policy.AllowSwarmClient {
		return "no transport allowed"
	}
	return "no reachable transport"
}
