package http

import (
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/bft-labs/wardsync/internal/ports"
	"github.com/bft-labs/wardsync/pkg/log"
)

// Default probe settings.
const (
	DefaultProbeInterval = 15 * time.Second
	DefaultProbeTimeout  = 5 * time.Second
)

// ProbeConfig holds the reachability probe settings.
type ProbeConfig struct {
	// URL is the full health endpoint.
	URL string

	// Interval is the delay between probes while online, and the cap of
	// the backoff while offline.
	Interval time.Duration

	// Timeout bounds a single probe.
	Timeout time.Duration

	// BackoffInitial is the first retry delay after going offline.
	BackoffInitial time.Duration
}

// Probe implements ports.ConnectivitySource by polling a health endpoint.
// Any HTTP response counts as reachable; only transport failures mean offline.
type Probe struct {
	client ports.HTTPClient
	cfg    ProbeConfig
	logger log.Logger
}

// NewProbe creates a new probe.
func NewProbe(client ports.HTTPClient, cfg ProbeConfig, logger log.Logger) *Probe {
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultProbeInterval
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultProbeTimeout
	}
	if cfg.BackoffInitial <= 0 {
		cfg.BackoffInitial = DefaultBackoffInitial
	}
	return &Probe{client: client, cfg: cfg, logger: logger}
}

// Check performs one probe.
func (p *Probe) Check(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.cfg.URL, nil)
	if err != nil {
		p.logger.Warn("invalid probe url", log.String("url", p.cfg.URL), log.Err(err))
		return false
	}

	resp, err := p.client.Do(req)
	if err != nil {
		p.logger.Debug("probe failed", log.String("url", p.cfg.URL), log.Err(err))
		return false
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBody))
	resp.Body.Close()
	return true
}

// Run probes until ctx is canceled, reporting each observation.
func (p *Probe) Run(ctx context.Context, report func(online bool)) error {
	b := newBackoff(p.cfg.BackoffInitial, p.cfg.Interval)

	for {
		online := p.Check(ctx)
		if ctx.Err() != nil {
			return nil
		}
		report(online)

		delay := p.cfg.Interval
		if online {
			b.Reset()
		} else {
			delay = b.Next()
		}

		if err := wait(ctx, delay); err != nil {
			return nil
		}
	}
}

// HealthURL joins the API base URL and the health path.
func HealthURL(baseURL, path string) string {
	baseURL = strings.TrimRight(baseURL, "/")
	if path == "" {
		return baseURL
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return baseURL + path
}
