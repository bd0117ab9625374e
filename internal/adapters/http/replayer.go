// Package http implements the HTTP-facing adapters: the replayer that sends
// queued requests to the API and the reachability probe.
package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"

	"github.com/bft-labs/wardsync/internal/domain"
	"github.com/bft-labs/wardsync/internal/ports"
	"github.com/bft-labs/wardsync/pkg/log"
)

// maxResponseBody caps how much of a response body is kept.
const maxResponseBody = 1 << 20

// Transport error codes carried in domain.ReplayError.Code.
const (
	CodeNetwork  = "ENETWORK"
	CodeTimeout  = "ETIMEDOUT"
	CodeCanceled = "ECANCELED"
)

// ReplayerConfig holds the request shaping settings.
type ReplayerConfig struct {
	// BaseURL is prefixed to relative queue URLs.
	BaseURL string

	// AuthToken, if set, is sent as a bearer token unless the queued
	// request carries its own Authorization header.
	AuthToken string

	// IdempotencyHeader names the header carrying the entry's idempotency
	// key. Empty disables it.
	IdempotencyHeader string
}

// Replayer implements ports.Replayer using HTTP.
type Replayer struct {
	client ports.HTTPClient
	cfg    ReplayerConfig
	logger log.Logger
}

// NewReplayer creates a new HTTP replayer.
func NewReplayer(client ports.HTTPClient, cfg ReplayerConfig, logger log.Logger) *Replayer {
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Replayer{
		client: client,
		cfg:    cfg,
		logger: logger,
	}
}

// Replay sends req and resolves with the response status and body.
// Any non-2xx status or transport failure is returned as *domain.ReplayError.
func (r *Replayer) Replay(ctx context.Context, req domain.QueuedRequest) (domain.ReplayResponse, error) {
	var body io.Reader
	if req.HasBody() {
		body = bytes.NewReader(req.Body)
	}

	target := r.resolve(req.URL)
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, target, body)
	if err != nil {
		return domain.ReplayResponse{}, &domain.ReplayError{Message: fmt.Sprintf("build request: %v", err), Code: CodeNetwork}
	}

	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}
	if body != nil && httpReq.Header.Get("Content-Type") == "" {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	httpReq.Header.Set("Accept", "application/json")
	if r.cfg.AuthToken != "" && httpReq.Header.Get("Authorization") == "" {
		httpReq.Header.Set("Authorization", "Bearer "+r.cfg.AuthToken)
	}
	if r.cfg.IdempotencyHeader != "" && req.IdempotencyKey != "" {
		httpReq.Header.Set(r.cfg.IdempotencyHeader, req.IdempotencyKey)
	}

	resp, err := r.client.Do(httpReq)
	if err != nil {
		return domain.ReplayResponse{}, transportError(ctx, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return domain.ReplayResponse{}, &domain.ReplayError{
			Message: fmt.Sprintf("read response: %v", err),
			Code:    CodeNetwork,
			Status:  resp.StatusCode,
		}
	}

	if resp.StatusCode/100 != 2 {
		return domain.ReplayResponse{}, statusError(resp.StatusCode, respBody)
	}

	r.logger.Debug("replayed request",
		log.String("id", req.ID),
		log.String("method", req.Method),
		log.String("url", target),
		log.Int("status", resp.StatusCode),
	)

	return domain.ReplayResponse{Status: resp.StatusCode, Data: responseData(respBody)}, nil
}

func (r *Replayer) resolve(u string) string {
	if strings.HasPrefix(u, "http://") || strings.HasPrefix(u, "https://") || r.cfg.BaseURL == "" {
		return u
	}
	if !strings.HasPrefix(u, "/") {
		u = "/" + u
	}
	return r.cfg.BaseURL + u
}

// responseData keeps JSON bodies as-is and encodes anything else as a JSON string.
func responseData(b []byte) json.RawMessage {
	b = bytes.TrimSpace(b)
	if len(b) == 0 {
		return nil
	}
	if json.Valid(b) {
		return json.RawMessage(b)
	}
	enc, _ := json.Marshal(string(b))
	return enc
}

// apiError is the error body shape of the API.
type apiError struct {
	Message string `json:"message"`
	Error   string `json:"error"`
	Code    string `json:"code"`
}

func statusError(status int, body []byte) *domain.ReplayError {
	e := &domain.ReplayError{Status: status}

	var ae apiError
	if err := json.Unmarshal(body, &ae); err == nil {
		e.Code = ae.Code
		e.Message = ae.Message
		if e.Message == "" {
			e.Message = ae.Error
		}
	}
	if e.Message == "" {
		e.Message = strings.TrimSpace(string(body))
	}
	if e.Message == "" {
		e.Message = http.StatusText(status)
	}
	return e
}

func transportError(ctx context.Context, err error) *domain.ReplayError {
	code := CodeNetwork
	var ne net.Error
	switch {
	case errors.Is(ctx.Err(), context.Canceled):
		code = CodeCanceled
	case errors.Is(err, context.DeadlineExceeded), errors.As(err, &ne) && ne.Timeout():
		code = CodeTimeout
	}
	return &domain.ReplayError{Message: err.Error(), Code: code}
}
