// Package forward relays the augmented request to the inference backend.
//
// DESIGN: Exactly one attempt per request. Retrying a classification call
// could trigger duplicate side effects on the backend, so connection failures
// surface as a typed error for the listener to report instead of being
// silently retried. Any HTTP status the backend returns - including 4xx/5xx -
// is relayed unchanged; only transport-level failure is an error here.
package forward

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/mailscope/enrichment-gateway/internal/config"
	"github.com/mailscope/enrichment-gateway/internal/utils"
)

// BackendResponse is the backend's reply, relayed verbatim to the caller.
type BackendResponse struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// BackendUnavailableError reports a transport-level failure reaching the backend.
type BackendUnavailableError struct {
	URL string
	Err error
}

func (e *BackendUnavailableError) Error() string {
	return fmt.Sprintf("backend %s unavailable: %v", e.URL, e.Err)
}

func (e *BackendUnavailableError) Unwrap() error { return e.Err }

// skipHeaders are hop-by-hop or length-dependent headers never copied upstream.
var skipHeaders = map[string]bool{
	"Host":              true,
	"Content-Length":    true,
	"Transfer-Encoding": true,
	"Connection":        true,
	"Accept-Encoding":   true,
}

// Forwarder issues the single backend call over a pooled connection.
type Forwarder struct {
	url        string
	httpClient *http.Client
}

// NewForwarder creates a forwarder for the configured backend.
func NewForwarder(cfg config.BackendConfig) *Forwarder {
	return &Forwarder{
		url: cfg.URL,
		httpClient: &http.Client{
			Timeout: cfg.Timeout.Std(),
			Transport: &http.Transport{
				MaxIdleConns:        20,
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

// Forward POSTs body to the backend, carrying over the caller's headers minus
// hop-by-hop ones, and returns the backend's response unchanged.
func (f *Forwarder) Forward(ctx context.Context, body []byte, inbound http.Header) (*BackendResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building backend request: %w", err)
	}

	for name, values := range inbound {
		if skipHeaders[http.CanonicalHeaderKey(name)] {
			continue
		}
		for _, v := range values {
			req.Header.Add(name, v)
		}
	}
	req.Header.Set("Content-Type", "application/json")

	if auth := req.Header.Get("Authorization"); auth != "" {
		log.Debug().
			Str("auth", utils.MaskKey(strings.TrimPrefix(auth, "Bearer "))).
			Msg("forward: relaying caller credentials")
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, &BackendUnavailableError{URL: f.url, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, config.MaxResponseSize))
	if err != nil {
		return nil, &BackendUnavailableError{URL: f.url, Err: err}
	}

	if resp.StatusCode >= 400 {
		log.Debug().
			Int("status", resp.StatusCode).
			Int("body_size", len(respBody)).
			Msg("forward: backend returned error status")
	}

	return &BackendResponse{
		StatusCode: resp.StatusCode,
		Header:     resp.Header.Clone(),
		Body:       respBody,
	}, nil
}
