// HTTP request handling for the enrichment gateway.
//
// DESIGN: Main request flow:
//   - handleEnrich(): Entry point for classification requests
//   - extract -> fetch -> augment -> forward, then relay the backend response
//
// Per-entity lookup failures degrade to an unenriched forward; only a
// malformed request (400) or an unreachable backend (502) fails the request.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/tidwall/gjson"

	"github.com/mailscope/enrichment-gateway/internal/augment"
	"github.com/mailscope/enrichment-gateway/internal/config"
	"github.com/mailscope/enrichment-gateway/internal/extract"
	"github.com/mailscope/enrichment-gateway/internal/forward"
	"github.com/mailscope/enrichment-gateway/internal/monitoring"
)

// HeaderRequestID carries the caller's request ID, generated when absent.
const HeaderRequestID = "X-Request-ID"

// writeError writes a JSON error response.
func (g *Gateway) writeError(w http.ResponseWriter, msg string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"error": map[string]string{"message": msg, "type": "gateway_error"},
	})
}

// handleHealth returns gateway health status.
func (g *Gateway) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{
		"status": "ok",
		"time":   time.Now().Format(time.RFC3339),
	})
}

// handleEnrich processes a classification request through the enrichment pipeline.
func (g *Gateway) handleEnrich(w http.ResponseWriter, r *http.Request) {
	startTime := time.Now()
	requestID := g.getRequestID(r)

	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, config.MaxRequestBodySize)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		g.writeError(w, "failed to read request", http.StatusBadRequest)
		return
	}

	messages, ok := parseMessages(body)
	if !ok {
		log.Debug().
			Str("request_id", requestID).
			Int("body_size", len(body)).
			Msg("rejecting malformed request")
		g.metrics.RecordRequest(false, false)
		g.writeError(w, "request must be JSON with a non-empty messages array", http.StatusBadRequest)
		return
	}

	entities := g.extractor.Extract(messages)

	fetchStart := time.Now()
	results := g.fetcher.FetchAll(r.Context(), entities)
	fetchLatency := time.Since(fetchStart)

	lookupFailures := 0
	for _, res := range results {
		if !res.Success {
			lookupFailures++
		}
		g.metrics.RecordLookup(res.Success, res.Attempts)
		g.tracker.RecordLookup(&monitoring.LookupEvent{
			RequestID: requestID,
			Timestamp: time.Now(),
			Kind:      string(res.Entity.Kind),
			Query:     res.Entity.Value,
			Attempts:  res.Attempts,
			Success:   res.Success,
		})
	}

	enrichedBody, enriched := augment.Augment(body, results)

	log.Info().
		Str("request_id", requestID).
		Int("entities", len(entities)).
		Int("lookup_failures", lookupFailures).
		Bool("enriched", enriched).
		Dur("fetch_latency", fetchLatency).
		Msg("request enrichment complete")

	forwardStart := time.Now()
	resp, err := g.forwarder.Forward(r.Context(), enrichedBody, r.Header)
	forwardLatency := time.Since(forwardStart)

	if err != nil {
		status := http.StatusBadGateway
		msg := "backend unavailable"
		var unavailable *forward.BackendUnavailableError
		if errors.As(err, &unavailable) {
			msg = unavailable.Error()
		}
		log.Error().Err(err).Str("request_id", requestID).Msg("backend forward failed")

		g.metrics.RecordBackendFailure()
		g.metrics.RecordRequest(false, enriched)
		g.recordRequestEvent(r, requestID, startTime, status, len(body), 0,
			len(entities), len(results), lookupFailures, enriched, false, msg,
			fetchLatency, forwardLatency)
		g.writeError(w, msg, status)
		return
	}

	copyHeaders(w, resp.Header)
	w.WriteHeader(resp.StatusCode)
	_, _ = w.Write(resp.Body)

	g.metrics.RecordRequest(true, enriched)
	g.recordRequestEvent(r, requestID, startTime, resp.StatusCode, len(body),
		len(resp.Body), len(entities), len(results), lookupFailures, enriched,
		true, "", fetchLatency, forwardLatency)
}

// parseMessages validates the body and pulls role/content pairs out of the
// messages array. ok is false when the body is not JSON or the array is
// missing or empty.
func parseMessages(body []byte) ([]extract.Message, bool) {
	if !gjson.ValidBytes(body) {
		return nil, false
	}
	arr := gjson.GetBytes(body, "messages")
	if !arr.IsArray() {
		return nil, false
	}
	elements := arr.Array()
	if len(elements) == 0 {
		return nil, false
	}

	messages := make([]extract.Message, 0, len(elements))
	for _, el := range elements {
		messages = append(messages, extract.Message{
			Role:    el.Get("role").String(),
			Content: el.Get("content").String(),
		})
	}
	return messages, true
}

// recordRequestEvent emits one telemetry event to every enabled sink.
func (g *Gateway) recordRequestEvent(r *http.Request, requestID string,
	startTime time.Time, status, reqSize, respSize, entities, lookups,
	lookupFailures int, enriched, success bool, errMsg string,
	fetchLatency, forwardLatency time.Duration) {

	event := &monitoring.RequestEvent{
		RequestID:        requestID,
		Timestamp:        startTime,
		Method:           r.Method,
		Path:             r.URL.Path,
		ClientIP:         clientIP(r.RemoteAddr),
		StatusCode:       status,
		RequestBodySize:  reqSize,
		ResponseBodySize: respSize,
		Entities:         entities,
		Lookups:          lookups,
		LookupFailures:   lookupFailures,
		Enriched:         enriched,
		Success:          success,
		Error:            errMsg,
		FetchLatencyMs:   fetchLatency.Milliseconds(),
		ForwardLatencyMs: forwardLatency.Milliseconds(),
		TotalLatencyMs:   time.Since(startTime).Milliseconds(),
	}

	g.tracker.RecordRequest(event)
	if g.store != nil {
		// The request context may already be cancelled by the time we get here.
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := g.store.SaveRequest(ctx, event); err != nil {
			log.Error().Err(err).Str("request_id", requestID).Msg("event store write failed")
		}
	}
}

// getRequestID gets or generates a request ID.
func (g *Gateway) getRequestID(r *http.Request) string {
	if id := r.Header.Get(HeaderRequestID); id != "" {
		return id
	}
	return uuid.New().String()
}

// copyHeaders copies backend response headers to the client, skipping length
// headers the server recomputes for the relayed body.
func copyHeaders(w http.ResponseWriter, src http.Header) {
	for k, v := range src {
		switch http.CanonicalHeaderKey(k) {
		case "Content-Length", "Transfer-Encoding", "Connection":
			continue
		}
		w.Header()[k] = v
	}
}

// clientIP strips the port from a remote address.
func clientIP(remoteAddr string) string {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		return remoteAddr
	}
	return host
}
