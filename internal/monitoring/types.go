// Package monitoring - types.go defines telemetry event shapes.
package monitoring

import "time"

// TelemetryConfig controls which telemetry sinks are active.
type TelemetryConfig struct {
	Enabled     bool
	LogPath     string // JSONL request log, "" disables
	DBPath      string // SQLite event store, "" disables
	LogToStdout bool
}

// RequestEvent captures one request through the gateway, end to end.
type RequestEvent struct {
	RequestID        string    `json:"request_id"`
	Timestamp        time.Time `json:"timestamp"`
	Method           string    `json:"method"`
	Path             string    `json:"path"`
	ClientIP         string    `json:"client_ip"`
	StatusCode       int       `json:"status_code"`
	RequestBodySize  int       `json:"request_body_size"`
	ResponseBodySize int       `json:"response_body_size"`
	Entities         int       `json:"entities"`
	Lookups          int       `json:"lookups"`
	LookupFailures   int       `json:"lookup_failures"`
	Enriched         bool      `json:"enriched"`
	Success          bool      `json:"success"`
	Error            string    `json:"error,omitempty"`
	FetchLatencyMs   int64     `json:"fetch_latency_ms"`
	ForwardLatencyMs int64     `json:"forward_latency_ms"`
	TotalLatencyMs   int64     `json:"total_latency_ms"`
}

// LookupEvent captures one entity lookup, including retries.
type LookupEvent struct {
	RequestID string    `json:"request_id"`
	Timestamp time.Time `json:"timestamp"`
	Kind      string    `json:"kind"`
	Query     string    `json:"query"`
	Attempts  int       `json:"attempts"`
	Success   bool      `json:"success"`
	LatencyMs int64     `json:"latency_ms"`
}
