// Package monitoring - metrics.go provides simple counters.
//
// DESIGN: Lightweight in-memory counters for operational metrics:
//   - requests/successes:     Total and successfully relayed request counts
//   - enriched:               Requests that gained a web context message
//   - lookups/lookup_failures: Entity lookup outcomes across all requests
//   - backend_failures:       Requests the backend could not be reached for
//
// For production, export these to Prometheus or similar.
package monitoring

import (
	"fmt"
	"sync/atomic"
	"time"
)

// MetricsCollector collects operational metrics.
type MetricsCollector struct {
	startedAt time.Time

	// Request counters
	requests        atomic.Int64
	successes       atomic.Int64
	enriched        atomic.Int64
	backendFailures atomic.Int64

	// Lookup counters
	lookups        atomic.Int64
	lookupFailures atomic.Int64
	lookupAttempts atomic.Int64
}

// NewMetricsCollector creates a new metrics collector.
func NewMetricsCollector() *MetricsCollector {
	return &MetricsCollector{
		startedAt: time.Now(),
	}
}

// RecordRequest records a request and whether it was relayed successfully.
func (mc *MetricsCollector) RecordRequest(success, enriched bool) {
	mc.requests.Add(1)
	if success {
		mc.successes.Add(1)
	}
	if enriched {
		mc.enriched.Add(1)
	}
}

// RecordBackendFailure records a request the backend was unreachable for.
func (mc *MetricsCollector) RecordBackendFailure() { mc.backendFailures.Add(1) }

// RecordLookup records one entity lookup and the attempts it took.
func (mc *MetricsCollector) RecordLookup(success bool, attempts int) {
	mc.lookups.Add(1)
	mc.lookupAttempts.Add(int64(attempts))
	if !success {
		mc.lookupFailures.Add(1)
	}
}

// StartedAt returns when the metrics collector was created.
func (mc *MetricsCollector) StartedAt() time.Time { return mc.startedAt }

// Stats returns current counters as a flat map.
func (mc *MetricsCollector) Stats() map[string]int64 {
	return map[string]int64{
		"requests":         mc.requests.Load(),
		"successes":        mc.successes.Load(),
		"enriched":         mc.enriched.Load(),
		"backend_failures": mc.backendFailures.Load(),
		"lookups":          mc.lookups.Load(),
		"lookup_failures":  mc.lookupFailures.Load(),
		"lookup_attempts":  mc.lookupAttempts.Load(),
	}
}

// FullStats returns all metrics in a structured format for the /stats endpoint.
func (mc *MetricsCollector) FullStats() StatsResponse {
	uptime := time.Since(mc.startedAt)
	requests := mc.requests.Load()
	successes := mc.successes.Load()
	lookups := mc.lookups.Load()
	failures := mc.lookupFailures.Load()

	var failureRate float64
	if lookups > 0 {
		failureRate = float64(failures) / float64(lookups) * 100
	}

	return StatsResponse{
		Uptime:        formatDuration(uptime),
		UptimeSeconds: int64(uptime.Seconds()),
		StartedAt:     mc.startedAt.Format(time.RFC3339),
		Requests: RequestStats{
			Total:           requests,
			Successful:      successes,
			Failed:          requests - successes,
			Enriched:        mc.enriched.Load(),
			BackendFailures: mc.backendFailures.Load(),
		},
		Lookups: LookupStats{
			Total:       lookups,
			Failed:      failures,
			Attempts:    mc.lookupAttempts.Load(),
			FailureRate: failureRate,
		},
	}
}

// StatsResponse is the structured response for the /stats endpoint.
type StatsResponse struct {
	Uptime        string       `json:"uptime"`
	UptimeSeconds int64        `json:"uptime_seconds"`
	StartedAt     string       `json:"started_at"`
	Requests      RequestStats `json:"requests"`
	Lookups       LookupStats  `json:"lookups"`
}

// RequestStats holds request count metrics.
type RequestStats struct {
	Total           int64 `json:"total"`
	Successful      int64 `json:"successful"`
	Failed          int64 `json:"failed"`
	Enriched        int64 `json:"enriched"`
	BackendFailures int64 `json:"backend_failures"`
}

// LookupStats holds entity lookup metrics.
type LookupStats struct {
	Total       int64   `json:"total"`
	Failed      int64   `json:"failed"`
	Attempts    int64   `json:"attempts"`
	FailureRate float64 `json:"failure_rate"`
}

// formatDuration formats a duration as a human-readable string.
func formatDuration(d time.Duration) string {
	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	minutes := int(d.Minutes()) % 60

	if days > 0 {
		return fmt.Sprintf("%dd %dh %dm", days, hours, minutes)
	}
	if hours > 0 {
		return fmt.Sprintf("%dh %dm", hours, minutes)
	}
	return fmt.Sprintf("%dm", minutes)
}
