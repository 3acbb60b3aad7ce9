package monitoring

import (
	"bufio"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func TestMetricsCollector_Counters(t *testing.T) {
	mc := NewMetricsCollector()

	mc.RecordRequest(true, true)
	mc.RecordRequest(true, false)
	mc.RecordRequest(false, false)
	mc.RecordBackendFailure()
	mc.RecordLookup(true, 1)
	mc.RecordLookup(false, 3)

	stats := mc.Stats()
	assert.Equal(t, int64(3), stats["requests"])
	assert.Equal(t, int64(2), stats["successes"])
	assert.Equal(t, int64(1), stats["enriched"])
	assert.Equal(t, int64(1), stats["backend_failures"])
	assert.Equal(t, int64(2), stats["lookups"])
	assert.Equal(t, int64(1), stats["lookup_failures"])
	assert.Equal(t, int64(4), stats["lookup_attempts"])
}

func TestMetricsCollector_FullStats(t *testing.T) {
	mc := NewMetricsCollector()
	mc.RecordRequest(true, true)
	mc.RecordLookup(true, 1)
	mc.RecordLookup(false, 2)

	full := mc.FullStats()
	assert.Equal(t, int64(1), full.Requests.Total)
	assert.Equal(t, int64(1), full.Requests.Enriched)
	assert.Equal(t, int64(2), full.Lookups.Total)
	assert.Equal(t, int64(1), full.Lookups.Failed)
	assert.InDelta(t, 50.0, full.Lookups.FailureRate, 0.01)
	assert.NotEmpty(t, full.StartedAt)
}

func TestTracker_WritesJSONL(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "telemetry", "requests.jsonl")
	tracker, err := NewTracker(TelemetryConfig{Enabled: true, LogPath: logPath})
	require.NoError(t, err)

	tracker.RecordRequest(&RequestEvent{
		RequestID: "req-1",
		Timestamp: time.Now(),
		Entities:  2,
		Enriched:  true,
		Success:   true,
	})
	tracker.RecordLookup(&LookupEvent{
		RequestID: "req-1",
		Query:     "example.com",
		Attempts:  1,
		Success:   true,
	})
	require.NoError(t, tracker.Close())

	f, err := os.Open(logPath)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	require.Len(t, lines, 2)
	assert.Equal(t, "req-1", gjson.Get(lines[0], "request_id").String())
	assert.True(t, gjson.Get(lines[0], "enriched").Bool())
	assert.Equal(t, "example.com", gjson.Get(lines[1], "query").String())
}

func TestTracker_DisabledIsNoOp(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "requests.jsonl")
	tracker, err := NewTracker(TelemetryConfig{Enabled: false, LogPath: logPath})
	require.NoError(t, err)

	tracker.RecordRequest(&RequestEvent{RequestID: "req-1"})
	require.NoError(t, tracker.Close())

	_, err = os.Stat(logPath)
	assert.True(t, os.IsNotExist(err))
}

func TestStore_SaveAndQuery(t *testing.T) {
	store, err := NewStore(filepath.Join(t.TempDir(), "events.db"))
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	ctx := context.Background()
	first := &RequestEvent{
		RequestID:       "req-1",
		Timestamp:       time.Now().Add(-time.Minute),
		ClientIP:        "127.0.0.1",
		StatusCode:      200,
		RequestBodySize: 120,
		Entities:        1,
		Lookups:         1,
		Enriched:        true,
		Success:         true,
		TotalLatencyMs:  42,
	}
	second := &RequestEvent{
		RequestID:      "req-2",
		Timestamp:      time.Now(),
		StatusCode:     502,
		Error:          "backend unavailable",
		TotalLatencyMs: 7,
	}
	require.NoError(t, store.SaveRequest(ctx, first))
	require.NoError(t, store.SaveRequest(ctx, second))

	events, err := store.RecentRequests(ctx, 10)
	require.NoError(t, err)
	require.Len(t, events, 2)

	// Most recent first.
	assert.Equal(t, "req-2", events[0].RequestID)
	assert.Equal(t, "backend unavailable", events[0].Error)
	assert.False(t, events[0].Success)

	assert.Equal(t, "req-1", events[1].RequestID)
	assert.True(t, events[1].Enriched)
	assert.True(t, events[1].Success)
	assert.Equal(t, int64(42), events[1].TotalLatencyMs)
}

func TestStore_EmptyPathRejected(t *testing.T) {
	_, err := NewStore("")
	assert.Error(t, err)
}
