// Package monitoring - telemetry.go records events to JSONL files.
//
// DESIGN: Tracker writes structured events as JSONL (one JSON object per line):
//   - RequestEvent: Every request through the gateway
//   - LookupEvent:  Each entity lookup, with attempt counts
//
// Events are appended to the file immediately after each event so the log can
// be tailed in real time.
package monitoring

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog/log"
)

// Tracker handles telemetry event recording to file and stdout.
type Tracker struct {
	config       TelemetryConfig
	logPath      string
	requestCount int
	mu           sync.Mutex
}

// NewTracker creates a new telemetry tracker.
func NewTracker(cfg TelemetryConfig) (*Tracker, error) {
	t := &Tracker{
		config: cfg,
	}

	if !cfg.Enabled || cfg.LogPath == "" {
		return t, nil
	}

	if err := os.MkdirAll(filepath.Dir(cfg.LogPath), 0750); err != nil {
		return nil, err
	}
	t.logPath = cfg.LogPath
	if _, err := os.Stat(cfg.LogPath); os.IsNotExist(err) {
		if f, err := os.Create(cfg.LogPath); err == nil {
			_ = f.Close()
		}
	}

	return t, nil
}

// appendJSONL appends a single JSON object as a line to the file.
func appendJSONL(path string, event any) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	data = append(data, '\n')

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	_, err = f.Write(data)
	return err
}

// RecordRequest records a request event.
func (t *Tracker) RecordRequest(event *RequestEvent) {
	if !t.config.Enabled {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.config.LogToStdout {
		reqID := event.RequestID
		if len(reqID) > 8 {
			reqID = reqID[:8]
		}
		log.Info().
			Str("request_id", reqID).
			Int("entities", event.Entities).
			Bool("enriched", event.Enriched).
			Bool("success", event.Success).
			Msg("telemetry")
	}

	if t.logPath != "" {
		if err := appendJSONL(t.logPath, event); err != nil {
			log.Error().Err(err).Str("path", t.logPath).Msg("telemetry: failed to write request event")
		} else {
			t.requestCount++
		}
	}
}

// RecordLookup records an entity lookup event.
func (t *Tracker) RecordLookup(event *LookupEvent) {
	if !t.config.Enabled || t.logPath == "" {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if err := appendJSONL(t.logPath, event); err != nil {
		log.Error().Err(err).Str("path", t.logPath).Msg("telemetry: failed to write lookup event")
	}
}

// Close logs a session summary. The underlying file is opened per write, so
// there is nothing to release.
func (t *Tracker) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.logPath != "" && t.requestCount > 0 {
		log.Info().
			Str("path", t.logPath).
			Int("events", t.requestCount).
			Msg("telemetry: session complete")
	}

	return nil
}
