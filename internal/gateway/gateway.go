// Package gateway wires the enrichment pipeline behind a dual-stack HTTP server.
//
// DESIGN: Request flow:
//   - handleEnrich():  Validate, extract entities, fetch context, augment, forward
//   - handleHealth():  Liveness probe
//   - handleStats():   Operational metrics, loopback only
//
// The gateway is stateless between requests. Every collaborator is constructed
// once in New and shared; per-request state lives on the stack of the handler
// goroutine.
package gateway

import (
	"fmt"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/mailscope/enrichment-gateway/internal/config"
	"github.com/mailscope/enrichment-gateway/internal/enrich"
	"github.com/mailscope/enrichment-gateway/internal/extract"
	"github.com/mailscope/enrichment-gateway/internal/forward"
	"github.com/mailscope/enrichment-gateway/internal/monitoring"
	"github.com/mailscope/enrichment-gateway/internal/search"
)

// Gateway is the enrichment proxy: extractor, fetcher, augmenter and forwarder
// behind one HTTP handler.
type Gateway struct {
	config    *config.Config
	extractor *extract.Extractor
	fetcher   *enrich.Fetcher
	forwarder *forward.Forwarder
	metrics   *monitoring.MetricsCollector
	tracker   *monitoring.Tracker
	store     *monitoring.Store
}

// New constructs a gateway from validated configuration.
func New(cfg *config.Config) (*Gateway, error) {
	tracker, err := monitoring.NewTracker(monitoring.TelemetryConfig{
		Enabled:     cfg.Monitoring.TelemetryPath != "",
		LogPath:     cfg.Monitoring.TelemetryPath,
		LogToStdout: false,
	})
	if err != nil {
		return nil, fmt.Errorf("initializing telemetry: %w", err)
	}

	var store *monitoring.Store
	if cfg.Monitoring.DBPath != "" {
		store, err = monitoring.NewStore(cfg.Monitoring.DBPath)
		if err != nil {
			return nil, fmt.Errorf("initializing event store: %w", err)
		}
		log.Info().Str("path", cfg.Monitoring.DBPath).Msg("event store enabled")
	}

	return &Gateway{
		config:    cfg,
		extractor: extract.NewExtractor(cfg.Search.MaxDomains),
		fetcher:   enrich.NewFetcher(search.NewClient(cfg.Search), cfg.Search),
		forwarder: forward.NewForwarder(cfg.Backend),
		metrics:   monitoring.NewMetricsCollector(),
		tracker:   tracker,
		store:     store,
	}, nil
}

// Handler returns the gateway's HTTP routes.
func (g *Gateway) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", g.handleEnrich)
	mux.HandleFunc("/v1/chat/completions", g.handleEnrich)
	mux.HandleFunc("/healthz", g.handleHealth)
	mux.HandleFunc("/stats", g.handleStats)
	return mux
}

// Close flushes telemetry and releases the event store.
func (g *Gateway) Close() error {
	_ = g.tracker.Close()
	if g.store != nil {
		return g.store.Close()
	}
	return nil
}
