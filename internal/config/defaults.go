// Package config - defaults.go centralizes magic numbers and default values.
//
// DESIGN: All default values that appear in multiple places should be defined here.
// This makes configuration more maintainable and auditable.
package config

import "time"

// =============================================================================
// SERVER DEFAULTS
// =============================================================================

// DefaultPort is the listen port for the gateway (both address families).
const DefaultPort = 8080

// DefaultReadTimeout for the HTTP server.
const DefaultReadTimeout = 1 * time.Minute

// DefaultServerWriteTimeout for the HTTP server. Generous because the backend
// call (up to backend.timeout) happens inside the handler.
const DefaultServerWriteTimeout = 2 * time.Minute

// DefaultShutdownTimeout bounds graceful shutdown.
const DefaultShutdownTimeout = 10 * time.Second

// MaxRequestBodySize is the maximum allowed request body (50MB).
const MaxRequestBodySize = 50 * 1024 * 1024

// MaxResponseSize is the maximum allowed upstream response body (50MB).
const MaxResponseSize = 50 * 1024 * 1024

// =============================================================================
// BACKEND DEFAULTS
// =============================================================================

// DefaultBackendURL is the local Ollama OpenAI-compatible endpoint.
const DefaultBackendURL = "http://127.0.0.1:11434/v1/chat/completions"

// DefaultBackendTimeout is the single-attempt deadline for the backend call.
const DefaultBackendTimeout = 45 * time.Second

// =============================================================================
// SEARCH / ENRICHMENT DEFAULTS
// =============================================================================

// DefaultSearchBaseURL is the Leta search frontend.
const DefaultSearchBaseURL = "https://leta.mullvad.net"

// DefaultSearchEngine is the engine query parameter sent to Leta.
const DefaultSearchEngine = "brave"

// DefaultSearchTimeout is the per-attempt deadline for one search call.
const DefaultSearchTimeout = 10 * time.Second

// DefaultMaxRetries is how many times a transiently failed lookup is retried
// after the initial attempt.
const DefaultMaxRetries = 2

// DefaultBackoffBase is the first retry delay; it doubles each attempt.
const DefaultBackoffBase = 1 * time.Second

// DefaultBackoffMax caps the computed retry delay.
const DefaultBackoffMax = 8 * time.Second

// DefaultFetchConcurrency bounds concurrent lookups within one request.
const DefaultFetchConcurrency = 3

// DefaultMaxResults is how many search results make up one entity summary.
const DefaultMaxResults = 2

// DefaultMaxDomains caps domain entities extracted from one request.
const DefaultMaxDomains = 3
