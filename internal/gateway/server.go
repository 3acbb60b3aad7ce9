// Package gateway - server.go runs the dual-stack HTTP listener.
//
// DESIGN: One http.Server, two sockets. Binding "tcp4 0.0.0.0:port" and
// "tcp6 [::]:port" separately guarantees the same port serves both address
// families regardless of the platform's IPV6_V6ONLY default. A host without
// one family degrades to the other with a warning; a host with neither cannot
// serve and startup fails.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/rs/zerolog/log"
)

// Start binds the dual-stack listeners and serves until ctx is cancelled,
// then shuts down gracefully within the configured timeout.
func (g *Gateway) Start(ctx context.Context) error {
	server := &http.Server{
		Handler:      g.Handler(),
		ReadTimeout:  g.config.Server.ReadTimeout.Std(),
		WriteTimeout: g.config.Server.WriteTimeout.Std(),
	}

	listeners, err := g.bindListeners()
	if err != nil {
		return err
	}

	errCh := make(chan error, len(listeners))
	for _, ln := range listeners {
		go func(ln net.Listener) {
			if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("serving on %s: %w", ln.Addr(), err)
			}
		}(ln)
	}

	log.Info().
		Int("port", g.config.Server.Port).
		Str("backend", g.config.Backend.URL).
		Msg("enrichment gateway listening")

	select {
	case <-ctx.Done():
	case err := <-errCh:
		_ = g.Close()
		return err
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(),
		g.config.Server.ShutdownTimeout.Std())
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("graceful shutdown incomplete, closing")
		_ = server.Close()
	}
	return g.Close()
}

// bindListeners opens the IPv4 and IPv6 sockets on the configured port.
// Missing support for one family is tolerated; both failing is an error.
func (g *Gateway) bindListeners() ([]net.Listener, error) {
	port := g.config.Server.Port
	var listeners []net.Listener

	ln4, err4 := net.Listen("tcp4", fmt.Sprintf("0.0.0.0:%d", port))
	if err4 == nil {
		listeners = append(listeners, ln4)
	} else {
		log.Warn().Err(err4).Msg("IPv4 listener unavailable")
	}

	ln6, err6 := net.Listen("tcp6", fmt.Sprintf("[::]:%d", port))
	if err6 == nil {
		listeners = append(listeners, ln6)
	} else {
		log.Warn().Err(err6).Msg("IPv6 listener unavailable")
	}

	if len(listeners) == 0 {
		return nil, fmt.Errorf("binding port %d: ipv4: %v, ipv6: %v", port, err4, err6)
	}
	return listeners, nil
}
