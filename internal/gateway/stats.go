// Package gateway - stats.go exposes aggregated metrics as JSON.
//
// GET /stats returns request, lookup, and uptime metrics.
package gateway

import (
	"encoding/json"
	"net"
	"net/http"
)

// handleStats returns aggregated metrics as JSON.
// Restricted to localhost to prevent external access to operational metrics.
func (g *Gateway) handleStats(w http.ResponseWriter, r *http.Request) {
	if !isLoopback(r.RemoteAddr) {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(g.metrics.FullStats())
}

// isLoopback reports whether the remote address is a loopback interface.
func isLoopback(remoteAddr string) bool {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		host = remoteAddr
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
