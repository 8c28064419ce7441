package clientip

import (
	"net/http"
	"strings"
)

// Unknown is returned when no candidate header carries an address.
const Unknown = "unknown"

// Resolver picks a best-effort client address from a request's
// headers. Precedence, first match wins:
//
//  1. the edge header, a single IP set by the CDN in front of us and
//     not attacker-controlled
//  2. the real-IP header, possibly set by an intermediate proxy
//  3. one entry of the comma-separated forwarded-for chain; which
//     entry is trustworthy depends on the proxy topology, so the index
//     is configurable rather than hardcoded
//
// No IP-syntax validation is performed; the value is telemetry, not an
// access-control input.
type Resolver struct {
	edgeHeader      string
	realIPHeader    string
	forwardedHeader string
	forwardedIndex  int
}

// NewResolver builds a Resolver. forwardedIndex selects which entry of
// the forwarded-for chain to trust; out-of-range indexes clamp to the
// last entry.
func NewResolver(edgeHeader, realIPHeader string, forwardedIndex int) *Resolver {
	if forwardedIndex < 0 {
		forwardedIndex = 0
	}
	return &Resolver{
		edgeHeader:      edgeHeader,
		realIPHeader:    realIPHeader,
		forwardedHeader: "X-Forwarded-For",
		forwardedIndex:  forwardedIndex,
	}
}

// Resolve returns the client address for the request, or Unknown.
func (r *Resolver) Resolve(req *http.Request) string {
	if v := strings.TrimSpace(req.Header.Get(r.edgeHeader)); v != "" {
		return v
	}
	if v := strings.TrimSpace(req.Header.Get(r.realIPHeader)); v != "" {
		return v
	}
	if chain := req.Header.Get(r.forwardedHeader); chain != "" {
		parts := strings.Split(chain, ",")
		idx := r.forwardedIndex
		if idx >= len(parts) {
			idx = len(parts) - 1
		}
		if v := strings.TrimSpace(parts[idx]); v != "" {
			return v
		}
	}
	return Unknown
}
