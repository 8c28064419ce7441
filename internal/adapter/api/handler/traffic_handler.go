package handler

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	json "github.com/goccy/go-json"
	"github.com/klauspost/compress/gzip"

	"github.com/footfall-labs/footfall/internal/domain"
	"github.com/footfall-labs/footfall/internal/usecase"
)

// TrafficHandler serves the dashboard-facing query endpoints. Invalid
// numeric parameters are the one place a user-visible failure is
// right, since they indicate a client bug; everything downstream
// degrades to empty results instead of erroring.
type TrafficHandler struct {
	queries *usecase.QueryService
	logger  *slog.Logger
}

// NewTrafficHandler creates a new TrafficHandler.
func NewTrafficHandler(queries *usecase.QueryService, logger *slog.Logger) *TrafficHandler {
	return &TrafficHandler{queries: queries, logger: logger}
}

// Query handles GET /api/traffic: the full detail query with
// endpoint/method/isBot/time-window filters.
func (h *TrafficHandler) Query(w http.ResponseWriter, r *http.Request) {
	q, ok := h.parseQuery(w, r)
	if !ok {
		return
	}
	respondWithJSON(w, http.StatusOK, h.queries.Events(r.Context(), q))
}

// Incremental handles GET /api/traffic/incremental: events newer than
// the caller's cursor plus the next cursor value.
func (h *TrafficHandler) Incremental(w http.ResponseWriter, r *http.Request) {
	since, ok := parseInt64Param(w, r, "since", 0)
	if !ok {
		return
	}
	limit, ok := parsePositiveParam(w, r, "limit", 0)
	if !ok {
		return
	}
	respondWithJSON(w, http.StatusOK, h.queries.Incremental(r.Context(), since, limit))
}

// Snapshot handles GET /api/traffic/snapshot: the combined first-paint
// payload.
func (h *TrafficHandler) Snapshot(w http.ResponseWriter, r *http.Request) {
	limit, ok := parsePositiveParam(w, r, "limit", 0)
	if !ok {
		return
	}
	respondWithJSON(w, http.StatusOK, h.queries.CombinedSnapshot(r.Context(), limit))
}

// Series handles GET /api/traffic/series: bucketed counters for the
// chart.
func (h *TrafficHandler) Series(w http.ResponseWriter, r *http.Request) {
	windowMinutes, ok := parsePositiveParam(w, r, "windowMinutes", 5)
	if !ok {
		return
	}
	intervalSeconds, ok := parsePositiveParam(w, r, "intervalSeconds", 10)
	if !ok {
		return
	}
	respondWithJSON(w, http.StatusOK, h.queries.Series(r.Context(), windowMinutes, intervalSeconds))
}

// Export handles GET /api/traffic/export: the retained history as
// gzip-compressed NDJSON, honoring the same filters as the full query.
// Bounded by the store cap, so the response stays small.
func (h *TrafficHandler) Export(w http.ResponseWriter, r *http.Request) {
	q, ok := h.parseQuery(w, r)
	if !ok {
		return
	}

	events := h.queries.Events(r.Context(), q)

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.Header().Set("Content-Encoding", "gzip")
	w.Header().Set("Content-Disposition", `attachment; filename="traffic_events.ndjson.gz"`)

	gz := gzip.NewWriter(w)
	defer gz.Close()

	enc := json.NewEncoder(gz)
	for _, event := range events {
		if err := enc.Encode(event); err != nil {
			h.logger.Warn("failed to encode event for export", "id", event.ID, "error", err)
			return
		}
	}
}

func (h *TrafficHandler) parseQuery(w http.ResponseWriter, r *http.Request) (domain.TrafficQuery, bool) {
	q := domain.TrafficQuery{
		Endpoint: r.URL.Query().Get("endpoint"),
		Method:   r.URL.Query().Get("method"),
	}

	if v := r.URL.Query().Get("isBot"); v != "" {
		isBot, err := strconv.ParseBool(v)
		if err != nil {
			respondWithError(w, http.StatusBadRequest, fmt.Sprintf("invalid isBot parameter %q: want true or false", v))
			return q, false
		}
		q.IsBot = &isBot
	}

	since, ok := parseInt64Param(w, r, "since", 0)
	if !ok {
		return q, false
	}
	q.SinceMs = since

	if q.SinceMs == 0 {
		windowMinutes, ok := parsePositiveParam(w, r, "timeWindow", 0)
		if !ok {
			return q, false
		}
		if windowMinutes > 0 {
			q.SinceMs = h.queries.SinceForWindow(windowMinutes)
		}
	}

	limit, ok := parsePositiveParam(w, r, "limit", 0)
	if !ok {
		return q, false
	}
	q.Limit = limit

	return q, true
}

func parseInt64Param(w http.ResponseWriter, r *http.Request, name string, fallback int64) (int64, bool) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return fallback, true
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n < 0 {
		respondWithError(w, http.StatusBadRequest, fmt.Sprintf("invalid %s parameter %q: want a non-negative integer", name, v))
		return 0, false
	}
	return n, true
}

func parsePositiveParam(w http.ResponseWriter, r *http.Request, name string, fallback int) (int, bool) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return fallback, true
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		respondWithError(w, http.StatusBadRequest, fmt.Sprintf("invalid %s parameter %q: want a positive integer", name, v))
		return 0, false
	}
	return n, true
}
