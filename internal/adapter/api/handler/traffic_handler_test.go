package handler

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	json "github.com/goccy/go-json"
	"github.com/klauspost/compress/gzip"

	"github.com/footfall-labs/footfall/internal/adapter/metrics"
	"github.com/footfall-labs/footfall/internal/domain"
	"github.com/footfall-labs/footfall/internal/domain/mocks"
	"github.com/footfall-labs/footfall/internal/usecase"
)

var testMetrics = metrics.NewTrafficMetrics()

func newTestTrafficHandler(t *testing.T, store domain.TrafficStore) *TrafficHandler {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	queries := usecase.NewQueryService(store, testMetrics, logger, 200)
	return NewTrafficHandler(queries, logger)
}

func TestTrafficHandler_InvalidParams(t *testing.T) {
	handler := newTestTrafficHandler(t, &mocks.MockTrafficStore{})

	tests := []struct {
		name    string
		target  string
		serveFn func(http.ResponseWriter, *http.Request)
	}{
		{"non-numeric limit", "/api/traffic?limit=abc", handler.Query},
		{"negative limit", "/api/traffic?limit=-5", handler.Query},
		{"zero limit", "/api/traffic?limit=0", handler.Query},
		{"non-numeric since", "/api/traffic?since=soon", handler.Query},
		{"negative since", "/api/traffic?since=-1", handler.Query},
		{"bad isBot", "/api/traffic?isBot=banana", handler.Query},
		{"zero timeWindow", "/api/traffic?timeWindow=0", handler.Query},
		{"bad incremental since", "/api/traffic/incremental?since=x", handler.Incremental},
		{"zero series window", "/api/traffic/series?windowMinutes=0", handler.Series},
		{"bad series interval", "/api/traffic/series?intervalSeconds=ten", handler.Series},
		{"bad snapshot limit", "/api/traffic/snapshot?limit=-1", handler.Snapshot},
		{"bad export filter", "/api/traffic/export?limit=huge", handler.Export},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.target, nil)
			rec := httptest.NewRecorder()

			tt.serveFn(rec, req)

			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", rec.Code)
			}
			var body map[string]string
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("expected a JSON error body: %v", err)
			}
			if body["error"] == "" {
				t.Error("expected a descriptive error message")
			}
		})
	}
}

func TestTrafficHandler_Query(t *testing.T) {
	store := &mocks.MockTrafficStore{
		QueryResult: []domain.TrafficEvent{
			{ID: "b", Timestamp: 2000, Endpoint: domain.EndpointLogin, Method: "POST"},
			{ID: "a", Timestamp: 1000, Endpoint: domain.EndpointLogin, Method: "POST"},
		},
	}
	handler := newTestTrafficHandler(t, store)

	req := httptest.NewRequest(http.MethodGet, "/api/traffic?endpoint=/api/auth/login&method=POST&isBot=false&limit=10", nil)
	rec := httptest.NewRecorder()
	handler.Query(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var events []domain.TrafficEvent
	if err := json.Unmarshal(rec.Body.Bytes(), &events); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if len(events) != 2 || events[0].ID != "b" {
		t.Fatalf("unexpected events: %+v", events)
	}

	q := store.QueryCalls[0]
	if q.Endpoint != domain.EndpointLogin || q.Method != "POST" || q.IsBot == nil || *q.IsBot || q.Limit != 10 {
		t.Errorf("filters not forwarded to store: %+v", q)
	}
}

func TestTrafficHandler_Incremental(t *testing.T) {
	store := &mocks.MockTrafficStore{
		QueryResult: []domain.TrafficEvent{{ID: "n", Timestamp: 9000}},
	}
	handler := newTestTrafficHandler(t, store)

	req := httptest.NewRequest(http.MethodGet, "/api/traffic/incremental?since=5000&limit=50", nil)
	rec := httptest.NewRecorder()
	handler.Incremental(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var result struct {
		Logs            []domain.TrafficEvent `json:"logs"`
		LatestTimestamp int64                 `json:"latestTimestamp"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if len(result.Logs) != 1 || result.LatestTimestamp != 9000 {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestTrafficHandler_Export(t *testing.T) {
	store := &mocks.MockTrafficStore{
		QueryResult: []domain.TrafficEvent{
			{ID: "b", Timestamp: 2000, Endpoint: domain.EndpointCheckout},
			{ID: "a", Timestamp: 1000, Endpoint: domain.EndpointLogin},
		},
	}
	handler := newTestTrafficHandler(t, store)

	req := httptest.NewRequest(http.MethodGet, "/api/traffic/export", nil)
	rec := httptest.NewRecorder()
	handler.Export(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if got := rec.Header().Get("Content-Encoding"); got != "gzip" {
		t.Fatalf("Content-Encoding = %q, want gzip", got)
	}

	gz, err := gzip.NewReader(rec.Body)
	if err != nil {
		t.Fatalf("failed to open gzip stream: %v", err)
	}
	defer gz.Close()

	dec := json.NewDecoder(gz)
	var ids []string
	for dec.More() {
		var event domain.TrafficEvent
		if err := dec.Decode(&event); err != nil {
			t.Fatalf("failed to decode NDJSON line: %v", err)
		}
		ids = append(ids, event.ID)
	}
	if len(ids) != 2 || ids[0] != "b" || ids[1] != "a" {
		t.Fatalf("unexpected exported ids: %v", ids)
	}
}
