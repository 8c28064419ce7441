package usecase

import (
	"context"
	"log/slog"
	"time"

	"github.com/footfall-labs/footfall/internal/adapter/metrics"
	"github.com/footfall-labs/footfall/internal/domain"
)

// Snapshot defaults: the combined first-paint payload uses a fixed
// recent window so the dashboard renders before its pollers start.
const (
	snapshotWindowMinutes   = 5
	snapshotIntervalSeconds = 10
)

// maxWindowMinutes is the service ceiling on a caller-supplied look-back
// window, the same way maxLimit caps a caller's limit. Counters are only
// retained for 15 minutes and detail records for 45, so an hour loses
// nothing.
const maxWindowMinutes = domain.MaxAggregateSpanSeconds / 60

// IncrementalResult is the polling contract: the caller echoes
// LatestTimestamp back as its next since and never re-fetches events
// it has already seen.
type IncrementalResult struct {
	Logs            []domain.TrafficEvent `json:"logs"`
	LatestTimestamp int64                 `json:"latestTimestamp"`
}

// Snapshot is the combined first-paint payload: events split by
// tracked endpoint, the most recent events overall, and precomputed
// chart buckets, all in one round trip.
type Snapshot struct {
	Login    []domain.TrafficEvent `json:"login"`
	Checkout []domain.TrafficEvent `json:"checkout"`
	Recent   []domain.TrafficEvent `json:"recent"`
	Series   []domain.SeriesPoint  `json:"series"`
}

// QueryService serves the read side of the pipeline. Transient store
// errors are logged and folded into best-effort empty results: the
// dashboard degrades to "no data", it never breaks.
type QueryService struct {
	store    domain.TrafficStore
	metrics  *metrics.TrafficMetrics
	logger   *slog.Logger
	maxLimit int
	now      func() time.Time
}

// NewQueryService creates a new QueryService. maxLimit is the
// service-enforced result ceiling applied regardless of the caller's
// requested limit.
func NewQueryService(store domain.TrafficStore, m *metrics.TrafficMetrics, logger *slog.Logger, maxLimit int) *QueryService {
	if maxLimit <= 0 {
		maxLimit = 500
	}
	return &QueryService{
		store:    store,
		metrics:  m,
		logger:   logger.With("component", "query_service"),
		maxLimit: maxLimit,
		now:      time.Now,
	}
}

// Events runs a full detail query with the service limit ceiling
// applied.
func (s *QueryService) Events(ctx context.Context, q domain.TrafficQuery) []domain.TrafficEvent {
	q.Limit = s.clampLimit(q.Limit)

	events, err := s.store.Query(ctx, q)
	if err != nil {
		s.metrics.QueriesTotal.WithLabelValues("full", "error").Inc()
		s.logger.Warn("detail query failed, returning empty result", "error", err)
		return []domain.TrafficEvent{}
	}
	s.metrics.QueriesTotal.WithLabelValues("full", "ok").Inc()
	if events == nil {
		events = []domain.TrafficEvent{}
	}
	return events
}

// Incremental returns events strictly newer than sinceMs plus the
// cursor for the next call. When more than limit new events exist the
// oldest limit are returned so the advancing cursor never skips any.
// With zero new events the caller's cursor is echoed back (or the
// current time on a cursor-less first call) so polling cannot stall.
func (s *QueryService) Incremental(ctx context.Context, sinceMs int64, limit int) IncrementalResult {
	q := domain.TrafficQuery{
		SinceMs: sinceMs,
		Limit:   s.clampLimit(limit),
		Oldest:  true,
	}

	logs, err := s.store.Query(ctx, q)
	if err != nil {
		s.metrics.QueriesTotal.WithLabelValues("incremental", "error").Inc()
		s.logger.Warn("incremental query failed, returning empty result", "error", err)
		logs = nil
	} else {
		s.metrics.QueriesTotal.WithLabelValues("incremental", "ok").Inc()
	}

	latest := sinceMs
	if len(logs) > 0 {
		// Newest-first, so the cursor is the head.
		latest = logs[0].Timestamp
	} else if latest <= 0 {
		latest = s.now().UnixMilli()
	}

	if logs == nil {
		logs = []domain.TrafficEvent{}
	}
	return IncrementalResult{Logs: logs, LatestTimestamp: latest}
}

// CombinedSnapshot builds the dashboard's first-paint payload.
func (s *QueryService) CombinedSnapshot(ctx context.Context, recentLimit int) Snapshot {
	recentLimit = s.clampLimit(recentLimit)

	login := s.Events(ctx, domain.TrafficQuery{Endpoint: domain.EndpointLogin, Limit: recentLimit})
	checkout := s.Events(ctx, domain.TrafficQuery{Endpoint: domain.EndpointCheckout, Limit: recentLimit})
	recent := s.Events(ctx, domain.TrafficQuery{Limit: recentLimit})
	series := s.Series(ctx, snapshotWindowMinutes, snapshotIntervalSeconds)

	return Snapshot{Login: login, Checkout: checkout, Recent: recent, Series: series}
}

// Series aggregates the per-second counters into a chart-ready time
// series. The window end is the current time rounded up to the
// interval boundary; buckets cover [end-window, end) half-open. Window
// and interval are clamped to the service ceiling so a caller cannot
// request an allocation proportional to an arbitrary span.
func (s *QueryService) Series(ctx context.Context, windowMinutes, intervalSeconds int) []domain.SeriesPoint {
	if windowMinutes <= 0 || intervalSeconds <= 0 {
		return []domain.SeriesPoint{}
	}
	windowMinutes = clampWindow(windowMinutes)

	interval := int64(intervalSeconds)
	if windowSeconds := int64(windowMinutes) * 60; interval > windowSeconds {
		interval = windowSeconds
	}
	end := (s.now().Unix() + interval - 1) / interval * interval
	start := end - int64(windowMinutes)*60

	buckets, err := s.store.Aggregate(ctx, start, end, interval)
	if err != nil {
		s.metrics.QueriesTotal.WithLabelValues("series", "error").Inc()
		s.logger.Warn("aggregate query failed, returning empty series", "error", err)
		return []domain.SeriesPoint{}
	}
	s.metrics.QueriesTotal.WithLabelValues("series", "ok").Inc()

	points := make([]domain.SeriesPoint, len(buckets))
	for i, bucket := range buckets {
		points[i] = domain.SeriesPoint{
			Timestamp:     bucket.BucketStart * 1000,
			LoginCount:    bucket.Counts[domain.TagLogin],
			CheckoutCount: bucket.Counts[domain.TagCheckout],
		}
	}
	return points
}

// SinceForWindow converts a look-back window in minutes to an
// exclusive since bound in milliseconds. The window is clamped to the
// service ceiling.
func (s *QueryService) SinceForWindow(windowMinutes int) int64 {
	windowMinutes = clampWindow(windowMinutes)
	return s.now().Add(-time.Duration(windowMinutes) * time.Minute).UnixMilli()
}

func clampWindow(windowMinutes int) int {
	if windowMinutes > maxWindowMinutes {
		return maxWindowMinutes
	}
	return windowMinutes
}

func (s *QueryService) clampLimit(limit int) int {
	if limit <= 0 {
		return domain.DefaultQueryLimit
	}
	if limit > s.maxLimit {
		return s.maxLimit
	}
	return limit
}
