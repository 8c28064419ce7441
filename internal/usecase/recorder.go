package usecase

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/footfall-labs/footfall/internal/adapter/clientip"
	"github.com/footfall-labs/footfall/internal/adapter/metrics"
	"github.com/footfall-labs/footfall/internal/domain"
)

// RecorderOptions tunes the ingestion write path.
type RecorderOptions struct {
	// BotHeader is the upstream bot-detection header. Absent or
	// unparseable means "not a bot".
	BotHeader string

	// HeaderSnapshotLimit caps how many request headers are stored per
	// event. A full snapshot risks unbounded growth.
	HeaderSnapshotLimit int

	// Timeout bounds each record write. The write runs on a context
	// detached from the request so a client disconnect cannot cancel
	// telemetry.
	Timeout time.Duration
}

// Recorder is the single write path of the pipeline, invoked once per
// observed request/response pair on the tracked-or-logged routes.
// Every failure is logged and swallowed: the user-facing request must
// never fail because traffic logging did.
type Recorder struct {
	store    domain.TrafficStore
	resolver *clientip.Resolver
	metrics  *metrics.TrafficMetrics
	logger   *slog.Logger
	opts     RecorderOptions
}

// NewRecorder creates a new Recorder.
func NewRecorder(store domain.TrafficStore, resolver *clientip.Resolver, m *metrics.TrafficMetrics, logger *slog.Logger, opts RecorderOptions) *Recorder {
	if opts.Timeout <= 0 {
		opts.Timeout = 2 * time.Second
	}
	return &Recorder{
		store:    store,
		resolver: resolver,
		metrics:  m,
		logger:   logger.With("component", "recorder"),
		opts:     opts,
	}
}

// Record derives a TrafficEvent from the request and the final status
// code and writes it to the store: detail log always, per-second
// counter when the endpoint is tracked.
func (r *Recorder) Record(req *http.Request, endpoint string, statusCode int) {
	event := r.buildEvent(req, endpoint, statusCode)

	ctx, cancel := context.WithTimeout(context.WithoutCancel(req.Context()), r.opts.Timeout)
	defer cancel()

	if err := r.store.Record(ctx, event); err != nil {
		r.metrics.RecordFailures.WithLabelValues("batch").Inc()
		r.logger.Error("failed to record traffic event", "error", err, "endpoint", endpoint)
		return
	}

	r.metrics.EventsRecorded.WithLabelValues(endpoint, strconv.FormatBool(event.IsBot)).Inc()
}

func (r *Recorder) buildEvent(req *http.Request, endpoint string, statusCode int) domain.TrafficEvent {
	ip := r.resolver.Resolve(req)

	userAgent := req.UserAgent()
	if userAgent == "" {
		userAgent = "unknown"
	}

	return domain.Stamp(domain.TrafficEvent{
		Endpoint:   endpoint,
		Method:     req.Method,
		IP:         ip,
		RealIP:     ip,
		UserAgent:  userAgent,
		IsBot:      r.classifyBot(req),
		StatusCode: statusCode,
		Headers:    r.snapshotHeaders(req.Header),
	})
}

func (r *Recorder) classifyBot(req *http.Request) bool {
	v := req.Header.Get(r.opts.BotHeader)
	if v == "" {
		return false
	}
	isBot, err := strconv.ParseBool(v)
	if err != nil {
		return false
	}
	return isBot
}

// snapshotHeaders stores a bounded, scrubbed subset of the request
// headers. Credentials never belong in the traffic log.
func (r *Recorder) snapshotHeaders(h http.Header) map[string]string {
	limit := r.opts.HeaderSnapshotLimit
	if limit <= 0 {
		return nil
	}

	snapshot := make(map[string]string, limit)
	for name, values := range h {
		if len(snapshot) >= limit {
			break
		}
		switch strings.ToLower(name) {
		case "authorization", "cookie", "proxy-authorization":
			continue
		}
		if len(values) > 0 {
			snapshot[name] = values[0]
		}
	}
	return snapshot
}
