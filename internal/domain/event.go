package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// DefaultQueryLimit caps a detail query when the caller supplies no
// limit of its own.
const DefaultQueryLimit = 100

// MaxAggregateSpanSeconds bounds a single Aggregate read. Counters are
// only retained for minutes, so a wider span reads nothing but missing
// keys, and both backends allocate proportionally to the span.
const MaxAggregateSpanSeconds = 3600

// Tracked endpoints. Only these two routes are summarized in the
// per-second counters; everything else is detail-log only.
const (
	EndpointLogin    = "/api/auth/login"
	EndpointCheckout = "/api/checkout"

	TagLogin    = "login"
	TagCheckout = "checkout"
)

// TrackingTag maps a logical route to its counter tag. The second return
// is false for untracked routes.
func TrackingTag(endpoint string) (string, bool) {
	switch endpoint {
	case EndpointLogin:
		return TagLogin, true
	case EndpointCheckout:
		return TagCheckout, true
	}
	return "", false
}

// TrafficEvent is one recorded request/response observation.
// Timestamp is the ingestion instant in unix milliseconds; it is the
// ordering key for the detail index and the cursor basis for
// incremental queries.
type TrafficEvent struct {
	ID         string            `json:"id"`
	Timestamp  int64             `json:"timestamp"`
	Endpoint   string            `json:"endpoint"`
	Method     string            `json:"method"`
	IP         string            `json:"ip"`
	RealIP     string            `json:"realIp"`
	UserAgent  string            `json:"userAgent"`
	IsBot      bool              `json:"isBot"`
	StatusCode int               `json:"statusCode,omitempty"`
	Headers    map[string]string `json:"headers,omitempty"`
}

// Time returns the event timestamp as a time.Time.
func (e TrafficEvent) Time() time.Time {
	return time.UnixMilli(e.Timestamp)
}

// Stamp fills in Timestamp and ID when the caller has not done so. The
// id is the millisecond timestamp plus a random suffix: two events can
// legitimately share a millisecond score, and the suffix keeps their
// ids distinct so the time index is never corrupted.
func Stamp(event TrafficEvent) TrafficEvent {
	if event.Timestamp == 0 {
		event.Timestamp = time.Now().UnixMilli()
	}
	if event.ID == "" {
		event.ID = fmt.Sprintf("%d-%s", event.Timestamp, uuid.NewString()[:8])
	}
	return event
}

// TrafficQuery selects detail records. SinceMs is an exclusive lower
// bound on Timestamp; zero or negative means "from the beginning of
// retained history". Endpoint and Method are exact-match filters when
// non-empty; IsBot filters when non-nil. Limit caps the result size.
//
// Oldest selects the oldest Limit matches instead of the newest, so an
// incremental caller whose result got truncated never skips events when
// it advances its cursor. Results are returned newest-first either way.
type TrafficQuery struct {
	SinceMs  int64
	Endpoint string
	Method   string
	IsBot    *bool
	Limit    int
	Oldest   bool
}

// Matches reports whether the event passes the query's filters.
// Limit and ordering are the store's concern, not the filter's.
func (q TrafficQuery) Matches(e TrafficEvent) bool {
	if q.SinceMs > 0 && e.Timestamp <= q.SinceMs {
		return false
	}
	if q.Endpoint != "" && e.Endpoint != q.Endpoint {
		return false
	}
	if q.Method != "" && e.Method != q.Method {
		return false
	}
	if q.IsBot != nil && e.IsBot != *q.IsBot {
		return false
	}
	return true
}

// CounterBucket is one aggregation bucket: the sum of the per-second
// counters falling inside [BucketStart, BucketStart+width), per tag.
// BucketStart is a unix timestamp in seconds. Tags with no events in
// the bucket are absent from Counts; callers treat absent as zero.
type CounterBucket struct {
	BucketStart int64
	Counts      map[string]int64
}

// SeriesPoint is the dashboard-facing shape of a CounterBucket.
// Timestamp is the bucket start in unix milliseconds.
type SeriesPoint struct {
	Timestamp     int64 `json:"timestamp"`
	LoginCount    int64 `json:"loginCount"`
	CheckoutCount int64 `json:"checkoutCount"`
}
