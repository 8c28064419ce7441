package trafficwatch

// Event is one recorded request/response observation as the traffic
// API serves it. Timestamp is unix milliseconds and is the cursor
// basis for incremental fetches.
//
// The type mirrors the server's wire shape so importers of this
// package never depend on the server's internals.
type Event struct {
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

// IncrementalResult is one page of the incremental feed. The caller
// echoes LatestTimestamp back as its next since and never re-fetches
// events it has already seen.
type IncrementalResult struct {
	Logs            []Event `json:"logs"`
	LatestTimestamp int64   `json:"latestTimestamp"`
}

// SeriesPoint is one chart bucket. Timestamp is the bucket start in
// unix milliseconds.
type SeriesPoint struct {
	Timestamp     int64 `json:"timestamp"`
	LoginCount    int64 `json:"loginCount"`
	CheckoutCount int64 `json:"checkoutCount"`
}
