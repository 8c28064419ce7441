package domain

import "context"

// TrafficStore is the backing store for recorded traffic: a capped,
// time-ordered detail log plus per-second counters for the tracked
// endpoints. Two implementations exist: Redis (durable) and a local
// JSON file (development fallback); the choice is made once at
// construction, never per call.
type TrafficStore interface {
	// Append writes a single detail record with a TTL, indexes it by
	// its millisecond timestamp, and enforces the capacity cap. It
	// returns the assigned event id. Eviction failures are logged by
	// the implementation, never returned.
	Append(ctx context.Context, event TrafficEvent) (string, error)

	// Increment bumps the per-second counter for a tracked endpoint
	// tag and refreshes its TTL. atSecond is a unix timestamp in
	// seconds.
	Increment(ctx context.Context, tag string, atSecond int64) error

	// Record performs Append and, when the event's endpoint is
	// tracked, Increment as one write. Implementations batch the two
	// (pipelining) where the backend supports it to shrink the window
	// in which a reader sees one store updated but not the other.
	Record(ctx context.Context, event TrafficEvent) error

	// Query returns detail records matching q, newest-first. A record
	// that expired between index lookup and fetch, or that fails to
	// deserialize, is skipped: a partial result is a correct result.
	Query(ctx context.Context, q TrafficQuery) ([]TrafficEvent, error)

	// Aggregate sums the per-second counters into buckets of
	// bucketWidth seconds covering [startSecond, endSecond). Seconds
	// with no counter (expired or never written) count as zero.
	Aggregate(ctx context.Context, startSecond, endSecond, bucketWidth int64) ([]CounterBucket, error)
}

// ArchiveSink is the long-term destination the archiver drains the
// detail store into. Writes must be idempotent on event id so a
// crashed run can replay its last batch safely.
type ArchiveSink interface {
	// WriteEvents persists a batch of events.
	WriteEvents(ctx context.Context, events []TrafficEvent) error

	// LatestTimestamp returns the largest event timestamp already
	// archived, or zero when the archive is empty. The archiver uses
	// it to bootstrap its cursor.
	LatestTimestamp(ctx context.Context) (int64, error)
}
