package file

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	json "github.com/goccy/go-json"

	"github.com/footfall-labs/footfall/internal/adapter/metrics"
	"github.com/footfall-labs/footfall/internal/domain"
)

const filePerm = 0644

// Options configures the file traffic store.
type Options struct {
	DetailCap  int
	DetailTTL  time.Duration
	CounterTTL time.Duration
}

// TrafficStore implements domain.TrafficStore on a single append-only
// JSON array file, front-truncated at the cap. It is the development
// fallback used when no Redis URL is configured: it is safe for
// concurrent use within one process but not across processes, and the
// per-second counters live only in memory, so a restart resets them.
type TrafficStore struct {
	path    string
	logger  *slog.Logger
	metrics *metrics.TrafficMetrics
	opts    Options

	mu       sync.Mutex
	events   []domain.TrafficEvent // ascending by timestamp
	counters map[string]map[int64]int64
}

// NewTrafficStore creates a file-backed TrafficStore, loading any
// previously persisted events. A file that fails to parse is discarded
// with a warning rather than blocking startup.
func NewTrafficStore(path string, logger *slog.Logger, m *metrics.TrafficMetrics, opts Options) (*TrafficStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create store directory %s: %w", dir, err)
		}
	}

	s := &TrafficStore{
		path:     path,
		logger:   logger.With("component", "file_traffic_store"),
		metrics:  m,
		opts:     opts,
		counters: make(map[string]map[int64]int64),
	}

	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		// Fresh store.
	case err != nil:
		return nil, fmt.Errorf("failed to read store file %s: %w", path, err)
	default:
		if err := json.Unmarshal(data, &s.events); err != nil {
			s.logger.Warn("store file is corrupt, starting empty", "path", path, "error", err)
			s.events = nil
		}
	}

	return s, nil
}

// Append writes a single detail record and enforces the cap and TTL.
func (s *TrafficStore) Append(ctx context.Context, event domain.TrafficEvent) (string, error) {
	event = domain.Stamp(event)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.events = append(s.events, event)
	s.pruneLocked()

	if err := s.persistLocked(); err != nil {
		return "", err
	}
	return event.ID, nil
}

// Increment bumps the in-memory per-second counter for a tracked tag.
func (s *TrafficStore) Increment(ctx context.Context, tag string, atSecond int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.counters[tag] == nil {
		s.counters[tag] = make(map[int64]int64)
	}
	s.counters[tag][atSecond]++

	horizon := time.Now().Add(-s.opts.CounterTTL).Unix()
	for sec := range s.counters[tag] {
		if sec < horizon {
			delete(s.counters[tag], sec)
		}
	}
	return nil
}

// Record writes the detail record and, for tracked endpoints, the
// counter. The mutex makes the pair atomic with respect to readers in
// this process, which is all the file mode promises.
func (s *TrafficStore) Record(ctx context.Context, event domain.TrafficEvent) error {
	event = domain.Stamp(event)
	if _, err := s.Append(ctx, event); err != nil {
		return err
	}
	if tag, tracked := domain.TrackingTag(event.Endpoint); tracked {
		return s.Increment(ctx, tag, event.Timestamp/1000)
	}
	return nil
}

// Query returns detail records matching q, newest-first.
func (s *TrafficStore) Query(ctx context.Context, q domain.TrafficQuery) ([]domain.TrafficEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	limit := q.Limit
	if limit <= 0 {
		limit = domain.DefaultQueryLimit
	}

	events := make([]domain.TrafficEvent, 0, limit)
	if q.Oldest {
		for _, event := range s.events {
			if len(events) >= limit {
				break
			}
			if q.Matches(event) {
				events = append(events, event)
			}
		}
		// Present newest-first like every other query path.
		for i, j := 0, len(events)-1; i < j; i, j = i+1, j-1 {
			events[i], events[j] = events[j], events[i]
		}
		return events, nil
	}

	for i := len(s.events) - 1; i >= 0 && len(events) < limit; i-- {
		if q.Matches(s.events[i]) {
			events = append(events, s.events[i])
		}
	}
	return events, nil
}

// Aggregate sums the in-memory per-second counters into buckets of
// bucketWidth seconds covering [startSecond, endSecond).
func (s *TrafficStore) Aggregate(ctx context.Context, startSecond, endSecond, bucketWidth int64) ([]domain.CounterBucket, error) {
	if endSecond <= startSecond || bucketWidth <= 0 {
		return nil, nil
	}
	if span := endSecond - startSecond; span > domain.MaxAggregateSpanSeconds {
		return nil, fmt.Errorf("aggregate span of %ds exceeds the maximum of %ds", span, domain.MaxAggregateSpanSeconds)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	bucketCount := (endSecond - startSecond + bucketWidth - 1) / bucketWidth
	buckets := make([]domain.CounterBucket, bucketCount)
	for i := range buckets {
		buckets[i] = domain.CounterBucket{
			BucketStart: startSecond + int64(i)*bucketWidth,
			Counts:      make(map[string]int64),
		}
	}

	for tag, seconds := range s.counters {
		for sec, n := range seconds {
			if sec < startSecond || sec >= endSecond {
				continue
			}
			buckets[(sec-startSecond)/bucketWidth].Counts[tag] += n
		}
	}

	return buckets, nil
}

// pruneLocked drops events past the TTL and front-truncates to the
// cap. Callers must hold the mutex.
func (s *TrafficStore) pruneLocked() {
	before := len(s.events)

	horizon := time.Now().Add(-s.opts.DetailTTL).UnixMilli()
	firstLive := 0
	for firstLive < len(s.events) && s.events[firstLive].Timestamp < horizon {
		firstLive++
	}
	if firstLive > 0 {
		s.events = append(s.events[:0:0], s.events[firstLive:]...)
	}

	if surplus := len(s.events) - s.opts.DetailCap; surplus > 0 {
		s.events = append(s.events[:0:0], s.events[surplus:]...)
	}

	if evicted := before - len(s.events); evicted > 0 {
		s.metrics.EventsEvicted.Add(float64(evicted))
	}
}

// persistLocked writes the whole array to a temp file and renames it
// into place. Callers must hold the mutex.
func (s *TrafficStore) persistLocked() error {
	data, err := json.Marshal(s.events)
	if err != nil {
		return fmt.Errorf("failed to marshal store file: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, filePerm); err != nil {
		return fmt.Errorf("failed to write store file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("failed to replace store file: %w", err)
	}
	return nil
}
