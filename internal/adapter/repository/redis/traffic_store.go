package redis

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	json "github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"

	"github.com/footfall-labs/footfall/internal/adapter/metrics"
	"github.com/footfall-labs/footfall/internal/domain"
)

const (
	eventKeyPrefix   = "traffic:event:"
	indexKey         = "traffic:index"
	counterKeyPrefix = "traffic:count:"
)

// Options configures the Redis traffic store.
type Options struct {
	DetailCap      int
	DetailTTL      time.Duration
	CounterTTL     time.Duration
	EvictSlack     int
	PipelineWrites bool
}

// TrafficStore implements domain.TrafficStore on Redis. Detail records
// are JSON values under a per-event key with a TTL; a sorted set keyed
// by millisecond timestamp is the time index; per-second counters are
// plain INCR keys with their own TTL.
type TrafficStore struct {
	client  *redis.Client
	logger  *slog.Logger
	metrics *metrics.TrafficMetrics
	opts    Options
}

// NewTrafficStore creates a new Redis-backed TrafficStore.
func NewTrafficStore(client *redis.Client, logger *slog.Logger, m *metrics.TrafficMetrics, opts Options) *TrafficStore {
	return &TrafficStore{
		client:  client,
		logger:  logger.With("component", "redis_traffic_store"),
		metrics: m,
		opts:    opts,
	}
}

// Append writes a single detail record and its index entry, then
// enforces the capacity cap. Eviction failures are logged, never
// returned: losing old telemetry beats failing the write.
func (s *TrafficStore) Append(ctx context.Context, event domain.TrafficEvent) (string, error) {
	event = domain.Stamp(event)

	pipe := s.client.Pipeline()
	if err := s.queueAppend(ctx, pipe, event); err != nil {
		return "", err
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return "", fmt.Errorf("failed to append traffic event: %w", err)
	}

	s.evict(ctx)
	return event.ID, nil
}

// Increment bumps the per-second counter for a tracked tag and
// refreshes its TTL.
func (s *TrafficStore) Increment(ctx context.Context, tag string, atSecond int64) error {
	pipe := s.client.Pipeline()
	s.queueIncrement(ctx, pipe, tag, atSecond)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to increment counter %s@%d: %w", tag, atSecond, err)
	}
	return nil
}

// Record writes the detail record and, for tracked endpoints, the
// per-second counter. With pipelining enabled both writes go out as
// one batch, shrinking the window where a reader sees the detail log
// updated but not the counter; otherwise they are issued sequentially,
// detail first, since the detail log is the source of truth.
func (s *TrafficStore) Record(ctx context.Context, event domain.TrafficEvent) error {
	event = domain.Stamp(event)
	tag, tracked := domain.TrackingTag(event.Endpoint)

	if s.opts.PipelineWrites {
		pipe := s.client.Pipeline()
		if err := s.queueAppend(ctx, pipe, event); err != nil {
			return err
		}
		if tracked {
			s.queueIncrement(ctx, pipe, tag, event.Timestamp/1000)
		}
		if _, err := pipe.Exec(ctx); err != nil {
			return fmt.Errorf("failed to record traffic event: %w", err)
		}
		s.evict(ctx)
		return nil
	}

	if _, err := s.Append(ctx, event); err != nil {
		return err
	}
	if tracked {
		return s.Increment(ctx, tag, event.Timestamp/1000)
	}
	return nil
}

func (s *TrafficStore) queueAppend(ctx context.Context, pipe redis.Pipeliner, event domain.TrafficEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal traffic event: %w", err)
	}
	pipe.Set(ctx, eventKeyPrefix+event.ID, payload, s.opts.DetailTTL)
	pipe.ZAdd(ctx, indexKey, redis.Z{Score: float64(event.Timestamp), Member: event.ID})
	return nil
}

func (s *TrafficStore) queueIncrement(ctx context.Context, pipe redis.Pipeliner, tag string, atSecond int64) {
	key := counterKey(tag, atSecond)
	pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, s.opts.CounterTTL)
}

// evict trims the time index once it exceeds cap plus slack, oldest
// first, and drops index members older than the detail TTL in the same
// pass. Record keys are left to their own TTL. Trimming past a slack
// threshold rather than on every write bounds write amplification at
// the cost of transiently exceeding the cap.
func (s *TrafficStore) evict(ctx context.Context) {
	count, err := s.client.ZCard(ctx, indexKey).Result()
	if err != nil {
		s.logger.Warn("failed to read index size for eviction", "error", err)
		return
	}

	var evicted int64
	if count > int64(s.opts.DetailCap+s.opts.EvictSlack) {
		surplus := count - int64(s.opts.DetailCap)
		removed, err := s.client.ZRemRangeByRank(ctx, indexKey, 0, surplus-1).Result()
		if err != nil {
			s.logger.Warn("failed to trim index to cap", "error", err)
		} else {
			evicted += removed
		}
	}

	horizon := time.Now().Add(-s.opts.DetailTTL).UnixMilli()
	removed, err := s.client.ZRemRangeByScore(ctx, indexKey, "-inf", strconv.FormatInt(horizon, 10)).Result()
	if err != nil {
		s.logger.Warn("failed to drop expired index members", "error", err)
	} else {
		evicted += removed
	}

	if evicted > 0 {
		s.metrics.EventsEvicted.Add(float64(evicted))
		s.logger.Debug("evicted detail records", "count", evicted)
	}
}

// Query returns detail records matching q, newest-first. Index members
// whose record expired between lookup and fetch, and records that fail
// to deserialize, are skipped with a warning; a partial result is a
// correct result.
func (s *TrafficStore) Query(ctx context.Context, q domain.TrafficQuery) ([]domain.TrafficEvent, error) {
	min := "-inf"
	if q.SinceMs > 0 {
		// Exclusive lower bound via an inclusive range one ms above it.
		min = strconv.FormatInt(q.SinceMs+1, 10)
	}

	rangeBy := &redis.ZRangeBy{Min: min, Max: "+inf"}
	var ids []string
	var err error
	if q.Oldest {
		ids, err = s.client.ZRangeByScore(ctx, indexKey, rangeBy).Result()
	} else {
		ids, err = s.client.ZRevRangeByScore(ctx, indexKey, rangeBy).Result()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read time index: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = eventKeyPrefix + id
	}
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to fetch traffic events: %w", err)
	}

	limit := q.Limit
	if limit <= 0 {
		limit = domain.DefaultQueryLimit
	}

	events := make([]domain.TrafficEvent, 0, limit)
	for i, value := range values {
		if len(events) >= limit {
			break
		}
		payload, ok := value.(string)
		if !ok {
			// Record expired between index lookup and fetch.
			continue
		}
		var event domain.TrafficEvent
		if err := json.Unmarshal([]byte(payload), &event); err != nil {
			s.logger.Warn("failed to unmarshal stored traffic event, skipping", "id", ids[i], "error", err)
			continue
		}
		if !q.Matches(event) {
			continue
		}
		events = append(events, event)
	}

	if q.Oldest {
		reverse(events)
	}
	return events, nil
}

// Aggregate sums the per-second counters for every tracked tag into
// buckets of bucketWidth seconds covering [startSecond, endSecond).
// Missing counter keys count as zero: an expired second and a quiet
// second are indistinguishable, and both mean "zero events".
func (s *TrafficStore) Aggregate(ctx context.Context, startSecond, endSecond, bucketWidth int64) ([]domain.CounterBucket, error) {
	if endSecond <= startSecond || bucketWidth <= 0 {
		return nil, nil
	}
	if span := endSecond - startSecond; span > domain.MaxAggregateSpanSeconds {
		return nil, fmt.Errorf("aggregate span of %ds exceeds the maximum of %ds", span, domain.MaxAggregateSpanSeconds)
	}

	tags := []string{domain.TagLogin, domain.TagCheckout}
	seconds := endSecond - startSecond

	keys := make([]string, 0, seconds*int64(len(tags)))
	for sec := startSecond; sec < endSecond; sec++ {
		for _, tag := range tags {
			keys = append(keys, counterKey(tag, sec))
		}
	}

	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to fetch counters: %w", err)
	}

	bucketCount := (seconds + bucketWidth - 1) / bucketWidth
	buckets := make([]domain.CounterBucket, bucketCount)
	for i := range buckets {
		buckets[i] = domain.CounterBucket{
			BucketStart: startSecond + int64(i)*bucketWidth,
			Counts:      make(map[string]int64),
		}
	}

	idx := 0
	for sec := startSecond; sec < endSecond; sec++ {
		bucket := &buckets[(sec-startSecond)/bucketWidth]
		for _, tag := range tags {
			value := values[idx]
			idx++
			payload, ok := value.(string)
			if !ok {
				continue
			}
			n, err := strconv.ParseInt(payload, 10, 64)
			if err != nil {
				s.logger.Warn("malformed counter value, skipping", "key", counterKey(tag, sec), "error", err)
				continue
			}
			bucket.Counts[tag] += n
		}
	}

	return buckets, nil
}

func counterKey(tag string, atSecond int64) string {
	return counterKeyPrefix + tag + ":" + strconv.FormatInt(atSecond, 10)
}

func reverse(events []domain.TrafficEvent) {
	for i, j := 0, len(events)-1; i < j; i, j = i+1, j-1 {
		events[i], events[j] = events[j], events[i]
	}
}
