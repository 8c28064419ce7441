package mocks

import (
	"context"
	"sync"

	"github.com/footfall-labs/footfall/internal/domain"
)

// MockTrafficStore is a mock implementation of domain.TrafficStore for testing.
type MockTrafficStore struct {
	mu             sync.Mutex
	AppendedEvents []domain.TrafficEvent
	Increments     map[string]map[int64]int64 // tag -> second -> count
	QueryResult    []domain.TrafficEvent
	QueryCalls     []domain.TrafficQuery
	AggregateCalls [][3]int64 // start, end, bucketWidth
	BucketsResult  []domain.CounterBucket
	AppendErr      error
	IncrementErr   error
	QueryErr       error
	AggregateErr   error
}

func (m *MockTrafficStore) Append(ctx context.Context, event domain.TrafficEvent) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.AppendErr != nil {
		return "", m.AppendErr
	}
	m.AppendedEvents = append(m.AppendedEvents, event)
	return event.ID, nil
}

func (m *MockTrafficStore) Increment(ctx context.Context, tag string, atSecond int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.IncrementErr != nil {
		return m.IncrementErr
	}
	if m.Increments == nil {
		m.Increments = make(map[string]map[int64]int64)
	}
	if m.Increments[tag] == nil {
		m.Increments[tag] = make(map[int64]int64)
	}
	m.Increments[tag][atSecond]++
	return nil
}

func (m *MockTrafficStore) Record(ctx context.Context, event domain.TrafficEvent) error {
	if _, err := m.Append(ctx, event); err != nil {
		return err
	}
	if tag, tracked := domain.TrackingTag(event.Endpoint); tracked {
		return m.Increment(ctx, tag, event.Timestamp/1000)
	}
	return nil
}

func (m *MockTrafficStore) Query(ctx context.Context, q domain.TrafficQuery) ([]domain.TrafficEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.QueryCalls = append(m.QueryCalls, q)
	if m.QueryErr != nil {
		return nil, m.QueryErr
	}
	return m.QueryResult, nil
}

func (m *MockTrafficStore) Aggregate(ctx context.Context, startSecond, endSecond, bucketWidth int64) ([]domain.CounterBucket, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.AggregateCalls = append(m.AggregateCalls, [3]int64{startSecond, endSecond, bucketWidth})
	if m.AggregateErr != nil {
		return nil, m.AggregateErr
	}
	return m.BucketsResult, nil
}

// MockArchiveSink is a mock implementation of domain.ArchiveSink for testing.
type MockArchiveSink struct {
	mu            sync.Mutex
	WrittenEvents []domain.TrafficEvent
	LatestTs      int64
	WriteErr      error
	LatestErr     error

	// FailWrites makes the first N WriteEvents calls fail, then succeed.
	FailWrites int
}

func (m *MockArchiveSink) WriteEvents(ctx context.Context, events []domain.TrafficEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWrites > 0 {
		m.FailWrites--
		return m.WriteErr
	}
	m.WrittenEvents = append(m.WrittenEvents, events...)
	return nil
}

func (m *MockArchiveSink) LatestTimestamp(ctx context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.LatestErr != nil {
		return 0, m.LatestErr
	}
	return m.LatestTs, nil
}

// Written returns a copy of the archived events.
func (m *MockArchiveSink) Written() []domain.TrafficEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.TrafficEvent, len(m.WrittenEvents))
	copy(out, m.WrittenEvents)
	return out
}
