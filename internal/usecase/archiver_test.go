package usecase

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/footfall-labs/footfall/internal/domain"
	"github.com/footfall-labs/footfall/internal/domain/mocks"
)

// drainStore feeds the archiver successive windows of an in-memory
// event list using the same cursor semantics as the real stores.
type drainStore struct {
	mocks.MockTrafficStore
	events []domain.TrafficEvent // ascending by timestamp
}

func (s *drainStore) Query(ctx context.Context, q domain.TrafficQuery) ([]domain.TrafficEvent, error) {
	matched := make([]domain.TrafficEvent, 0, q.Limit)
	for _, event := range s.events {
		if len(matched) >= q.Limit {
			break
		}
		if q.Matches(event) {
			matched = append(matched, event)
		}
	}
	// Newest-first, like the real stores.
	for i, j := 0, len(matched)-1; i < j; i, j = i+1, j-1 {
		matched[i], matched[j] = matched[j], matched[i]
	}
	return matched, nil
}

func newTestArchiver(t *testing.T, store domain.TrafficStore, sink domain.ArchiveSink) *Archiver {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewArchiver(store, sink, testMetrics, logger, time.Second, 3)
}

func ascendingEvents(n int, startMs int64) []domain.TrafficEvent {
	events := make([]domain.TrafficEvent, n)
	for i := range events {
		events[i] = domain.Stamp(domain.TrafficEvent{
			Timestamp: startMs + int64(i)*10,
			Endpoint:  domain.EndpointLogin,
			Method:    "POST",
		})
	}
	return events
}

func TestArchiver_Drain(t *testing.T) {
	t.Run("drains everything past the cursor in batches", func(t *testing.T) {
		store := &drainStore{events: ascendingEvents(8, 1000)}
		sink := &mocks.MockArchiveSink{}
		archiver := newTestArchiver(t, store, sink)
		archiver.cursor = 1000 // the first event is already archived

		if err := archiver.Drain(context.Background()); err != nil {
			t.Fatalf("drain failed: %v", err)
		}

		written := sink.Written()
		if len(written) != 7 {
			t.Fatalf("expected 7 archived events, got %d", len(written))
		}
		seen := make(map[string]bool)
		for _, event := range written {
			if event.Timestamp <= 1000 {
				t.Errorf("event %s at %d is behind the cursor", event.ID, event.Timestamp)
			}
			if seen[event.ID] {
				t.Errorf("event %s archived twice", event.ID)
			}
			seen[event.ID] = true
		}
		if archiver.cursor != 1070 {
			t.Errorf("cursor = %d, want 1070", archiver.cursor)
		}
	})

	t.Run("empty store is a no-op", func(t *testing.T) {
		store := &drainStore{}
		sink := &mocks.MockArchiveSink{}
		archiver := newTestArchiver(t, store, sink)

		if err := archiver.Drain(context.Background()); err != nil {
			t.Fatalf("drain failed: %v", err)
		}
		if len(sink.Written()) != 0 {
			t.Error("expected nothing archived")
		}
	})

	t.Run("sink failure is retried", func(t *testing.T) {
		store := &drainStore{events: ascendingEvents(2, 1000)}
		sink := &mocks.MockArchiveSink{WriteErr: errors.New("pg down"), FailWrites: 2}
		archiver := newTestArchiver(t, store, sink)

		if err := archiver.Drain(context.Background()); err != nil {
			t.Fatalf("expected retries to succeed, got %v", err)
		}
		if len(sink.Written()) != 2 {
			t.Fatalf("expected 2 archived events after retries, got %d", len(sink.Written()))
		}
	})
}

func TestArchiver_Run(t *testing.T) {
	t.Run("bootstraps the cursor from the sink", func(t *testing.T) {
		store := &drainStore{events: ascendingEvents(4, 1000)}
		sink := &mocks.MockArchiveSink{LatestTs: 1010}
		archiver := newTestArchiver(t, store, sink)

		ctx, cancel := context.WithCancel(context.Background())
		cancel() // Run should bootstrap, then exit on the dead context.

		if err := archiver.Run(ctx); err != nil {
			t.Fatalf("run failed: %v", err)
		}
		if archiver.cursor != 1010 {
			t.Errorf("cursor = %d, want the sink's max timestamp 1010", archiver.cursor)
		}
	})

	t.Run("cursor bootstrap failure is fatal", func(t *testing.T) {
		store := &drainStore{}
		sink := &mocks.MockArchiveSink{LatestErr: errors.New("pg down")}
		archiver := newTestArchiver(t, store, sink)

		if err := archiver.Run(context.Background()); err == nil {
			t.Fatal("expected an error")
		}
	})
}
