package usecase

import (
	"context"
	"log/slog"
	"time"

	"github.com/footfall-labs/footfall/internal/adapter/metrics"
	"github.com/footfall-labs/footfall/internal/domain"
)

const (
	archiveRetryCount   = 3
	archiveRetryBackoff = 1 * time.Second
)

// Archiver tails the detail store on an ascending cursor and drains
// new events into the archive sink, so history survives the store's
// cap and TTL. The cursor uses the same exclusive-since semantics as
// the incremental endpoint; sink writes are idempotent on event id, so
// replaying the last batch after a crash is harmless.
type Archiver struct {
	store     domain.TrafficStore
	sink      domain.ArchiveSink
	metrics   *metrics.TrafficMetrics
	logger    *slog.Logger
	interval  time.Duration
	batchSize int

	cursor int64
}

// NewArchiver creates a new Archiver.
func NewArchiver(store domain.TrafficStore, sink domain.ArchiveSink, m *metrics.TrafficMetrics, logger *slog.Logger, interval time.Duration, batchSize int) *Archiver {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	if batchSize <= 0 {
		batchSize = 500
	}
	return &Archiver{
		store:     store,
		sink:      sink,
		metrics:   m,
		logger:    logger.With("component", "archiver"),
		interval:  interval,
		batchSize: batchSize,
	}
}

// Run bootstraps the cursor from the sink and drains on a fixed
// interval until the context is cancelled.
func (a *Archiver) Run(ctx context.Context) error {
	cursor, err := a.sink.LatestTimestamp(ctx)
	if err != nil {
		return err
	}
	a.cursor = cursor
	a.logger.Info("archiver started", "cursor", a.cursor, "interval", a.interval)

	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

Loop:
	for {
		select {
		case <-ticker.C:
			if err := a.Drain(ctx); err != nil {
				a.logger.Error("archive drain failed", "error", err)
			}
		case <-ctx.Done():
			a.logger.Info("context cancelled, shutting down archiver loop")
			break Loop
		}
	}

	return nil
}

// Drain archives every event newer than the cursor, batch by batch,
// advancing the cursor only after a batch is durably written.
func (a *Archiver) Drain(ctx context.Context) error {
	for {
		events, err := a.store.Query(ctx, domain.TrafficQuery{
			SinceMs: a.cursor,
			Limit:   a.batchSize,
			Oldest:  true,
		})
		if err != nil {
			return err
		}
		if len(events) == 0 {
			return nil
		}

		if err := a.writeWithRetry(ctx, events); err != nil {
			return err
		}

		// Newest-first, so the new cursor is the head.
		a.cursor = events[0].Timestamp
		a.metrics.ArchiveBatches.Inc()
		a.metrics.ArchiveEvents.Add(float64(len(events)))
		a.logger.Debug("archived batch", "count", len(events), "cursor", a.cursor)

		if len(events) < a.batchSize {
			return nil
		}
	}
}

func (a *Archiver) writeWithRetry(ctx context.Context, events []domain.TrafficEvent) error {
	var lastErr error
	for i := 0; i < archiveRetryCount; i++ {
		err := a.sink.WriteEvents(ctx, events)
		if err == nil {
			return nil
		}
		lastErr = err
		a.logger.Warn("failed to write batch to archive, retrying...", "attempt", i+1, "error", err)
		select {
		case <-time.After(archiveRetryBackoff):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return lastErr
}
