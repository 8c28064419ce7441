package postgres

import (
	"context"
	"database/sql"
	"log/slog"

	json "github.com/goccy/go-json"
	"github.com/lib/pq"

	"github.com/footfall-labs/footfall/internal/domain"
)

// ArchiveSink implements domain.ArchiveSink on PostgreSQL. The detail
// store only retains the most recent events; the sink is where history
// survives the TTL horizon.
type ArchiveSink struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewArchiveSink creates a new PostgreSQL archive sink.
func NewArchiveSink(db *sql.DB, logger *slog.Logger) *ArchiveSink {
	return &ArchiveSink{db: db, logger: logger.With("component", "postgres_archive_sink")}
}

// WriteEvents writes a batch of traffic events using the COPY protocol
// via a temp table, then merges with ON CONFLICT DO NOTHING so a
// replayed batch is a no-op. Idempotency on event_id is what lets the
// archiver resume from its cursor after a crash without duplicating
// rows.
func (s *ArchiveSink) WriteEvents(ctx context.Context, events []domain.TrafficEvent) error {
	if len(events) == 0 {
		return nil
	}

	txn, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer txn.Rollback() // Rollback is a no-op if Commit() is called

	const tempTableName = "traffic_events_import"
	_, err = txn.ExecContext(ctx, `CREATE TEMP TABLE `+tempTableName+` (LIKE traffic_events INCLUDING DEFAULTS) ON COMMIT DROP;`)
	if err != nil {
		return err
	}

	stmt, err := txn.Prepare(pq.CopyIn(tempTableName, "event_id", "ts", "endpoint", "method", "ip", "user_agent", "is_bot", "status_code", "headers"))
	if err != nil {
		return err
	}

	for _, event := range events {
		headers, err := json.Marshal(event.Headers)
		if err != nil {
			s.logger.Warn("failed to marshal event headers, archiving without them", "event_id", event.ID, "error", err)
			headers = []byte("{}")
		}
		_, err = stmt.ExecContext(ctx, event.ID, event.Timestamp, event.Endpoint, event.Method, event.IP, event.UserAgent, event.IsBot, event.StatusCode, headers)
		if err != nil {
			_ = stmt.Close()
			return err
		}
	}

	if err := stmt.Close(); err != nil {
		return err
	}

	_, err = txn.ExecContext(ctx, `
		INSERT INTO traffic_events (event_id, ts, endpoint, method, ip, user_agent, is_bot, status_code, headers)
		SELECT event_id, ts, endpoint, method, ip, user_agent, is_bot, status_code, headers FROM `+tempTableName+`
		ON CONFLICT (event_id) DO NOTHING;
	`)
	if err != nil {
		return err
	}

	return txn.Commit()
}

// LatestTimestamp returns the largest archived event timestamp, or
// zero for an empty archive.
func (s *ArchiveSink) LatestTimestamp(ctx context.Context) (int64, error) {
	var ts int64
	err := s.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(ts), 0) FROM traffic_events;`).Scan(&ts)
	if err != nil {
		return 0, err
	}
	return ts, nil
}
