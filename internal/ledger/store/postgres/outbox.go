package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"offsetledger/internal/outbox"
)

// OutboxSource lets the relay drain ledger_outbox. It runs outside ledger
// transactions and only ever sees committed entries.
type OutboxSource struct {
	db *sql.DB
}

func NewOutboxSource(db *sql.DB) *OutboxSource {
	return &OutboxSource{db: db}
}

var _ outbox.Source = (*OutboxSource)(nil)

func (s *OutboxSource) FetchUnpublished(ctx context.Context, limit int) ([]outbox.Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, event_type, aggregate_id, payload, created_at
		FROM ledger_outbox
		WHERE published_at IS NULL
		ORDER BY seq
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("fetch outbox: %w", err)
	}
	defer rows.Close()

	var out []outbox.Entry
	for rows.Next() {
		var e outbox.Entry
		if err := rows.Scan(&e.ID, &e.EventType, &e.AggregateID, &e.Payload, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan outbox entry: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *OutboxSource) MarkPublished(ctx context.Context, ids []uuid.UUID, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	strIDs := make([]string, len(ids))
	for i, v := range ids {
		strIDs[i] = v.String()
	}
	_, err := s.db.ExecContext(ctx, `
		UPDATE ledger_outbox SET published_at = $2
		WHERE id = ANY($1::uuid[]) AND published_at IS NULL
	`, pq.Array(strIDs), at)
	if err != nil {
		return fmt.Errorf("mark outbox published: %w", err)
	}
	return nil
}

func (s *OutboxSource) PurgePublished(ctx context.Context, before time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM ledger_outbox WHERE published_at IS NOT NULL AND published_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("purge outbox: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("purge outbox: %w", err)
	}
	return int(n), nil
}
