package store

import (
	"context"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/LungheSam/FareFlow-Server/internal/notify"
)

// Outbox row status values.
const (
	outboxPending    = "pending"
	outboxProcessing = "processing"
	outboxSent       = "sent"
	outboxDead       = "dead"
)

// Enqueue persists a notification intent outside any settlement transaction
// (guard-failure, top-up and welcome notifications).
func (s *Store) Enqueue(ctx context.Context, kind notify.Kind, payload notify.Payload) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}
	_, err = s.db.Exec(ctx,
		"INSERT INTO notification_outbox (id, kind, payload) VALUES ($1, $2, $3)",
		uuid.NewString(), string(kind), data,
	)
	if err != nil {
		return fmt.Errorf("enqueue notification: %w", err)
	}
	return nil
}

// enqueueTx writes an outbox row inside an open settlement transaction.
func enqueueTx(ctx context.Context, tx pgx.Tx, kind notify.Kind, payload notify.Payload) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}
	if _, err := tx.Exec(ctx,
		"INSERT INTO notification_outbox (id, kind, payload) VALUES ($1, $2, $3)",
		uuid.NewString(), string(kind), data,
	); err != nil {
		return fmt.Errorf("enqueue notification: %w", err)
	}
	return nil
}

// ClaimDue flips up to limit due pending rows to processing and returns
// them. SKIP LOCKED keeps concurrent dispatchers from claiming the same
// rows; the status flip keeps a claim visible after this statement ends.
func (s *Store) ClaimDue(ctx context.Context, limit int) ([]notify.Message, error) {
	rows, err := s.db.Query(ctx,
		`UPDATE notification_outbox SET status = $1
		 WHERE id IN (
		     SELECT id FROM notification_outbox
		     WHERE status = $2 AND next_attempt_at <= now()
		     ORDER BY created_at
		     LIMIT $3
		     FOR UPDATE SKIP LOCKED
		 )
		 RETURNING id, kind, payload, attempts`,
		outboxProcessing, outboxPending, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("claim outbox rows: %w", err)
	}
	defer rows.Close()

	var msgs []notify.Message
	for rows.Next() {
		var (
			msg  notify.Message
			kind string
			data []byte
		)
		if err := rows.Scan(&msg.ID, &kind, &data, &msg.Attempts); err != nil {
			return nil, fmt.Errorf("scan outbox row: %w", err)
		}
		if err := json.Unmarshal(data, &msg.Payload); err != nil {
			return nil, fmt.Errorf("unmarshal notification %s: %w", msg.ID, err)
		}
		msg.Kind = notify.Kind(kind)
		msgs = append(msgs, msg)
	}
	return msgs, rows.Err()
}

func (s *Store) MarkSent(ctx context.Context, id string) error {
	_, err := s.db.Exec(ctx,
		"UPDATE notification_outbox SET status = $1, attempts = attempts + 1 WHERE id = $2",
		outboxSent, id,
	)
	if err != nil {
		return fmt.Errorf("mark sent: %w", err)
	}
	return nil
}

func (s *Store) Reschedule(ctx context.Context, id string, attempts int, next time.Time) error {
	_, err := s.db.Exec(ctx,
		"UPDATE notification_outbox SET status = $1, attempts = $2, next_attempt_at = $3 WHERE id = $4",
		outboxPending, attempts, next, id,
	)
	if err != nil {
		return fmt.Errorf("reschedule: %w", err)
	}
	return nil
}

func (s *Store) MarkDead(ctx context.Context, id string, attempts int) error {
	_, err := s.db.Exec(ctx,
		"UPDATE notification_outbox SET status = $1, attempts = $2 WHERE id = $3",
		outboxDead, attempts, id,
	)
	if err != nil {
		return fmt.Errorf("mark dead: %w", err)
	}
	return nil
}

// ResetStale requeues rows stranded in processing by a crashed dispatcher.
// Called once on startup.
func (s *Store) ResetStale(ctx context.Context) (int64, error) {
	tag, err := s.db.Exec(ctx,
		"UPDATE notification_outbox SET status = $1 WHERE status = $2",
		outboxPending, outboxProcessing,
	)
	if err != nil {
		return 0, fmt.Errorf("reset stale outbox rows: %w", err)
	}
	return tag.RowsAffected(), nil
}
