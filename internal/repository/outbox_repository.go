package repository

import (
	"context"
	"time"

	"alumnet-chat/internal/domain/outbox"
	"alumnet-chat/pkg/database"

	"github.com/google/uuid"
)

type PostgresOutboxRepository struct{}

func NewOutboxRepository() OutboxRepository {
	return &PostgresOutboxRepository{}
}

// Create writes the event row. Callers invoke it on the transaction
// that performed the write being announced, so the event commits or
// rolls back with it.
func (r *PostgresOutboxRepository) Create(ctx context.Context, db database.DBTX, event *outbox.OutboxEvent) error {
	_, err := db.Exec(ctx, `
        INSERT INTO outbox_events (id, event_type, aggregate_type, aggregate_id, payload, status, retry_count, error, created_at, updated_at, processed_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
    `,
		event.ID,
		event.EventType,
		event.AggregateType,
		event.AggregateID,
		event.Payload,
		event.Status,
		event.RetryCount,
		event.Error,
		event.CreatedAt,
		event.UpdatedAt,
		event.ProcessedAt,
	)
	return err
}

// ClaimPending flips one batch of pending events to PROCESSING and
// returns them. SKIP LOCKED keeps concurrent runners from claiming the
// same rows; a claim that never completes is recovered by Requeue.
func (r *PostgresOutboxRepository) ClaimPending(ctx context.Context, db database.DBTX, limit, maxRetries int) ([]outbox.OutboxEvent, error) {
	rows, err := db.Query(ctx, `
        UPDATE outbox_events
        SET status = $1, updated_at = NOW()
        WHERE id IN (
            SELECT id FROM outbox_events
            WHERE status = $2 AND retry_count < $3
            ORDER BY created_at ASC
            LIMIT $4
            FOR UPDATE SKIP LOCKED
        )
        RETURNING id, event_type, aggregate_type, aggregate_id, payload, status, retry_count, error, created_at, updated_at, processed_at
    `, outbox.StatusProcessing, outbox.StatusPending, maxRetries, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []outbox.OutboxEvent
	for rows.Next() {
		var event outbox.OutboxEvent
		if err := rows.Scan(
			&event.ID,
			&event.EventType,
			&event.AggregateType,
			&event.AggregateID,
			&event.Payload,
			&event.Status,
			&event.RetryCount,
			&event.Error,
			&event.CreatedAt,
			&event.UpdatedAt,
			&event.ProcessedAt,
		); err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	return events, rows.Err()
}

func (r *PostgresOutboxRepository) MarkCompleted(ctx context.Context, db database.DBTX, id uuid.UUID) error {
	now := time.Now()
	_, err := db.Exec(ctx, `
        UPDATE outbox_events
        SET status = $1, processed_at = $2, updated_at = $3
        WHERE id = $4
    `, outbox.StatusCompleted, now, now, id)
	return err
}

func (r *PostgresOutboxRepository) MarkFailed(ctx context.Context, db database.DBTX, id uuid.UUID, errorMsg string) error {
	_, err := db.Exec(ctx, `
        UPDATE outbox_events
        SET status = $1, error = $2, retry_count = retry_count + 1, updated_at = $3
        WHERE id = $4
    `, outbox.StatusFailed, errorMsg, time.Now(), id)
	return err
}

// Requeue moves failed events below the retry cap back to pending. It
// also reclaims events stuck in PROCESSING, which happens when a runner
// dies between claiming a batch and marking the outcome.
func (r *PostgresOutboxRepository) Requeue(ctx context.Context, db database.DBTX, maxRetries int) error {
	_, err := db.Exec(ctx, `
        UPDATE outbox_events
        SET status = $1, updated_at = $2
        WHERE (status = $3 AND retry_count < $4)
           OR (status = $5 AND updated_at < NOW() - INTERVAL '1 minute')
    `, outbox.StatusPending, time.Now(), outbox.StatusFailed, maxRetries, outbox.StatusProcessing)
	return err
}
