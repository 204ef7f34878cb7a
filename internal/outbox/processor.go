package outbox

import (
	"context"
	"encoding/json"
	"time"

	"alumnet-chat/internal/events"
	"alumnet-chat/internal/repository"
	"alumnet-chat/pkg/database"
)

// Processor drains committed outbox rows and publishes them. A row is
// marked completed only after the broker accepted it; failures bump the
// retry count and are requeued on a later tick until the cap.
type Processor struct {
	db         database.DBTX
	repo       repository.OutboxRepository
	publisher  events.Publisher
	clock      func() time.Time
	batchSize  int
	maxRetries int
}

func NewProcessor(db database.DBTX, repo repository.OutboxRepository, publisher events.Publisher, batchSize, maxRetries int) *Processor {
	if batchSize <= 0 {
		batchSize = 100
	}
	if maxRetries <= 0 {
		maxRetries = 10
	}
	return &Processor{
		db:         db,
		repo:       repo,
		publisher:  publisher,
		clock:      time.Now,
		batchSize:  batchSize,
		maxRetries: maxRetries,
	}
}

// ProcessBatch claims one batch of pending events and publishes them.
// It returns the number of events it attempted so the runner can poll
// eagerly while the queue is non-empty.
func (p *Processor) ProcessBatch(ctx context.Context) (int, error) {
	batch, err := p.repo.ClaimPending(ctx, p.db, p.batchSize, p.maxRetries)
	if err != nil {
		return 0, err
	}

	for _, e := range batch {
		env := events.Envelope{
			EventType:     e.EventType,
			AggregateType: e.AggregateType,
			AggregateID:   e.AggregateID,
			OccurredAt:    e.CreatedAt.UTC(),
			Payload:       json.RawMessage(e.Payload),
		}
		payload, err := json.Marshal(env)
		if err != nil {
			_ = p.repo.MarkFailed(ctx, p.db, e.ID, err.Error())
			continue
		}

		channel := events.RouteChannel(env)
		if err := p.publisher.Publish(ctx, channel, payload); err != nil {
			_ = p.repo.MarkFailed(ctx, p.db, e.ID, err.Error())
			continue
		}

		_ = p.repo.MarkCompleted(ctx, p.db, e.ID)
	}
	return len(batch), nil
}

// RequeueFailed moves retryable failures back into the pending queue.
func (p *Processor) RequeueFailed(ctx context.Context) error {
	return p.repo.Requeue(ctx, p.db, p.maxRetries)
}
