package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	domainoutbox "alumnet-chat/internal/domain/outbox"
	"alumnet-chat/internal/repository"
	"alumnet-chat/pkg/database"

	"github.com/google/uuid"
)

// recordOutboxEvent stages an event on the same handle as the write it
// announces, so the event commits or rolls back with that write. The
// outbox runner publishes it after commit.
func recordOutboxEvent(ctx context.Context, q database.DBTX, repo repository.OutboxRepository, eventType, aggregateType, aggregateID string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal outbox payload: %w", err)
	}
	now := time.Now()
	return repo.Create(ctx, q, &domainoutbox.OutboxEvent{
		ID:            uuid.New(),
		EventType:     eventType,
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		Payload:       string(body),
		Status:        domainoutbox.StatusPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	})
}
