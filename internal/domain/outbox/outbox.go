package outbox

import (
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusPending    Status = "PENDING"
	StatusProcessing Status = "PROCESSING"
	StatusCompleted  Status = "COMPLETED"
	StatusFailed     Status = "FAILED"
)

// Event types emitted by the messaging core. Rows are written inside
// the same transaction as the write they describe and published only
// after that transaction commits.
const (
	EventConversationCreated = "conversation.created"
	EventMessageSent         = "message.sent"
	EventMessageDeleted      = "message.deleted"
	EventParticipantAdded    = "participant.added"
	EventParticipantRemoved  = "participant.removed"
	EventParticipantRole     = "participant.role_changed"
	EventReactionAdded       = "reaction.added"
)

// OutboxEvent represents the outbox_events table
type OutboxEvent struct {
	ID            uuid.UUID
	EventType     string
	AggregateType string
	AggregateID   string
	Payload       string
	Status        Status
	RetryCount    int
	Error         *string
	CreatedAt     time.Time
	UpdatedAt     time.Time
	ProcessedAt   *time.Time
}
