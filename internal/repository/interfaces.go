package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"alumnet-chat/internal/domain/conversation"
	"alumnet-chat/internal/domain/message"
	"alumnet-chat/internal/domain/outbox"
	"alumnet-chat/internal/domain/posting"
	"alumnet-chat/internal/domain/user"
	"alumnet-chat/pkg/database"
)

// Every store method takes the database handle it must run against.
// Services decide transaction boundaries; repositories never open
// connections of their own and never touch shared state.

type ConversationRepository interface {
	Create(ctx context.Context, db database.DBTX, c *conversation.Conversation) error
	GetByID(ctx context.Context, db database.DBTX, id uuid.UUID) (conversation.Conversation, error)
	GetByDirectKey(ctx context.Context, db database.DBTX, key string) (conversation.Conversation, error)
	GetByPostingID(ctx context.Context, db database.DBTX, postingID int64) (conversation.Conversation, error)
	ListForUser(ctx context.Context, db database.DBTX, userID int64, limit, offset int) ([]conversation.Conversation, int64, error)
	SetArchived(ctx context.Context, db database.DBTX, id uuid.UUID, archived bool) error
	Rename(ctx context.Context, db database.DBTX, id uuid.UUID, name string) error
	TouchLastMessage(ctx context.Context, db database.DBTX, id uuid.UUID, at time.Time) error

	AddParticipant(ctx context.Context, db database.DBTX, p *conversation.Participant) (bool, error)
	RemoveParticipant(ctx context.Context, db database.DBTX, conversationID uuid.UUID, userID int64) error
	GetParticipant(ctx context.Context, db database.DBTX, conversationID uuid.UUID, userID int64) (conversation.Participant, error)
	GetParticipants(ctx context.Context, db database.DBTX, conversationID uuid.UUID) ([]conversation.Participant, error)
	UpdateParticipantRole(ctx context.Context, db database.DBTX, conversationID uuid.UUID, userID int64, role conversation.Role) error
	CountParticipants(ctx context.Context, db database.DBTX, conversationID uuid.UUID) (int64, error)
	SetLastRead(ctx context.Context, db database.DBTX, conversationID uuid.UUID, userID int64, messageID uuid.UUID) error
}

type MessageRepository interface {
	Insert(ctx context.Context, db database.DBTX, m *message.Message) error
	GetByID(ctx context.Context, db database.DBTX, id uuid.UUID) (message.Message, error)
	ListWindow(ctx context.Context, db database.DBTX, conversationID uuid.UUID, w message.Window) ([]message.Message, error)
	Edit(ctx context.Context, db database.DBTX, id uuid.UUID, content string, editedAt time.Time) error
	SoftDelete(ctx context.Context, db database.DBTX, id uuid.UUID, at time.Time) error
	LatestID(ctx context.Context, db database.DBTX, conversationID uuid.UUID) (uuid.UUID, error)
}

type ReactionRepository interface {
	Add(ctx context.Context, db database.DBTX, reaction *message.Reaction) (bool, error)
	Remove(ctx context.Context, db database.DBTX, messageID uuid.UUID, userID int64, emoji string) error
}

type AggregateRepository interface {
	LastMessages(ctx context.Context, db database.DBTX, conversationIDs []uuid.UUID) (map[uuid.UUID]message.Message, error)
	ParticipantsFor(ctx context.Context, db database.DBTX, conversationIDs []uuid.UUID) (map[uuid.UUID][]conversation.Participant, error)
	ReactionsFor(ctx context.Context, db database.DBTX, messageIDs []uuid.UUID) (map[uuid.UUID][]message.Reaction, error)
}

type OutboxRepository interface {
	Create(ctx context.Context, db database.DBTX, event *outbox.OutboxEvent) error
	ClaimPending(ctx context.Context, db database.DBTX, limit, maxRetries int) ([]outbox.OutboxEvent, error)
	MarkCompleted(ctx context.Context, db database.DBTX, id uuid.UUID) error
	MarkFailed(ctx context.Context, db database.DBTX, id uuid.UUID, errorMsg string) error
	Requeue(ctx context.Context, db database.DBTX, maxRetries int) error
}

type UserRepository interface {
	FilterActive(ctx context.Context, db database.DBTX, ids []int64) ([]int64, error)
	GetByIDs(ctx context.Context, db database.DBTX, ids []int64) ([]user.User, error)
}

type PostingRepository interface {
	GetByID(ctx context.Context, db database.DBTX, id int64) (posting.Posting, error)
}
