package repository

import (
	"context"
	"errors"
	"time"

	"alumnet-chat/internal/domain/conversation"
	"alumnet-chat/pkg/database"
	chaterrors "alumnet-chat/pkg/errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type PostgresConversationRepository struct{}

func NewConversationRepository() ConversationRepository {
	return &PostgresConversationRepository{}
}

const conversationColumns = `id, type, name, direct_key, linked_posting_id, is_archived, last_message_at, created_at`

func scanConversation(row pgx.Row) (conversation.Conversation, error) {
	var c conversation.Conversation
	err := row.Scan(&c.ID, &c.Type, &c.Name, &c.DirectKey, &c.LinkedPostingID, &c.IsArchived, &c.LastMessageAt, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return conversation.Conversation{}, chaterrors.ErrNotFound
		}
		return conversation.Conversation{}, err
	}
	return c, nil
}

// Create inserts the conversation row. The partial unique indexes on
// direct_key and linked_posting_id are the dedup authority; a lost
// race surfaces as ErrAlreadyExists for the caller to refetch.
func (r *PostgresConversationRepository) Create(ctx context.Context, db database.DBTX, c *conversation.Conversation) error {
	_, err := db.Exec(ctx, `
        INSERT INTO conversations (id, type, name, direct_key, linked_posting_id, is_archived, last_message_at, created_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
    `, c.ID, c.Type, c.Name, c.DirectKey, c.LinkedPostingID, c.IsArchived, c.LastMessageAt, c.CreatedAt)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return chaterrors.ErrAlreadyExists
		}
		return err
	}
	return nil
}

func (r *PostgresConversationRepository) GetByID(ctx context.Context, db database.DBTX, id uuid.UUID) (conversation.Conversation, error) {
	return scanConversation(db.QueryRow(ctx, `
        SELECT `+conversationColumns+` FROM conversations WHERE id = $1
    `, id))
}

func (r *PostgresConversationRepository) GetByDirectKey(ctx context.Context, db database.DBTX, key string) (conversation.Conversation, error) {
	return scanConversation(db.QueryRow(ctx, `
        SELECT `+conversationColumns+` FROM conversations
        WHERE type = 'DIRECT' AND direct_key = $1
    `, key))
}

func (r *PostgresConversationRepository) GetByPostingID(ctx context.Context, db database.DBTX, postingID int64) (conversation.Conversation, error) {
	return scanConversation(db.QueryRow(ctx, `
        SELECT `+conversationColumns+` FROM conversations
        WHERE type = 'POST_LINKED' AND linked_posting_id = $1
    `, postingID))
}

// ListForUser pages a user's conversations, most recently active first.
// Participants and last messages are fetched separately in batch by the
// aggregate queries, never per row.
func (r *PostgresConversationRepository) ListForUser(ctx context.Context, db database.DBTX, userID int64, limit, offset int) ([]conversation.Conversation, int64, error) {
	var total int64
	err := db.QueryRow(ctx, `
        SELECT COUNT(*) FROM conversations c
        JOIN participants p ON p.conversation_id = c.id
        WHERE p.user_id = $1
    `, userID).Scan(&total)
	if err != nil {
		return nil, 0, err
	}

	rows, err := db.Query(ctx, `
        SELECT `+conversationColumns+` FROM conversations c
        JOIN participants p ON p.conversation_id = c.id
        WHERE p.user_id = $1
        ORDER BY c.last_message_at DESC NULLS LAST, c.created_at DESC
        LIMIT $2 OFFSET $3
    `, userID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var conversations []conversation.Conversation
	for rows.Next() {
		c, err := scanConversation(rows)
		if err != nil {
			return nil, 0, err
		}
		conversations = append(conversations, c)
	}
	return conversations, total, rows.Err()
}

func (r *PostgresConversationRepository) SetArchived(ctx context.Context, db database.DBTX, id uuid.UUID, archived bool) error {
	tag, err := db.Exec(ctx, `
        UPDATE conversations SET is_archived = $1 WHERE id = $2
    `, archived, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return chaterrors.ErrNotFound
	}
	return nil
}

func (r *PostgresConversationRepository) Rename(ctx context.Context, db database.DBTX, id uuid.UUID, name string) error {
	tag, err := db.Exec(ctx, `
        UPDATE conversations SET name = $1
        WHERE id = $2 AND type IN ('GROUP','POST_LINKED')
    `, name, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return chaterrors.ErrNotFound
	}
	return nil
}

func (r *PostgresConversationRepository) TouchLastMessage(ctx context.Context, db database.DBTX, id uuid.UUID, at time.Time) error {
	_, err := db.Exec(ctx, `
        UPDATE conversations SET last_message_at = $1 WHERE id = $2
    `, at, id)
	return err
}

// AddParticipant is idempotent: re-adding an existing member is a
// no-op. The returned bool reports whether a row was actually inserted.
func (r *PostgresConversationRepository) AddParticipant(ctx context.Context, db database.DBTX, p *conversation.Participant) (bool, error) {
	tag, err := db.Exec(ctx, `
        INSERT INTO participants (conversation_id, user_id, role, joined_at)
        VALUES ($1,$2,$3,$4)
        ON CONFLICT (conversation_id, user_id) DO NOTHING
    `, p.ConversationID, p.UserID, p.Role, p.JoinedAt)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *PostgresConversationRepository) RemoveParticipant(ctx context.Context, db database.DBTX, conversationID uuid.UUID, userID int64) error {
	tag, err := db.Exec(ctx, `
        DELETE FROM participants WHERE conversation_id = $1 AND user_id = $2
    `, conversationID, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return chaterrors.ErrNotFound
	}
	return nil
}

func (r *PostgresConversationRepository) GetParticipant(ctx context.Context, db database.DBTX, conversationID uuid.UUID, userID int64) (conversation.Participant, error) {
	var p conversation.Participant
	err := db.QueryRow(ctx, `
        SELECT conversation_id, user_id, role, joined_at, last_read_message_id
        FROM participants WHERE conversation_id = $1 AND user_id = $2
    `, conversationID, userID).Scan(&p.ConversationID, &p.UserID, &p.Role, &p.JoinedAt, &p.LastReadMessageID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return conversation.Participant{}, chaterrors.ErrNotFound
		}
		return conversation.Participant{}, err
	}
	return p, nil
}

func (r *PostgresConversationRepository) GetParticipants(ctx context.Context, db database.DBTX, conversationID uuid.UUID) ([]conversation.Participant, error) {
	rows, err := db.Query(ctx, `
        SELECT conversation_id, user_id, role, joined_at, last_read_message_id
        FROM participants WHERE conversation_id = $1
        ORDER BY joined_at ASC
    `, conversationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var participants []conversation.Participant
	for rows.Next() {
		var p conversation.Participant
		if err := rows.Scan(&p.ConversationID, &p.UserID, &p.Role, &p.JoinedAt, &p.LastReadMessageID); err != nil {
			return nil, err
		}
		participants = append(participants, p)
	}
	return participants, rows.Err()
}

func (r *PostgresConversationRepository) UpdateParticipantRole(ctx context.Context, db database.DBTX, conversationID uuid.UUID, userID int64, role conversation.Role) error {
	tag, err := db.Exec(ctx, `
        UPDATE participants SET role = $1 WHERE conversation_id = $2 AND user_id = $3
    `, role, conversationID, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return chaterrors.ErrNotFound
	}
	return nil
}

func (r *PostgresConversationRepository) CountParticipants(ctx context.Context, db database.DBTX, conversationID uuid.UUID) (int64, error) {
	var count int64
	err := db.QueryRow(ctx, `
        SELECT COUNT(*) FROM participants WHERE conversation_id = $1
    `, conversationID).Scan(&count)
	return count, err
}

func (r *PostgresConversationRepository) SetLastRead(ctx context.Context, db database.DBTX, conversationID uuid.UUID, userID int64, messageID uuid.UUID) error {
	tag, err := db.Exec(ctx, `
        UPDATE participants SET last_read_message_id = $1
        WHERE conversation_id = $2 AND user_id = $3
    `, messageID, conversationID, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return chaterrors.ErrNotFound
	}
	return nil
}
