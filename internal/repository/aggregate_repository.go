package repository

import (
	"context"

	"alumnet-chat/internal/domain/conversation"
	"alumnet-chat/internal/domain/message"
	"alumnet-chat/pkg/database"

	"github.com/google/uuid"
)

// PostgresAggregateRepository batch-fetches derived data for a set of
// conversations or messages. Every method is a single round trip over
// an id list; listing N rows never issues N queries.
type PostgresAggregateRepository struct{}

func NewAggregateRepository() AggregateRepository {
	return &PostgresAggregateRepository{}
}

// LastMessages returns the newest non-deleted message per conversation
// using one DISTINCT ON query.
func (r *PostgresAggregateRepository) LastMessages(ctx context.Context, db database.DBTX, conversationIDs []uuid.UUID) (map[uuid.UUID]message.Message, error) {
	result := make(map[uuid.UUID]message.Message, len(conversationIDs))
	if len(conversationIDs) == 0 {
		return result, nil
	}
	rows, err := db.Query(ctx, `
        SELECT DISTINCT ON (conversation_id) `+messageColumns+`
        FROM messages
        WHERE conversation_id = ANY($1) AND deleted_at IS NULL
        ORDER BY conversation_id, created_at DESC, id DESC
    `, conversationIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		result[m.ConversationID] = m
	}
	return result, rows.Err()
}

// ParticipantsFor returns all participants grouped by conversation in
// one query.
func (r *PostgresAggregateRepository) ParticipantsFor(ctx context.Context, db database.DBTX, conversationIDs []uuid.UUID) (map[uuid.UUID][]conversation.Participant, error) {
	result := make(map[uuid.UUID][]conversation.Participant, len(conversationIDs))
	if len(conversationIDs) == 0 {
		return result, nil
	}
	rows, err := db.Query(ctx, `
        SELECT conversation_id, user_id, role, joined_at, last_read_message_id
        FROM participants
        WHERE conversation_id = ANY($1)
        ORDER BY conversation_id, joined_at ASC
    `, conversationIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var p conversation.Participant
		if err := rows.Scan(&p.ConversationID, &p.UserID, &p.Role, &p.JoinedAt, &p.LastReadMessageID); err != nil {
			return nil, err
		}
		result[p.ConversationID] = append(result[p.ConversationID], p)
	}
	return result, rows.Err()
}

// ReactionsFor returns reactions grouped by message in one query.
func (r *PostgresAggregateRepository) ReactionsFor(ctx context.Context, db database.DBTX, messageIDs []uuid.UUID) (map[uuid.UUID][]message.Reaction, error) {
	result := make(map[uuid.UUID][]message.Reaction, len(messageIDs))
	if len(messageIDs) == 0 {
		return result, nil
	}
	rows, err := db.Query(ctx, `
        SELECT message_id, user_id, emoji, created_at
        FROM message_reactions
        WHERE message_id = ANY($1)
        ORDER BY message_id, created_at ASC
    `, messageIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var re message.Reaction
		if err := rows.Scan(&re.MessageID, &re.UserID, &re.Emoji, &re.CreatedAt); err != nil {
			return nil, err
		}
		result[re.MessageID] = append(result[re.MessageID], re)
	}
	return result, rows.Err()
}
