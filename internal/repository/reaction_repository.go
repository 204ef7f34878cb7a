package repository

import (
	"context"

	"alumnet-chat/internal/domain/message"
	"alumnet-chat/pkg/database"
	chaterrors "alumnet-chat/pkg/errors"

	"github.com/google/uuid"
)

type PostgresReactionRepository struct{}

func NewReactionRepository() ReactionRepository {
	return &PostgresReactionRepository{}
}

// Add inserts the (message, user, emoji) triple. The composite primary
// key makes the second identical reaction a no-op; the bool reports
// whether a row was inserted.
func (r *PostgresReactionRepository) Add(ctx context.Context, db database.DBTX, reaction *message.Reaction) (bool, error) {
	tag, err := db.Exec(ctx, `
        INSERT INTO message_reactions (message_id, user_id, emoji, created_at)
        VALUES ($1,$2,$3,$4)
        ON CONFLICT (message_id, user_id, emoji) DO NOTHING
    `, reaction.MessageID, reaction.UserID, reaction.Emoji, reaction.CreatedAt)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *PostgresReactionRepository) Remove(ctx context.Context, db database.DBTX, messageID uuid.UUID, userID int64, emoji string) error {
	tag, err := db.Exec(ctx, `
        DELETE FROM message_reactions
        WHERE message_id = $1 AND user_id = $2 AND emoji = $3
    `, messageID, userID, emoji)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return chaterrors.ErrNotFound
	}
	return nil
}
