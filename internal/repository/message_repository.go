package repository

import (
	"context"
	"errors"
	"time"

	"alumnet-chat/internal/domain/message"
	"alumnet-chat/pkg/database"
	chaterrors "alumnet-chat/pkg/errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type PostgresMessageRepository struct{}

func NewMessageRepository() MessageRepository {
	return &PostgresMessageRepository{}
}

const messageColumns = `id, conversation_id, sender_id, content, message_type, media_url, media_metadata, reply_to_id, edited_at, deleted_at, created_at`

func scanMessage(row pgx.Row) (message.Message, error) {
	var m message.Message
	err := row.Scan(&m.ID, &m.ConversationID, &m.SenderID, &m.Content, &m.Type, &m.MediaURL, &m.MediaMetadata, &m.ReplyToID, &m.EditedAt, &m.DeletedAt, &m.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return message.Message{}, chaterrors.ErrNotFound
		}
		return message.Message{}, err
	}
	return m, nil
}

func (r *PostgresMessageRepository) Insert(ctx context.Context, db database.DBTX, m *message.Message) error {
	_, err := db.Exec(ctx, `
        INSERT INTO messages (id, conversation_id, sender_id, content, message_type, media_url, media_metadata, reply_to_id, created_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
    `, m.ID, m.ConversationID, m.SenderID, m.Content, m.Type, m.MediaURL, m.MediaMetadata, m.ReplyToID, m.CreatedAt)
	return err
}

// GetByID returns the row even when soft-deleted; audit paths and
// permission checks need the original sender and conversation.
func (r *PostgresMessageRepository) GetByID(ctx context.Context, db database.DBTX, id uuid.UUID) (message.Message, error) {
	return scanMessage(db.QueryRow(ctx, `
        SELECT `+messageColumns+` FROM messages WHERE id = $1
    `, id))
}

// ListWindow pages messages newest-first. A nil cursor starts at the
// newest message; BeforeID walks history, AfterID fetches newer rows
// (oldest-first within the window). Soft-deleted rows are included so
// thread counts stay stable; their content was blanked at delete time.
func (r *PostgresMessageRepository) ListWindow(ctx context.Context, db database.DBTX, conversationID uuid.UUID, w message.Window) ([]message.Message, error) {
	limit := w.Limit
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	var (
		rows pgx.Rows
		err  error
	)
	switch {
	case w.BeforeID != nil:
		rows, err = db.Query(ctx, `
            SELECT `+messageColumns+` FROM messages
            WHERE conversation_id = $1
              AND (created_at, id) < (SELECT created_at, id FROM messages WHERE id = $2)
            ORDER BY created_at DESC, id DESC
            LIMIT $3
        `, conversationID, *w.BeforeID, limit)
	case w.AfterID != nil:
		rows, err = db.Query(ctx, `
            SELECT `+messageColumns+` FROM messages
            WHERE conversation_id = $1
              AND (created_at, id) > (SELECT created_at, id FROM messages WHERE id = $2)
            ORDER BY created_at ASC, id ASC
            LIMIT $3
        `, conversationID, *w.AfterID, limit)
	default:
		rows, err = db.Query(ctx, `
            SELECT `+messageColumns+` FROM messages
            WHERE conversation_id = $1
            ORDER BY created_at DESC, id DESC
            LIMIT $2
        `, conversationID, limit)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []message.Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

// Edit rewrites content and stamps edited_at. id and created_at are
// never touched; editing a deleted message is refused at the SQL level.
func (r *PostgresMessageRepository) Edit(ctx context.Context, db database.DBTX, id uuid.UUID, content string, editedAt time.Time) error {
	tag, err := db.Exec(ctx, `
        UPDATE messages SET content = $1, edited_at = $2
        WHERE id = $3 AND deleted_at IS NULL
    `, content, editedAt, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return chaterrors.ErrNotFound
	}
	return nil
}

// SoftDelete keeps the row for audit counts but blanks the visible
// content. Reactions on the message are left in place.
func (r *PostgresMessageRepository) SoftDelete(ctx context.Context, db database.DBTX, id uuid.UUID, at time.Time) error {
	tag, err := db.Exec(ctx, `
        UPDATE messages SET deleted_at = $1, content = '', media_url = NULL, media_metadata = NULL
        WHERE id = $2 AND deleted_at IS NULL
    `, at, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return chaterrors.ErrNotFound
	}
	return nil
}

// LatestID returns the newest non-deleted message id, used when a read
// marker is set without an explicit message.
func (r *PostgresMessageRepository) LatestID(ctx context.Context, db database.DBTX, conversationID uuid.UUID) (uuid.UUID, error) {
	var id uuid.UUID
	err := db.QueryRow(ctx, `
        SELECT id FROM messages
        WHERE conversation_id = $1 AND deleted_at IS NULL
        ORDER BY created_at DESC, id DESC
        LIMIT 1
    `, conversationID).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return uuid.Nil, chaterrors.ErrNotFound
		}
		return uuid.Nil, err
	}
	return id, nil
}
