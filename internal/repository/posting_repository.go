package repository

import (
	"context"
	"errors"

	"alumnet-chat/internal/domain/posting"
	"alumnet-chat/pkg/database"
	chaterrors "alumnet-chat/pkg/errors"

	"github.com/jackc/pgx/v5"
)

type PostgresPostingRepository struct{}

func NewPostingRepository() PostingRepository {
	return &PostgresPostingRepository{}
}

func (r *PostgresPostingRepository) GetByID(ctx context.Context, db database.DBTX, id int64) (posting.Posting, error) {
	var p posting.Posting
	err := db.QueryRow(ctx, `
        SELECT id, title, author_id FROM postings WHERE id = $1
    `, id).Scan(&p.ID, &p.Title, &p.AuthorID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return posting.Posting{}, chaterrors.ErrNotFound
		}
		return posting.Posting{}, err
	}
	return p, nil
}
