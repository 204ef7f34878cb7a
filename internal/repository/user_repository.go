package repository

import (
	"context"

	"alumnet-chat/internal/domain/user"
	"alumnet-chat/pkg/database"
)

type PostgresUserRepository struct{}

func NewUserRepository() UserRepository {
	return &PostgresUserRepository{}
}

// FilterActive returns the subset of ids that exist and are active, in
// a single query. Callers compare cardinality with their input to build
// a precise rejection before the first insert.
func (r *PostgresUserRepository) FilterActive(ctx context.Context, db database.DBTX, ids []int64) ([]int64, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := db.Query(ctx, `
        SELECT id FROM users
        WHERE id = ANY($1) AND is_active = TRUE
    `, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var active []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		active = append(active, id)
	}
	return active, rows.Err()
}

func (r *PostgresUserRepository) GetByIDs(ctx context.Context, db database.DBTX, ids []int64) ([]user.User, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := db.Query(ctx, `
        SELECT id, full_name, is_active FROM users
        WHERE id = ANY($1)
    `, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []user.User
	for rows.Next() {
		var u user.User
		if err := rows.Scan(&u.ID, &u.FullName, &u.IsActive); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}
