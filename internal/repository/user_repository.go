package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/thdev-org/marks-daybook/internal/models"
)

// UserRepository handles persistence for registered users.
type UserRepository struct {
	db *sqlx.DB
}

// NewUserRepository instantiates a user repository.
func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

// FindByTelegramID loads a user by external chat identity. Returns
// sql.ErrNoRows when the identity is unknown.
func (r *UserRepository) FindByTelegramID(ctx context.Context, telegramID int64) (*models.User, error) {
	const query = `SELECT id, telegram_id, name, created_at FROM users WHERE telegram_id = $1 LIMIT 1`
	var user models.User
	if err := r.db.GetContext(ctx, &user, query, telegramID); err != nil {
		return nil, err
	}
	return &user, nil
}

// Create inserts a new user. The insert is a no-op when the telegram id is
// already registered; the returned bool reports whether a row was written.
func (r *UserRepository) Create(ctx context.Context, user *models.User) (bool, error) {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}

	const query = `INSERT INTO users (id, telegram_id, name, created_at) VALUES (:id, :telegram_id, :name, :created_at) ON CONFLICT (telegram_id) DO NOTHING`
	res, err := r.db.NamedExecContext(ctx, query, user)
	if err != nil {
		return false, fmt.Errorf("create user: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("create user rows affected: %w", err)
	}
	return affected > 0, nil
}
