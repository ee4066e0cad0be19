package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/thdev-org/marks-daybook/internal/models"
)

// TermRepository handles persistence for academic terms.
type TermRepository struct {
	db *sqlx.DB
}

// NewTermRepository instantiates a term repository.
func NewTermRepository(db *sqlx.DB) *TermRepository {
	return &TermRepository{db: db}
}

// ListByUser returns the user's terms ordered by start date, newest first.
func (r *TermRepository) ListByUser(ctx context.Context, userID string) ([]models.Term, error) {
	const query = `SELECT id, user_id, name, start_date, end_date, created_at FROM terms WHERE user_id = $1 ORDER BY start_date DESC`
	var terms []models.Term
	if err := r.db.SelectContext(ctx, &terms, query, userID); err != nil {
		return nil, fmt.Errorf("list terms: %w", err)
	}
	return terms, nil
}

// FindByID loads a term by id for the given user.
func (r *TermRepository) FindByID(ctx context.Context, id, userID string) (*models.Term, error) {
	const query = `SELECT id, user_id, name, start_date, end_date, created_at FROM terms WHERE id = $1 AND user_id = $2`
	var term models.Term
	if err := r.db.GetContext(ctx, &term, query, id, userID); err != nil {
		return nil, err
	}
	return &term, nil
}

// FindByDate returns the user's term whose [start_date, end_date] range
// contains the date, both ends inclusive. Overlapping terms are allowed; when
// more than one matches, the term with the latest start date wins. Returns
// sql.ErrNoRows when the date falls outside every term.
func (r *TermRepository) FindByDate(ctx context.Context, userID string, date time.Time) (*models.Term, error) {
	const query = `SELECT id, user_id, name, start_date, end_date, created_at FROM terms WHERE user_id = $1 AND start_date <= $2 AND end_date >= $2 ORDER BY start_date DESC LIMIT 1`
	var term models.Term
	if err := r.db.GetContext(ctx, &term, query, userID, date); err != nil {
		return nil, err
	}
	return &term, nil
}

// Create inserts a new term record.
func (r *TermRepository) Create(ctx context.Context, term *models.Term) error {
	if term.ID == "" {
		term.ID = uuid.NewString()
	}
	if term.CreatedAt.IsZero() {
		term.CreatedAt = time.Now().UTC()
	}

	const query = `INSERT INTO terms (id, user_id, name, start_date, end_date, created_at) VALUES (:id, :user_id, :name, :start_date, :end_date, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, term); err != nil {
		return fmt.Errorf("create term: %w", err)
	}
	return nil
}

// Update modifies an existing term. A no-op when the (id, user) pair does
// not exist. Grades keep the term resolved at their creation time.
func (r *TermRepository) Update(ctx context.Context, term *models.Term) error {
	const query = `UPDATE terms SET name = :name, start_date = :start_date, end_date = :end_date WHERE id = :id AND user_id = :user_id`
	if _, err := r.db.NamedExecContext(ctx, query, term); err != nil {
		return fmt.Errorf("update term: %w", err)
	}
	return nil
}
