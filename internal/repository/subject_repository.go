package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/thdev-org/marks-daybook/internal/models"
)

// SubjectRepository handles persistence for subjects. Every query is scoped
// to the owning user; that scoping is the only access-control boundary.
type SubjectRepository struct {
	db *sqlx.DB
}

// NewSubjectRepository instantiates a subject repository.
func NewSubjectRepository(db *sqlx.DB) *SubjectRepository {
	return &SubjectRepository{db: db}
}

// ListByUser returns all subjects owned by the user, oldest first.
func (r *SubjectRepository) ListByUser(ctx context.Context, userID string) ([]models.Subject, error) {
	const query = `SELECT id, user_id, name, created_at FROM subjects WHERE user_id = $1 ORDER BY created_at ASC`
	var subjects []models.Subject
	if err := r.db.SelectContext(ctx, &subjects, query, userID); err != nil {
		return nil, fmt.Errorf("list subjects: %w", err)
	}
	return subjects, nil
}

// FindByID loads a subject by id for the given user. Returns sql.ErrNoRows
// when the (id, user) pair does not exist.
func (r *SubjectRepository) FindByID(ctx context.Context, id, userID string) (*models.Subject, error) {
	const query = `SELECT id, user_id, name, created_at FROM subjects WHERE id = $1 AND user_id = $2`
	var subject models.Subject
	if err := r.db.GetContext(ctx, &subject, query, id, userID); err != nil {
		return nil, err
	}
	return &subject, nil
}

// Create inserts a new subject record. Duplicate names are allowed.
func (r *SubjectRepository) Create(ctx context.Context, subject *models.Subject) error {
	if subject.ID == "" {
		subject.ID = uuid.NewString()
	}
	if subject.CreatedAt.IsZero() {
		subject.CreatedAt = time.Now().UTC()
	}

	const query = `INSERT INTO subjects (id, user_id, name, created_at) VALUES (:id, :user_id, :name, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, subject); err != nil {
		return fmt.Errorf("create subject: %w", err)
	}
	return nil
}

// Update renames an existing subject. A no-op when the (id, user) pair does
// not exist.
func (r *SubjectRepository) Update(ctx context.Context, subject *models.Subject) error {
	const query = `UPDATE subjects SET name = :name WHERE id = :id AND user_id = :user_id`
	if _, err := r.db.NamedExecContext(ctx, query, subject); err != nil {
		return fmt.Errorf("update subject: %w", err)
	}
	return nil
}
