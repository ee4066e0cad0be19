package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/thdev-org/marks-daybook/internal/models"
)

// GradeRepository handles persistence for grade entries.
type GradeRepository struct {
	db *sqlx.DB
}

// NewGradeRepository instantiates a grade repository.
func NewGradeRepository(db *sqlx.DB) *GradeRepository {
	return &GradeRepository{db: db}
}

// ListByUser returns the user's grades matching the filter, newest first.
func (r *GradeRepository) ListByUser(ctx context.Context, userID string, filter models.GradeFilter) ([]models.Grade, error) {
	base := "SELECT id, user_id, subject_id, value, grade_type, date, term_id, confirmed, created_at FROM grades WHERE user_id = $1"
	args := []interface{}{userID}
	var conditions []string

	if filter.SubjectID != "" {
		conditions = append(conditions, fmt.Sprintf("subject_id = $%d", len(args)+1))
		args = append(args, filter.SubjectID)
	}
	if filter.TermID != "" {
		conditions = append(conditions, fmt.Sprintf("term_id = $%d", len(args)+1))
		args = append(args, filter.TermID)
	}

	query := base
	if len(conditions) > 0 {
		query += " AND " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY date DESC, created_at DESC"

	var grades []models.Grade
	if err := r.db.SelectContext(ctx, &grades, query, args...); err != nil {
		return nil, fmt.Errorf("list grades: %w", err)
	}
	return grades, nil
}

// Create inserts a new grade record.
func (r *GradeRepository) Create(ctx context.Context, grade *models.Grade) error {
	if grade.ID == "" {
		grade.ID = uuid.NewString()
	}
	if grade.CreatedAt.IsZero() {
		grade.CreatedAt = time.Now().UTC()
	}

	const query = `INSERT INTO grades (id, user_id, subject_id, value, grade_type, date, term_id, confirmed, created_at) VALUES (:id, :user_id, :subject_id, :value, :grade_type, :date, :term_id, :confirmed, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, grade); err != nil {
		return fmt.Errorf("create grade: %w", err)
	}
	return nil
}

// Update modifies an existing grade. A no-op when the (id, user) pair does
// not exist. No dialogue surface reaches this yet; the store supports it.
func (r *GradeRepository) Update(ctx context.Context, grade *models.Grade) error {
	const query = `UPDATE grades SET subject_id = :subject_id, value = :value, grade_type = :grade_type, date = :date, term_id = :term_id, confirmed = :confirmed WHERE id = :id AND user_id = :user_id`
	if _, err := r.db.NamedExecContext(ctx, query, grade); err != nil {
		return fmt.Errorf("update grade: %w", err)
	}
	return nil
}

// AverageBySubject computes the arithmetic mean of the user's grade values
// for one subject inside the database, so no intermediate rounding happens.
// The returned pointer is nil when the subject has no grades.
func (r *GradeRepository) AverageBySubject(ctx context.Context, userID, subjectID string) (*float64, int, error) {
	const query = `SELECT AVG(value) AS avg, COUNT(value) AS count FROM grades WHERE user_id = $1 AND subject_id = $2`
	var row struct {
		Avg   sql.NullFloat64 `db:"avg"`
		Count int             `db:"count"`
	}
	if err := r.db.GetContext(ctx, &row, query, userID, subjectID); err != nil {
		return nil, 0, fmt.Errorf("average grades: %w", err)
	}
	if !row.Avg.Valid {
		return nil, 0, nil
	}
	avg := row.Avg.Float64
	return &avg, row.Count, nil
}
