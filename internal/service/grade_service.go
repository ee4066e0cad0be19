package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/thdev-org/marks-daybook/internal/models"
	apperrors "github.com/thdev-org/marks-daybook/pkg/errors"
)

type gradeRepo interface {
	ListByUser(ctx context.Context, userID string, filter models.GradeFilter) ([]models.Grade, error)
	Create(ctx context.Context, grade *models.Grade) error
	AverageBySubject(ctx context.Context, userID, subjectID string) (*float64, int, error)
}

type subjectReader interface {
	FindByID(ctx context.Context, id, userID string) (*models.Subject, error)
	ListByUser(ctx context.Context, userID string) ([]models.Subject, error)
}

type termResolver interface {
	FindByDate(ctx context.Context, userID string, date time.Time) (*models.Term, error)
}

// CreateGradeRequest is the payload for recording a grade.
type CreateGradeRequest struct {
	UserID    string    `validate:"required"`
	SubjectID string    `validate:"required"`
	Value     int       `validate:"required,min=1,max=12"`
	GradeType string    `validate:"omitempty"`
	Date      time.Time `validate:"required"`
}

// GradeService records grades and computes per-subject statistics.
type GradeService struct {
	grades    gradeRepo
	subjects  subjectReader
	terms     termResolver
	validator *validator.Validate
	logger    *zap.Logger
}

// NewGradeService constructs GradeService.
func NewGradeService(grades gradeRepo, subjects subjectReader, terms termResolver, validate *validator.Validate, logger *zap.Logger) *GradeService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GradeService{
		grades:    grades,
		subjects:  subjects,
		terms:     terms,
		validator: validate,
		logger:    logger,
	}
}

// List returns the user's grades, optionally filtered by subject or term,
// newest first.
func (s *GradeService) List(ctx context.Context, userID string, filter models.GradeFilter) ([]models.Grade, error) {
	grades, err := s.grades.ListByUser(ctx, userID, filter)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrInternal.Code, "failed to list grades")
	}
	return grades, nil
}

// Create records a grade for a subject the user owns. The enclosing term is
// resolved once from the grade date and never recomputed afterwards; a grade
// with no enclosing term is valid.
func (s *GradeService) Create(ctx context.Context, req CreateGradeRequest) (*models.Grade, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrValidation.Code, "invalid grade payload")
	}

	subject, err := s.subjects.FindByID(ctx, req.SubjectID, req.UserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.Clone(apperrors.ErrNotFound, "subject not found")
		}
		return nil, apperrors.Wrap(err, apperrors.ErrInternal.Code, "failed to load subject")
	}

	gradeType := req.GradeType
	if gradeType == "" {
		gradeType = models.DefaultGradeType
	}

	grade := &models.Grade{
		UserID:    req.UserID,
		SubjectID: subject.ID,
		Value:     req.Value,
		GradeType: gradeType,
		Date:      req.Date,
	}

	term, err := s.terms.FindByDate(ctx, req.UserID, req.Date)
	switch {
	case err == nil:
		grade.TermID = &term.ID
	case errors.Is(err, sql.ErrNoRows):
		// Date falls outside every term; the grade stays unbucketed.
	default:
		return nil, apperrors.Wrap(err, apperrors.ErrInternal.Code, "failed to resolve term")
	}

	if err := s.grades.Create(ctx, grade); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrInternal.Code, "failed to create grade")
	}

	s.logger.Info("grade created",
		zap.String("user_id", req.UserID),
		zap.String("subject_id", subject.ID),
		zap.Int("value", req.Value),
	)
	return grade, nil
}

// Average computes the arithmetic mean of the user's grades for one subject.
// A nil result means the subject has no grades, which callers must keep
// distinct from an average of zero.
func (s *GradeService) Average(ctx context.Context, userID, subjectID string) (*float64, int, error) {
	avg, count, err := s.grades.AverageBySubject(ctx, userID, subjectID)
	if err != nil {
		return nil, 0, apperrors.Wrap(err, apperrors.ErrInternal.Code, "failed to compute average")
	}
	return avg, count, nil
}

// Averages computes the mean for every subject the user has.
func (s *GradeService) Averages(ctx context.Context, userID string) ([]models.SubjectAverage, error) {
	subjects, err := s.subjects.ListByUser(ctx, userID)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrInternal.Code, "failed to list subjects")
	}

	averages := make([]models.SubjectAverage, 0, len(subjects))
	for _, subject := range subjects {
		avg, count, err := s.grades.AverageBySubject(ctx, userID, subject.ID)
		if err != nil {
			return nil, apperrors.Wrap(err, apperrors.ErrInternal.Code, "failed to compute average")
		}
		averages = append(averages, models.SubjectAverage{
			SubjectID:   subject.ID,
			SubjectName: subject.Name,
			Average:     avg,
			Count:       count,
		})
	}
	return averages, nil
}
