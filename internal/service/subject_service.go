package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/thdev-org/marks-daybook/internal/models"
	apperrors "github.com/thdev-org/marks-daybook/pkg/errors"
)

type subjectRepo interface {
	ListByUser(ctx context.Context, userID string) ([]models.Subject, error)
	FindByID(ctx context.Context, id, userID string) (*models.Subject, error)
	Create(ctx context.Context, subject *models.Subject) error
	Update(ctx context.Context, subject *models.Subject) error
}

// CreateSubjectRequest is the payload for adding a subject.
type CreateSubjectRequest struct {
	UserID string `validate:"required"`
	Name   string `validate:"required"`
}

// RenameSubjectRequest is the payload for renaming a subject.
type RenameSubjectRequest struct {
	UserID    string `validate:"required"`
	SubjectID string `validate:"required"`
	Name      string `validate:"required"`
}

// SubjectService manages a user's subjects.
type SubjectService struct {
	subjects  subjectRepo
	validator *validator.Validate
	logger    *zap.Logger
}

// NewSubjectService constructs SubjectService.
func NewSubjectService(subjects subjectRepo, validate *validator.Validate, logger *zap.Logger) *SubjectService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SubjectService{subjects: subjects, validator: validate, logger: logger}
}

// List returns the user's subjects.
func (s *SubjectService) List(ctx context.Context, userID string) ([]models.Subject, error) {
	subjects, err := s.subjects.ListByUser(ctx, userID)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrInternal.Code, "failed to list subjects")
	}
	return subjects, nil
}

// Get loads one subject scoped to the user.
func (s *SubjectService) Get(ctx context.Context, subjectID, userID string) (*models.Subject, error) {
	subject, err := s.subjects.FindByID(ctx, subjectID, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.Clone(apperrors.ErrNotFound, "subject not found")
		}
		return nil, apperrors.Wrap(err, apperrors.ErrInternal.Code, "failed to load subject")
	}
	return subject, nil
}

// Create adds a subject. Duplicate names are deliberately allowed.
func (s *SubjectService) Create(ctx context.Context, req CreateSubjectRequest) (*models.Subject, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrValidation.Code, "invalid subject payload")
	}

	subject := &models.Subject{UserID: req.UserID, Name: req.Name}
	if err := s.subjects.Create(ctx, subject); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrInternal.Code, "failed to create subject")
	}

	s.logger.Info("subject created",
		zap.String("user_id", req.UserID),
		zap.String("subject_id", subject.ID),
	)
	return subject, nil
}

// Rename updates a subject's name in place.
func (s *SubjectService) Rename(ctx context.Context, req RenameSubjectRequest) (*models.Subject, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrValidation.Code, "invalid subject payload")
	}

	subject, err := s.Get(ctx, req.SubjectID, req.UserID)
	if err != nil {
		return nil, err
	}

	subject.Name = req.Name
	if err := s.subjects.Update(ctx, subject); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrInternal.Code, "failed to rename subject")
	}
	return subject, nil
}
