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

type termRepo interface {
	ListByUser(ctx context.Context, userID string) ([]models.Term, error)
	FindByID(ctx context.Context, id, userID string) (*models.Term, error)
	FindByDate(ctx context.Context, userID string, date time.Time) (*models.Term, error)
	Create(ctx context.Context, term *models.Term) error
	Update(ctx context.Context, term *models.Term) error
}

// CreateTermRequest is the payload for adding a term.
type CreateTermRequest struct {
	UserID    string    `validate:"required"`
	Name      string    `validate:"required"`
	StartDate time.Time `validate:"required"`
	EndDate   time.Time `validate:"required"`
}

// UpdateTermRequest is the payload for editing a term. Grades keep the term
// they resolved at creation time; edits never reassign them.
type UpdateTermRequest struct {
	UserID    string    `validate:"required"`
	TermID    string    `validate:"required"`
	Name      string    `validate:"required"`
	StartDate time.Time `validate:"required"`
	EndDate   time.Time `validate:"required"`
}

// TermService manages academic terms and resolves dates to terms.
type TermService struct {
	terms     termRepo
	validator *validator.Validate
	logger    *zap.Logger
}

// NewTermService constructs TermService.
func NewTermService(terms termRepo, validate *validator.Validate, logger *zap.Logger) *TermService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TermService{terms: terms, validator: validate, logger: logger}
}

// List returns the user's terms, newest start date first.
func (s *TermService) List(ctx context.Context, userID string) ([]models.Term, error) {
	terms, err := s.terms.ListByUser(ctx, userID)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrInternal.Code, "failed to list terms")
	}
	return terms, nil
}

// Create adds a term. The range must not be inverted; overlap with existing
// terms is allowed, matching the original behaviour.
func (s *TermService) Create(ctx context.Context, req CreateTermRequest) (*models.Term, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrValidation.Code, "invalid term payload")
	}
	if req.EndDate.Before(req.StartDate) {
		return nil, apperrors.Clone(apperrors.ErrValidation, "end date cannot be before start date")
	}

	term := &models.Term{
		UserID:    req.UserID,
		Name:      req.Name,
		StartDate: req.StartDate,
		EndDate:   req.EndDate,
	}
	if err := s.terms.Create(ctx, term); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrInternal.Code, "failed to create term")
	}

	s.logger.Info("term created",
		zap.String("user_id", req.UserID),
		zap.String("term_id", term.ID),
	)
	return term, nil
}

// Update edits a term in place. A no-op for an unknown (id, user) pair is
// surfaced as NotFound here.
func (s *TermService) Update(ctx context.Context, req UpdateTermRequest) (*models.Term, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrValidation.Code, "invalid term payload")
	}
	if req.EndDate.Before(req.StartDate) {
		return nil, apperrors.Clone(apperrors.ErrValidation, "end date cannot be before start date")
	}

	term, err := s.terms.FindByID(ctx, req.TermID, req.UserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.Clone(apperrors.ErrNotFound, "term not found")
		}
		return nil, apperrors.Wrap(err, apperrors.ErrInternal.Code, "failed to load term")
	}

	term.Name = req.Name
	term.StartDate = req.StartDate
	term.EndDate = req.EndDate
	if err := s.terms.Update(ctx, term); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrInternal.Code, "failed to update term")
	}
	return term, nil
}

// Current resolves the term containing the given date, or nil when the date
// falls outside every term. A nil term is a valid outcome, not an error.
// When overlapping terms both contain the date, the one with the latest
// start date wins.
func (s *TermService) Current(ctx context.Context, userID string, date time.Time) (*models.Term, error) {
	term, err := s.terms.FindByDate(ctx, userID, date)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, apperrors.Wrap(err, apperrors.ErrInternal.Code, "failed to resolve term")
	}
	return term, nil
}
