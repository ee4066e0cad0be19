package service

import (
	"context"
	"database/sql"
	"errors"

	"go.uber.org/zap"

	"github.com/thdev-org/marks-daybook/internal/models"
	apperrors "github.com/thdev-org/marks-daybook/pkg/errors"
)

type userRepo interface {
	FindByTelegramID(ctx context.Context, telegramID int64) (*models.User, error)
	Create(ctx context.Context, user *models.User) (bool, error)
}

// UserService resolves and registers users by their external chat identity.
type UserService struct {
	users  userRepo
	logger *zap.Logger
}

// NewUserService constructs UserService.
func NewUserService(users userRepo, logger *zap.Logger) *UserService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UserService{users: users, logger: logger}
}

// RegisterOrFetch returns the user for the chat identity, creating it on
// first contact. Registration is idempotent: a duplicate attempt is logged
// and resolves to the existing row. The bool reports whether the user is new.
func (s *UserService) RegisterOrFetch(ctx context.Context, telegramID int64, name string) (*models.User, bool, error) {
	user, err := s.users.FindByTelegramID(ctx, telegramID)
	if err == nil {
		return user, false, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, false, apperrors.Wrap(err, apperrors.ErrInternal.Code, "failed to look up user")
	}

	fresh := &models.User{TelegramID: telegramID, Name: name}
	created, err := s.users.Create(ctx, fresh)
	if err != nil {
		return nil, false, apperrors.Wrap(err, apperrors.ErrInternal.Code, "failed to register user")
	}
	if created {
		s.logger.Info("user registered",
			zap.Int64("telegram_id", telegramID),
			zap.String("user_id", fresh.ID),
		)
		return fresh, true, nil
	}

	// Lost a registration race; the identity already exists.
	s.logger.Info("user already registered", zap.Int64("telegram_id", telegramID))
	existing, err := s.users.FindByTelegramID(ctx, telegramID)
	if err != nil {
		return nil, false, apperrors.Wrap(err, apperrors.ErrDuplicateUser.Code, "failed to resolve existing user")
	}
	return existing, false, nil
}

// FindByTelegramID resolves a registered user or reports NotFound.
func (s *UserService) FindByTelegramID(ctx context.Context, telegramID int64) (*models.User, error) {
	user, err := s.users.FindByTelegramID(ctx, telegramID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.Clone(apperrors.ErrNotFound, "user not registered")
		}
		return nil, apperrors.Wrap(err, apperrors.ErrInternal.Code, "failed to look up user")
	}
	return user, nil
}
