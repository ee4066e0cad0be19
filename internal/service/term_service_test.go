package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thdev-org/marks-daybook/internal/models"
	apperrors "github.com/thdev-org/marks-daybook/pkg/errors"
)

type mockTermRepo struct {
	terms map[string]models.Term
}

func (m *mockTermRepo) ListByUser(_ context.Context, userID string) ([]models.Term, error) {
	var result []models.Term
	for _, term := range m.terms {
		if term.UserID == userID {
			result = append(result, term)
		}
	}
	return result, nil
}

func (m *mockTermRepo) FindByID(_ context.Context, id, userID string) (*models.Term, error) {
	term, ok := m.terms[id]
	if !ok || term.UserID != userID {
		return nil, sql.ErrNoRows
	}
	return &term, nil
}

func (m *mockTermRepo) FindByDate(_ context.Context, userID string, date time.Time) (*models.Term, error) {
	var best *models.Term
	for id := range m.terms {
		term := m.terms[id]
		if term.UserID != userID || !term.Contains(date) {
			continue
		}
		if best == nil || term.StartDate.After(best.StartDate) {
			best = &term
		}
	}
	if best == nil {
		return nil, sql.ErrNoRows
	}
	return best, nil
}

func (m *mockTermRepo) Create(_ context.Context, term *models.Term) error {
	if m.terms == nil {
		m.terms = make(map[string]models.Term)
	}
	if term.ID == "" {
		term.ID = "term-" + term.Name
	}
	m.terms[term.ID] = *term
	return nil
}

func (m *mockTermRepo) Update(_ context.Context, term *models.Term) error {
	m.terms[term.ID] = *term
	return nil
}

func day(y int, mo time.Month, d int) time.Time {
	return time.Date(y, mo, d, 0, 0, 0, 0, time.UTC)
}

func TestTermServiceCreateRejectsInvertedRange(t *testing.T) {
	svc := NewTermService(&mockTermRepo{}, nil, nil)

	_, err := svc.Create(context.Background(), CreateTermRequest{
		UserID:    "user-1",
		Name:      "Backwards",
		StartDate: day(2025, 9, 1),
		EndDate:   day(2025, 8, 31),
	})
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestTermServiceCreateAllowsSingleDayTerm(t *testing.T) {
	svc := NewTermService(&mockTermRepo{}, nil, nil)

	term, err := svc.Create(context.Background(), CreateTermRequest{
		UserID:    "user-1",
		Name:      "Exam day",
		StartDate: day(2025, 9, 1),
		EndDate:   day(2025, 9, 1),
	})
	require.NoError(t, err)
	assert.Equal(t, "Exam day", term.Name)
}

func TestTermServiceCurrentInclusiveBounds(t *testing.T) {
	repo := &mockTermRepo{}
	svc := NewTermService(repo, nil, nil)

	_, err := svc.Create(context.Background(), CreateTermRequest{
		UserID:    "user-1",
		Name:      "January",
		StartDate: day(2024, 1, 10),
		EndDate:   day(2024, 1, 20),
	})
	require.NoError(t, err)

	cases := []struct {
		date    time.Time
		matches bool
	}{
		{day(2024, 1, 10), true},
		{day(2024, 1, 20), true},
		{day(2024, 1, 15), true},
		{day(2024, 1, 9), false},
		{day(2024, 1, 21), false},
	}

	for _, tc := range cases {
		term, err := svc.Current(context.Background(), "user-1", tc.date)
		require.NoError(t, err)
		if tc.matches {
			require.NotNil(t, term, "expected %s inside the term", tc.date.Format("2006-01-02"))
			assert.Equal(t, "January", term.Name)
		} else {
			assert.Nil(t, term, "expected %s outside the term", tc.date.Format("2006-01-02"))
		}
	}
}

func TestTermServiceCurrentPrefersLatestStart(t *testing.T) {
	repo := &mockTermRepo{}
	svc := NewTermService(repo, nil, nil)

	for _, req := range []CreateTermRequest{
		{UserID: "user-1", Name: "Year", StartDate: day(2025, 9, 1), EndDate: day(2026, 6, 30)},
		{UserID: "user-1", Name: "Fall", StartDate: day(2025, 10, 1), EndDate: day(2025, 12, 20)},
	} {
		_, err := svc.Create(context.Background(), req)
		require.NoError(t, err)
	}

	term, err := svc.Current(context.Background(), "user-1", day(2025, 11, 1))
	require.NoError(t, err)
	require.NotNil(t, term)
	assert.Equal(t, "Fall", term.Name)
}

func TestTermServiceCurrentScopedToUser(t *testing.T) {
	repo := &mockTermRepo{}
	svc := NewTermService(repo, nil, nil)

	_, err := svc.Create(context.Background(), CreateTermRequest{
		UserID:    "user-1",
		Name:      "Fall",
		StartDate: day(2025, 9, 1),
		EndDate:   day(2025, 12, 20),
	})
	require.NoError(t, err)

	term, err := svc.Current(context.Background(), "user-2", day(2025, 10, 1))
	require.NoError(t, err)
	assert.Nil(t, term)
}

func TestTermServiceUpdateUnknownTerm(t *testing.T) {
	svc := NewTermService(&mockTermRepo{}, nil, nil)

	_, err := svc.Update(context.Background(), UpdateTermRequest{
		UserID:    "user-1",
		TermID:    "missing",
		Name:      "Renamed",
		StartDate: day(2025, 9, 1),
		EndDate:   day(2025, 12, 20),
	})
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}
