package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thdev-org/marks-daybook/internal/models"
)

func newTermMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestTermRepositoryListByUser(t *testing.T) {
	db, mock, cleanup := newTermMock(t)
	defer cleanup()
	repo := NewTermRepository(db)

	rows := sqlmock.NewRows([]string{"id", "user_id", "name", "start_date", "end_date", "created_at"}).
		AddRow("term-2", "user-1", "Spring 2026", time.Now(), time.Now(), time.Now()).
		AddRow("term-1", "user-1", "Fall 2025", time.Now(), time.Now(), time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, user_id, name, start_date, end_date, created_at FROM terms WHERE user_id = $1 ORDER BY start_date DESC")).
		WithArgs("user-1").
		WillReturnRows(rows)

	terms, err := repo.ListByUser(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Len(t, terms, 2)
	assert.Equal(t, "Spring 2026", terms[0].Name)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTermRepositoryFindByDate(t *testing.T) {
	db, mock, cleanup := newTermMock(t)
	defer cleanup()
	repo := NewTermRepository(db)

	date := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"id", "user_id", "name", "start_date", "end_date", "created_at"}).
		AddRow("term-1", "user-1", "Spring 2026", date.AddDate(0, -1, 0), date.AddDate(0, 3, 0), time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, user_id, name, start_date, end_date, created_at FROM terms WHERE user_id = $1 AND start_date <= $2 AND end_date >= $2 ORDER BY start_date DESC LIMIT 1")).
		WithArgs("user-1", date).
		WillReturnRows(rows)

	term, err := repo.FindByDate(context.Background(), "user-1", date)
	require.NoError(t, err)
	assert.Equal(t, "term-1", term.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTermRepositoryFindByDateOutsideEveryTerm(t *testing.T) {
	db, mock, cleanup := newTermMock(t)
	defer cleanup()
	repo := NewTermRepository(db)

	mock.ExpectQuery("SELECT id, user_id, name, start_date, end_date, created_at FROM terms").
		WithArgs("user-1", sqlmock.AnyArg()).
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByDate(context.Background(), "user-1", time.Now())
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTermRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newTermMock(t)
	defer cleanup()
	repo := NewTermRepository(db)

	mock.ExpectExec("INSERT INTO terms").
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	term := &models.Term{
		UserID:    "user-1",
		Name:      "Fall 2025",
		StartDate: time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2025, 12, 20, 0, 0, 0, 0, time.UTC),
	}
	err := repo.Create(context.Background(), term)
	require.NoError(t, err)
	assert.NotEmpty(t, term.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
