package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thdev-org/marks-daybook/internal/models"
)

func newGradeMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestGradeRepositoryListByUser(t *testing.T) {
	db, mock, cleanup := newGradeMock(t)
	defer cleanup()
	repo := NewGradeRepository(db)

	rows := sqlmock.NewRows([]string{"id", "user_id", "subject_id", "value", "grade_type", "date", "term_id", "confirmed", "created_at"}).
		AddRow("grade-1", "user-1", "subject-1", 10, "regular", time.Now(), nil, false, time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, user_id, subject_id, value, grade_type, date, term_id, confirmed, created_at FROM grades WHERE user_id = $1 ORDER BY date DESC, created_at DESC")).
		WithArgs("user-1").
		WillReturnRows(rows)

	grades, err := repo.ListByUser(context.Background(), "user-1", models.GradeFilter{})
	require.NoError(t, err)
	assert.Len(t, grades, 1)
	assert.Nil(t, grades[0].TermID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGradeRepositoryListByUserFiltered(t *testing.T) {
	db, mock, cleanup := newGradeMock(t)
	defer cleanup()
	repo := NewGradeRepository(db)

	rows := sqlmock.NewRows([]string{"id", "user_id", "subject_id", "value", "grade_type", "date", "term_id", "confirmed", "created_at"}).
		AddRow("grade-1", "user-1", "subject-1", 10, "regular", time.Now(), "term-1", false, time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, user_id, subject_id, value, grade_type, date, term_id, confirmed, created_at FROM grades WHERE user_id = $1 AND subject_id = $2 AND term_id = $3 ORDER BY date DESC, created_at DESC")).
		WithArgs("user-1", "subject-1", "term-1").
		WillReturnRows(rows)

	grades, err := repo.ListByUser(context.Background(), "user-1", models.GradeFilter{SubjectID: "subject-1", TermID: "term-1"})
	require.NoError(t, err)
	assert.Len(t, grades, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGradeRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newGradeMock(t)
	defer cleanup()
	repo := NewGradeRepository(db)

	mock.ExpectExec("INSERT INTO grades").
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	grade := &models.Grade{
		UserID:    "user-1",
		SubjectID: "subject-1",
		Value:     11,
		GradeType: models.DefaultGradeType,
		Date:      time.Now(),
	}
	err := repo.Create(context.Background(), grade)
	require.NoError(t, err)
	assert.NotEmpty(t, grade.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGradeRepositoryAverageBySubject(t *testing.T) {
	db, mock, cleanup := newGradeMock(t)
	defer cleanup()
	repo := NewGradeRepository(db)

	rows := sqlmock.NewRows([]string{"avg", "count"}).AddRow(11.0, 3)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT AVG(value) AS avg, COUNT(value) AS count FROM grades WHERE user_id = $1 AND subject_id = $2")).
		WithArgs("user-1", "subject-1").
		WillReturnRows(rows)

	avg, count, err := repo.AverageBySubject(context.Background(), "user-1", "subject-1")
	require.NoError(t, err)
	require.NotNil(t, avg)
	assert.InDelta(t, 11.0, *avg, 0.0001)
	assert.Equal(t, 3, count)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGradeRepositoryAverageBySubjectNoGrades(t *testing.T) {
	db, mock, cleanup := newGradeMock(t)
	defer cleanup()
	repo := NewGradeRepository(db)

	rows := sqlmock.NewRows([]string{"avg", "count"}).AddRow(nil, 0)
	mock.ExpectQuery("SELECT AVG").
		WithArgs("user-1", "subject-1").
		WillReturnRows(rows)

	avg, count, err := repo.AverageBySubject(context.Background(), "user-1", "subject-1")
	require.NoError(t, err)
	assert.Nil(t, avg)
	assert.Equal(t, 0, count)
	assert.NoError(t, mock.ExpectationsWereMet())
}
