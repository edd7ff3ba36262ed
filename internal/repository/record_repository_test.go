package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-library-views/internal/models"
)

func newRecordMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestRecordRepositoryFetchUnscoped(t *testing.T) {
	db, mock, cleanup := newRecordMock(t)
	defer cleanup()
	repo := NewRecordRepository(db)

	registered := time.Date(2024, 8, 1, 0, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"id", "accessionNumber", "title", "author", "isbn", "genre", "dateRegistered"}).
		AddRow(int64(1), []byte("ACC-001"), []byte("Noli Me Tangere"), []byte("Jose Rizal"), []byte("978-1"), nil, registered)
	mock.ExpectQuery(`FROM books b LEFT JOIN genres g ON g.id = b.genre_id WHERE 1=1 ORDER BY b.title ASC`).
		WillReturnRows(rows)

	records, err := repo.Fetch(context.Background(), "books", models.RecordScope{})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "ACC-001", records[0]["accessionNumber"])
	assert.Equal(t, "Noli Me Tangere", records[0]["title"])
	assert.Nil(t, records[0]["genre"])
	assert.Equal(t, registered, records[0]["dateRegistered"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordRepositoryFetchScopedToGrade(t *testing.T) {
	db, mock, cleanup := newRecordMock(t)
	defer cleanup()
	repo := NewRecordRepository(db)

	rows := sqlmock.NewRows([]string{"id", "idNumber", "gradeLevel", "minutesRendered"}).
		AddRow(int64(7), "2024-0001", "Grade 7", []byte("45"))
	mock.ExpectQuery(`FROM library_hours lh JOIN users u ON u.id_number = lh.id_number WHERE 1=1 AND u.grade_level = \$1 ORDER BY lh.time_in DESC`).
		WithArgs("Grade 7").
		WillReturnRows(rows)

	records, err := repo.Fetch(context.Background(), "library_hours", models.RecordScope{GradeLevel: "Grade 7"})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "45", records[0]["minutesRendered"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordRepositoryFetchScopedToStudentAndGrade(t *testing.T) {
	db, mock, cleanup := newRecordMock(t)
	defer cleanup()
	repo := NewRecordRepository(db)

	mock.ExpectQuery(`WHERE 1=1 AND u.id_number = \$1 AND u.grade_level = \$2 ORDER BY`).
		WithArgs("2024-0001", "Grade 8").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	records, err := repo.Fetch(context.Background(), "requirements_progress", models.RecordScope{StudentID: "2024-0001", GradeLevel: "Grade 8"})
	require.NoError(t, err)
	assert.Empty(t, records)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordRepositoryRejectsUnscopableSource(t *testing.T) {
	db, mock, cleanup := newRecordMock(t)
	defer cleanup()
	repo := NewRecordRepository(db)

	_, err := repo.Fetch(context.Background(), "books", models.RecordScope{StudentID: "2024-0001"})
	require.Error(t, err)

	_, err = repo.Fetch(context.Background(), "book_logs", models.RecordScope{GradeLevel: "Grade 7"})
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordRepositoryUnknownSource(t *testing.T) {
	db, _, cleanup := newRecordMock(t)
	defer cleanup()
	repo := NewRecordRepository(db)

	_, err := repo.Fetch(context.Background(), "grades", models.RecordScope{})
	assert.True(t, errors.Is(err, ErrUnknownSource))
}

func TestRecordRepositoryQueryError(t *testing.T) {
	db, mock, cleanup := newRecordMock(t)
	defer cleanup()
	repo := NewRecordRepository(db)

	mock.ExpectQuery(`FROM nas_activity_logs`).WillReturnError(errors.New("connection reset"))

	_, err := repo.Fetch(context.Background(), "activity_logs", models.RecordScope{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fetch activity_logs records")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordRepositorySources(t *testing.T) {
	repo := NewRecordRepository(nil)
	assert.Equal(t, []string{
		"activity_logs", "book_logs", "books", "completed_hours",
		"library_hours", "requirements_progress", "students",
	}, repo.Sources())
}
