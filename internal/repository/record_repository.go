package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-library-views/internal/models"
	"github.com/noah-isme/sma-library-views/pkg/viewengine"
)

// ErrUnknownSource is returned when a view names a source with no query.
var ErrUnknownSource = errors.New("unknown record source")

// recordQuery describes how one record source is read. Column aliases are
// the field names the view definitions refer to.
type recordQuery struct {
	base       string
	studentCol string
	gradeCol   string
	orderBy    string
}

var recordQueries = map[string]recordQuery{
	"library_hours": {
		base: `SELECT lh.id, u.id_number AS "idNumber", CONCAT(u.first_name, ' ', u.last_name) AS "name",
        u.grade_level AS "gradeLevel", u.section AS "section", lh.subject AS "subject", lh.quarter AS "quarter",
        lh.book_title AS "bookTitle", lh.time_in AS "timeIn", lh.time_out AS "timeOut",
        lh.minutes_rendered AS "minutesRendered"
        FROM library_hours lh JOIN users u ON u.id_number = lh.id_number`,
		studentCol: "u.id_number",
		gradeCol:   "u.grade_level",
		orderBy:    "lh.time_in DESC",
	},
	"completed_hours": {
		base: `SELECT p.id, u.id_number AS "idNumber", CONCAT(u.first_name, ' ', u.last_name) AS "name",
        u.grade_level AS "gradeLevel", u.section AS "section", r.subject AS "subject", r.quarter AS "quarter",
        r.required_minutes AS "requiredMinutes", p.minutes_rendered AS "minutesRendered",
        p.date_completed AS "dateCompleted"
        FROM requirement_progress p JOIN set_requirements r ON r.id = p.requirement_id
        JOIN users u ON u.id_number = p.id_number`,
		studentCol: "u.id_number",
		gradeCol:   "u.grade_level",
		orderBy:    "p.date_completed DESC",
	},
	"book_logs": {
		base: `SELECT bl.id, ROW_NUMBER() OVER (PARTITION BY bl.id_number ORDER BY bl.date_read) AS "entryNo",
        b.title AS "bookTitle", b.author AS "author", b.accession_number AS "accessionNumber",
        bl.date_read AS "dateRead", bl.rating AS "rating"
        FROM book_logs bl JOIN books b ON b.accession_number = bl.accession_number`,
		studentCol: "bl.id_number",
		orderBy:    "bl.date_read DESC",
	},
	"books": {
		base: `SELECT b.id, b.accession_number AS "accessionNumber", b.title AS "title", b.author AS "author",
        b.isbn AS "isbn", g.name AS "genre", b.date_registered AS "dateRegistered"
        FROM books b LEFT JOIN genres g ON g.id = b.genre_id`,
		orderBy: "b.title ASC",
	},
	"students": {
		base: `SELECT u.id, u.id_number AS "idNumber", CONCAT(u.first_name, ' ', u.last_name) AS "name",
        u.grade_level AS "gradeLevel", u.section AS "section", u.academic_year AS "academicYear",
        u.created_at AS "createdAt"
        FROM users u`,
		studentCol: "u.id_number",
		gradeCol:   "u.grade_level",
		orderBy:    "u.last_name ASC",
	},
	"activity_logs": {
		base: `SELECT a.id, u.id_number AS "idNumber", CONCAT(u.first_name, ' ', u.last_name) AS "name",
        a.activity AS "activity", a.created_at AS "timestamp"
        FROM nas_activity_logs a JOIN users u ON u.id_number = a.id_number`,
		studentCol: "u.id_number",
		orderBy:    "a.created_at DESC",
	},
	"requirements_progress": {
		base: `SELECT p.id, u.id_number AS "idNumber", CONCAT(u.first_name, ' ', u.last_name) AS "name",
        u.grade_level AS "gradeLevel", u.section AS "section", r.subject AS "subject", r.quarter AS "quarter",
        r.required_minutes AS "requiredMinutes", p.minutes_rendered AS "minutesRendered",
        p.status AS "progress", r.deadline AS "dueDate"
        FROM requirement_progress p JOIN set_requirements r ON r.id = p.requirement_id
        JOIN users u ON u.id_number = p.id_number`,
		studentCol: "u.id_number",
		gradeCol:   "u.grade_level",
		orderBy:    "u.last_name ASC",
	},
}

// RecordRepository reads record snapshots for views.
type RecordRepository struct {
	db *sqlx.DB
}

// NewRecordRepository constructs a RecordRepository.
func NewRecordRepository(db *sqlx.DB) *RecordRepository {
	return &RecordRepository{db: db}
}

// Sources lists the record sources the repository can read.
func (r *RecordRepository) Sources() []string {
	out := make([]string, 0, len(recordQueries))
	for name := range recordQueries {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Fetch returns every row of source visible under scope.
func (r *RecordRepository) Fetch(ctx context.Context, source string, scope models.RecordScope) ([]viewengine.Record, error) {
	q, ok := recordQueries[source]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSource, source)
	}

	conditions := []string{"1=1"}
	args := []interface{}{}
	if scope.StudentID != "" {
		if q.studentCol == "" {
			return nil, fmt.Errorf("source %s cannot be scoped to a student", source)
		}
		args = append(args, scope.StudentID)
		conditions = append(conditions, fmt.Sprintf("%s = $%d", q.studentCol, len(args)))
	}
	if scope.GradeLevel != "" {
		if q.gradeCol == "" {
			return nil, fmt.Errorf("source %s cannot be scoped to a grade level", source)
		}
		args = append(args, scope.GradeLevel)
		conditions = append(conditions, fmt.Sprintf("%s = $%d", q.gradeCol, len(args)))
	}

	query := fmt.Sprintf("%s WHERE %s ORDER BY %s", q.base, strings.Join(conditions, " AND "), q.orderBy)
	rows, err := r.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("fetch %s records: %w", source, err)
	}
	defer rows.Close()

	var records []viewengine.Record
	for rows.Next() {
		row := make(map[string]interface{})
		if err := rows.MapScan(row); err != nil {
			return nil, fmt.Errorf("scan %s record: %w", source, err)
		}
		records = append(records, normalizeRow(row))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s records: %w", source, err)
	}
	return records, nil
}

// normalizeRow turns driver byte slices (text and numeric columns) into strings.
func normalizeRow(row map[string]interface{}) viewengine.Record {
	record := make(viewengine.Record, len(row))
	for k, v := range row {
		if b, ok := v.([]byte); ok {
			record[k] = string(b)
			continue
		}
		record[k] = v
	}
	return record
}
