package viewengine

import (
	"errors"
	"fmt"
	"maps"
	"strconv"
	"strings"
	"time"
)

// Direction is the sort order of the active sort key.
type Direction string

const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

var (
	// ErrInvalidDateRange reports a date-from later than date-to.
	ErrInvalidDateRange = errors.New("date from must be before or equal to date to")
	// ErrConflictingDateFilters reports a spec carrying both a date range and an academic year.
	ErrConflictingDateFilters = errors.New("date range and academic year cannot be combined")
	// ErrInvalidAcademicYear reports a label that is not of the form YYYY-YYYY with consecutive years.
	ErrInvalidAcademicYear = errors.New("academic year must look like 2024-2025")
	// ErrInvalidPageSize reports a page size outside the configured set.
	ErrInvalidPageSize = errors.New("page size is not allowed")
)

// FilterSpec is one phase (pending or applied) of a view's filter state.
type FilterSpec struct {
	SearchText    string            `json:"search_text"`
	ExactFilters  map[string]string `json:"exact_filters,omitempty"`
	DateFrom      *time.Time        `json:"date_from,omitempty"`
	DateTo        *time.Time        `json:"date_to,omitempty"`
	AcademicYear  string            `json:"academic_year,omitempty"`
	SortKey       string            `json:"sort_key,omitempty"`
	SortDirection Direction         `json:"sort_direction"`
}

// Clone returns a deep copy so pending edits never alias applied state.
func (s FilterSpec) Clone() FilterSpec {
	out := s
	out.ExactFilters = maps.Clone(s.ExactFilters)
	if s.DateFrom != nil {
		d := *s.DateFrom
		out.DateFrom = &d
	}
	if s.DateTo != nil {
		d := *s.DateTo
		out.DateTo = &d
	}
	return out
}

// Validate checks the date invariants of the spec.
func (s FilterSpec) Validate() error {
	if s.AcademicYear != "" {
		if s.DateFrom != nil || s.DateTo != nil {
			return ErrConflictingDateFilters
		}
		if _, err := ParseAcademicYear(s.AcademicYear); err != nil {
			return err
		}
	}
	if s.DateFrom != nil && s.DateTo != nil && day(*s.DateFrom).After(day(*s.DateTo)) {
		return ErrInvalidDateRange
	}
	return nil
}

// academicYearStart is the first month of an academic year; the window runs
// from the 1st of this month in the first year to the day before it in the second.
const academicYearStart = time.July

// AcademicYear is a school year label such as 2024-2025.
type AcademicYear struct {
	Start int
	End   int
}

// ParseAcademicYear parses "YYYY-YYYY" where the second year follows the first.
func ParseAcademicYear(raw string) (AcademicYear, error) {
	parts := strings.Split(strings.TrimSpace(raw), "-")
	if len(parts) != 2 || len(parts[0]) != 4 || len(parts[1]) != 4 {
		return AcademicYear{}, fmt.Errorf("%q: %w", raw, ErrInvalidAcademicYear)
	}
	start, err := strconv.Atoi(parts[0])
	if err != nil {
		return AcademicYear{}, fmt.Errorf("%q: %w", raw, ErrInvalidAcademicYear)
	}
	end, err := strconv.Atoi(parts[1])
	if err != nil || end != start+1 {
		return AcademicYear{}, fmt.Errorf("%q: %w", raw, ErrInvalidAcademicYear)
	}
	return AcademicYear{Start: start, End: end}, nil
}

// String renders the label.
func (y AcademicYear) String() string {
	return fmt.Sprintf("%04d-%04d", y.Start, y.End)
}

// Window returns the inclusive calendar-day bounds of the academic year,
// July 1 of the first year through June 30 of the second.
func (y AcademicYear) Window() (time.Time, time.Time) {
	from := time.Date(y.Start, academicYearStart, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(y.End, academicYearStart, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, -1)
	return from, to
}
