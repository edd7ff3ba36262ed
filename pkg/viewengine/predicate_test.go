package viewengine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func hoursConfig() *FieldConfig {
	return &FieldConfig{
		Fields: []Field{
			{Name: "id", Searchable: true, Sortable: true},
			{Name: "name", Searchable: true, Sortable: true},
			{Name: "gradeLevel", Searchable: true, Filterable: true, Sortable: true},
			{Name: "section", Filterable: true, CaseSensitive: true},
			{Name: "timeIn", Kind: KindDate, Sortable: true},
			{Name: "minutes", Kind: KindNumeric, Sortable: true},
			{Name: "status", Kind: KindRankedEnum, Sortable: true, Filterable: true, Ranks: map[string]int{
				"Not started": 1, "In-progress": 2, "Completed": 3,
			}},
		},
		DateField: "timeIn",
		Distinct:  map[string]string{"uniqueStudents": "id"},
		Sums:      map[string]string{"totalMinutes": "minutes"},
	}
}

func date(t *testing.T, raw string) *time.Time {
	t.Helper()
	d, ok := ParseDate(raw)
	require.True(t, ok, raw)
	return &d
}

func filterRecords(records []Record, p Predicate) []Record {
	var out []Record
	for _, r := range records {
		if p(r) {
			out = append(out, r)
		}
	}
	return out
}

func TestSearchMatchesCaseInsensitiveSubstring(t *testing.T) {
	records := []Record{{"id": "1", "name": "Bob"}, {"id": "2", "name": "alice"}}

	got := filterRecords(records, CompilePredicate(FilterSpec{SearchText: "al"}, hoursConfig()))

	require.Len(t, got, 1)
	assert.Equal(t, "2", got[0]["id"])

	got = filterRecords(records, CompilePredicate(FilterSpec{SearchText: "BO"}, hoursConfig()))
	require.Len(t, got, 1)
	assert.Equal(t, "1", got[0]["id"])
}

func TestSearchIgnoresBlankTextAndUnsearchableFields(t *testing.T) {
	records := []Record{{"name": "Bob", "section": "Faith"}}
	cfg := hoursConfig()

	assert.Len(t, filterRecords(records, CompilePredicate(FilterSpec{SearchText: "   "}, cfg)), 1)
	assert.Empty(t, filterRecords(records, CompilePredicate(FilterSpec{SearchText: "faith"}, cfg)))
}

func TestSearchMatchesNumbersAndDates(t *testing.T) {
	cfg := &FieldConfig{Fields: []Field{
		{Name: "entryNo", Searchable: true},
		{Name: "dateRead", Searchable: true, Kind: KindDate},
	}}
	records := []Record{
		{"entryNo": 12, "dateRead": time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)},
		{"entryNo": 7, "dateRead": nil},
	}

	assert.Len(t, filterRecords(records, CompilePredicate(FilterSpec{SearchText: "12"}, cfg)), 1)
	assert.Len(t, filterRecords(records, CompilePredicate(FilterSpec{SearchText: "2024-03"}, cfg)), 1)
}

func TestExactFiltersNormalizeCase(t *testing.T) {
	records := []Record{
		{"id": "1", "gradeLevel": "Grade 5", "section": "Faith"},
		{"id": "2", "gradeLevel": "grade 6", "section": "faith"},
		{"id": "3", "section": "Faith"},
	}
	cfg := hoursConfig()

	got := filterRecords(records, CompilePredicate(FilterSpec{ExactFilters: map[string]string{"gradeLevel": " GRADE 5 "}}, cfg))
	require.Len(t, got, 1)
	assert.Equal(t, "1", got[0]["id"])

	got = filterRecords(records, CompilePredicate(FilterSpec{ExactFilters: map[string]string{"section": "Faith"}}, cfg))
	assert.Len(t, got, 2)
}

func TestExactFiltersSkipBlankAndUndeclaredFields(t *testing.T) {
	records := []Record{{"id": "1", "gradeLevel": "Grade 5"}, {"id": "2"}}
	cfg := hoursConfig()

	spec := FilterSpec{ExactFilters: map[string]string{"gradeLevel": "", "name": "Bob", "bogus": "x"}}
	assert.Len(t, filterRecords(records, CompilePredicate(spec, cfg)), 2)
}

func TestDateFromExcludesEarlierRecords(t *testing.T) {
	records := []Record{
		{"id": "1", "timeIn": "2024-01-05"},
		{"id": "2", "timeIn": "2024-03-01"},
	}

	got := filterRecords(records, CompilePredicate(FilterSpec{DateFrom: date(t, "2024-02-01")}, hoursConfig()))

	require.Len(t, got, 1)
	assert.Equal(t, "2", got[0]["id"])
}

func TestDateRangeIsInclusiveByDay(t *testing.T) {
	records := []Record{
		{"id": "1", "timeIn": "2024-02-01T07:30:00Z"},
		{"id": "2", "timeIn": time.Date(2024, 2, 29, 23, 59, 0, 0, time.UTC)},
		{"id": "3", "timeIn": "2024-03-01"},
	}
	spec := FilterSpec{DateFrom: date(t, "2024-02-01"), DateTo: date(t, "2024-02-29")}

	got := filterRecords(records, CompilePredicate(spec, hoursConfig()))

	assert.Len(t, got, 2)
}

func TestDateRangeExcludesMissingAndUnparsableDates(t *testing.T) {
	records := []Record{
		{"id": "1"},
		{"id": "2", "timeIn": "not a date"},
		{"id": "3", "timeIn": "2024-05-01"},
	}

	got := filterRecords(records, CompilePredicate(FilterSpec{DateTo: date(t, "2024-12-31")}, hoursConfig()))

	require.Len(t, got, 1)
	assert.Equal(t, "3", got[0]["id"])
}

func TestAcademicYearWindowRunsJulyToJune(t *testing.T) {
	records := []Record{
		{"id": "1", "timeIn": "2024-06-30"},
		{"id": "2", "timeIn": "2024-07-01"},
		{"id": "3", "timeIn": "2025-06-30"},
		{"id": "4", "timeIn": "2025-07-01"},
	}

	got := filterRecords(records, CompilePredicate(FilterSpec{AcademicYear: "2024-2025"}, hoursConfig()))

	require.Len(t, got, 2)
	assert.Equal(t, "2", got[0]["id"])
	assert.Equal(t, "3", got[1]["id"])
}

func TestParseAcademicYear(t *testing.T) {
	year, err := ParseAcademicYear("2024-2025")
	require.NoError(t, err)
	assert.Equal(t, AcademicYear{Start: 2024, End: 2025}, year)

	for _, raw := range []string{"2024-2026", "2024", "24-25", "abcd-abce", ""} {
		_, err := ParseAcademicYear(raw)
		assert.ErrorIs(t, err, ErrInvalidAcademicYear, raw)
	}
}

func TestPredicateWithoutFiltersMatchesEverything(t *testing.T) {
	records := []Record{{"id": "1"}, nil, {}}
	assert.Len(t, filterRecords(records, CompilePredicate(FilterSpec{}, hoursConfig())), 3)
}
