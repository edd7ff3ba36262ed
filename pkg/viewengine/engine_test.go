package viewengine

import (
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEngine(t *testing.T, records []Record) *Engine {
	t.Helper()
	e, err := New(hoursConfig())
	require.NoError(t, err)
	e.SetRecords(records)
	return e
}

func sampleRecords(n int) []Record {
	rng := rand.New(rand.NewSource(42))
	statuses := []string{"Not started", "In-progress", "Completed"}
	out := make([]Record, 0, n)
	for i := 0; i < n; i++ {
		r := Record{
			"id":         fmt.Sprintf("22-%04d", rng.Intn(n/2+1)),
			"name":       fmt.Sprintf("Student %c%d", 'A'+rune(rng.Intn(26)), i),
			"gradeLevel": fmt.Sprintf("Grade %d", 4+rng.Intn(3)),
			"minutes":    rng.Intn(120),
			"status":     statuses[rng.Intn(len(statuses))],
		}
		if rng.Intn(5) > 0 {
			r["timeIn"] = time.Date(2024, time.Month(1+rng.Intn(12)), 1+rng.Intn(28), 8, 0, 0, 0, time.UTC)
		}
		out = append(out, r)
	}
	return out
}

func TestEngineScenarioSearch(t *testing.T) {
	e := newEngine(t, []Record{{"id": "1", "name": "Bob"}, {"id": "2", "name": "alice"}})

	e.SetSearchText("al")

	view := e.View()
	require.Len(t, view.Rows, 1)
	assert.Equal(t, Record{"id": "2", "name": "alice"}, view.Rows[0])
	assert.Equal(t, 1, view.TotalFilteredCount)
}

func TestEngineScenarioDateFrom(t *testing.T) {
	e := newEngine(t, []Record{{"id": "1", "timeIn": "2024-01-05"}, {"id": "2", "timeIn": "2024-03-01"}})

	e.SetPendingDateFrom(date(t, "2024-02-01"))
	assert.Equal(t, 2, e.View().TotalFilteredCount, "pending edits must not filter")
	require.NoError(t, e.ApplyPendingFilters())

	view := e.View()
	require.Len(t, view.Rows, 1)
	assert.Equal(t, "2", view.Rows[0]["id"])
}

func TestEngineScenarioAcademicYear(t *testing.T) {
	e := newEngine(t, []Record{
		{"id": "1", "timeIn": "2024-05-20"},
		{"id": "2", "timeIn": "2024-09-02"},
		{"id": "3", "timeIn": "2025-02-14"},
		{"id": "4", "timeIn": "2025-08-01"},
	})

	e.SetPendingDateFrom(date(t, "2024-01-01"))
	require.NoError(t, e.SetPendingAcademicYear("2024-2025"))
	pending := e.PendingSpec()
	assert.Nil(t, pending.DateFrom)
	assert.Nil(t, pending.DateTo)

	require.NoError(t, e.ApplyPendingFilters())

	assert.Equal(t, []any{"2", "3"}, ids(e.View().Rows))
}

func TestEngineScenarioPagination(t *testing.T) {
	records := make([]Record, 12)
	for i := range records {
		records[i] = Record{"id": fmt.Sprint(i)}
	}
	e := newEngine(t, records)
	require.NoError(t, e.SetPageSize(5))

	var lengths []int
	for page := 0; page < 3; page++ {
		e.SetPage(page)
		lengths = append(lengths, len(e.View().Rows))
	}

	assert.Equal(t, []int{5, 5, 2}, lengths)
	assert.Empty(t, Paginate(records, 3, 5))
	assert.Equal(t, 3, e.View().PageCount)
}

func TestEngineScenarioRankedEnumSort(t *testing.T) {
	e := newEngine(t, []Record{{"status": "Not started"}, {"status": "Completed"}, {"status": "In-progress"}})

	e.RequestSort("status")

	rows := e.View().Rows
	require.Len(t, rows, 3)
	assert.Equal(t, "Not started", rows[0]["status"])
	assert.Equal(t, "In-progress", rows[1]["status"])
	assert.Equal(t, "Completed", rows[2]["status"])
}

func TestEngineRowBounds(t *testing.T) {
	records := sampleRecords(60)
	e := newEngine(t, records)
	specs := []func(){
		func() {},
		func() { e.SetSearchText("student a") },
		func() { e.SetPendingField("gradeLevel", "Grade 5"); _ = e.ApplyPendingFilters() },
		func() { _ = e.SetPendingAcademicYear("2023-2024"); _ = e.ApplyPendingFilters() },
		func() { e.ResetFilters(); e.SetSearchText("") },
	}
	for i, apply := range specs {
		apply()
		for _, size := range DefaultPageSizes {
			require.NoError(t, e.SetPageSize(size))
			view := e.View()
			assert.LessOrEqual(t, len(view.Rows), size, "spec %d", i)
			assert.LessOrEqual(t, len(view.Rows), view.TotalFilteredCount, "spec %d", i)
			assert.LessOrEqual(t, view.TotalFilteredCount, len(records), "spec %d", i)
		}
	}
}

func TestEngineIdempotentApply(t *testing.T) {
	e := newEngine(t, sampleRecords(40))
	e.SetPendingField("gradeLevel", "Grade 4")
	e.RequestSort("name")

	require.NoError(t, e.ApplyPendingFilters())
	first := e.View()
	require.NoError(t, e.ApplyPendingFilters())

	assert.Equal(t, first, e.View())
}

func TestEngineSortToggleReversesOrder(t *testing.T) {
	e := newEngine(t, []Record{{"id": "1", "minutes": 30}, {"id": "2", "minutes": 10}})

	e.RequestSort("minutes")
	assert.Equal(t, []any{"2", "1"}, ids(e.View().Rows))
	e.RequestSort("minutes")
	assert.Equal(t, []any{"1", "2"}, ids(e.View().Rows))
	assert.Equal(t, Desc, e.AppliedSpec().SortDirection)
}

func TestEnginePagesConcatenateToFilteredSet(t *testing.T) {
	e := newEngine(t, sampleRecords(53))
	e.RequestSort("name")
	require.NoError(t, e.SetPageSize(10))
	want := e.FilteredRows()

	var got []Record
	for page := 0; page < e.View().PageCount; page++ {
		e.SetPage(page)
		got = append(got, e.View().Rows...)
	}

	assert.Equal(t, want, got)
	assert.Len(t, got, 53)
}

func TestEngineMutatorsResetPage(t *testing.T) {
	e := newEngine(t, sampleRecords(60))
	require.NoError(t, e.SetPageSize(5))

	e.SetPage(3)
	e.SetSearchText("student")
	assert.Equal(t, 0, e.Pagination().PageIndex)

	e.SetPage(3)
	require.NoError(t, e.ApplyPendingFilters())
	assert.Equal(t, 0, e.Pagination().PageIndex)

	e.SetPage(3)
	require.NoError(t, e.SetPageSize(10))
	assert.Equal(t, 0, e.Pagination().PageIndex)

	e.SetPage(2)
	e.SetPendingField("gradeLevel", "Grade 5")
	assert.Equal(t, 2, e.Pagination().PageIndex, "pending edits keep the page")
}

func TestEngineSetPageOutOfRangeResets(t *testing.T) {
	e := newEngine(t, sampleRecords(12))
	require.NoError(t, e.SetPageSize(5))

	e.SetPage(2)
	assert.Equal(t, 2, e.Pagination().PageIndex)
	e.SetPage(3)
	assert.Equal(t, 0, e.Pagination().PageIndex)
	e.SetPage(-1)
	assert.Equal(t, 0, e.Pagination().PageIndex)
}

func TestEngineSetRecordsKeepsPageWhenInRange(t *testing.T) {
	e := newEngine(t, sampleRecords(30))
	require.NoError(t, e.SetPageSize(10))
	e.SetPage(2)

	e.SetRecords(sampleRecords(25))
	assert.Equal(t, 2, e.Pagination().PageIndex)

	e.SetRecords(sampleRecords(15))
	assert.Equal(t, 0, e.Pagination().PageIndex)
}

func TestEngineRejectsInvalidPageSizeAndRange(t *testing.T) {
	e := newEngine(t, sampleRecords(10))

	assert.ErrorIs(t, e.SetPageSize(7), ErrInvalidPageSize)
	assert.Equal(t, 10, e.View().PageSize)

	e.SetPendingDateFrom(date(t, "2024-05-01"))
	assert.ErrorIs(t, e.SetPendingDateTo(date(t, "2024-04-01")), ErrInvalidDateRange)
}

func TestEngineAggregatesIgnorePagination(t *testing.T) {
	e := newEngine(t, []Record{
		{"id": "22-1", "minutes": 30},
		{"id": "22-1", "minutes": 15},
		{"id": "22-2", "minutes": 20},
		{"id": nil, "minutes": nil},
	})
	require.NoError(t, e.SetPageSize(5))
	e.SetPage(0)

	view := e.View()
	assert.Equal(t, 4, view.TotalFilteredCount)
	assert.Equal(t, float64(2), view.Aggregates["uniqueStudents"])
	assert.Equal(t, float64(65), view.Aggregates["totalMinutes"])
}

func TestEngineEmptySnapshot(t *testing.T) {
	e := newEngine(t, nil)
	e.SetSearchText("anything")

	view := e.View()
	assert.Empty(t, view.Rows)
	assert.Equal(t, 0, view.TotalFilteredCount)
	assert.Equal(t, float64(0), view.Aggregates["uniqueStudents"])
	assert.Equal(t, 0, view.PageCount)
}

func TestEngineDoesNotMutateSnapshot(t *testing.T) {
	records := []Record{{"id": "b", "name": "b"}, {"id": "a", "name": "a"}}
	e := newEngine(t, records)

	e.RequestSort("name")

	assert.Equal(t, "b", records[0]["id"])
	assert.Equal(t, []any{"a", "b"}, ids(e.View().Rows))
}

func TestEngineRecomputeObserver(t *testing.T) {
	calls := 0
	e, err := New(hoursConfig(), WithRecomputeObserver(func(time.Duration) { calls++ }))
	require.NoError(t, err)

	e.SetRecords(sampleRecords(5))
	e.SetPage(0)

	assert.Equal(t, 2, calls)
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	_, err := New(&FieldConfig{Fields: []Field{{Name: "status", Kind: KindRankedEnum}}})
	assert.Error(t, err)

	_, err = New(&FieldConfig{Fields: []Field{{Name: "a"}}, DateField: "b"})
	assert.Error(t, err)
}
