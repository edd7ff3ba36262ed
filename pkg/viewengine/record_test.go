package viewengine

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func jsonRoundTrip(t *testing.T, records []Record) []Record {
	t.Helper()
	raw, err := json.Marshal(records)
	require.NoError(t, err)
	var out []Record
	require.NoError(t, json.Unmarshal(raw, &out))
	return out
}

func TestRestoreDatesMatchesDatabaseValues(t *testing.T) {
	cfg := &FieldConfig{
		Fields: []Field{
			{Name: "name", Searchable: true},
			{Name: "timeIn", Kind: KindDate, Searchable: true},
			{Name: "timeOut", Searchable: true},
		},
		DateField: "timeOut",
	}
	fresh := []Record{{
		"name":    "Maria Clara",
		"timeIn":  time.Date(2024, 1, 5, 8, 30, 0, 0, time.UTC),
		"timeOut": time.Date(2024, 1, 5, 9, 45, 0, 0, time.UTC),
	}}
	cached := jsonRoundTrip(t, fresh)
	require.IsType(t, "", cached[0]["timeIn"])

	RestoreDates(cached, cfg)

	for _, name := range []string{"timeIn", "timeOut"} {
		assert.Equal(t, FormatValue(fresh[0][name]), FormatValue(cached[0][name]), name)
		assert.Equal(t, "2024-01-05", FormatValue(cached[0][name]), name)
	}
	assert.Equal(t, "Maria Clara", cached[0]["name"])

	search := CompilePredicate(FilterSpec{SearchText: "08:30"}, cfg)
	assert.False(t, search(fresh[0]))
	assert.False(t, search(cached[0]))
}

func TestRestoreDatesLeavesOtherValuesAlone(t *testing.T) {
	records := []Record{{"timeIn": "not a date"}, {"timeIn": nil}, {}}

	RestoreDates(records, hoursConfig())

	assert.Equal(t, "not a date", records[0]["timeIn"])
	assert.Nil(t, records[1]["timeIn"])
	assert.NotContains(t, records[2], "timeIn")
}
