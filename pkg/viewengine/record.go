package viewengine

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// Record is one row of tabular data keyed by field name. Values are strings,
// numbers, dates or nil; a missing key reads as nil.
type Record map[string]any

// dateLayouts lists the textual date forms accepted for date fields.
var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
}

// DateLayout is the canonical rendering of dates in search text and exports.
const DateLayout = "2006-01-02"

func (r Record) get(name string) any {
	if r == nil {
		return nil
	}
	return deref(r[name])
}

func deref(v any) any {
	switch t := v.(type) {
	case *string:
		if t == nil {
			return nil
		}
		return *t
	case *time.Time:
		if t == nil {
			return nil
		}
		return *t
	case *int:
		if t == nil {
			return nil
		}
		return *t
	case *int64:
		if t == nil {
			return nil
		}
		return *t
	case *float64:
		if t == nil {
			return nil
		}
		return *t
	case *bool:
		if t == nil {
			return nil
		}
		return *t
	}
	return v
}

// FormatValue renders a record value the way it is searched and exported.
// Nil renders as the empty string.
func FormatValue(v any) string {
	s, _ := stringOf(deref(v))
	return s
}

func stringOf(v any) (string, bool) {
	switch t := v.(type) {
	case nil:
		return "", false
	case string:
		return t, true
	case []byte:
		return string(t), true
	case time.Time:
		return t.Format(DateLayout), true
	case json.Number:
		return t.String(), true
	case bool:
		return strconv.FormatBool(t), true
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32), true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	}
	if n, ok := integerOf(v); ok {
		return strconv.FormatInt(n, 10), true
	}
	return "", false
}

func integerOf(v any) (int64, bool) {
	switch t := v.(type) {
	case int:
		return int64(t), true
	case int8:
		return int64(t), true
	case int16:
		return int64(t), true
	case int32:
		return int64(t), true
	case int64:
		return t, true
	case uint:
		return int64(t), true
	case uint8:
		return int64(t), true
	case uint16:
		return int64(t), true
	case uint32:
		return int64(t), true
	case uint64:
		return int64(t), true
	}
	return 0, false
}

func numberOf(v any) (float64, bool) {
	switch t := v.(type) {
	case nil:
		return 0, false
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case json.Number:
		f, err := t.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		return f, err == nil
	case []byte:
		f, err := strconv.ParseFloat(strings.TrimSpace(string(t)), 64)
		return f, err == nil
	}
	if n, ok := integerOf(v); ok {
		return float64(n), true
	}
	return 0, false
}

func timeOf(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		if t.IsZero() {
			return time.Time{}, false
		}
		return t, true
	case string:
		return ParseDate(t)
	case []byte:
		return ParseDate(string(t))
	}
	return time.Time{}, false
}

// ParseDate parses the date forms accepted in records and filter input.
func ParseDate(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// RestoreDates replaces textual values of the date fields of cfg with
// time.Time, in place, so a snapshot decoded from JSON searches, sorts and
// renders exactly like one read from the database. Values that do not parse
// are left untouched.
func RestoreDates(records []Record, cfg *FieldConfig) {
	names := cfg.DateFields()
	if len(names) == 0 {
		return
	}
	for _, r := range records {
		for _, name := range names {
			raw, ok := r[name].(string)
			if !ok {
				continue
			}
			if t, ok := ParseDate(raw); ok {
				r[name] = t
			}
		}
	}
}

// day drops the clock part of t, keeping the calendar date in t's own location.
func day(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
