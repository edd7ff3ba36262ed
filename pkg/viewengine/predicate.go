package viewengine

import (
	"strings"
	"time"
)

// Predicate reports whether a record belongs to the filtered set.
type Predicate func(Record) bool

func matchAll(Record) bool { return true }

// CompilePredicate builds the conjunction of the search, exact-match and date
// sub-predicates of spec. Absent sub-filters always match. An academic year that
// does not parse is ignored; engines never hold one because the setters reject it.
func CompilePredicate(spec FilterSpec, cfg *FieldConfig) Predicate {
	var tests []Predicate
	if p := searchPredicate(spec.SearchText, cfg); p != nil {
		tests = append(tests, p)
	}
	tests = append(tests, exactPredicates(spec.ExactFilters, cfg)...)
	if p := datePredicate(spec, cfg); p != nil {
		tests = append(tests, p)
	}

	switch len(tests) {
	case 0:
		return matchAll
	case 1:
		return tests[0]
	}
	return func(r Record) bool {
		for _, test := range tests {
			if !test(r) {
				return false
			}
		}
		return true
	}
}

func searchPredicate(text string, cfg *FieldConfig) Predicate {
	needle := strings.ToLower(strings.TrimSpace(text))
	if needle == "" || cfg == nil {
		return nil
	}
	var fields []string
	for _, f := range cfg.Fields {
		if f.Searchable {
			fields = append(fields, f.Name)
		}
	}
	return func(r Record) bool {
		for _, name := range fields {
			s, ok := stringOf(r.get(name))
			if ok && strings.Contains(strings.ToLower(s), needle) {
				return true
			}
		}
		return false
	}
}

func exactPredicates(filters map[string]string, cfg *FieldConfig) []Predicate {
	var out []Predicate
	for name, raw := range filters {
		want := strings.TrimSpace(raw)
		if want == "" {
			continue
		}
		field, ok := cfg.Field(name)
		if !ok || !field.Filterable {
			continue
		}
		out = append(out, exactPredicate(field, want))
	}
	return out
}

func exactPredicate(field Field, want string) Predicate {
	return func(r Record) bool {
		got, ok := stringOf(r.get(field.Name))
		if !ok {
			return false
		}
		got = strings.TrimSpace(got)
		if field.CaseSensitive {
			return got == want
		}
		return strings.EqualFold(got, want)
	}
}

func datePredicate(spec FilterSpec, cfg *FieldConfig) Predicate {
	if cfg == nil || cfg.DateField == "" {
		return nil
	}
	var from, to *time.Time
	if spec.AcademicYear != "" {
		year, err := ParseAcademicYear(spec.AcademicYear)
		if err != nil {
			return nil
		}
		start, end := year.Window()
		from, to = &start, &end
	} else {
		if spec.DateFrom != nil {
			d := day(*spec.DateFrom)
			from = &d
		}
		if spec.DateTo != nil {
			d := day(*spec.DateTo)
			to = &d
		}
	}
	if from == nil && to == nil {
		return nil
	}
	return dateRangePredicate(cfg.DateField, from, to)
}

// dateRangePredicate keeps records whose date lies within the inclusive
// calendar-day bounds. Records without a parsable date never match.
func dateRangePredicate(field string, from, to *time.Time) Predicate {
	return func(r Record) bool {
		t, ok := timeOf(r.get(field))
		if !ok {
			return false
		}
		d := day(t)
		if from != nil && d.Before(*from) {
			return false
		}
		if to != nil && d.After(*to) {
			return false
		}
		return true
	}
}
