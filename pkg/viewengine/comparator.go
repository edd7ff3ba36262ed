package viewengine

import (
	"cmp"
	"slices"
	"strings"
	"time"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// Comparator orders two records, returning a negative, zero or positive int.
// Comparators for string fields hold a collator and are not safe for
// concurrent use.
type Comparator func(a, b Record) int

// CompileComparator builds the ordering for key in direction dir. Nil values
// sort first ascending and last descending. It returns nil when key is empty,
// undeclared or not sortable, which SortRecords treats as "keep order".
func CompileComparator(key string, dir Direction, cfg *FieldConfig) Comparator {
	if key == "" {
		return nil
	}
	field, ok := cfg.Field(key)
	if !ok || !field.Sortable {
		return nil
	}

	var compare func(a, b any) int
	switch field.Kind {
	case KindDate:
		compare = nullsFirst(timeOf, time.Time.Compare)
	case KindNumeric:
		compare = nullsFirst(numberOf, cmp.Compare[float64])
	case KindRankedEnum:
		ranks := normalizeRanks(field.Ranks)
		rank := func(v any) (int, bool) {
			s, ok := stringOf(v)
			if !ok {
				return 0, false
			}
			return ranks[strings.ToLower(strings.TrimSpace(s))], true
		}
		compare = nullsFirst(rank, cmp.Compare[int])
	default:
		collator := collate.New(language.English)
		lower := func(v any) (string, bool) {
			s, ok := stringOf(v)
			return strings.ToLower(s), ok
		}
		compare = nullsFirst(lower, collator.CompareString)
	}

	return func(a, b Record) int {
		c := compare(a.get(key), b.get(key))
		if dir == Desc {
			return -c
		}
		return c
	}
}

// SortRecords stable-sorts rows in place. A nil comparator leaves rows as is.
func SortRecords(rows []Record, compare Comparator) {
	if compare == nil {
		return
	}
	slices.SortStableFunc(rows, compare)
}

func nullsFirst[T any](extract func(any) (T, bool), compare func(a, b T) int) func(a, b any) int {
	return func(a, b any) int {
		va, okA := extract(a)
		vb, okB := extract(b)
		switch {
		case !okA && !okB:
			return 0
		case !okA:
			return -1
		case !okB:
			return 1
		}
		return compare(va, vb)
	}
}

func normalizeRanks(ranks map[string]int) map[string]int {
	out := make(map[string]int, len(ranks))
	for label, rank := range ranks {
		out[strings.ToLower(strings.TrimSpace(label))] = rank
	}
	return out
}
