package viewengine

// Aggregate counts rows and computes the configured distinct counts and sums
// over them. Callers pass the filtered set, never a page of it. Nil values are
// not counted as a distinct value and do not contribute to sums.
func Aggregate(rows []Record, cfg *FieldConfig) (int, map[string]float64) {
	out := make(map[string]float64)
	if cfg == nil {
		return len(rows), out
	}

	for name, field := range cfg.Distinct {
		seen := make(map[string]struct{})
		for _, r := range rows {
			if key, ok := stringOf(r.get(field)); ok {
				seen[key] = struct{}{}
			}
		}
		out[name] = float64(len(seen))
	}

	for name, field := range cfg.Sums {
		var total float64
		for _, r := range rows {
			if n, ok := numberOf(r.get(field)); ok {
				total += n
			}
		}
		out[name] = total
	}

	return len(rows), out
}
