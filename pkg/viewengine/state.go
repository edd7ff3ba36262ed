package viewengine

import (
	"strings"
	"time"

	"go.uber.org/zap"
)

// FilterState owns the two-phase filter state of a view: pending edits made
// in filter inputs and the applied spec the view is computed from. Search text
// and sort bypass the pending phase and take effect immediately.
type FilterState struct {
	cfg     *FieldConfig
	logger  *zap.Logger
	pending FilterSpec
	applied FilterSpec
}

// NewFilterState starts with empty filters and the config's default sort.
func NewFilterState(cfg *FieldConfig, logger *zap.Logger) *FilterState {
	if logger == nil {
		logger = zap.NewNop()
	}
	spec := FilterSpec{SortDirection: Asc}
	if cfg != nil && cfg.DefaultSort != nil {
		spec.SortKey = cfg.DefaultSort.Key
		if cfg.DefaultSort.Direction != "" {
			spec.SortDirection = cfg.DefaultSort.Direction
		}
	}
	return &FilterState{cfg: cfg, logger: logger, pending: spec, applied: spec.Clone()}
}

// Pending returns a copy of the pending spec.
func (s *FilterState) Pending() FilterSpec { return s.pending.Clone() }

// Applied returns a copy of the applied spec.
func (s *FilterState) Applied() FilterSpec { return s.applied.Clone() }

// SetSearchText updates the search text of both phases.
func (s *FilterState) SetSearchText(text string) {
	s.applied.SearchText = text
	s.pending.SearchText = text
}

// SetPendingField stages an exact-match filter. A blank value removes the
// constraint. Unknown or non-filterable fields are ignored and reported false.
func (s *FilterState) SetPendingField(name, value string) bool {
	field, ok := s.cfg.Field(name)
	if !ok || !field.Filterable {
		s.logger.Debug("ignoring filter on unknown field", zap.String("field", name))
		return false
	}
	if strings.TrimSpace(value) == "" {
		delete(s.pending.ExactFilters, name)
		return true
	}
	if s.pending.ExactFilters == nil {
		s.pending.ExactFilters = make(map[string]string)
	}
	s.pending.ExactFilters[name] = value
	return true
}

// SetPendingDateFrom stages the lower date bound. Setting it clears the
// academic year, and clears date-to when date-to is now earlier. Nil clears it.
func (s *FilterState) SetPendingDateFrom(d *time.Time) {
	if d == nil {
		s.pending.DateFrom = nil
		return
	}
	from := day(*d)
	if s.pending.DateTo != nil && from.After(day(*s.pending.DateTo)) {
		s.pending.DateTo = nil
	}
	s.pending.DateFrom = &from
	s.pending.AcademicYear = ""
}

// SetPendingDateTo stages the upper date bound. A bound earlier than the
// pending date-from is rejected. Setting it clears the academic year.
func (s *FilterState) SetPendingDateTo(d *time.Time) error {
	if d == nil {
		s.pending.DateTo = nil
		return nil
	}
	to := day(*d)
	if s.pending.DateFrom != nil && to.Before(day(*s.pending.DateFrom)) {
		return ErrInvalidDateRange
	}
	s.pending.DateTo = &to
	s.pending.AcademicYear = ""
	return nil
}

// SetPendingAcademicYear stages an academic year, clearing the date range.
// An empty label clears it.
func (s *FilterState) SetPendingAcademicYear(label string) error {
	label = strings.TrimSpace(label)
	if label == "" {
		s.pending.AcademicYear = ""
		return nil
	}
	year, err := ParseAcademicYear(label)
	if err != nil {
		return err
	}
	s.pending.AcademicYear = year.String()
	s.pending.DateFrom = nil
	s.pending.DateTo = nil
	return nil
}

// Apply validates the pending spec and copies it onto the applied spec.
// On error the applied spec is untouched.
func (s *FilterState) Apply() error {
	if err := s.pending.Validate(); err != nil {
		return err
	}
	s.applied = s.pending.Clone()
	return nil
}

// Reset clears exact filters, dates and academic year in both phases, keeping
// search text and sort. Sticky fields keep their applied exact-filter value.
func (s *FilterState) Reset(sticky ...string) {
	kept := make(map[string]string, len(sticky))
	for _, name := range sticky {
		if v, ok := s.applied.ExactFilters[name]; ok {
			kept[name] = v
		} else if v, ok := s.pending.ExactFilters[name]; ok {
			kept[name] = v
		}
	}
	for _, spec := range []*FilterSpec{&s.pending, &s.applied} {
		spec.ExactFilters = nil
		spec.DateFrom = nil
		spec.DateTo = nil
		spec.AcademicYear = ""
		for name, v := range kept {
			if spec.ExactFilters == nil {
				spec.ExactFilters = make(map[string]string, len(kept))
			}
			spec.ExactFilters[name] = v
		}
	}
}

// ToggleSort makes name the sort key, ascending, or flips the direction when it
// already is. Unknown or unsortable fields are ignored and reported false.
func (s *FilterState) ToggleSort(name string) bool {
	field, ok := s.cfg.Field(name)
	if !ok || !field.Sortable {
		s.logger.Debug("ignoring sort on unknown field", zap.String("field", name))
		return false
	}
	if s.applied.SortKey == name {
		if s.applied.SortDirection == Asc {
			s.applied.SortDirection = Desc
		} else {
			s.applied.SortDirection = Asc
		}
	} else {
		s.applied.SortKey = name
		s.applied.SortDirection = Asc
	}
	s.pending.SortKey = s.applied.SortKey
	s.pending.SortDirection = s.applied.SortDirection
	return true
}
