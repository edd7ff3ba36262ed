// Package viewengine turns a record snapshot plus a filter, sort and page
// specification into the rows a listing page renders and the counts shown
// alongside them.
//
// An Engine is owned by a single view session. It is synchronous and not safe
// for concurrent use: every mutator recomputes the view before returning.
package viewengine

import (
	"fmt"
	"slices"
	"time"

	"go.uber.org/zap"
)

// ViewResult is the computed state of a view.
type ViewResult struct {
	Rows               []Record           `json:"rows"`
	TotalFilteredCount int                `json:"total_filtered_count"`
	Aggregates         map[string]float64 `json:"aggregates"`
	PageIndex          int                `json:"page_index"`
	PageSize           int                `json:"page_size"`
	PageCount          int                `json:"page_count"`
}

// Option customises an Engine.
type Option func(*Engine)

// WithLogger sets the logger used for ignored-input diagnostics.
func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithRecomputeObserver registers a callback receiving the duration of each
// filter-sort-aggregate pass.
func WithRecomputeObserver(fn func(time.Duration)) Option {
	return func(e *Engine) { e.observe = fn }
}

// Engine composes the filter state, predicate, comparator, aggregator and
// paginator over one record snapshot.
type Engine struct {
	cfg     *FieldConfig
	logger  *zap.Logger
	observe func(time.Duration)

	state   *FilterState
	records []Record
	page    Pagination

	filtered   []Record
	aggregates map[string]float64
}

// New validates cfg and returns an engine over an empty snapshot.
func New(cfg *FieldConfig, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid field config: %w", err)
	}
	e := &Engine{cfg: cfg, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(e)
	}
	e.state = NewFilterState(cfg, e.logger)
	e.page = Pagination{PageSize: cfg.InitialPageSize()}
	e.recompute()
	return e, nil
}

// Config returns the field config the engine was built with.
func (e *Engine) Config() *FieldConfig { return e.cfg }

// View returns the current page together with the total and aggregates.
func (e *Engine) View() ViewResult {
	return ViewResult{
		Rows:               slices.Clone(Paginate(e.filtered, e.page.PageIndex, e.page.PageSize)),
		TotalFilteredCount: len(e.filtered),
		Aggregates:         cloneAggregates(e.aggregates),
		PageIndex:          e.page.PageIndex,
		PageSize:           e.page.PageSize,
		PageCount:          PageCount(len(e.filtered), e.page.PageSize),
	}
}

// FilteredRows returns every row of the filtered and sorted set, unpaginated.
func (e *Engine) FilteredRows() []Record { return slices.Clone(e.filtered) }

// AppliedSpec returns a copy of the spec the view is computed from.
func (e *Engine) AppliedSpec() FilterSpec { return e.state.Applied() }

// PendingSpec returns a copy of the staged, not yet applied spec.
func (e *Engine) PendingSpec() FilterSpec { return e.state.Pending() }

// Pagination returns the page cursor.
func (e *Engine) Pagination() Pagination { return e.page }

// SetRecords replaces the snapshot. The page index survives unless it is now
// out of range. A nil snapshot is an empty one.
func (e *Engine) SetRecords(records []Record) {
	e.records = records
	e.recompute()
}

// SetSearchText applies live search and returns to the first page.
func (e *Engine) SetSearchText(text string) {
	e.state.SetSearchText(text)
	e.page.PageIndex = 0
	e.recompute()
}

// SetPendingField stages an exact-match filter; see FilterState.SetPendingField.
func (e *Engine) SetPendingField(name, value string) {
	e.state.SetPendingField(name, value)
}

// SetPendingDateFrom stages the lower date bound; see FilterState.SetPendingDateFrom.
func (e *Engine) SetPendingDateFrom(d *time.Time) {
	e.state.SetPendingDateFrom(d)
}

// SetPendingDateTo stages the upper date bound; see FilterState.SetPendingDateTo.
func (e *Engine) SetPendingDateTo(d *time.Time) error {
	return e.state.SetPendingDateTo(d)
}

// SetPendingAcademicYear stages an academic year; see FilterState.SetPendingAcademicYear.
func (e *Engine) SetPendingAcademicYear(label string) error {
	return e.state.SetPendingAcademicYear(label)
}

// ApplyPendingFilters commits the pending spec and returns to the first page.
// A validation error leaves the view unchanged.
func (e *Engine) ApplyPendingFilters() error {
	if err := e.state.Apply(); err != nil {
		return err
	}
	e.page.PageIndex = 0
	e.recompute()
	return nil
}

// ResetFilters clears the filters, keeping search, sort and the sticky fields.
func (e *Engine) ResetFilters(sticky ...string) {
	e.state.Reset(sticky...)
	e.page.PageIndex = 0
	e.recompute()
}

// RequestSort sorts by name ascending, or flips the direction when name is
// already the sort key. Unknown fields are ignored.
func (e *Engine) RequestSort(name string) {
	if !e.state.ToggleSort(name) {
		return
	}
	e.page.PageIndex = 0
	e.recompute()
}

// SetPage moves to page n without refiltering. Pages outside the current
// range reset the cursor to the first page.
func (e *Engine) SetPage(n int) {
	if n < 0 || n >= PageCount(len(e.filtered), e.page.PageSize) {
		n = 0
	}
	e.page.PageIndex = n
}

// SetPageSize changes the page size to one of the allowed sizes and returns to
// the first page.
func (e *Engine) SetPageSize(n int) error {
	if !slices.Contains(e.cfg.AllowedPageSizes(), n) {
		return fmt.Errorf("%d: %w", n, ErrInvalidPageSize)
	}
	e.page.PageSize = n
	e.page.PageIndex = 0
	e.recompute()
	return nil
}

func (e *Engine) recompute() {
	start := time.Now()
	applied := e.state.Applied()

	keep := CompilePredicate(applied, e.cfg)
	filtered := make([]Record, 0, len(e.records))
	for _, r := range e.records {
		if keep(r) {
			filtered = append(filtered, r)
		}
	}
	SortRecords(filtered, CompileComparator(applied.SortKey, applied.SortDirection, e.cfg))

	e.filtered = filtered
	_, e.aggregates = Aggregate(filtered, e.cfg)
	if e.page.PageIndex*e.page.PageSize >= len(filtered) {
		e.page.PageIndex = 0
	}

	if e.observe != nil {
		e.observe(time.Since(start))
	}
}

func cloneAggregates(in map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
