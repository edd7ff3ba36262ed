package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-library-views/internal/dto"
	"github.com/noah-isme/sma-library-views/internal/models"
	"github.com/noah-isme/sma-library-views/internal/views"
	appErrors "github.com/noah-isme/sma-library-views/pkg/errors"
	"github.com/noah-isme/sma-library-views/pkg/viewengine"
)

type recordFetcher interface {
	Fetch(ctx context.Context, source string, scope models.RecordScope) ([]viewengine.Record, error)
}

type snapshotCache interface {
	Get(ctx context.Context, source string, scope models.RecordScope) ([]viewengine.Record, bool)
	Set(ctx context.Context, source string, scope models.RecordScope, records []viewengine.Record)
	Invalidate(ctx context.Context, source string) error
}

type noopSnapshotCache struct{}

func (noopSnapshotCache) Get(context.Context, string, models.RecordScope) ([]viewengine.Record, bool) {
	return nil, false
}

func (noopSnapshotCache) Set(context.Context, string, models.RecordScope, []viewengine.Record) {}

func (noopSnapshotCache) Invalidate(context.Context, string) error { return nil }

type viewCatalog interface {
	Get(name string) (*views.Definition, bool)
	Visible(role models.UserRole) []*views.Definition
}

// ViewServiceConfig tunes the lifetime of view sessions.
type ViewServiceConfig struct {
	SessionTTL  time.Duration
	MaxSessions int
}

// ViewExport is the full filtered and sorted row set of a session.
type ViewExport struct {
	Definition *views.Definition
	Rows       []viewengine.Record
	Aggregates map[string]float64
}

type sessionKey struct {
	userID    string
	sessionID string
	view      string
}

type viewSession struct {
	mu        sync.Mutex
	def       *views.Definition
	engine    *viewengine.Engine
	scope     models.RecordScope
	sticky    []string
	loadedAt  time.Time
	fromCache bool

	// guarded by ViewService.mu
	lastUsed time.Time
}

// ViewService keeps one view engine per caller, browser session and view.
type ViewService struct {
	catalog   viewCatalog
	records   recordFetcher
	cache     snapshotCache
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	cfg       ViewServiceConfig
	now       func() time.Time

	mu       sync.Mutex
	sessions map[sessionKey]*viewSession
}

// NewViewService constructs a ViewService.
func NewViewService(catalog viewCatalog, records recordFetcher, cache snapshotCache, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger, cfg ViewServiceConfig) *ViewService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cache == nil {
		cache = noopSnapshotCache{}
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = 30 * time.Minute
	}
	return &ViewService{
		catalog:   catalog,
		records:   records,
		cache:     cache,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		cfg:       cfg,
		now:       time.Now,
		sessions:  make(map[sessionKey]*viewSession),
	}
}

// List returns the views the caller's role may open.
func (s *ViewService) List(caller models.ViewCaller) ([]dto.ViewSummary, error) {
	if !caller.Role.Valid() {
		return nil, appErrors.ErrUnauthorized
	}
	defs := s.catalog.Visible(caller.Role)
	out := make([]dto.ViewSummary, 0, len(defs))
	for _, def := range defs {
		out = append(out, dto.ViewSummary{
			Name:      def.Name,
			Title:     def.Title,
			Fields:    def.Config.Fields,
			DateField: def.Config.DateField,
			PageSizes: def.Config.AllowedPageSizes(),
		})
	}
	return out, nil
}

// Get returns the current state of a view, opening a session on first use.
func (s *ViewService) Get(ctx context.Context, caller models.ViewCaller, view string) (*dto.ViewState, error) {
	return s.mutate(ctx, caller, view, nil)
}

// Refresh refetches the snapshot of a view from its source, bypassing the cache.
func (s *ViewService) Refresh(ctx context.Context, caller models.ViewCaller, view string) (*dto.ViewState, error) {
	sess, opened, err := s.openOrGet(ctx, caller, view)
	if err != nil {
		return nil, err
	}
	if opened && !sess.fromCache {
		sess.mu.Lock()
		defer sess.mu.Unlock()
		return sess.state(), nil
	}
	_ = s.cache.Invalidate(ctx, sess.def.Source)
	records, _, err := s.load(ctx, sess.def, sess.scope, false)
	if err != nil {
		return nil, err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	sess.engine.SetRecords(records)
	sess.loadedAt = s.now().UTC()
	sess.fromCache = false
	return sess.state(), nil
}

// SetSearchText updates the live search text.
func (s *ViewService) SetSearchText(ctx context.Context, caller models.ViewCaller, view string, req dto.SearchRequest) (*dto.ViewState, error) {
	if err := s.validate(req); err != nil {
		return nil, err
	}
	return s.mutate(ctx, caller, view, func(sess *viewSession) error {
		sess.engine.SetSearchText(req.Text)
		return nil
	})
}

// SetPendingField stages an exact-match filter.
func (s *ViewService) SetPendingField(ctx context.Context, caller models.ViewCaller, view string, req dto.PendingFieldRequest) (*dto.ViewState, error) {
	if err := s.validate(req); err != nil {
		return nil, err
	}
	return s.mutate(ctx, caller, view, func(sess *viewSession) error {
		sess.engine.SetPendingField(req.Field, req.Value)
		return nil
	})
}

// SetPendingDateFrom stages the lower date bound.
func (s *ViewService) SetPendingDateFrom(ctx context.Context, caller models.ViewCaller, view string, req dto.PendingDateRequest) (*dto.ViewState, error) {
	date, err := s.parseDate(req)
	if err != nil {
		return nil, err
	}
	return s.mutate(ctx, caller, view, func(sess *viewSession) error {
		sess.engine.SetPendingDateFrom(date)
		return nil
	})
}

// SetPendingDateTo stages the upper date bound.
func (s *ViewService) SetPendingDateTo(ctx context.Context, caller models.ViewCaller, view string, req dto.PendingDateRequest) (*dto.ViewState, error) {
	date, err := s.parseDate(req)
	if err != nil {
		return nil, err
	}
	return s.mutate(ctx, caller, view, func(sess *viewSession) error {
		return sess.engine.SetPendingDateTo(date)
	})
}

// SetPendingAcademicYear stages an academic year.
func (s *ViewService) SetPendingAcademicYear(ctx context.Context, caller models.ViewCaller, view string, req dto.PendingAcademicYearRequest) (*dto.ViewState, error) {
	if err := s.validate(req); err != nil {
		return nil, err
	}
	return s.mutate(ctx, caller, view, func(sess *viewSession) error {
		return sess.engine.SetPendingAcademicYear(req.AcademicYear)
	})
}

// Apply commits the pending filters.
func (s *ViewService) Apply(ctx context.Context, caller models.ViewCaller, view string) (*dto.ViewState, error) {
	return s.mutate(ctx, caller, view, func(sess *viewSession) error {
		return sess.engine.ApplyPendingFilters()
	})
}

// Reset clears the filters, keeping the caller's sticky fields.
func (s *ViewService) Reset(ctx context.Context, caller models.ViewCaller, view string) (*dto.ViewState, error) {
	return s.mutate(ctx, caller, view, func(sess *viewSession) error {
		sess.engine.ResetFilters(sess.sticky...)
		return nil
	})
}

// Sort toggles the sort on a field.
func (s *ViewService) Sort(ctx context.Context, caller models.ViewCaller, view string, req dto.SortRequest) (*dto.ViewState, error) {
	if err := s.validate(req); err != nil {
		return nil, err
	}
	return s.mutate(ctx, caller, view, func(sess *viewSession) error {
		sess.engine.RequestSort(req.Field)
		return nil
	})
}

// SetPage moves to another page.
func (s *ViewService) SetPage(ctx context.Context, caller models.ViewCaller, view string, req dto.PageRequest) (*dto.ViewState, error) {
	return s.mutate(ctx, caller, view, func(sess *viewSession) error {
		sess.engine.SetPage(req.PageIndex)
		return nil
	})
}

// SetPageSize changes the rows per page.
func (s *ViewService) SetPageSize(ctx context.Context, caller models.ViewCaller, view string, req dto.PageSizeRequest) (*dto.ViewState, error) {
	if err := s.validate(req); err != nil {
		return nil, err
	}
	return s.mutate(ctx, caller, view, func(sess *viewSession) error {
		return sess.engine.SetPageSize(req.PageSize)
	})
}

// ExportRows returns every row that passes the applied filters, in view order.
func (s *ViewService) ExportRows(ctx context.Context, caller models.ViewCaller, view string) (*ViewExport, error) {
	sess, err := s.session(ctx, caller, view)
	if err != nil {
		return nil, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return &ViewExport{
		Definition: sess.def,
		Rows:       sess.engine.FilteredRows(),
		Aggregates: sess.engine.View().Aggregates,
	}, nil
}

// Sweep drops sessions idle for longer than the configured TTL and reports
// how many were removed.
func (s *ViewService) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.evictExpiredLocked()
}

// ActiveSessions reports the number of live sessions.
func (s *ViewService) ActiveSessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

func (s *ViewService) mutate(ctx context.Context, caller models.ViewCaller, view string, fn func(*viewSession) error) (*dto.ViewState, error) {
	sess, err := s.session(ctx, caller, view)
	if err != nil {
		return nil, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if fn != nil {
		if err := fn(sess); err != nil {
			return nil, engineError(err)
		}
	}
	return sess.state(), nil
}

func (s *ViewService) session(ctx context.Context, caller models.ViewCaller, view string) (*viewSession, error) {
	sess, _, err := s.openOrGet(ctx, caller, view)
	return sess, err
}

// openOrGet returns the caller's session for view and whether this call
// opened it.
func (s *ViewService) openOrGet(ctx context.Context, caller models.ViewCaller, view string) (*viewSession, bool, error) {
	if caller.UserID == "" || !caller.Role.Valid() {
		return nil, false, appErrors.ErrUnauthorized
	}
	def, ok := s.catalog.Get(view)
	if !ok {
		return nil, false, appErrors.Clone(appErrors.ErrUnknownView, fmt.Sprintf("view %q not found", view))
	}
	if !def.Allows(caller.Role) {
		return nil, false, appErrors.Clone(appErrors.ErrForbidden, "view is not available for this role")
	}
	key := sessionKey{userID: caller.UserID, sessionID: caller.SessionID, view: view}

	s.mu.Lock()
	s.evictExpiredLocked()
	if sess, ok := s.sessions[key]; ok {
		sess.lastUsed = s.now()
		s.mu.Unlock()
		return sess, false, nil
	}
	s.mu.Unlock()

	sess, err := s.open(ctx, def, caller)
	if err != nil {
		return nil, false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.sessions[key]; ok {
		existing.lastUsed = s.now()
		return existing, false, nil
	}
	s.evictOldestLocked()
	sess.lastUsed = s.now()
	s.sessions[key] = sess
	s.metrics.SetActiveSessions(len(s.sessions))
	return sess, true, nil
}

func (s *ViewService) open(ctx context.Context, def *views.Definition, caller models.ViewCaller) (*viewSession, error) {
	scope := def.ScopeFor(caller)
	if def.Scopes[caller.Role] != views.ScopeNone && scope == (models.RecordScope{}) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "token lacks the identity this view is scoped to")
	}

	engine, err := viewengine.New(&def.Config,
		viewengine.WithLogger(s.logger.With(zap.String("view", def.Name))),
		viewengine.WithRecomputeObserver(s.metrics.RecomputeObserver(def.Name)),
	)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "view definition is invalid")
	}

	sticky := def.StickyFor(caller)
	names := make([]string, 0, len(sticky))
	for field, value := range sticky {
		engine.SetPendingField(field, value)
		names = append(names, field)
	}
	sort.Strings(names)
	if len(names) > 0 {
		if err := engine.ApplyPendingFilters(); err != nil {
			return nil, engineError(err)
		}
	}

	records, fromCache, err := s.load(ctx, def, scope, true)
	if err != nil {
		return nil, err
	}
	engine.SetRecords(records)

	s.logger.Debug("view session opened",
		zap.String("view", def.Name),
		zap.String("user_id", caller.UserID),
		zap.Int("records", len(records)),
		zap.Bool("from_cache", fromCache),
	)

	return &viewSession{
		def:       def,
		engine:    engine,
		scope:     scope,
		sticky:    names,
		loadedAt:  s.now().UTC(),
		fromCache: fromCache,
	}, nil
}

func (s *ViewService) load(ctx context.Context, def *views.Definition, scope models.RecordScope, useCache bool) ([]viewengine.Record, bool, error) {
	if useCache {
		if records, ok := s.cache.Get(ctx, def.Source, scope); ok {
			// JSON snapshots carry dates as text.
			viewengine.RestoreDates(records, &def.Config)
			return records, true, nil
		}
	}
	start := time.Now()
	records, err := s.records.Fetch(ctx, def.Source, scope)
	s.metrics.ObserveSourceFetch(def.Source, time.Since(start))
	if err != nil {
		s.logger.Error("record source fetch failed", zap.String("source", def.Source), zap.Error(err))
		return nil, false, appErrors.Wrap(err, appErrors.ErrSourceUnavailable.Code, appErrors.ErrSourceUnavailable.Status, appErrors.ErrSourceUnavailable.Message)
	}
	viewengine.RestoreDates(records, &def.Config)
	s.cache.Set(ctx, def.Source, scope, records)
	return records, false, nil
}

func (s *ViewService) evictExpiredLocked() int {
	cutoff := s.now().Add(-s.cfg.SessionTTL)
	removed := 0
	for key, sess := range s.sessions {
		if sess.lastUsed.Before(cutoff) {
			delete(s.sessions, key)
			removed++
		}
	}
	if removed > 0 {
		s.metrics.SetActiveSessions(len(s.sessions))
	}
	return removed
}

func (s *ViewService) evictOldestLocked() {
	for s.cfg.MaxSessions > 0 && len(s.sessions) >= s.cfg.MaxSessions {
		var oldest sessionKey
		var oldestAt time.Time
		first := true
		for key, sess := range s.sessions {
			if first || sess.lastUsed.Before(oldestAt) {
				oldest, oldestAt, first = key, sess.lastUsed, false
			}
		}
		delete(s.sessions, oldest)
	}
}

func (s *ViewService) validate(req interface{}) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid view payload")
	}
	return nil
}

func (s *ViewService) parseDate(req dto.PendingDateRequest) (*time.Time, error) {
	if err := s.validate(req); err != nil {
		return nil, err
	}
	raw := strings.TrimSpace(req.Date)
	if raw == "" {
		return nil, nil
	}
	date, ok := viewengine.ParseDate(raw)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("invalid date %q", raw))
	}
	return &date, nil
}

func (sess *viewSession) state() *dto.ViewState {
	result := sess.engine.View()
	rows := result.Rows
	if rows == nil {
		rows = []viewengine.Record{}
	}
	return &dto.ViewState{
		View:               sess.def.Name,
		Title:              sess.def.Title,
		Rows:               rows,
		TotalFilteredCount: result.TotalFilteredCount,
		Aggregates:         result.Aggregates,
		Pagination: models.Pagination{
			PageIndex:  result.PageIndex,
			PageSize:   result.PageSize,
			PageCount:  result.PageCount,
			TotalCount: result.TotalFilteredCount,
		},
		Applied:   sess.engine.AppliedSpec(),
		Pending:   sess.engine.PendingSpec(),
		LoadedAt:  sess.loadedAt,
		FromCache: sess.fromCache,
	}
}

func engineError(err error) error {
	var appErr *appErrors.Error
	switch {
	case errors.As(err, &appErr):
		return appErr
	case errors.Is(err, viewengine.ErrInvalidDateRange),
		errors.Is(err, viewengine.ErrConflictingDateFilters),
		errors.Is(err, viewengine.ErrInvalidAcademicYear),
		errors.Is(err, viewengine.ErrInvalidPageSize):
		return appErrors.Validation(err)
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, appErrors.ErrInternal.Message)
}
