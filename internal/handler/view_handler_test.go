package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-library-views/internal/dto"
	"github.com/noah-isme/sma-library-views/internal/middleware"
	"github.com/noah-isme/sma-library-views/internal/models"
	appErrors "github.com/noah-isme/sma-library-views/pkg/errors"
	"github.com/noah-isme/sma-library-views/pkg/viewengine"
)

type viewServiceMock struct {
	lastCaller models.ViewCaller
	lastView   string
	lastReq    interface{}
	err        error
}

func (m *viewServiceMock) state(caller models.ViewCaller, view string, req interface{}) (*dto.ViewState, error) {
	m.lastCaller, m.lastView, m.lastReq = caller, view, req
	if m.err != nil {
		return nil, m.err
	}
	return &dto.ViewState{
		View:               view,
		Rows:               []viewengine.Record{{"title": "Florante at Laura"}},
		TotalFilteredCount: 1,
		Pagination:         models.Pagination{PageSize: 10, PageCount: 1, TotalCount: 1},
		FromCache:          true,
	}, nil
}

func (m *viewServiceMock) List(caller models.ViewCaller) ([]dto.ViewSummary, error) {
	m.lastCaller = caller
	return []dto.ViewSummary{{Name: "books", Title: "Book Catalogue"}}, m.err
}

func (m *viewServiceMock) Get(ctx context.Context, caller models.ViewCaller, view string) (*dto.ViewState, error) {
	return m.state(caller, view, nil)
}

func (m *viewServiceMock) Refresh(ctx context.Context, caller models.ViewCaller, view string) (*dto.ViewState, error) {
	return m.state(caller, view, "refresh")
}

func (m *viewServiceMock) SetSearchText(ctx context.Context, caller models.ViewCaller, view string, req dto.SearchRequest) (*dto.ViewState, error) {
	return m.state(caller, view, req)
}

func (m *viewServiceMock) SetPendingField(ctx context.Context, caller models.ViewCaller, view string, req dto.PendingFieldRequest) (*dto.ViewState, error) {
	return m.state(caller, view, req)
}

func (m *viewServiceMock) SetPendingDateFrom(ctx context.Context, caller models.ViewCaller, view string, req dto.PendingDateRequest) (*dto.ViewState, error) {
	return m.state(caller, view, req)
}

func (m *viewServiceMock) SetPendingDateTo(ctx context.Context, caller models.ViewCaller, view string, req dto.PendingDateRequest) (*dto.ViewState, error) {
	return m.state(caller, view, req)
}

func (m *viewServiceMock) SetPendingAcademicYear(ctx context.Context, caller models.ViewCaller, view string, req dto.PendingAcademicYearRequest) (*dto.ViewState, error) {
	return m.state(caller, view, req)
}

func (m *viewServiceMock) Apply(ctx context.Context, caller models.ViewCaller, view string) (*dto.ViewState, error) {
	return m.state(caller, view, "apply")
}

func (m *viewServiceMock) Reset(ctx context.Context, caller models.ViewCaller, view string) (*dto.ViewState, error) {
	return m.state(caller, view, "reset")
}

func (m *viewServiceMock) Sort(ctx context.Context, caller models.ViewCaller, view string, req dto.SortRequest) (*dto.ViewState, error) {
	return m.state(caller, view, req)
}

func (m *viewServiceMock) SetPage(ctx context.Context, caller models.ViewCaller, view string, req dto.PageRequest) (*dto.ViewState, error) {
	return m.state(caller, view, req)
}

func (m *viewServiceMock) SetPageSize(ctx context.Context, caller models.ViewCaller, view string, req dto.PageSizeRequest) (*dto.ViewState, error) {
	return m.state(caller, view, req)
}

type exporterMock struct {
	format dto.ExportFormat
	err    error
}

func (m *exporterMock) Export(ctx context.Context, caller models.ViewCaller, view string, format dto.ExportFormat) (*dto.ExportFile, error) {
	m.format = format
	if m.err != nil {
		return nil, m.err
	}
	return &dto.ExportFile{Filename: view + ".csv", ContentType: "text/csv", Data: []byte("title\nFlorante at Laura\n")}, nil
}

var teacherClaims = &models.JWTClaims{UserID: "t-1", Role: models.RoleTeacher, GradeLevel: "Grade 7"}

func newViewContext(method, path string, body interface{}, claims *models.JWTClaims) (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, _ := json.Marshal(b)
		reader = bytes.NewReader(raw)
	}
	req, _ := http.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(SessionHeader, "tab-1")
	c.Request = req
	c.Params = gin.Params{{Key: "view", Value: "books"}}
	if claims != nil {
		c.Set(middleware.ContextUserKey, claims)
	}
	return c, w
}

func TestViewHandlerGet(t *testing.T) {
	svc := &viewServiceMock{}
	handler := NewViewHandler(svc, &exporterMock{})
	c, w := newViewContext(http.MethodGet, "/views/books", nil, teacherClaims)

	handler.Get(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "books", svc.lastView)
	assert.Equal(t, models.ViewCaller{UserID: "t-1", Role: models.RoleTeacher, GradeLevel: "Grade 7", SessionID: "tab-1"}, svc.lastCaller)

	var body struct {
		Data       dto.ViewState          `json:"data"`
		Pagination models.Pagination      `json:"pagination"`
		Meta       map[string]interface{} `json:"meta"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, 1, body.Data.TotalFilteredCount)
	assert.Equal(t, 10, body.Pagination.PageSize)
	assert.Equal(t, true, body.Meta["snapshot_from_cache"])
}

func TestViewHandlerRequiresClaims(t *testing.T) {
	svc := &viewServiceMock{}
	handler := NewViewHandler(svc, &exporterMock{})
	c, w := newViewContext(http.MethodGet, "/views/books", nil, nil)

	handler.Get(c)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Empty(t, svc.lastView)
}

func TestViewHandlerBindsPayloads(t *testing.T) {
	svc := &viewServiceMock{}
	handler := NewViewHandler(svc, &exporterMock{})

	c, w := newViewContext(http.MethodPut, "/views/books/pending/field", dto.PendingFieldRequest{Field: "genre", Value: "Fiction"}, teacherClaims)
	handler.SetPendingField(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, dto.PendingFieldRequest{Field: "genre", Value: "Fiction"}, svc.lastReq)

	c, w = newViewContext(http.MethodPut, "/views/books/page-size", dto.PageSizeRequest{PageSize: 25}, teacherClaims)
	handler.SetPageSize(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, dto.PageSizeRequest{PageSize: 25}, svc.lastReq)

	c, w = newViewContext(http.MethodPost, "/views/books/apply", nil, teacherClaims)
	handler.Apply(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "apply", svc.lastReq)

	c, w = newViewContext(http.MethodPut, "/views/books/search", `invalid`, teacherClaims)
	handler.SetSearch(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestViewHandlerMapsServiceErrors(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{appErrors.Clone(appErrors.ErrUnknownView, "view \"books\" not found"), http.StatusNotFound},
		{appErrors.ErrForbidden, http.StatusForbidden},
		{appErrors.Validation(viewengine.ErrInvalidDateRange), http.StatusBadRequest},
		{appErrors.Wrap(errors.New("dial tcp"), appErrors.ErrSourceUnavailable.Code, appErrors.ErrSourceUnavailable.Status, "record source unavailable"), http.StatusBadGateway},
	}
	for _, tc := range cases {
		handler := NewViewHandler(&viewServiceMock{err: tc.err}, &exporterMock{})
		c, w := newViewContext(http.MethodPut, "/views/books/pending/date-to", dto.PendingDateRequest{Date: "2024-01-01"}, teacherClaims)
		handler.SetPendingDateTo(c)
		assert.Equal(t, tc.status, w.Code)
	}
}

func TestViewHandlerExport(t *testing.T) {
	exporter := &exporterMock{}
	handler := NewViewHandler(&viewServiceMock{}, exporter)

	c, w := newViewContext(http.MethodGet, "/views/books/export", nil, teacherClaims)
	handler.Export(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, dto.ExportFormatCSV, exporter.format)
	assert.Equal(t, `attachment; filename="books.csv"`, w.Header().Get("Content-Disposition"))
	assert.Contains(t, w.Body.String(), "Florante at Laura")

	exporter.err = appErrors.ErrUnsupportedFormat
	c, w = newViewContext(http.MethodGet, "/views/books/export?format=xlsx", nil, teacherClaims)
	handler.Export(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, dto.ExportFormat("xlsx"), exporter.format)
}

func TestViewHandlerList(t *testing.T) {
	svc := &viewServiceMock{}
	handler := NewViewHandler(svc, &exporterMock{})
	c, w := newViewContext(http.MethodGet, "/views", nil, teacherClaims)

	handler.List(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Book Catalogue")
}
