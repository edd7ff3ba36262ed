package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-library-views/internal/dto"
	"github.com/noah-isme/sma-library-views/internal/middleware"
	"github.com/noah-isme/sma-library-views/internal/models"
	"github.com/noah-isme/sma-library-views/pkg/response"
)

type viewService interface {
	List(caller models.ViewCaller) ([]dto.ViewSummary, error)
	Get(ctx context.Context, caller models.ViewCaller, view string) (*dto.ViewState, error)
	Refresh(ctx context.Context, caller models.ViewCaller, view string) (*dto.ViewState, error)
	SetSearchText(ctx context.Context, caller models.ViewCaller, view string, req dto.SearchRequest) (*dto.ViewState, error)
	SetPendingField(ctx context.Context, caller models.ViewCaller, view string, req dto.PendingFieldRequest) (*dto.ViewState, error)
	SetPendingDateFrom(ctx context.Context, caller models.ViewCaller, view string, req dto.PendingDateRequest) (*dto.ViewState, error)
	SetPendingDateTo(ctx context.Context, caller models.ViewCaller, view string, req dto.PendingDateRequest) (*dto.ViewState, error)
	SetPendingAcademicYear(ctx context.Context, caller models.ViewCaller, view string, req dto.PendingAcademicYearRequest) (*dto.ViewState, error)
	Apply(ctx context.Context, caller models.ViewCaller, view string) (*dto.ViewState, error)
	Reset(ctx context.Context, caller models.ViewCaller, view string) (*dto.ViewState, error)
	Sort(ctx context.Context, caller models.ViewCaller, view string, req dto.SortRequest) (*dto.ViewState, error)
	SetPage(ctx context.Context, caller models.ViewCaller, view string, req dto.PageRequest) (*dto.ViewState, error)
	SetPageSize(ctx context.Context, caller models.ViewCaller, view string, req dto.PageSizeRequest) (*dto.ViewState, error)
}

type viewExporter interface {
	Export(ctx context.Context, caller models.ViewCaller, view string, format dto.ExportFormat) (*dto.ExportFile, error)
}

// ViewHandler exposes the interactive listing views.
type ViewHandler struct {
	views    viewService
	exporter viewExporter
}

// NewViewHandler builds a new handler.
func NewViewHandler(views viewService, exporter viewExporter) *ViewHandler {
	return &ViewHandler{views: views, exporter: exporter}
}

// List godoc
// @Summary List views available to the caller
// @Tags Views
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /views [get]
func (h *ViewHandler) List(c *gin.Context) {
	caller, ok := callerFromContext(c)
	if !ok {
		return
	}
	items, err := h.views.List(caller)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil)
}

// Get godoc
// @Summary Get the current page of a view
// @Tags Views
// @Produce json
// @Security BearerAuth
// @Param view path string true "View name"
// @Param X-View-Session header string false "Browser tab session"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /views/{view} [get]
func (h *ViewHandler) Get(c *gin.Context) {
	h.run(c, func(ctx context.Context, caller models.ViewCaller, view string) (*dto.ViewState, error) {
		return h.views.Get(ctx, caller, view)
	})
}

// Refresh godoc
// @Summary Refetch the records behind a view
// @Tags Views
// @Produce json
// @Security BearerAuth
// @Param view path string true "View name"
// @Success 200 {object} response.Envelope
// @Failure 502 {object} response.Envelope
// @Router /views/{view}/refresh [post]
func (h *ViewHandler) Refresh(c *gin.Context) {
	h.run(c, func(ctx context.Context, caller models.ViewCaller, view string) (*dto.ViewState, error) {
		return h.views.Refresh(ctx, caller, view)
	})
}

// SetSearch godoc
// @Summary Update the live search text
// @Tags Views
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param view path string true "View name"
// @Param payload body dto.SearchRequest true "Search payload"
// @Success 200 {object} response.Envelope
// @Router /views/{view}/search [put]
func (h *ViewHandler) SetSearch(c *gin.Context) {
	var req dto.SearchRequest
	if !bindJSON(c, &req) {
		return
	}
	h.run(c, func(ctx context.Context, caller models.ViewCaller, view string) (*dto.ViewState, error) {
		return h.views.SetSearchText(ctx, caller, view, req)
	})
}

// SetPendingField godoc
// @Summary Stage an exact-match filter
// @Tags Views
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param view path string true "View name"
// @Param payload body dto.PendingFieldRequest true "Filter payload"
// @Success 200 {object} response.Envelope
// @Router /views/{view}/pending/field [put]
func (h *ViewHandler) SetPendingField(c *gin.Context) {
	var req dto.PendingFieldRequest
	if !bindJSON(c, &req) {
		return
	}
	h.run(c, func(ctx context.Context, caller models.ViewCaller, view string) (*dto.ViewState, error) {
		return h.views.SetPendingField(ctx, caller, view, req)
	})
}

// SetPendingDateFrom godoc
// @Summary Stage the lower date bound
// @Tags Views
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param view path string true "View name"
// @Param payload body dto.PendingDateRequest true "Date payload"
// @Success 200 {object} response.Envelope
// @Router /views/{view}/pending/date-from [put]
func (h *ViewHandler) SetPendingDateFrom(c *gin.Context) {
	var req dto.PendingDateRequest
	if !bindJSON(c, &req) {
		return
	}
	h.run(c, func(ctx context.Context, caller models.ViewCaller, view string) (*dto.ViewState, error) {
		return h.views.SetPendingDateFrom(ctx, caller, view, req)
	})
}

// SetPendingDateTo godoc
// @Summary Stage the upper date bound
// @Tags Views
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param view path string true "View name"
// @Param payload body dto.PendingDateRequest true "Date payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /views/{view}/pending/date-to [put]
func (h *ViewHandler) SetPendingDateTo(c *gin.Context) {
	var req dto.PendingDateRequest
	if !bindJSON(c, &req) {
		return
	}
	h.run(c, func(ctx context.Context, caller models.ViewCaller, view string) (*dto.ViewState, error) {
		return h.views.SetPendingDateTo(ctx, caller, view, req)
	})
}

// SetPendingAcademicYear godoc
// @Summary Stage an academic year
// @Tags Views
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param view path string true "View name"
// @Param payload body dto.PendingAcademicYearRequest true "Academic year payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /views/{view}/pending/academic-year [put]
func (h *ViewHandler) SetPendingAcademicYear(c *gin.Context) {
	var req dto.PendingAcademicYearRequest
	if !bindJSON(c, &req) {
		return
	}
	h.run(c, func(ctx context.Context, caller models.ViewCaller, view string) (*dto.ViewState, error) {
		return h.views.SetPendingAcademicYear(ctx, caller, view, req)
	})
}

// Apply godoc
// @Summary Apply the staged filters
// @Tags Views
// @Produce json
// @Security BearerAuth
// @Param view path string true "View name"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /views/{view}/apply [post]
func (h *ViewHandler) Apply(c *gin.Context) {
	h.run(c, func(ctx context.Context, caller models.ViewCaller, view string) (*dto.ViewState, error) {
		return h.views.Apply(ctx, caller, view)
	})
}

// Reset godoc
// @Summary Clear the filters of a view
// @Tags Views
// @Produce json
// @Security BearerAuth
// @Param view path string true "View name"
// @Success 200 {object} response.Envelope
// @Router /views/{view}/reset [post]
func (h *ViewHandler) Reset(c *gin.Context) {
	h.run(c, func(ctx context.Context, caller models.ViewCaller, view string) (*dto.ViewState, error) {
		return h.views.Reset(ctx, caller, view)
	})
}

// Sort godoc
// @Summary Toggle the sort on a column
// @Tags Views
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param view path string true "View name"
// @Param payload body dto.SortRequest true "Sort payload"
// @Success 200 {object} response.Envelope
// @Router /views/{view}/sort [post]
func (h *ViewHandler) Sort(c *gin.Context) {
	var req dto.SortRequest
	if !bindJSON(c, &req) {
		return
	}
	h.run(c, func(ctx context.Context, caller models.ViewCaller, view string) (*dto.ViewState, error) {
		return h.views.Sort(ctx, caller, view, req)
	})
}

// SetPage godoc
// @Summary Move to another page
// @Tags Views
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param view path string true "View name"
// @Param payload body dto.PageRequest true "Page payload"
// @Success 200 {object} response.Envelope
// @Router /views/{view}/page [put]
func (h *ViewHandler) SetPage(c *gin.Context) {
	var req dto.PageRequest
	if !bindJSON(c, &req) {
		return
	}
	h.run(c, func(ctx context.Context, caller models.ViewCaller, view string) (*dto.ViewState, error) {
		return h.views.SetPage(ctx, caller, view, req)
	})
}

// SetPageSize godoc
// @Summary Change the rows per page
// @Tags Views
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param view path string true "View name"
// @Param payload body dto.PageSizeRequest true "Page size payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /views/{view}/page-size [put]
func (h *ViewHandler) SetPageSize(c *gin.Context) {
	var req dto.PageSizeRequest
	if !bindJSON(c, &req) {
		return
	}
	h.run(c, func(ctx context.Context, caller models.ViewCaller, view string) (*dto.ViewState, error) {
		return h.views.SetPageSize(ctx, caller, view, req)
	})
}

// Export godoc
// @Summary Download every filtered row of a view
// @Tags Views
// @Produce text/csv
// @Produce application/pdf
// @Security BearerAuth
// @Param view path string true "View name"
// @Param format query string false "csv or pdf" default(csv)
// @Success 200 {file} file
// @Failure 400 {object} response.Envelope
// @Router /views/{view}/export [get]
func (h *ViewHandler) Export(c *gin.Context) {
	caller, ok := callerFromContext(c)
	if !ok {
		return
	}
	format := dto.ExportFormat(c.DefaultQuery("format", string(dto.ExportFormatCSV)))
	file, err := h.exporter.Export(c.Request.Context(), caller, c.Param("view"), format)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, file.Filename, file.ContentType, file.Data)
}

func (h *ViewHandler) run(c *gin.Context, op func(ctx context.Context, caller models.ViewCaller, view string) (*dto.ViewState, error)) {
	caller, ok := callerFromContext(c)
	if !ok {
		return
	}
	state, err := op(c.Request.Context(), caller, c.Param("view"))
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetSnapshotFromCache(c, state.FromCache)
	pagination := state.Pagination
	response.JSON(c, http.StatusOK, state, &pagination, middleware.ExtractMeta(c))
}
