package dto

import (
	"time"

	"github.com/noah-isme/sma-library-views/internal/models"
	"github.com/noah-isme/sma-library-views/pkg/viewengine"
)

// ViewSummary describes a view the caller may open.
type ViewSummary struct {
	Name      string             `json:"name"`
	Title     string             `json:"title"`
	Fields    []viewengine.Field `json:"fields"`
	DateField string             `json:"date_field,omitempty"`
	PageSizes []int              `json:"page_sizes"`
}

// ViewState is the visible state of one view session.
type ViewState struct {
	View               string                `json:"view"`
	Title              string                `json:"title"`
	Rows               []viewengine.Record   `json:"rows"`
	TotalFilteredCount int                   `json:"total_filtered_count"`
	Aggregates         map[string]float64    `json:"aggregates"`
	Pagination         models.Pagination     `json:"pagination"`
	Applied            viewengine.FilterSpec `json:"applied"`
	Pending            viewengine.FilterSpec `json:"pending"`
	LoadedAt           time.Time             `json:"loaded_at"`
	FromCache          bool                  `json:"from_cache"`
}

// SearchRequest updates the live search text. An empty text clears it.
type SearchRequest struct {
	Text string `json:"text" validate:"max=200"`
}

// PendingFieldRequest stages an exact-match filter. An empty value clears it.
type PendingFieldRequest struct {
	Field string `json:"field" validate:"required,max=64"`
	Value string `json:"value" validate:"max=200"`
}

// PendingDateRequest stages one bound of the date range as YYYY-MM-DD or
// RFC 3339. An empty date clears the bound.
type PendingDateRequest struct {
	Date string `json:"date" validate:"omitempty,max=40"`
}

// PendingAcademicYearRequest stages an academic year such as "2024-2025".
// An empty value clears it.
type PendingAcademicYearRequest struct {
	AcademicYear string `json:"academic_year" validate:"omitempty,len=9"`
}

// SortRequest toggles the sort on a field.
type SortRequest struct {
	Field string `json:"field" validate:"required,max=64"`
}

// PageRequest moves to a zero-based page.
type PageRequest struct {
	PageIndex int `json:"page_index"`
}

// PageSizeRequest changes the number of rows per page.
type PageSizeRequest struct {
	PageSize int `json:"page_size" validate:"required,gt=0"`
}

// ExportFormat enumerates the supported export encodings.
type ExportFormat string

const (
	ExportFormatCSV ExportFormat = "csv"
	ExportFormatPDF ExportFormat = "pdf"
)

// ExportFile is a rendered export ready to be streamed.
type ExportFile struct {
	Filename    string
	ContentType string
	Data        []byte
}
