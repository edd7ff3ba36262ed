package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-library-views/internal/dto"
	"github.com/noah-isme/sma-library-views/internal/models"
	"github.com/noah-isme/sma-library-views/internal/views"
	appErrors "github.com/noah-isme/sma-library-views/pkg/errors"
	"github.com/noah-isme/sma-library-views/pkg/export"
	"github.com/noah-isme/sma-library-views/pkg/viewengine"
)

type exportSourceStub struct {
	snapshot *ViewExport
	err      error
}

func (s exportSourceStub) ExportRows(ctx context.Context, caller models.ViewCaller, view string) (*ViewExport, error) {
	return s.snapshot, s.err
}

type rendererStub struct {
	table export.Table
	err   error
}

func (r *rendererStub) Render(t export.Table) ([]byte, error) {
	r.table = t
	return []byte("rendered"), r.err
}

func completedSnapshot() *ViewExport {
	def := &views.Definition{
		Name:  "completed-hours",
		Title: "Completed Library Hours",
		Config: viewengine.FieldConfig{Fields: []viewengine.Field{
			{Name: "idNumber", Label: "ID Number"},
			{Name: "minutesRendered", Label: "Minutes"},
			{Name: "dateCompleted"},
		}},
	}
	return &ViewExport{
		Definition: def,
		Rows: []viewengine.Record{
			{"idNumber": "2024-0001", "minutesRendered": 120, "dateCompleted": time.Date(2024, 10, 3, 9, 0, 0, 0, time.UTC)},
			{"idNumber": "2024-0002", "minutesRendered": 90.5, "dateCompleted": nil},
		},
		Aggregates: map[string]float64{"uniqueStudents": 2, "totalMinutes": 210.5},
	}
}

func TestExportServiceCSV(t *testing.T) {
	csv := &rendererStub{}
	svc := NewExportService(exportSourceStub{snapshot: completedSnapshot()}, ExportConfig{Enabled: true}, nil, nil, csv, &rendererStub{})
	svc.now = func() time.Time { return time.Date(2024, 10, 5, 14, 30, 0, 0, time.UTC) }

	file, err := svc.Export(context.Background(), librarian, "completed-hours", "CSV")
	require.NoError(t, err)
	assert.Equal(t, "completed-hours-20241005-143000.csv", file.Filename)
	assert.Equal(t, "text/csv", file.ContentType)

	assert.Equal(t, []string{"ID Number", "Minutes", "dateCompleted"}, csv.table.Headers)
	assert.Equal(t, [][]string{
		{"2024-0001", "120", "2024-10-03"},
		{"2024-0002", "90.5", ""},
	}, csv.table.Rows)
	assert.Equal(t, []string{"Rows: 2", "totalMinutes: 210.5", "uniqueStudents: 2"}, csv.table.Summary)
}

func TestExportServiceRealRenderers(t *testing.T) {
	svc := NewExportService(exportSourceStub{snapshot: completedSnapshot()}, ExportConfig{Enabled: true}, NewMetricsService(), nil, nil, nil)

	file, err := svc.Export(context.Background(), librarian, "completed-hours", dto.ExportFormatCSV)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(file.Data), "ID Number,Minutes,dateCompleted\n"))

	file, err = svc.Export(context.Background(), librarian, "completed-hours", dto.ExportFormatPDF)
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", file.ContentType)
	assert.True(t, strings.HasPrefix(string(file.Data), "%PDF"))
}

func TestExportServiceErrors(t *testing.T) {
	ctx := context.Background()

	disabled := NewExportService(exportSourceStub{snapshot: completedSnapshot()}, ExportConfig{}, nil, nil, nil, nil)
	_, err := disabled.Export(ctx, librarian, "completed-hours", dto.ExportFormatCSV)
	assert.ErrorIs(t, err, appErrors.ErrFeatureDisabled)

	svc := NewExportService(exportSourceStub{snapshot: completedSnapshot()}, ExportConfig{Enabled: true, MaxRows: 1}, nil, nil, nil, nil)
	_, err = svc.Export(ctx, librarian, "completed-hours", "xlsx")
	assert.ErrorIs(t, err, appErrors.ErrUnsupportedFormat)

	_, err = svc.Export(ctx, librarian, "completed-hours", dto.ExportFormatCSV)
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	denied := NewExportService(exportSourceStub{err: appErrors.ErrForbidden}, ExportConfig{Enabled: true}, nil, nil, nil, nil)
	_, err = denied.Export(ctx, librarian, "completed-hours", dto.ExportFormatPDF)
	assert.ErrorIs(t, err, appErrors.ErrForbidden)

	broken := NewExportService(exportSourceStub{snapshot: completedSnapshot()}, ExportConfig{Enabled: true}, nil, nil, &rendererStub{err: errors.New("disk full")}, nil)
	_, err = broken.Export(ctx, librarian, "completed-hours", dto.ExportFormatCSV)
	assert.ErrorIs(t, err, appErrors.ErrInternal)
}
