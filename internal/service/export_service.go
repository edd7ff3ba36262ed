package service

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-library-views/internal/dto"
	"github.com/noah-isme/sma-library-views/internal/models"
	appErrors "github.com/noah-isme/sma-library-views/pkg/errors"
	"github.com/noah-isme/sma-library-views/pkg/export"
	"github.com/noah-isme/sma-library-views/pkg/viewengine"
)

type exportSource interface {
	ExportRows(ctx context.Context, caller models.ViewCaller, view string) (*ViewExport, error)
}

type tableRenderer interface {
	Render(t export.Table) ([]byte, error)
}

// ExportConfig tunes export behaviour.
type ExportConfig struct {
	Enabled bool
	MaxRows int
}

// ExportService renders the filtered rows of a view as CSV or PDF.
type ExportService struct {
	source  exportSource
	csv     tableRenderer
	pdf     tableRenderer
	metrics *MetricsService
	logger  *zap.Logger
	cfg     ExportConfig
	now     func() time.Time
}

// NewExportService constructs an ExportService.
func NewExportService(source exportSource, cfg ExportConfig, metrics *MetricsService, logger *zap.Logger, csv, pdf tableRenderer) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ExportService{source: source, csv: csv, pdf: pdf, metrics: metrics, logger: logger, cfg: cfg, now: time.Now}
}

// Export renders every row that passes the view's applied filters, in view order.
func (s *ExportService) Export(ctx context.Context, caller models.ViewCaller, view string, format dto.ExportFormat) (*dto.ExportFile, error) {
	if !s.cfg.Enabled {
		return nil, appErrors.ErrFeatureDisabled
	}
	format = dto.ExportFormat(strings.ToLower(string(format)))
	var renderer tableRenderer
	var contentType string
	switch format {
	case dto.ExportFormatCSV:
		renderer, contentType = s.csv, "text/csv"
	case dto.ExportFormatPDF:
		renderer, contentType = s.pdf, "application/pdf"
	default:
		return nil, appErrors.Clone(appErrors.ErrUnsupportedFormat, fmt.Sprintf("unsupported export format %q", format))
	}

	snapshot, err := s.source.ExportRows(ctx, caller, view)
	if err != nil {
		return nil, err
	}
	if s.cfg.MaxRows > 0 && len(snapshot.Rows) > s.cfg.MaxRows {
		return nil, appErrors.Clone(appErrors.ErrValidation,
			fmt.Sprintf("export has %d rows, limit is %d; narrow the filters", len(snapshot.Rows), s.cfg.MaxRows))
	}

	data, err := renderer.Render(buildTable(snapshot))
	if err != nil {
		s.logger.Error("export render failed", zap.String("view", view), zap.String("format", string(format)), zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}
	s.metrics.IncExport(view, string(format))

	return &dto.ExportFile{
		Filename:    fmt.Sprintf("%s-%s.%s", view, s.now().Format("20060102-150405"), format),
		ContentType: contentType,
		Data:        data,
	}, nil
}

func buildTable(snapshot *ViewExport) export.Table {
	fields := snapshot.Definition.Config.Fields
	table := export.Table{
		Title:   snapshot.Definition.Title,
		Headers: make([]string, len(fields)),
		Rows:    make([][]string, 0, len(snapshot.Rows)),
	}
	for i, f := range fields {
		table.Headers[i] = f.Heading()
	}
	for _, record := range snapshot.Rows {
		row := make([]string, len(fields))
		for i, f := range fields {
			row[i] = viewengine.FormatValue(record[f.Name])
		}
		table.Rows = append(table.Rows, row)
	}

	names := make([]string, 0, len(snapshot.Aggregates))
	for name := range snapshot.Aggregates {
		names = append(names, name)
	}
	sort.Strings(names)
	table.Summary = append(table.Summary, fmt.Sprintf("Rows: %d", len(snapshot.Rows)))
	for _, name := range names {
		table.Summary = append(table.Summary, fmt.Sprintf("%s: %s", name, strconv.FormatFloat(snapshot.Aggregates[name], 'f', -1, 64)))
	}
	return table
}
