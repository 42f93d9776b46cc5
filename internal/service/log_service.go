package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/craft-api/internal/models"
	appErrors "github.com/noah-isme/craft-api/pkg/errors"
	"github.com/noah-isme/craft-api/pkg/export"
)

// ActivityLogger records the outcome of account operations.
type ActivityLogger interface {
	Activity(ctx context.Context, message, identifierType, identifier string)
	Error(ctx context.Context, message, stackTrace, identifierType, identifier string)
}

type logRepository interface {
	CreateActivity(ctx context.Context, entry *models.ActivityLog) error
	CreateError(ctx context.Context, entry *models.ErrorLog) error
	ListActivity(ctx context.Context, filter models.LogFilter) ([]models.ActivityLog, int, error)
	ListErrors(ctx context.Context, filter models.LogFilter) ([]models.ErrorLog, int, error)
	FindActivity(ctx context.Context, id string) (*models.ActivityLog, error)
	FindError(ctx context.Context, id string) (*models.ErrorLog, error)
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

// Export formats supported for activity logs.
const (
	ExportFormatCSV = "csv"
	ExportFormatPDF = "pdf"
)

// maxExportRows caps a single export.
const maxExportRows = 500

// ExportFile is a rendered log export.
type ExportFile struct {
	Filename    string
	ContentType string
	Data        []byte
}

// LogService persists activity/error logs and mirrors them to zap.
type LogService struct {
	repo   logRepository
	logger *zap.Logger
	csv    csvRenderer
	pdf    pdfRenderer
	now    func() time.Time
}

// NewLogService constructs a LogService.
func NewLogService(repo logRepository, logger *zap.Logger, csv csvRenderer, pdf pdfRenderer) *LogService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &LogService{repo: repo, logger: logger, csv: csv, pdf: pdf, now: func() time.Time { return time.Now().UTC() }}
}

// Activity records a successful operation. Persistence failures are logged, not returned.
func (s *LogService) Activity(ctx context.Context, message, identifierType, identifier string) {
	s.logger.Info(message, zap.String("identifier_type", identifierType), zap.String("identifier", identifier))
	if s.repo == nil {
		return
	}
	entry := &models.ActivityLog{
		LogDate:        s.now(),
		IdentifierType: optional(identifierType),
		Identifier:     optional(identifier),
		LogDetails:     message,
	}
	if err := s.repo.CreateActivity(context.WithoutCancel(ctx), entry); err != nil {
		s.logger.Warn("failed to persist activity log", zap.Error(err))
	}
}

// Error records a failed operation. Persistence failures are logged, not returned.
func (s *LogService) Error(ctx context.Context, message, stackTrace, identifierType, identifier string) {
	s.logger.Warn(message, zap.String("identifier_type", identifierType), zap.String("identifier", identifier))
	if s.repo == nil {
		return
	}
	entry := &models.ErrorLog{
		LogDate:        s.now(),
		IdentifierType: optional(identifierType),
		Identifier:     optional(identifier),
		LogDetails:     message,
		StackTrace:     optional(stackTrace),
	}
	if err := s.repo.CreateError(context.WithoutCancel(ctx), entry); err != nil {
		s.logger.Warn("failed to persist error log", zap.Error(err))
	}
}

// ListActivity returns paginated activity logs.
func (s *LogService) ListActivity(ctx context.Context, filter models.LogFilter) ([]models.ActivityLog, *models.Pagination, error) {
	logs, total, err := s.repo.ListActivity(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list activity logs")
	}
	return logs, logPagination(filter, total), nil
}

// ListErrors returns paginated error logs.
func (s *LogService) ListErrors(ctx context.Context, filter models.LogFilter) ([]models.ErrorLog, *models.Pagination, error) {
	logs, total, err := s.repo.ListErrors(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list error logs")
	}
	return logs, logPagination(filter, total), nil
}

// GetActivity returns a single activity log entry.
func (s *LogService) GetActivity(ctx context.Context, id string) (*models.ActivityLog, error) {
	entry, err := s.repo.FindActivity(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "Activity log not found", "failed to load activity log")
	}
	return entry, nil
}

// GetError returns a single error log entry.
func (s *LogService) GetError(ctx context.Context, id string) (*models.ErrorLog, error) {
	entry, err := s.repo.FindError(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "Error log not found", "failed to load error log")
	}
	return entry, nil
}

// ExportActivity renders matching activity logs as CSV or PDF.
func (s *LogService) ExportActivity(ctx context.Context, filter models.LogFilter, format string) (*ExportFile, error) {
	format = strings.ToLower(strings.TrimSpace(format))
	if format == "" {
		format = ExportFormatCSV
	}
	if format != ExportFormatCSV && format != ExportFormatPDF {
		return nil, appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf")
	}

	filter.Page = 1
	filter.PageSize = maxExportRows
	logs, _, err := s.repo.ListActivity(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load activity logs")
	}

	dataset := export.Dataset{Headers: []string{"Date", "Identifier Type", "Identifier", "Details"}}
	for _, entry := range logs {
		dataset.Rows = append(dataset.Rows, map[string]string{
			"Date":            entry.LogDate.Format(time.RFC3339),
			"Identifier Type": deref(entry.IdentifierType),
			"Identifier":      deref(entry.Identifier),
			"Details":         entry.LogDetails,
		})
	}

	stamp := s.now().Format("20060102-150405")
	switch format {
	case ExportFormatPDF:
		data, err := s.pdf.Render(dataset, "Activity log")
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf")
		}
		return &ExportFile{Filename: fmt.Sprintf("activity-%s.pdf", stamp), ContentType: "application/pdf", Data: data}, nil
	default:
		data, err := s.csv.Render(dataset)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv")
		}
		return &ExportFile{Filename: fmt.Sprintf("activity-%s.csv", stamp), ContentType: "text/csv", Data: data}, nil
	}
}

func logPagination(filter models.LogFilter, total int) *models.Pagination {
	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 || pageSize > 500 {
		pageSize = 50
	}
	return &models.Pagination{Page: page, PageSize: pageSize, TotalCount: total}
}

func deref(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}
