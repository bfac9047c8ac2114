package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/pulsefit/booking-api/internal/models"
	"github.com/pulsefit/booking-api/pkg/export"
	appErrors "github.com/pulsefit/booking-api/pkg/errors"
)

// ExportFormat selects the rendered schedule format.
type ExportFormat string

const (
	ExportFormatCSV ExportFormat = "csv"
	ExportFormatPDF ExportFormat = "pdf"
)

type exportBookingReader interface {
	ListForTrainerRange(ctx context.Context, trainerID string, from, to time.Time) ([]models.Booking, error)
}

type exportBlockedReader interface {
	ListForRange(ctx context.Context, trainerID string, from, to time.Time) ([]models.BlockedTime, error)
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

// ExportResult carries one rendered schedule document.
type ExportResult struct {
	Filename    string
	ContentType string
	Payload     []byte
}

// ExportService renders a trainer's schedule for a date range as CSV or PDF.
// Exports are synchronous; the rendered document streams straight back to the
// caller.
type ExportService struct {
	users    availabilityUserReader
	bookings exportBookingReader
	blocked  exportBlockedReader
	csv      csvRenderer
	pdf      pdfRenderer
	logger   *zap.Logger
}

// NewExportService constructs an ExportService.
func NewExportService(users availabilityUserReader, bookings exportBookingReader, blocked exportBlockedReader, logger *zap.Logger, csv csvRenderer, pdf pdfRenderer) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ExportService{
		users:    users,
		bookings: bookings,
		blocked:  blocked,
		csv:      csv,
		pdf:      pdf,
		logger:   logger,
	}
}

// ScheduleExport renders the trainer's bookings and blocked intervals between
// two dates inclusive.
func (s *ExportService) ScheduleExport(ctx context.Context, trainerID, startDate, endDate string, format ExportFormat) (*ExportResult, error) {
	from, err := time.Parse(dateLayout, startDate)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid start date, expected YYYY-MM-DD")
	}
	to, err := time.Parse(dateLayout, endDate)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid end date, expected YYYY-MM-DD")
	}
	if from.After(to) {
		return nil, appErrors.Clone(appErrors.ErrInvalidDateRange, "")
	}

	trainer, err := s.users.FindByID(ctx, trainerID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "trainer not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load trainer")
	}
	if !trainer.IsTrainer() {
		return nil, appErrors.Clone(appErrors.ErrNotTrainer, "")
	}

	dataset, err := s.buildDataset(ctx, trainerID, from, to)
	if err != nil {
		return nil, err
	}

	var (
		payload     []byte
		contentType string
	)
	switch format {
	case ExportFormatCSV:
		payload, err = s.csv.Render(dataset)
		contentType = "text/csv"
	case ExportFormatPDF:
		title := fmt.Sprintf("Schedule for %s (%s to %s)", trainer.FullName, startDate, endDate)
		payload, err = s.pdf.Render(dataset, title)
		contentType = "application/pdf"
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported export format %q", format))
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}

	filename := fmt.Sprintf("schedule_%s_%s_%s.%s", trainerID, startDate, endDate, format)
	s.logger.Info("schedule exported",
		zap.String("trainer_id", trainerID),
		zap.String("format", string(format)),
		zap.Int("rows", len(dataset.Rows)))
	return &ExportResult{Filename: filename, ContentType: contentType, Payload: payload}, nil
}

func (s *ExportService) buildDataset(ctx context.Context, trainerID string, from, to time.Time) (export.Dataset, error) {
	bookings, err := s.bookings.ListForTrainerRange(ctx, trainerID, from, to)
	if err != nil {
		return export.Dataset{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list bookings")
	}
	blocked, err := s.blocked.ListForRange(ctx, trainerID, from, to)
	if err != nil {
		return export.Dataset{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list blocked times")
	}

	dataset := export.Dataset{
		Headers: []string{"Date", "Start", "End", "Type", "Client", "Session", "Status", "Notes"},
	}
	for _, booking := range bookings {
		dataset.Rows = append(dataset.Rows, map[string]string{
			"Date":    booking.Date.Format(dateLayout),
			"Start":   shortTime(booking.StartTime),
			"End":     shortTime(booking.EndTime),
			"Type":    "booking",
			"Client":  booking.ClientName,
			"Session": booking.SessionType,
			"Status":  string(booking.Status),
			"Notes":   booking.Notes,
		})
	}
	for _, row := range blocked {
		dataset.Rows = append(dataset.Rows, map[string]string{
			"Date":  row.Date.Format(dateLayout),
			"Start": shortTime(row.StartTime),
			"End":   shortTime(row.EndTime),
			"Type":  "blocked",
			"Notes": row.Reason,
		})
	}
	return dataset, nil
}

func shortTime(raw string) string {
	if parsed, err := ParseTimeOfDay(raw); err == nil {
		return parsed.Short()
	}
	return raw
}
