package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/clinic-agenda-api/internal/dto"
	"github.com/noah-isme/clinic-agenda-api/internal/models"
	appErrors "github.com/noah-isme/clinic-agenda-api/pkg/errors"
	"github.com/noah-isme/clinic-agenda-api/pkg/export"
)

// ExportFormat enumerates agenda export renderings.
type ExportFormat string

const (
	ExportFormatCSV ExportFormat = "csv"
	ExportFormatPDF ExportFormat = "pdf"
	ExportFormatICS ExportFormat = "ics"
)

type occurrenceSource interface {
	Occurrences(ctx context.Context, ownerID string, query dto.OccurrenceQuery) ([]models.Occurrence, error)
	Location() *time.Location
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type icsRenderer interface {
	Render(events []export.CalendarEvent, stamp time.Time) ([]byte, error)
}

// ExportConfig tunes export behaviour.
type ExportConfig struct {
	// UIDDomain suffixes iCalendar UIDs.
	UIDDomain string
}

// ExportResult is a rendered export ready to be streamed.
type ExportResult struct {
	Content     []byte
	ContentType string
	Filename    string
}

// ExportService renders an occurrence window as CSV, PDF or iCalendar.
type ExportService struct {
	source occurrenceSource
	csv    csvRenderer
	pdf    pdfRenderer
	ics    icsRenderer
	logger *zap.Logger
	cfg    ExportConfig
	now    func() time.Time
}

// NewExportService constructs an ExportService.
func NewExportService(source occurrenceSource, cfg ExportConfig, logger *zap.Logger, csv csvRenderer, pdf pdfRenderer, ics icsRenderer) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.UIDDomain == "" {
		cfg.UIDDomain = "clinic-agenda"
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	if ics == nil {
		ics = export.NewICSExporter("")
	}
	return &ExportService{source: source, csv: csv, pdf: pdf, ics: ics, logger: logger, cfg: cfg, now: time.Now}
}

// Occurrences renders the owner's occurrences in the window.
func (s *ExportService) Occurrences(ctx context.Context, ownerID string, query dto.OccurrenceQuery, format ExportFormat) (*ExportResult, error) {
	format = ExportFormat(strings.ToLower(string(format)))
	switch format {
	case ExportFormatCSV, ExportFormatPDF, ExportFormatICS:
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported export format %q", format))
	}

	occurrences, err := s.source.Occurrences(ctx, ownerID, query)
	if err != nil {
		return nil, err
	}
	loc := s.source.Location()
	filename := fmt.Sprintf("agenda_%s_%s.%s", query.Start.In(loc).Format("20060102"), query.End.In(loc).Format("20060102"), format)

	var (
		payload     []byte
		contentType string
	)
	switch format {
	case ExportFormatCSV:
		payload, err = s.csv.Render(s.buildDataset(occurrences, query, loc))
		contentType = "text/csv"
	case ExportFormatPDF:
		payload, err = s.pdf.Render(s.buildDataset(occurrences, query, loc))
		contentType = "application/pdf"
	case ExportFormatICS:
		payload, err = s.ics.Render(s.buildEvents(occurrences), s.now())
		contentType = "text/calendar; charset=utf-8"
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}

	s.logger.Debug("agenda exported",
		zap.String("owner_id", ownerID),
		zap.String("format", string(format)),
		zap.Int("occurrences", len(occurrences)),
	)
	return &ExportResult{Content: payload, ContentType: contentType, Filename: filename}, nil
}

var agendaHeaders = []string{"Date", "Start", "End", "Patient", "Status", "Kind"}

func (s *ExportService) buildDataset(occurrences []models.Occurrence, query dto.OccurrenceQuery, loc *time.Location) export.Dataset {
	rows := make([]map[string]string, 0, len(occurrences))
	for _, occ := range occurrences {
		resp := dto.NewOccurrenceResponse(occ)
		start, end := resp.Start.In(loc), resp.End.In(loc)
		rows = append(rows, map[string]string{
			"Date":    start.Format("2006-01-02"),
			"Start":   start.Format("15:04"),
			"End":     end.Format("15:04"),
			"Patient": resp.PatientName,
			"Status":  resp.Status,
			"Kind":    resp.Kind,
		})
	}
	return export.Dataset{
		Title:   fmt.Sprintf("Agenda %s - %s", query.Start.In(loc).Format("2006-01-02"), query.End.In(loc).Format("2006-01-02")),
		Headers: agendaHeaders,
		Rows:    rows,
	}
}

func (s *ExportService) buildEvents(occurrences []models.Occurrence) []export.CalendarEvent {
	events := make([]export.CalendarEvent, 0, len(occurrences))
	for _, occ := range occurrences {
		resp := dto.NewOccurrenceResponse(occ)
		uid := fmt.Sprintf("%s@%s", resp.ID, s.cfg.UIDDomain)
		if resp.ID == "" {
			uid = fmt.Sprintf("%s-%d@%s", resp.SeriesID, resp.OriginalStart.Unix(), s.cfg.UIDDomain)
		}
		summary := "Appointment"
		if resp.PatientName != "" {
			summary = "Appointment: " + resp.PatientName
		}
		events = append(events, export.CalendarEvent{
			UID:         uid,
			Summary:     summary,
			Description: "Status: " + resp.Status,
			Start:       resp.Start,
			End:         resp.End,
			Canceled:    resp.Status == string(models.AppointmentStatusCanceled),
		})
	}
	return events
}
