package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/clinic-agenda-api/internal/dto"
	"github.com/noah-isme/clinic-agenda-api/internal/models"
	appErrors "github.com/noah-isme/clinic-agenda-api/pkg/errors"
)

func newExportFixture(t *testing.T) *ExportService {
	session := models.Appointment{
		ID:          "single",
		OwnerID:     "owner-1",
		PatientID:   "patient-1",
		PatientName: "Ana",
		StartTime:   time.Date(2024, 1, 3, 9, 0, 0, 0, time.UTC),
		EndTime:     time.Date(2024, 1, 3, 10, 0, 0, 0, time.UTC),
		Status:      models.AppointmentStatusCanceled,
	}
	f := newAppointmentFixture(t, weeklySeries("s1"), session)
	svc := NewExportService(f.svc, ExportConfig{}, zap.NewNop(), nil, nil, nil)
	svc.now = func() time.Time { return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC) }
	return svc
}

func TestExportServiceCSV(t *testing.T) {
	svc := newExportFixture(t)

	result, err := svc.Occurrences(context.Background(), "owner-1", januaryWindow, "CSV")
	require.NoError(t, err)
	assert.Equal(t, "text/csv", result.ContentType)
	assert.Equal(t, "agenda_20240101_20240201.csv", result.Filename)

	lines := strings.Split(strings.TrimSpace(string(result.Content)), "\n")
	require.Len(t, lines, 6)
	assert.Equal(t, "Date,Start,End,Patient,Status,Kind", lines[0])
	assert.Equal(t, "2024-01-01,10:00,11:00,Ana,SCHEDULED,VIRTUAL", lines[1])
	assert.Equal(t, "2024-01-03,09:00,10:00,Ana,CANCELED,MATERIALIZED", lines[2])
}

func TestExportServicePDF(t *testing.T) {
	svc := newExportFixture(t)

	result, err := svc.Occurrences(context.Background(), "owner-1", januaryWindow, ExportFormatPDF)
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", result.ContentType)
	assert.True(t, strings.HasPrefix(string(result.Content), "%PDF"))
}

func TestExportServiceICS(t *testing.T) {
	svc := newExportFixture(t)

	result, err := svc.Occurrences(context.Background(), "owner-1", januaryWindow, ExportFormatICS)
	require.NoError(t, err)
	body := string(result.Content)
	assert.Contains(t, body, "BEGIN:VCALENDAR")
	assert.Equal(t, 5, strings.Count(body, "BEGIN:VEVENT"))
	assert.Contains(t, body, "single@clinic-agenda")
	assert.Contains(t, body, "s1-1704103200@clinic-agenda")
	assert.Contains(t, body, "CANCELLED")
}

func TestExportServiceRejectsUnknownFormat(t *testing.T) {
	svc := newExportFixture(t)

	_, err := svc.Occurrences(context.Background(), "owner-1", januaryWindow, "xlsx")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	_, err = svc.Occurrences(context.Background(), "owner-1", dto.OccurrenceQuery{Start: januaryWindow.End, End: januaryWindow.Start}, ExportFormatCSV)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}
