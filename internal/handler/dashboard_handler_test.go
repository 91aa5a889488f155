package handler

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/clinic-agenda-api/internal/dto"
	"github.com/noah-isme/clinic-agenda-api/internal/service"
)

type fakeDashboardSrv struct {
	resp      *dto.SessionsReportResponse
	hit       bool
	err       error
	lastYear  int
	lastMonth int
}

func (f *fakeDashboardSrv) Sessions(_ context.Context, _ string, year, month int) (*dto.SessionsReportResponse, bool, error) {
	f.lastYear, f.lastMonth = year, month
	return f.resp, f.hit, f.err
}

func TestDashboardHandlerSessions(t *testing.T) {
	srv := &fakeDashboardSrv{resp: &dto.SessionsReportResponse{Year: 2024, Month: 2, Total: 6}, hit: true}
	h := NewDashboardHandler(srv)

	c, rec := newTestContext(http.MethodGet, "/dashboard/sessions?year=2024&month=2", nil, "owner-1")
	h.Sessions(c)

	require.Equal(t, http.StatusOK, rec.Code)
	envelope := decodeEnvelope(t, rec)
	assert.Equal(t, true, envelope.Meta["cache_hit"])
	assert.Contains(t, envelope.Meta, "processing_time_ms")
	assert.Equal(t, 2024, srv.lastYear)
	assert.Equal(t, 2, srv.lastMonth)
}

func TestDashboardHandlerSessionsDefaultsToCurrentMonth(t *testing.T) {
	srv := &fakeDashboardSrv{resp: &dto.SessionsReportResponse{}}
	h := NewDashboardHandler(srv)

	c, rec := newTestContext(http.MethodGet, "/dashboard/sessions", nil, "owner-1")
	h.Sessions(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Zero(t, srv.lastYear)
	assert.Zero(t, srv.lastMonth)
}

func TestDashboardHandlerSessionsInvalidMonth(t *testing.T) {
	h := NewDashboardHandler(&fakeDashboardSrv{})

	c, rec := newTestContext(http.MethodGet, "/dashboard/sessions?month=feb", nil, "owner-1")
	h.Sessions(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

type fakeExportSrv struct {
	lastFormat service.ExportFormat
	lastQuery  dto.OccurrenceQuery
}

func (f *fakeExportSrv) Occurrences(_ context.Context, _ string, query dto.OccurrenceQuery, format service.ExportFormat) (*service.ExportResult, error) {
	f.lastFormat, f.lastQuery = format, query
	return &service.ExportResult{Content: []byte("BEGIN:VCALENDAR"), ContentType: "text/calendar; charset=utf-8", Filename: "agenda_20240101_20240201.ics"}, nil
}

func TestExportHandlerAgenda(t *testing.T) {
	srv := &fakeExportSrv{}
	h := NewExportHandler(srv, time.UTC)

	c, rec := newTestContext(http.MethodGet, "/occurrences/export?start=2024-01-01&end=2024-02-01&format=ics", nil, "owner-1")
	h.Agenda(c)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, service.ExportFormatICS, srv.lastFormat)
	assert.Equal(t, "text/calendar; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "agenda_20240101_20240201.ics")
	assert.Equal(t, "BEGIN:VCALENDAR", rec.Body.String())
}

func TestExportHandlerDefaultsToCSV(t *testing.T) {
	srv := &fakeExportSrv{}
	h := NewExportHandler(srv, nil)

	c, _ := newTestContext(http.MethodGet, "/occurrences/export?start=2024-01-01&end=2024-02-01", nil, "owner-1")
	h.Agenda(c)

	assert.Equal(t, service.ExportFormatCSV, srv.lastFormat)
}

type fakePinger struct{ err error }

func (f fakePinger) PingContext(context.Context) error { return f.err }

func TestMetricsHandlerReady(t *testing.T) {
	c, rec := newTestContext(http.MethodGet, "/ready", nil, "")
	NewMetricsHandler(nil, fakePinger{}).Ready(c)
	assert.Equal(t, http.StatusOK, rec.Code)

	c, rec = newTestContext(http.MethodGet, "/ready", nil, "")
	NewMetricsHandler(nil, fakePinger{err: errors.New("down")}).Ready(c)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestMetricsHandlerPrometheus(t *testing.T) {
	c, rec := newTestContext(http.MethodGet, "/metrics", nil, "")
	NewMetricsHandler(service.NewMetricsService(), nil).Prometheus(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "# HELP")
}
