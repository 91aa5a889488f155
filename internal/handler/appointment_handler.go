package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/clinic-agenda-api/internal/dto"
	"github.com/noah-isme/clinic-agenda-api/internal/middleware"
	"github.com/noah-isme/clinic-agenda-api/internal/models"
	appErrors "github.com/noah-isme/clinic-agenda-api/pkg/errors"
	"github.com/noah-isme/clinic-agenda-api/pkg/response"
)

type appointmentService interface {
	Location() *time.Location
	ListOccurrences(ctx context.Context, ownerID string, query dto.OccurrenceQuery) (*dto.OccurrenceListResponse, bool, error)
	CreateSeries(ctx context.Context, ownerID string, req dto.CreateAppointmentRequest) (*models.Appointment, error)
	Get(ctx context.Context, ownerID, id string) (*models.Appointment, error)
	Update(ctx context.Context, ownerID, id string, req dto.UpdateAppointmentRequest) (*models.Appointment, error)
	CheckIn(ctx context.Context, ownerID, id string) (*models.Appointment, error)
	Cancel(ctx context.Context, ownerID, id string) (*models.Appointment, error)
	MarkNoShow(ctx context.Context, ownerID, id string) (*models.Appointment, error)
	Delete(ctx context.Context, ownerID, id string) error
	MoveOccurrence(ctx context.Context, ownerID, seriesID string, req dto.MoveOccurrenceRequest) (*models.Appointment, error)
	OverrideOccurrenceStatus(ctx context.Context, ownerID, seriesID string, req dto.OverrideOccurrenceStatusRequest) (*models.Appointment, error)
}

// AppointmentHandler exposes series, occurrence and detach endpoints.
type AppointmentHandler struct {
	service appointmentService
}

// NewAppointmentHandler constructs AppointmentHandler.
func NewAppointmentHandler(service appointmentService) *AppointmentHandler {
	return &AppointmentHandler{service: service}
}

// ListOccurrences godoc
// @Summary List occurrences in a window
// @Description Expands recurring series and merges standalone appointments overlapping [start, end).
// @Tags Occurrences
// @Produce json
// @Param start query string true "Window start (RFC 3339, clinic-local ISO-8601 or YYYY-MM-DD)"
// @Param end query string true "Window end"
// @Param patient_id query string false "Restrict to one patient"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /occurrences [get]
func (h *AppointmentHandler) ListOccurrences(c *gin.Context) {
	ownerID, ok := ownerFromContext(c)
	if !ok {
		return
	}
	query, err := h.windowQuery(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	result, cacheHit, err := h.service.ListOccurrences(c.Request.Context(), ownerID, query)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, cacheHit)
	middleware.SetMeta(c, "count", len(result.Occurrences))
	response.JSON(c, http.StatusOK, result, nil, middleware.ExtractMeta(c))
}

// Create godoc
// @Summary Create appointment or recurring series
// @Tags Appointments
// @Accept json
// @Produce json
// @Param payload body dto.CreateAppointmentRequest true "Appointment payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /appointments [post]
func (h *AppointmentHandler) Create(c *gin.Context) {
	ownerID, ok := ownerFromContext(c)
	if !ok {
		return
	}
	var req dto.CreateAppointmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	appointment, err := h.service.CreateSeries(c.Request.Context(), ownerID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, appointment)
}

// Get godoc
// @Summary Get appointment
// @Tags Appointments
// @Produce json
// @Param id path string true "Appointment ID"
// @Success 200 {object} response.Envelope
// @Router /appointments/{id} [get]
func (h *AppointmentHandler) Get(c *gin.Context) {
	ownerID, ok := ownerFromContext(c)
	if !ok {
		return
	}
	appointment, err := h.service.Get(c.Request.Context(), ownerID, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, appointment, nil)
}

// Update godoc
// @Summary Reschedule a standalone appointment
// @Tags Appointments
// @Accept json
// @Produce json
// @Param id path string true "Appointment ID"
// @Param payload body dto.UpdateAppointmentRequest true "New schedule"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /appointments/{id} [patch]
func (h *AppointmentHandler) Update(c *gin.Context) {
	ownerID, ok := ownerFromContext(c)
	if !ok {
		return
	}
	var req dto.UpdateAppointmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	appointment, err := h.service.Update(c.Request.Context(), ownerID, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, appointment, nil)
}

// Delete godoc
// @Summary Delete appointment or series
// @Tags Appointments
// @Param id path string true "Appointment ID"
// @Success 204
// @Router /appointments/{id} [delete]
func (h *AppointmentHandler) Delete(c *gin.Context) {
	ownerID, ok := ownerFromContext(c)
	if !ok {
		return
	}
	if err := h.service.Delete(c.Request.Context(), ownerID, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// CheckIn godoc
// @Summary Mark a standalone appointment attended
// @Tags Appointments
// @Produce json
// @Param id path string true "Appointment ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /appointments/{id}/checkin [post]
func (h *AppointmentHandler) CheckIn(c *gin.Context) {
	h.transition(c, h.service.CheckIn)
}

// Cancel godoc
// @Summary Cancel a standalone appointment
// @Tags Appointments
// @Produce json
// @Param id path string true "Appointment ID"
// @Success 200 {object} response.Envelope
// @Router /appointments/{id}/cancel [post]
func (h *AppointmentHandler) Cancel(c *gin.Context) {
	h.transition(c, h.service.Cancel)
}

// NoShow godoc
// @Summary Mark a standalone appointment as missed
// @Tags Appointments
// @Produce json
// @Param id path string true "Appointment ID"
// @Success 200 {object} response.Envelope
// @Router /appointments/{id}/no-show [post]
func (h *AppointmentHandler) NoShow(c *gin.Context) {
	h.transition(c, h.service.MarkNoShow)
}

// MoveOccurrence godoc
// @Summary Move one occurrence of a series
// @Description Detaches the occurrence starting at originalStart into a standalone appointment at the new time.
// @Tags Occurrences
// @Accept json
// @Produce json
// @Param id path string true "Series ID"
// @Param payload body dto.MoveOccurrenceRequest true "Move payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /appointments/{id}/occurrences/move [post]
func (h *AppointmentHandler) MoveOccurrence(c *gin.Context) {
	ownerID, ok := ownerFromContext(c)
	if !ok {
		return
	}
	var req dto.MoveOccurrenceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	appointment, err := h.service.MoveOccurrence(c.Request.Context(), ownerID, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, appointment)
}

// OverrideOccurrenceStatus godoc
// @Summary Change the status of one occurrence of a series
// @Tags Occurrences
// @Accept json
// @Produce json
// @Param id path string true "Series ID"
// @Param payload body dto.OverrideOccurrenceStatusRequest true "Status payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /appointments/{id}/occurrences/status [post]
func (h *AppointmentHandler) OverrideOccurrenceStatus(c *gin.Context) {
	ownerID, ok := ownerFromContext(c)
	if !ok {
		return
	}
	var req dto.OverrideOccurrenceStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	appointment, err := h.service.OverrideOccurrenceStatus(c.Request.Context(), ownerID, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, appointment)
}

func (h *AppointmentHandler) transition(c *gin.Context, apply func(ctx context.Context, ownerID, id string) (*models.Appointment, error)) {
	ownerID, ok := ownerFromContext(c)
	if !ok {
		return
	}
	appointment, err := apply(c.Request.Context(), ownerID, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, appointment, nil)
}

func (h *AppointmentHandler) windowQuery(c *gin.Context) (dto.OccurrenceQuery, error) {
	return parseWindowQuery(c, h.service.Location())
}

func parseWindowQuery(c *gin.Context, loc *time.Location) (dto.OccurrenceQuery, error) {
	rawStart, rawEnd := c.Query("start"), c.Query("end")
	if rawStart == "" || rawEnd == "" {
		return dto.OccurrenceQuery{}, appErrors.Clone(appErrors.ErrValidation, "start and end are required")
	}
	start, err := parseWindowBound(rawStart, loc)
	if err != nil {
		return dto.OccurrenceQuery{}, appErrors.Clone(appErrors.ErrValidation, "invalid start")
	}
	end, err := parseWindowBound(rawEnd, loc)
	if err != nil {
		return dto.OccurrenceQuery{}, appErrors.Clone(appErrors.ErrValidation, "invalid end")
	}
	return dto.OccurrenceQuery{
		Start:     start,
		End:       end,
		PatientID: strings.TrimSpace(c.Query("patient_id")),
	}, nil
}
