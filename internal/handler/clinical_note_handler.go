package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/clinic-agenda-api/internal/dto"
	"github.com/noah-isme/clinic-agenda-api/internal/models"
	appErrors "github.com/noah-isme/clinic-agenda-api/pkg/errors"
	"github.com/noah-isme/clinic-agenda-api/pkg/response"
)

type clinicalNoteService interface {
	Create(ctx context.Context, ownerID, appointmentID string, req dto.CreateNoteRequest) (*models.ClinicalNote, error)
	ListByPatient(ctx context.Context, ownerID, patientID string) ([]models.ClinicalNote, error)
}

// ClinicalNoteHandler exposes session note endpoints.
type ClinicalNoteHandler struct {
	notes clinicalNoteService
}

// NewClinicalNoteHandler constructs ClinicalNoteHandler.
func NewClinicalNoteHandler(notes clinicalNoteService) *ClinicalNoteHandler {
	return &ClinicalNoteHandler{notes: notes}
}

// Create godoc
// @Summary Record the clinical note of a session
// @Description Only standalone or detached appointments accept notes.
// @Tags Notes
// @Accept json
// @Produce json
// @Param id path string true "Appointment ID"
// @Param payload body dto.CreateNoteRequest true "Note payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /appointments/{id}/notes [post]
func (h *ClinicalNoteHandler) Create(c *gin.Context) {
	ownerID, ok := ownerFromContext(c)
	if !ok {
		return
	}
	var req dto.CreateNoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	note, err := h.notes.Create(c.Request.Context(), ownerID, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, note)
}

// ListByPatient godoc
// @Summary List the clinical history of a patient
// @Tags Notes
// @Produce json
// @Param id path string true "Patient ID"
// @Success 200 {object} response.Envelope
// @Router /patients/{id}/notes [get]
func (h *ClinicalNoteHandler) ListByPatient(c *gin.Context) {
	ownerID, ok := ownerFromContext(c)
	if !ok {
		return
	}
	notes, err := h.notes.ListByPatient(c.Request.Context(), ownerID, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, notes, nil)
}
