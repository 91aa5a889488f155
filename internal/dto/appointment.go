package dto

import (
	"time"

	"github.com/noah-isme/clinic-agenda-api/internal/models"
)

// CreateAppointmentRequest creates a standalone appointment or a recurring
// series when RRule is present. Times accept RFC 3339 or naive clinic-local
// ISO-8601 values.
type CreateAppointmentRequest struct {
	PatientID string  `json:"patientId" validate:"required"`
	Start     string  `json:"start" validate:"required"`
	End       string  `json:"end" validate:"required"`
	Status    string  `json:"status" validate:"omitempty,appointment_status"`
	RRule     *string `json:"rrule" validate:"omitempty,max=512"`
}

// UpdateAppointmentRequest reschedules a standalone appointment.
type UpdateAppointmentRequest struct {
	Start string `json:"start" validate:"required"`
	End   string `json:"end" validate:"required"`
}

// MoveOccurrenceRequest detaches one occurrence of a series to a new time.
type MoveOccurrenceRequest struct {
	OriginalStart string `json:"originalStart" validate:"required"`
	Start         string `json:"start" validate:"required"`
	End           string `json:"end" validate:"required"`
}

// OverrideOccurrenceStatusRequest detaches one occurrence with a new status.
// Start and End default to the occurrence's own span.
type OverrideOccurrenceStatusRequest struct {
	OriginalStart string  `json:"originalStart" validate:"required"`
	Status        string  `json:"status" validate:"required,appointment_status"`
	Start         *string `json:"start"`
	End           *string `json:"end"`
}

// OccurrenceQuery is the window of a listing request.
type OccurrenceQuery struct {
	Start     time.Time
	End       time.Time
	PatientID string
}

// OccurrenceResponse is the wire form of an expanded occurrence. ID is set
// only for stored appointments; virtual ones are addressed by SeriesID and
// OriginalStart.
type OccurrenceResponse struct {
	ID            string    `json:"id,omitempty"`
	SeriesID      string    `json:"seriesId"`
	Kind          string    `json:"kind"`
	PatientID     string    `json:"patientId"`
	PatientName   string    `json:"patientName,omitempty"`
	Start         time.Time `json:"start"`
	End           time.Time `json:"end"`
	OriginalStart time.Time `json:"originalStart"`
	Status        string    `json:"status"`
	Recurring     bool      `json:"recurring"`
}

// OccurrenceListResponse wraps a window listing.
type OccurrenceListResponse struct {
	Start       time.Time            `json:"start"`
	End         time.Time            `json:"end"`
	Occurrences []OccurrenceResponse `json:"occurrences"`
}

// CreateNoteRequest records a clinical note for a session.
type CreateNoteRequest struct {
	Content string `json:"content" validate:"required,max=20000"`
}

// NewOccurrenceResponse converts an expanded occurrence into its wire form.
func NewOccurrenceResponse(o models.Occurrence) OccurrenceResponse {
	switch occ := o.(type) {
	case models.VirtualOccurrence:
		return OccurrenceResponse{
			SeriesID:      occ.SeriesID,
			Kind:          string(occ.Kind()),
			PatientID:     occ.PatientID,
			PatientName:   occ.PatientName,
			Start:         occ.Start,
			End:           occ.End,
			OriginalStart: occ.OriginalStart,
			Status:        string(occ.Status),
			Recurring:     true,
		}
	case models.MaterializedOccurrence:
		a := occ.Appointment
		return OccurrenceResponse{
			ID:            a.ID,
			SeriesID:      a.ID,
			Kind:          string(occ.Kind()),
			PatientID:     a.PatientID,
			PatientName:   a.PatientName,
			Start:         a.StartTime.UTC(),
			End:           a.EndTime.UTC(),
			OriginalStart: a.StartTime.UTC(),
			Status:        string(a.Status),
		}
	}
	return OccurrenceResponse{}
}
