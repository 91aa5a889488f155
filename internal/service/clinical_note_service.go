package service

import (
	"context"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/clinic-agenda-api/internal/dto"
	"github.com/noah-isme/clinic-agenda-api/internal/models"
	"github.com/noah-isme/clinic-agenda-api/internal/repository"
	appErrors "github.com/noah-isme/clinic-agenda-api/pkg/errors"
)

type clinicalNoteRepository interface {
	ExistsForAppointment(ctx context.Context, appointmentID string) (bool, error)
	Create(ctx context.Context, note *models.ClinicalNote) error
	ListByPatient(ctx context.Context, patientID string) ([]models.ClinicalNote, error)
}

type appointmentReader interface {
	Get(ctx context.Context, ownerID, id string) (*models.Appointment, error)
}

type patientReader interface {
	Get(ctx context.Context, ownerID, id string) (*dto.PatientResponse, error)
}

// ClinicalNoteService records session notes. Notes attach to standalone
// appointments only; an occurrence of a series must be detached first.
type ClinicalNoteService struct {
	repo         clinicalNoteRepository
	appointments appointmentReader
	patients     patientReader
	validator    *validator.Validate
	logger       *zap.Logger
}

// NewClinicalNoteService constructs the note service.
func NewClinicalNoteService(repo clinicalNoteRepository, appointments appointmentReader, patients patientReader, validate *validator.Validate, logger *zap.Logger) *ClinicalNoteService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ClinicalNoteService{repo: repo, appointments: appointments, patients: patients, validator: validate, logger: logger}
}

// Create stores the note of an appointment.
func (s *ClinicalNoteService) Create(ctx context.Context, ownerID, appointmentID string, req dto.CreateNoteRequest) (*models.ClinicalNote, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid note payload")
	}
	appointment, err := s.appointments.Get(ctx, ownerID, appointmentID)
	if err != nil {
		return nil, err
	}
	if appointment.IsRecurring() {
		return nil, appErrors.Clone(appErrors.ErrRecurringSeries, "notes attach to a single occurrence; detach it first")
	}
	exists, err := s.repo.ExistsForAppointment(ctx, appointmentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check existing note")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrNoteExists, "appointment already has a clinical note")
	}

	note := &models.ClinicalNote{
		AppointmentID: appointment.ID,
		PatientID:     appointment.PatientID,
		OwnerID:       ownerID,
		Content:       req.Content,
		SessionStart:  appointment.StartTime,
	}
	if err := s.repo.Create(ctx, note); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, appErrors.Clone(appErrors.ErrNoteExists, "appointment already has a clinical note")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create clinical note")
	}
	return note, nil
}

// ListByPatient returns the notes of one of the owner's patients.
func (s *ClinicalNoteService) ListByPatient(ctx context.Context, ownerID, patientID string) ([]models.ClinicalNote, error) {
	if _, err := s.patients.Get(ctx, ownerID, patientID); err != nil {
		return nil, err
	}
	notes, err := s.repo.ListByPatient(ctx, patientID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list clinical notes")
	}
	if notes == nil {
		notes = []models.ClinicalNote{}
	}
	return notes, nil
}
