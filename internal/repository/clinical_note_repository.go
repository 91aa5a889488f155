package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/clinic-agenda-api/internal/models"
)

// ErrDuplicate is returned when a unique constraint rejects an insert.
var ErrDuplicate = errors.New("duplicate record")

// ClinicalNoteRepository persists session notes.
type ClinicalNoteRepository struct {
	db *sqlx.DB
}

// NewClinicalNoteRepository constructs the repository.
func NewClinicalNoteRepository(db *sqlx.DB) *ClinicalNoteRepository {
	return &ClinicalNoteRepository{db: db}
}

// ExistsForAppointment reports whether the appointment already has a note.
func (r *ClinicalNoteRepository) ExistsForAppointment(ctx context.Context, appointmentID string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM clinical_notes WHERE appointment_id = $1)`
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, appointmentID); err != nil {
		return false, fmt.Errorf("check clinical note: %w", err)
	}
	return exists, nil
}

// Create inserts a note. A second note for the same appointment yields ErrDuplicate.
func (r *ClinicalNoteRepository) Create(ctx context.Context, note *models.ClinicalNote) error {
	if note.ID == "" {
		note.ID = uuid.NewString()
	}
	if note.CreatedAt.IsZero() {
		note.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO clinical_notes (id, appointment_id, patient_id, owner_id, content, created_at)
VALUES (:id, :appointment_id, :patient_id, :owner_id, :content, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, note); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("create clinical note: %w", err)
	}
	return nil
}

// ListByPatient returns a patient's notes, newest first.
func (r *ClinicalNoteRepository) ListByPatient(ctx context.Context, patientID string) ([]models.ClinicalNote, error) {
	const query = `SELECT n.id, n.appointment_id, n.patient_id, n.owner_id, n.content, a.start_time AS session_start, n.created_at
FROM clinical_notes n JOIN appointments a ON a.id = n.appointment_id
WHERE n.patient_id = $1 ORDER BY n.created_at DESC`
	var notes []models.ClinicalNote
	if err := r.db.SelectContext(ctx, &notes, query, patientID); err != nil {
		return nil, fmt.Errorf("list clinical notes: %w", err)
	}
	return notes, nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
