package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/clinic-agenda-api/internal/models"
)

const appointmentSelect = `SELECT a.id, a.owner_id, a.patient_id, p.name AS patient_name, a.start_time, a.end_time, a.status, a.rrule, a.exdates, a.created_at, a.updated_at
FROM appointments a JOIN patients p ON p.id = a.patient_id`

// AppointmentRepository persists appointment series.
type AppointmentRepository struct {
	db *sqlx.DB
}

// NewAppointmentRepository constructs the repository.
func NewAppointmentRepository(db *sqlx.DB) *AppointmentRepository {
	return &AppointmentRepository{db: db}
}

func (r *AppointmentRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// ListInScope returns the owner's series that may produce an occurrence in
// the window: standalone appointments overlapping it and every recurring
// series starting no later than its end.
func (r *AppointmentRepository) ListInScope(ctx context.Context, scope models.AppointmentScope) ([]models.Appointment, error) {
	var query strings.Builder
	query.WriteString(appointmentSelect)
	query.WriteString(`
WHERE a.owner_id = $1
AND ((a.rrule IS NULL AND a.start_time < $3 AND a.end_time > $2) OR (a.rrule IS NOT NULL AND a.start_time <= $3))`)

	args := []interface{}{scope.OwnerID, scope.WindowStart, scope.WindowEnd}
	if scope.PatientID != "" {
		args = append(args, scope.PatientID)
		fmt.Fprintf(&query, " AND a.patient_id = $%d", len(args))
	}
	query.WriteString(" ORDER BY a.start_time ASC, a.id ASC")

	var items []models.Appointment
	if err := r.db.SelectContext(ctx, &items, query.String(), args...); err != nil {
		return nil, fmt.Errorf("list appointments in scope: %w", err)
	}
	return items, nil
}

// FindByID loads a series by its identifier.
func (r *AppointmentRepository) FindByID(ctx context.Context, id string) (*models.Appointment, error) {
	query := appointmentSelect + ` WHERE a.id = $1`
	var appointment models.Appointment
	if err := r.db.GetContext(ctx, &appointment, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find appointment: %w", err)
	}
	return &appointment, nil
}

// LockByID loads a series and holds a row lock until exec's transaction ends.
func (r *AppointmentRepository) LockByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Appointment, error) {
	const query = appointmentSelect + ` WHERE a.id = $1 FOR UPDATE OF a`
	var appointment models.Appointment
	if err := sqlx.GetContext(ctx, r.exec(exec), &appointment, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("lock appointment: %w", err)
	}
	return &appointment, nil
}

// Create inserts a series.
func (r *AppointmentRepository) Create(ctx context.Context, exec sqlx.ExtContext, appointment *models.Appointment) error {
	if appointment == nil {
		return fmt.Errorf("appointment payload is nil")
	}
	if appointment.ID == "" {
		appointment.ID = uuid.NewString()
	}
	if appointment.Status == "" {
		appointment.Status = models.AppointmentStatusScheduled
	}
	now := time.Now().UTC()
	if appointment.CreatedAt.IsZero() {
		appointment.CreatedAt = now
	}
	appointment.UpdatedAt = now

	const query = `INSERT INTO appointments (id, owner_id, patient_id, start_time, end_time, status, rrule, exdates, created_at, updated_at)
VALUES (:id, :owner_id, :patient_id, :start_time, :end_time, :status, :rrule, :exdates, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, appointment); err != nil {
		return fmt.Errorf("insert appointment: %w", err)
	}
	return nil
}

// UpdateExceptions replaces the stored exception list of a series.
func (r *AppointmentRepository) UpdateExceptions(ctx context.Context, exec sqlx.ExtContext, id, exdates string) error {
	const query = `UPDATE appointments SET exdates = $1, updated_at = $2 WHERE id = $3`
	result, err := r.exec(exec).ExecContext(ctx, query, exdates, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("update appointment exceptions: %w", err)
	}
	return requireAffected(result, "appointment exceptions")
}

// UpdateSchedule moves a standalone appointment.
func (r *AppointmentRepository) UpdateSchedule(ctx context.Context, id string, start, end time.Time) error {
	const query = `UPDATE appointments SET start_time = $1, end_time = $2, updated_at = $3 WHERE id = $4 AND rrule IS NULL`
	result, err := r.db.ExecContext(ctx, query, start, end, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("update appointment schedule: %w", err)
	}
	return requireAffected(result, "appointment schedule")
}

// UpdateStatus sets the status of a standalone appointment.
func (r *AppointmentRepository) UpdateStatus(ctx context.Context, id string, status models.AppointmentStatus) error {
	const query = `UPDATE appointments SET status = $1, updated_at = $2 WHERE id = $3 AND rrule IS NULL`
	result, err := r.db.ExecContext(ctx, query, status, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("update appointment status: %w", err)
	}
	return requireAffected(result, "appointment status")
}

// Delete removes a series. Clinical notes go with it through the foreign key.
func (r *AppointmentRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM appointments WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete appointment: %w", err)
	}
	return requireAffected(result, "appointment delete")
}

func requireAffected(result sql.Result, label string) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows affected: %w", label, err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
