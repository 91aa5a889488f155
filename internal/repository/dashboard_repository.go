package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/clinic-agenda-api/internal/models"
)

// DashboardRepository runs aggregation queries for the dashboard.
type DashboardRepository struct {
	db *sqlx.DB
}

// NewDashboardRepository constructs the repository.
func NewDashboardRepository(db *sqlx.DB) *DashboardRepository {
	return &DashboardRepository{db: db}
}

// AttendedSessions counts attended standalone appointments per patient in [from, to).
func (r *DashboardRepository) AttendedSessions(ctx context.Context, ownerID string, from, to time.Time) ([]models.SessionCount, error) {
	const query = `SELECT p.id AS patient_id, p.name AS patient_name, COUNT(a.id) AS sessions
FROM appointments a JOIN patients p ON p.id = a.patient_id
WHERE a.owner_id = $1 AND a.status = $2 AND a.rrule IS NULL AND a.start_time >= $3 AND a.start_time < $4
GROUP BY p.id, p.name
ORDER BY sessions DESC, p.name ASC`
	var rows []models.SessionCount
	if err := r.db.SelectContext(ctx, &rows, query, ownerID, models.AppointmentStatusAttended, from, to); err != nil {
		return nil, fmt.Errorf("count attended sessions: %w", err)
	}
	return rows, nil
}
