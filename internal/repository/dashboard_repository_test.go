package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/clinic-agenda-api/internal/models"
)

func TestDashboardRepositoryAttendedSessions(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewDashboardRepository(db)

	from := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 1, 0)
	mock.ExpectQuery(`SELECT p.id AS patient_id, p.name AS patient_name, COUNT\(a.id\) AS sessions FROM appointments a JOIN patients p .* a.rrule IS NULL`).
		WithArgs("owner-1", models.AppointmentStatusAttended, from, to).
		WillReturnRows(sqlmock.NewRows([]string{"patient_id", "patient_name", "sessions"}).
			AddRow("p1", "Ana", 4).
			AddRow("p2", "Bruno", 2))

	rows, err := repo.AttendedSessions(context.Background(), "owner-1", from, to)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, 4, rows[0].Sessions)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDashboardRepositoryAttendedSessionsError(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewDashboardRepository(db)

	mock.ExpectQuery(`SELECT p.id`).WillReturnError(errors.New("boom"))

	_, err := repo.AttendedSessions(context.Background(), "owner-1", time.Now(), time.Now())
	assert.Error(t, err)
}
