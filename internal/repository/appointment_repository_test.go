package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/clinic-agenda-api/internal/models"
)

var appointmentRowColumns = []string{"id", "owner_id", "patient_id", "patient_name", "start_time", "end_time", "status", "rrule", "exdates", "created_at", "updated_at"}

func TestAppointmentRepositoryListInScope(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAppointmentRepository(db)

	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	rule := "FREQ=WEEKLY"
	rows := sqlmock.NewRows(appointmentRowColumns).
		AddRow("a1", "owner-1", "p1", "Ana", start.Add(9*time.Hour), start.Add(10*time.Hour), "SCHEDULED", nil, nil, start, start).
		AddRow("a2", "owner-1", "p2", "Bruno", start.Add(-24*time.Hour), start.Add(-23*time.Hour), "SCHEDULED", rule, "2024-01-07T00:00:00Z", start, start)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE a.owner_id = $1\nAND ((a.rrule IS NULL AND a.start_time < $3 AND a.end_time > $2) OR (a.rrule IS NOT NULL AND a.start_time <= $3)) AND a.patient_id = $4 ORDER BY a.start_time ASC, a.id ASC")).
		WithArgs("owner-1", start, end, "p1").
		WillReturnRows(rows)

	items, err := repo.ListInScope(context.Background(), models.AppointmentScope{OwnerID: "owner-1", PatientID: "p1", WindowStart: start, WindowEnd: end})
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.False(t, items[0].IsRecurring())
	assert.True(t, items[1].IsRecurring())
	assert.Equal(t, "2024-01-07T00:00:00Z", *items[1].ExDates)
	assert.Equal(t, "Ana", items[0].PatientName)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAppointmentRepositoryFindByIDNotFound(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAppointmentRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE a.id = $1")).WithArgs("missing").WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByID(context.Background(), "missing")
	assert.Equal(t, sql.ErrNoRows, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAppointmentRepositoryDetachTransaction(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAppointmentRepository(db)

	start := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	rule := "FREQ=WEEKLY"
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("JOIN patients p ON p.id = a.patient_id WHERE a.id = $1 FOR UPDATE OF a")).
		WithArgs("series-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "owner_id", "patient_id", "patient_name", "start_time", "end_time", "status", "rrule", "exdates", "created_at", "updated_at"}).
			AddRow("series-1", "owner-1", "p1", "Ana", start, start.Add(time.Hour), "SCHEDULED", rule, nil, start, start))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE appointments SET exdates = $1, updated_at = $2 WHERE id = $3")).
		WithArgs("2024-01-08T09:00:00Z", sqlmock.AnyArg(), "series-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO appointments").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	ctx := context.Background()
	tx, err := db.BeginTxx(ctx, nil)
	require.NoError(t, err)

	series, err := repo.LockByID(ctx, tx, "series-1")
	require.NoError(t, err)
	assert.True(t, series.IsRecurring())
	assert.Equal(t, "Ana", series.PatientName)

	require.NoError(t, repo.UpdateExceptions(ctx, tx, "series-1", "2024-01-08T09:00:00Z"))

	detached := &models.Appointment{OwnerID: "owner-1", PatientID: "p1", StartTime: start.Add(7 * 24 * time.Hour), EndTime: start.Add(7*24*time.Hour + time.Hour)}
	require.NoError(t, repo.Create(ctx, tx, detached))
	assert.NotEmpty(t, detached.ID)
	assert.Equal(t, models.AppointmentStatusScheduled, detached.Status)

	require.NoError(t, tx.Commit())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAppointmentRepositoryUpdateStatusSkipsSeries(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAppointmentRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE appointments SET status = $1, updated_at = $2 WHERE id = $3 AND rrule IS NULL")).
		WithArgs(models.AppointmentStatusAttended, sqlmock.AnyArg(), "series-1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdateStatus(context.Background(), "series-1", models.AppointmentStatusAttended)
	assert.Equal(t, sql.ErrNoRows, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAppointmentRepositoryUpdateSchedule(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAppointmentRepository(db)

	start := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE appointments SET start_time = $1, end_time = $2")).
		WithArgs(start, start.Add(time.Hour), sqlmock.AnyArg(), "a1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.UpdateSchedule(context.Background(), "a1", start, start.Add(time.Hour)))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAppointmentRepositoryDelete(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAppointmentRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM appointments WHERE id = $1")).
		WithArgs("a1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM appointments WHERE id = $1")).
		WithArgs("a1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.Delete(context.Background(), "a1"))
	assert.Equal(t, sql.ErrNoRows, repo.Delete(context.Background(), "a1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}
