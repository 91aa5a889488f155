package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/clinic-agenda-api/internal/models"
)

func TestClinicalNoteRepositoryExists(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewClinicalNoteRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS (SELECT 1 FROM clinical_notes WHERE appointment_id = $1)")).
		WithArgs("a1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	exists, err := repo.ExistsForAppointment(context.Background(), "a1")
	require.NoError(t, err)
	assert.True(t, exists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClinicalNoteRepositoryCreateDuplicate(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewClinicalNoteRepository(db)

	mock.ExpectExec("INSERT INTO clinical_notes").WillReturnError(&pq.Error{Code: "23505"})

	err := repo.Create(context.Background(), &models.ClinicalNote{AppointmentID: "a1", PatientID: "p1", Content: "ok"})
	assert.ErrorIs(t, err, ErrDuplicate)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClinicalNoteRepositoryListByPatient(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewClinicalNoteRepository(db)

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("WHERE n.patient_id = $1 ORDER BY n.created_at DESC")).
		WithArgs("p1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "appointment_id", "patient_id", "owner_id", "content", "session_start", "created_at"}).
			AddRow("n1", "a1", "p1", "owner-1", "progressing", now, now))

	notes, err := repo.ListByPatient(context.Background(), "p1")
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Equal(t, "progressing", notes[0].Content)
	assert.NoError(t, mock.ExpectationsWereMet())
}
