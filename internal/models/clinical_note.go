package models

import "time"

// ClinicalNote is the progress note written after a session. A standalone
// appointment holds at most one.
type ClinicalNote struct {
	ID            string    `db:"id" json:"id"`
	AppointmentID string    `db:"appointment_id" json:"appointment_id"`
	PatientID     string    `db:"patient_id" json:"patient_id"`
	OwnerID       string    `db:"owner_id" json:"owner_id"`
	Content       string    `db:"content" json:"content"`
	SessionStart  time.Time `db:"session_start" json:"session_start"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}

// SessionCount is one row of the monthly attended-sessions aggregation.
type SessionCount struct {
	PatientID   string `db:"patient_id" json:"patient_id"`
	PatientName string `db:"patient_name" json:"patient_name"`
	Sessions    int    `db:"sessions" json:"sessions"`
}
