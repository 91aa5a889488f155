package dto

import (
	"time"

	"github.com/noah-isme/clinic-agenda-api/internal/models"
)

// CreatePatientRequest registers a patient. BirthDate uses YYYY-MM-DD.
type CreatePatientRequest struct {
	Name      string  `json:"name" validate:"required,max=200"`
	Phone     *string `json:"phone" validate:"omitempty,max=40"`
	BirthDate *string `json:"birthDate" validate:"omitempty,datetime=2006-01-02"`
	Sex       *string `json:"sex" validate:"omitempty,max=20"`
	Diagnosis *string `json:"diagnosis" validate:"omitempty,max=2000"`
}

// UpdatePatientRequest patches a patient. Nil fields are left unchanged.
type UpdatePatientRequest struct {
	Name      *string `json:"name" validate:"omitempty,min=1,max=200"`
	Phone     *string `json:"phone" validate:"omitempty,max=40"`
	BirthDate *string `json:"birthDate" validate:"omitempty,datetime=2006-01-02"`
	Sex       *string `json:"sex" validate:"omitempty,max=20"`
	Diagnosis *string `json:"diagnosis" validate:"omitempty,max=2000"`
}

// PatientResponse adds derived fields to the stored patient.
type PatientResponse struct {
	models.Patient
	Age *int `json:"age,omitempty"`
}

// NewPatientResponse computes derived fields at ref.
func NewPatientResponse(p models.Patient, ref time.Time) PatientResponse {
	return PatientResponse{Patient: p, Age: p.AgeAt(ref)}
}
