package dto

import "github.com/noah-isme/clinic-agenda-api/internal/models"

// SessionsReportResponse is the monthly attended-sessions aggregation.
type SessionsReportResponse struct {
	Year     int                   `json:"year"`
	Month    int                   `json:"month"`
	Total    int                   `json:"total"`
	Patients []models.SessionCount `json:"patients"`
}
