package models

import "time"

// AppointmentStatus captures the lifecycle of an appointment or occurrence.
type AppointmentStatus string

const (
	AppointmentStatusScheduled AppointmentStatus = "SCHEDULED"
	AppointmentStatusAttended  AppointmentStatus = "ATTENDED"
	AppointmentStatusCanceled  AppointmentStatus = "CANCELED"
	AppointmentStatusNoShow    AppointmentStatus = "NO_SHOW"
)

// Valid reports whether the status is one of the known values.
func (s AppointmentStatus) Valid() bool {
	switch s {
	case AppointmentStatusScheduled, AppointmentStatusAttended, AppointmentStatusCanceled, AppointmentStatusNoShow:
		return true
	}
	return false
}

// Appointment is a persisted series. Without a repeat rule it is a single
// standalone appointment; with one it is the template every virtual
// occurrence is derived from.
type Appointment struct {
	ID          string            `db:"id" json:"id"`
	OwnerID     string            `db:"owner_id" json:"owner_id"`
	PatientID   string            `db:"patient_id" json:"patient_id"`
	PatientName string            `db:"patient_name" json:"patient_name,omitempty"`
	StartTime   time.Time         `db:"start_time" json:"start"`
	EndTime     time.Time         `db:"end_time" json:"end"`
	Status      AppointmentStatus `db:"status" json:"status"`
	RRule       *string           `db:"rrule" json:"rrule,omitempty"`
	ExDates     *string           `db:"exdates" json:"exdates,omitempty"`
	CreatedAt   time.Time         `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time         `db:"updated_at" json:"updated_at"`
}

// IsRecurring reports whether the appointment carries a repeat rule.
func (a Appointment) IsRecurring() bool {
	return a.RRule != nil && *a.RRule != ""
}

// Duration returns end - start.
func (a Appointment) Duration() time.Duration {
	return a.EndTime.Sub(a.StartTime)
}

// AppointmentScope narrows the series considered by a listing.
type AppointmentScope struct {
	OwnerID     string
	PatientID   string
	WindowStart time.Time
	WindowEnd   time.Time
}

// OccurrenceKind distinguishes derived occurrences from stored records.
type OccurrenceKind string

const (
	OccurrenceVirtual      OccurrenceKind = "VIRTUAL"
	OccurrenceMaterialized OccurrenceKind = "MATERIALIZED"
)

// Occurrence is a single concrete appointment instance produced by
// expansion. The set of implementations is closed to this package.
type Occurrence interface {
	Kind() OccurrenceKind
	SeriesRef() string
	Span() (start, end time.Time)
	occurrence()
}

// VirtualOccurrence is derived from a recurring series on demand and is
// never persisted.
type VirtualOccurrence struct {
	SeriesID    string
	OwnerID     string
	PatientID   string
	PatientName string
	// OriginalStart is the rule instant a detach must name.
	OriginalStart time.Time
	Start         time.Time
	End           time.Time
	Status        AppointmentStatus
}

func (v VirtualOccurrence) Kind() OccurrenceKind { return OccurrenceVirtual }

func (v VirtualOccurrence) SeriesRef() string { return v.SeriesID }

func (v VirtualOccurrence) Span() (time.Time, time.Time) { return v.Start, v.End }

func (VirtualOccurrence) occurrence() {}

// MaterializedOccurrence wraps a standalone stored appointment.
type MaterializedOccurrence struct {
	Appointment Appointment
}

func (m MaterializedOccurrence) Kind() OccurrenceKind { return OccurrenceMaterialized }

func (m MaterializedOccurrence) SeriesRef() string { return m.Appointment.ID }

func (m MaterializedOccurrence) Span() (time.Time, time.Time) {
	return m.Appointment.StartTime, m.Appointment.EndTime
}

func (MaterializedOccurrence) occurrence() {}
