package models

import "time"

// Patient is a person treated by a practitioner.
type Patient struct {
	ID        string     `db:"id" json:"id"`
	OwnerID   string     `db:"owner_id" json:"owner_id"`
	Name      string     `db:"name" json:"name"`
	Phone     *string    `db:"phone" json:"phone,omitempty"`
	BirthDate *time.Time `db:"birth_date" json:"birth_date,omitempty"`
	Sex       *string    `db:"sex" json:"sex,omitempty"`
	Diagnosis *string    `db:"diagnosis" json:"diagnosis,omitempty"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt time.Time  `db:"updated_at" json:"updated_at"`
}

// AgeAt returns completed years at the reference date, or nil without a birth date.
func (p Patient) AgeAt(ref time.Time) *int {
	if p.BirthDate == nil {
		return nil
	}
	birth := *p.BirthDate
	age := ref.Year() - birth.Year()
	if ref.Month() < birth.Month() || (ref.Month() == birth.Month() && ref.Day() < birth.Day()) {
		age--
	}
	return &age
}

// PatientFilter encapsulates list parameters.
type PatientFilter struct {
	OwnerID   string
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
