package careteam

import (
	"time"

	"github.com/google/uuid"
)

// CareLink maps to the care_link table: one clinician following one patient.
type CareLink struct {
	ClinicianID uuid.UUID `db:"clinician_id" json:"clinician_id"`
	PatientID   uuid.UUID `db:"patient_id" json:"patient_id"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// LinkedPatient is a patient as listed to a linked clinician.
type LinkedPatient struct {
	ID       uuid.UUID `json:"id"`
	Name     string    `json:"name"`
	LinkedAt time.Time `json:"linked_at"`
}

// LinkRequest identifies the patient by raw national identifier.
type LinkRequest struct {
	NationalID string `json:"national_id"`
}
