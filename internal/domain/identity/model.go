package identity

import (
	"time"

	"github.com/google/uuid"

	"github.com/carelink/carelink/internal/platform/auth"
)

type Gender string

const (
	GenderFemale Gender = "female"
	GenderMale   Gender = "male"
	GenderOther  Gender = "other"
)

func (g Gender) Valid() bool {
	switch g {
	case GenderFemale, GenderMale, GenderOther:
		return true
	}
	return false
}

// Code is the numeric encoding used as a model feature.
func (g Gender) Code() int {
	switch g {
	case GenderMale:
		return 1
	case GenderOther:
		return 2
	default:
		return 0
	}
}

// Patient maps to the patient table. The national identifier is held only as
// digests and is never serialized.
type Patient struct {
	ID               uuid.UUID  `db:"id" json:"id"`
	Email            string     `db:"email" json:"email"`
	PasswordHash     string     `db:"password_hash" json:"-"`
	Name             string     `db:"name" json:"name"`
	HeightCM         *float64   `db:"height_cm" json:"height_cm,omitempty"`
	BirthDate        *time.Time `db:"birth_date" json:"birth_date,omitempty"`
	Gender           *Gender    `db:"gender" json:"gender,omitempty"`
	SmokingHistory   bool       `db:"smoking_history" json:"smoking_history"`
	NationalIDHash   *string    `db:"national_id_hash" json:"-"`
	NationalIDLookup *string    `db:"national_id_lookup" json:"-"`
	CreatedAt        time.Time  `db:"created_at" json:"created_at"`
}

// Clinician maps to the clinician table.
type Clinician struct {
	ID           uuid.UUID `db:"id" json:"id"`
	Email        string    `db:"email" json:"email"`
	PasswordHash string    `db:"password_hash" json:"-"`
	Name         string    `db:"name" json:"name"`
	LicenseNo    int       `db:"license_no" json:"license_no"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// PatientDigest is one row of the verify-scan.
type PatientDigest struct {
	ID     uuid.UUID
	Digest string
}

type PatientRegistration struct {
	Email          string   `json:"email"`
	Password       string   `json:"password"`
	Name           string   `json:"name"`
	NationalID     string   `json:"national_id"`
	HeightCM       *float64 `json:"height_cm"`
	BirthDate      *string  `json:"birth_date"` // YYYY-MM-DD
	Gender         *string  `json:"gender"`
	SmokingHistory bool     `json:"smoking_history"`
}

type ClinicianRegistration struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	Name      string `json:"name"`
	LicenseNo int    `json:"license_no"`
}

// Principal is an authenticated account together with its display fields.
type Principal struct {
	Identity auth.Identity `json:"identity"`
	Email    string        `json:"email"`
	Name     string        `json:"name"`
}
