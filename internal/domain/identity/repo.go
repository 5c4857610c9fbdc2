package identity

import (
	"context"

	"github.com/google/uuid"
)

type PatientRepository interface {
	Create(ctx context.Context, p *Patient) error
	GetByID(ctx context.Context, id uuid.UUID) (*Patient, error)
	GetByEmail(ctx context.Context, email string) (*Patient, error)
	GetByNationalIDLookup(ctx context.Context, lookup string) (*Patient, error)
	// ScanNationalIDDigests calls fn for every stored national-ID digest until
	// fn returns true or the rows are exhausted. With unindexedOnly set, only
	// rows without a lookup digest are visited.
	ScanNationalIDDigests(ctx context.Context, unindexedOnly bool, fn func(PatientDigest) bool) error
	SetNationalIDLookup(ctx context.Context, id uuid.UUID, lookup string) error
}

type ClinicianRepository interface {
	Create(ctx context.Context, c *Clinician) error
	GetByID(ctx context.Context, id uuid.UUID) (*Clinician, error)
	GetByEmail(ctx context.Context, email string) (*Clinician, error)
}
