package careteam

import (
	"context"

	"github.com/google/uuid"
)

type CareLinkRepository interface {
	Add(ctx context.Context, link *CareLink) error
	// Remove deletes the pair and reports apperr.ErrNotFound when no row matched.
	Remove(ctx context.Context, clinicianID, patientID uuid.UUID) error
	Exists(ctx context.Context, clinicianID, patientID uuid.UUID) (bool, error)
	// ListPatients returns the clinician's patients in link insertion order.
	ListPatients(ctx context.Context, clinicianID uuid.UUID) ([]*LinkedPatient, error)
}
