package clinical

import (
	"context"

	"github.com/google/uuid"
)

type MeasurementRepository interface {
	// Create inserts m and sets its ID and server-assigned RecordedAt.
	Create(ctx context.Context, m *Measurement) error
	MostRecent(ctx context.Context, patientID uuid.UUID) (*Measurement, error)
	Averages(ctx context.Context, patientID uuid.UUID) (*Averages, error)
	ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Measurement, int, error)
	ListAllByPatient(ctx context.Context, patientID uuid.UUID) ([]*Measurement, error)
}

type RiskAssessmentRepository interface {
	Create(ctx context.Context, ra *RiskAssessment) error
	ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*RiskAssessment, int, error)
}
