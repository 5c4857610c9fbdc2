package clinical

import (
	"context"
	"math"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/carelink/carelink/internal/platform/apperr"
	"github.com/carelink/carelink/internal/platform/auth"
	"github.com/carelink/carelink/internal/platform/db"
)

// Plausibility ceilings for client-submitted values.
const (
	maxWeightKG      = 700
	maxBloodGlucose  = 2000
	maxBloodPressure = 300
)

// OutcomeObserver is told the status of every prediction attempt.
type OutcomeObserver interface {
	PredictionOutcome(status string)
}

type Service struct {
	measurements MeasurementRepository
	assessments  RiskAssessmentRepository
	tx           db.Transactor
	risk         *RiskAdapter
	observer     OutcomeObserver
	logger       zerolog.Logger
}

func NewService(measurements MeasurementRepository, assessments RiskAssessmentRepository, tx db.Transactor, risk *RiskAdapter, logger zerolog.Logger) *Service {
	return &Service{
		measurements: measurements,
		assessments:  assessments,
		tx:           tx,
		risk:         risk,
		logger:       logger,
	}
}

// SetOutcomeObserver attaches an optional observer for prediction outcomes.
func (s *Service) SetOutcomeObserver(o OutcomeObserver) {
	s.observer = o
}

// Record stores a measurement for the calling patient and then asks the risk
// adapter for a prediction. A failed prediction leaves the stored measurement
// in place and is reported through RecordResult.PredictionStatus.
func (s *Service) Record(ctx context.Context, caller auth.Identity, in MeasurementInput) (*RecordResult, error) {
	if !caller.IsPatient() {
		return nil, apperr.ErrUnauthorized
	}

	m := &Measurement{PatientID: caller.ID}
	var err error
	if m.WeightKG, err = requirePositive("weight", in.WeightKG, maxWeightKG); err != nil {
		return nil, err
	}
	if m.BloodGlucose, err = requirePositive("blood_glucose", in.BloodGlucose, maxBloodGlucose); err != nil {
		return nil, err
	}
	if m.BloodPressure, err = requirePositive("blood_pressure", in.BloodPressure, maxBloodPressure); err != nil {
		return nil, err
	}

	if err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		return s.measurements.Create(ctx, m)
	}); err != nil {
		return nil, err
	}

	result := &RecordResult{Measurement: m, PredictionStatus: PredictionUnavailable}
	if s.risk == nil {
		s.observe(PredictionUnavailable)
		return result, nil
	}

	pred, err := s.risk.Predict(ctx, m)
	if err != nil {
		if !IsUnavailable(err) {
			return nil, err
		}
		s.logger.Warn().Err(err).Str("measurement_id", m.ID.String()).Msg("risk prediction unavailable")
		s.observe(PredictionUnavailable)
		return result, nil
	}
	result.Prediction = pred
	result.PredictionStatus = PredictionOK
	s.observe(PredictionOK)
	return result, nil
}

func (s *Service) observe(status string) {
	if s.observer != nil {
		s.observer.PredictionOutcome(status)
	}
}

func requirePositive(field string, v *float64, ceiling float64) (float64, error) {
	if v == nil {
		return 0, apperr.Validation("%s is required", field)
	}
	if math.IsNaN(*v) || math.IsInf(*v, 0) || *v <= 0 {
		return 0, apperr.Validation("%s must be a positive number", field)
	}
	if *v > ceiling {
		return 0, apperr.Validation("%s must not exceed %g", field, ceiling)
	}
	return *v, nil
}

func (s *Service) MostRecent(ctx context.Context, patientID uuid.UUID) (*Measurement, error) {
	return s.measurements.MostRecent(ctx, patientID)
}

// Averages returns per-field means. A patient with no history gets nil means
// and a zero count rather than an error.
func (s *Service) Averages(ctx context.Context, patientID uuid.UUID) (*Averages, error) {
	return s.measurements.Averages(ctx, patientID)
}

func (s *Service) ListForPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Measurement, int, error) {
	return s.measurements.ListByPatient(ctx, patientID, limit, offset)
}

func (s *Service) ExportForPatient(ctx context.Context, patientID uuid.UUID) ([]byte, error) {
	items, err := s.measurements.ListAllByPatient(ctx, patientID)
	if err != nil {
		return nil, err
	}
	return ExportXLSX(items)
}

func (s *Service) Assessments(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*RiskAssessment, int, error) {
	return s.assessments.ListByPatient(ctx, patientID, limit, offset)
}
