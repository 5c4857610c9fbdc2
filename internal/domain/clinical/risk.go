package clinical

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/carelink/carelink/internal/domain/identity"
	"github.com/carelink/carelink/internal/platform/apperr"
	"github.com/carelink/carelink/internal/platform/scoring"
)

// hypertensionSystolic is the systolic pressure (mmHg) at or above which the
// hypertension feature is set.
const hypertensionSystolic = 140

// ProfileSource supplies the patient attributes the model needs.
type ProfileSource interface {
	GetPatient(ctx context.Context, id uuid.UUID) (*identity.Patient, error)
}

// RiskAdapter turns a committed measurement into advisory risk scores. Every
// failure is reported as apperr.ErrPredictionUnavailable; the measurement it
// was given is never affected.
type RiskAdapter struct {
	profiles    ProfileSource
	scorer      scoring.Scorer
	assessments RiskAssessmentRepository
	timeout     time.Duration
	logger      zerolog.Logger
}

func NewRiskAdapter(profiles ProfileSource, scorer scoring.Scorer, assessments RiskAssessmentRepository, timeout time.Duration, logger zerolog.Logger) *RiskAdapter {
	return &RiskAdapter{
		profiles:    profiles,
		scorer:      scorer,
		assessments: assessments,
		timeout:     timeout,
		logger:      logger,
	}
}

// Predict scores m under the adapter's timeout and persists the result.
// A persistence failure is logged and the scores are still returned.
func (a *RiskAdapter) Predict(ctx context.Context, m *Measurement) (*Prediction, error) {
	patient, err := a.profiles.GetPatient(ctx, m.PatientID)
	if err != nil {
		return nil, fmt.Errorf("%w: loading profile: %v", apperr.ErrPredictionUnavailable, err)
	}

	features, err := BuildFeatures(patient, m)
	if err != nil {
		return nil, err
	}

	scoreCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	score, err := a.scorer.Score(scoreCtx, features)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrPredictionUnavailable, err)
	}

	pred := &Prediction{HbA1cRisk: score.HbA1cRisk, HeartRisk: score.HeartRisk, ModelVersion: score.ModelVersion}

	ra := &RiskAssessment{
		MeasurementID: m.ID,
		PatientID:     m.PatientID,
		HbA1cRisk:     score.HbA1cRisk,
		HeartRisk:     score.HeartRisk,
	}
	if score.ModelVersion != "" {
		v := score.ModelVersion
		ra.ModelVersion = &v
	}
	if err := a.assessments.Create(ctx, ra); err != nil {
		a.logger.Error().Err(err).
			Str("measurement_id", m.ID.String()).
			Msg("persisting risk assessment")
	}
	return pred, nil
}

// BuildFeatures derives the model features for m. Missing height, birth date
// or gender make a prediction impossible.
func BuildFeatures(p *identity.Patient, m *Measurement) (scoring.FeatureVector, error) {
	var missing []string
	if p.HeightCM == nil || *p.HeightCM <= 0 {
		missing = append(missing, "height")
	}
	if p.BirthDate == nil {
		missing = append(missing, "birth_date")
	}
	if p.Gender == nil {
		missing = append(missing, "gender")
	}
	if len(missing) > 0 {
		return scoring.FeatureVector{}, fmt.Errorf("%w: profile missing %v", apperr.ErrPredictionUnavailable, missing)
	}

	heightM := *p.HeightCM / 100
	return scoring.FeatureVector{
		Age:          AgeAt(*p.BirthDate, m.RecordedAt),
		BMI:          m.WeightKG / (heightM * heightM),
		Gender:       p.Gender.Code(),
		Hypertension: m.BloodPressure >= hypertensionSystolic,
		Smoking:      p.SmokingHistory,
		BloodGlucose: m.BloodGlucose,
	}, nil
}

// AgeAt returns completed years between birth and the UTC calendar date of
// asOf. A 29 February birthday is reached on 1 March in common years.
func AgeAt(birth, asOf time.Time) int {
	by, bm, bd := birth.Date()
	ay, am, ad := asOf.UTC().Date()

	age := ay - by
	if am < bm || (am == bm && ad < bd) {
		age--
	}
	if age < 0 {
		return 0
	}
	return age
}

// IsUnavailable reports whether err is the prediction failure channel.
func IsUnavailable(err error) bool {
	return errors.Is(err, apperr.ErrPredictionUnavailable)
}
