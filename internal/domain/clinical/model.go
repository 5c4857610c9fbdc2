package clinical

import (
	"time"

	"github.com/google/uuid"
)

// Measurement maps to the measurement table. Rows are immutable once written.
type Measurement struct {
	ID            uuid.UUID `db:"id" json:"id"`
	PatientID     uuid.UUID `db:"patient_id" json:"patient_id"`
	WeightKG      float64   `db:"weight_kg" json:"weight"`
	BloodGlucose  float64   `db:"blood_glucose" json:"blood_glucose"`
	BloodPressure float64   `db:"blood_pressure" json:"blood_pressure"`
	RecordedAt    time.Time `db:"recorded_at" json:"recorded_at"`
}

// MeasurementInput is the client payload. Pointers distinguish a missing
// field from zero.
type MeasurementInput struct {
	WeightKG      *float64 `json:"weight"`
	BloodGlucose  *float64 `json:"blood_glucose"`
	BloodPressure *float64 `json:"blood_pressure"`
}

// Averages holds the per-field means over a patient's history. Means are nil
// when the patient has no measurements.
type Averages struct {
	WeightKG      *float64 `json:"weight"`
	BloodGlucose  *float64 `json:"blood_glucose"`
	BloodPressure *float64 `json:"blood_pressure"`
	Count         int      `json:"count"`
}

// RiskAssessment maps to the risk_assessment table.
type RiskAssessment struct {
	ID            uuid.UUID `db:"id" json:"id"`
	MeasurementID uuid.UUID `db:"measurement_id" json:"measurement_id"`
	PatientID     uuid.UUID `db:"patient_id" json:"patient_id"`
	HbA1cRisk     float64   `db:"hba1c_risk" json:"hba1c_risk"`
	HeartRisk     float64   `db:"heart_risk" json:"heart_risk"`
	ModelVersion  *string   `db:"model_version" json:"model_version,omitempty"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}

type Prediction struct {
	HbA1cRisk    float64 `json:"hba1c_risk"`
	HeartRisk    float64 `json:"heart_risk"`
	ModelVersion string  `json:"model_version,omitempty"`
}

const (
	PredictionOK          = "ok"
	PredictionUnavailable = "unavailable"
)

// RecordResult is the outcome of recording a measurement. Prediction is nil
// whenever PredictionStatus is PredictionUnavailable.
type RecordResult struct {
	Measurement      *Measurement `json:"history"`
	Prediction       *Prediction  `json:"prediction"`
	PredictionStatus string       `json:"prediction_status"`
}
