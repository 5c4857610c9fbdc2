package clinical

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/carelink/carelink/internal/platform/apperr"
	"github.com/carelink/carelink/internal/platform/db"
)

// -- Measurement Repository --

type measurementRepoPG struct {
	pool *pgxpool.Pool
}

func NewMeasurementRepoPG(pool *pgxpool.Pool) MeasurementRepository {
	return &measurementRepoPG{pool: pool}
}

func (r *measurementRepoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

const measurementCols = `id, patient_id, weight_kg, blood_glucose, blood_pressure, recorded_at`

func scanMeasurement(row pgx.Row) (*Measurement, error) {
	var m Measurement
	err := row.Scan(&m.ID, &m.PatientID, &m.WeightKG, &m.BloodGlucose, &m.BloodPressure, &m.RecordedAt)
	return &m, err
}

func (r *measurementRepoPG) Create(ctx context.Context, m *Measurement) error {
	m.ID = uuid.New()
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO measurement (id, patient_id, weight_kg, blood_glucose, blood_pressure)
		VALUES ($1,$2,$3,$4,$5)
		RETURNING recorded_at`,
		m.ID, m.PatientID, m.WeightKG, m.BloodGlucose, m.BloodPressure,
	).Scan(&m.RecordedAt)
	if err != nil {
		return fmt.Errorf("insert measurement: %w", err)
	}
	return nil
}

func (r *measurementRepoPG) MostRecent(ctx context.Context, patientID uuid.UUID) (*Measurement, error) {
	m, err := scanMeasurement(r.conn(ctx).QueryRow(ctx, `
		SELECT `+measurementCols+` FROM measurement
		WHERE patient_id = $1
		ORDER BY recorded_at DESC, id DESC
		LIMIT 1`, patientID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.ErrNoData
	}
	if err != nil {
		return nil, fmt.Errorf("select latest measurement: %w", err)
	}
	return m, nil
}

func (r *measurementRepoPG) Averages(ctx context.Context, patientID uuid.UUID) (*Averages, error) {
	var a Averages
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT AVG(weight_kg), AVG(blood_glucose), AVG(blood_pressure), COUNT(*)
		FROM measurement WHERE patient_id = $1`, patientID,
	).Scan(&a.WeightKG, &a.BloodGlucose, &a.BloodPressure, &a.Count)
	if err != nil {
		return nil, fmt.Errorf("average measurements: %w", err)
	}
	return &a, nil
}

func (r *measurementRepoPG) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Measurement, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM measurement WHERE patient_id = $1`, patientID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count measurements: %w", err)
	}
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+measurementCols+` FROM measurement
		WHERE patient_id = $1
		ORDER BY recorded_at DESC, id DESC
		LIMIT $2 OFFSET $3`, patientID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list measurements: %w", err)
	}
	items, err := collectMeasurements(rows)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func (r *measurementRepoPG) ListAllByPatient(ctx context.Context, patientID uuid.UUID) ([]*Measurement, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+measurementCols+` FROM measurement
		WHERE patient_id = $1
		ORDER BY recorded_at DESC, id DESC`, patientID)
	if err != nil {
		return nil, fmt.Errorf("list measurements: %w", err)
	}
	return collectMeasurements(rows)
}

func collectMeasurements(rows pgx.Rows) ([]*Measurement, error) {
	defer rows.Close()
	items := []*Measurement{}
	for rows.Next() {
		m, err := scanMeasurement(rows)
		if err != nil {
			return nil, fmt.Errorf("scan measurement: %w", err)
		}
		items = append(items, m)
	}
	return items, rows.Err()
}

// -- RiskAssessment Repository --

type riskAssessmentRepoPG struct {
	pool *pgxpool.Pool
}

func NewRiskAssessmentRepoPG(pool *pgxpool.Pool) RiskAssessmentRepository {
	return &riskAssessmentRepoPG{pool: pool}
}

func (r *riskAssessmentRepoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

const riskCols = `id, measurement_id, patient_id, hba1c_risk, heart_risk, model_version, created_at`

func (r *riskAssessmentRepoPG) Create(ctx context.Context, ra *RiskAssessment) error {
	ra.ID = uuid.New()
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO risk_assessment (id, measurement_id, patient_id, hba1c_risk, heart_risk, model_version)
		VALUES ($1,$2,$3,$4,$5,$6)
		RETURNING created_at`,
		ra.ID, ra.MeasurementID, ra.PatientID, ra.HbA1cRisk, ra.HeartRisk, ra.ModelVersion,
	).Scan(&ra.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert risk assessment: %w", err)
	}
	return nil
}

func (r *riskAssessmentRepoPG) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*RiskAssessment, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM risk_assessment WHERE patient_id = $1`, patientID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count risk assessments: %w", err)
	}
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+riskCols+` FROM risk_assessment
		WHERE patient_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`, patientID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list risk assessments: %w", err)
	}
	defer rows.Close()

	items := []*RiskAssessment{}
	for rows.Next() {
		var ra RiskAssessment
		if err := rows.Scan(&ra.ID, &ra.MeasurementID, &ra.PatientID, &ra.HbA1cRisk, &ra.HeartRisk, &ra.ModelVersion, &ra.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("scan risk assessment: %w", err)
		}
		items = append(items, &ra)
	}
	return items, total, rows.Err()
}
