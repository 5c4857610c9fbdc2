package careteam

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/carelink/carelink/internal/platform/apperr"
	"github.com/carelink/carelink/internal/platform/db"
)

const careLinkPKey = "care_link_pkey"

type careLinkRepoPG struct{ pool *pgxpool.Pool }

func NewCareLinkRepoPG(pool *pgxpool.Pool) CareLinkRepository {
	return &careLinkRepoPG{pool: pool}
}

func (r *careLinkRepoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

func (r *careLinkRepoPG) Add(ctx context.Context, link *CareLink) error {
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO care_link (clinician_id, patient_id)
		VALUES ($1, $2)
		RETURNING created_at`,
		link.ClinicianID, link.PatientID,
	).Scan(&link.CreatedAt)
	if db.IsUniqueViolation(err, careLinkPKey) {
		return fmt.Errorf("%w: care link", apperr.ErrAlreadyExists)
	}
	if err != nil {
		return fmt.Errorf("insert care link: %w", err)
	}
	return nil
}

func (r *careLinkRepoPG) Remove(ctx context.Context, clinicianID, patientID uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx,
		`DELETE FROM care_link WHERE clinician_id = $1 AND patient_id = $2`,
		clinicianID, patientID)
	if err != nil {
		return fmt.Errorf("delete care link: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: care link", apperr.ErrNotFound)
	}
	return nil
}

func (r *careLinkRepoPG) Exists(ctx context.Context, clinicianID, patientID uuid.UUID) (bool, error) {
	var exists bool
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM care_link WHERE clinician_id = $1 AND patient_id = $2)`,
		clinicianID, patientID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check care link: %w", err)
	}
	return exists, nil
}

func (r *careLinkRepoPG) ListPatients(ctx context.Context, clinicianID uuid.UUID) ([]*LinkedPatient, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT p.id, p.name, cl.created_at
		FROM care_link cl
		JOIN patient p ON p.id = cl.patient_id
		WHERE cl.clinician_id = $1
		ORDER BY cl.created_at, p.id`, clinicianID)
	if err != nil {
		return nil, fmt.Errorf("list linked patients: %w", err)
	}
	defer rows.Close()

	items := []*LinkedPatient{}
	for rows.Next() {
		var lp LinkedPatient
		if err := rows.Scan(&lp.ID, &lp.Name, &lp.LinkedAt); err != nil {
			return nil, err
		}
		items = append(items, &lp)
	}
	return items, rows.Err()
}
