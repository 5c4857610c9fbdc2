package identity

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

// -- Patient Repository --

type patientRepoPG struct {
	pool *pgxpool.Pool
}

func NewPatientRepo(pool *pgxpool.Pool) PatientRepository {
	return &patientRepoPG{pool: pool}
}

func (r *patientRepoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

const patientCols = `id, email, password_hash, name, height_cm, birth_date, gender,
	smoking_history, national_id_hash, national_id_lookup, created_at`

func (r *patientRepoPG) Create(ctx context.Context, p *Patient) error {
	p.ID = uuid.New()
	var gender *string
	if p.Gender != nil {
		g := string(*p.Gender)
		gender = &g
	}
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO patient (
			id, email, password_hash, name, height_cm, birth_date, gender,
			smoking_history, national_id_hash, national_id_lookup
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		RETURNING created_at`,
		p.ID, p.Email, p.PasswordHash, p.Name, p.HeightCM, p.BirthDate, gender,
		p.SmokingHistory, p.NationalIDHash, p.NationalIDLookup,
	).Scan(&p.CreatedAt)
	if db.IsUniqueViolation(err, "") {
		return fmt.Errorf("%w: patient", apperr.ErrDuplicateIdentity)
	}
	if err != nil {
		return fmt.Errorf("insert patient: %w", err)
	}
	return nil
}

func (r *patientRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	return scanPatient(r.conn(ctx).QueryRow(ctx, `SELECT `+patientCols+` FROM patient WHERE id = $1`, id))
}

func (r *patientRepoPG) GetByEmail(ctx context.Context, email string) (*Patient, error) {
	return scanPatient(r.conn(ctx).QueryRow(ctx, `SELECT `+patientCols+` FROM patient WHERE email = $1`, email))
}

func (r *patientRepoPG) GetByNationalIDLookup(ctx context.Context, lookup string) (*Patient, error) {
	return scanPatient(r.conn(ctx).QueryRow(ctx, `SELECT `+patientCols+` FROM patient WHERE national_id_lookup = $1`, lookup))
}

func (r *patientRepoPG) ScanNationalIDDigests(ctx context.Context, unindexedOnly bool, fn func(PatientDigest) bool) error {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, national_id_hash FROM patient
		WHERE national_id_hash IS NOT NULL
		  AND (NOT $1 OR national_id_lookup IS NULL)
		ORDER BY created_at`, unindexedOnly)
	if err != nil {
		return fmt.Errorf("scan national id digests: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var d PatientDigest
		if err := rows.Scan(&d.ID, &d.Digest); err != nil {
			return fmt.Errorf("scan national id digests: %w", err)
		}
		if fn(d) {
			return nil
		}
	}
	return rows.Err()
}

func (r *patientRepoPG) SetNationalIDLookup(ctx context.Context, id uuid.UUID, lookup string) error {
	tag, err := r.conn(ctx).Exec(ctx, `UPDATE patient SET national_id_lookup = $2 WHERE id = $1`, id, lookup)
	if db.IsUniqueViolation(err, "") {
		return fmt.Errorf("%w: national id lookup", apperr.ErrDuplicateIdentity)
	}
	if err != nil {
		return fmt.Errorf("update patient lookup: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: patient", apperr.ErrNotFound)
	}
	return nil
}

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	var gender *string
	err := row.Scan(
		&p.ID, &p.Email, &p.PasswordHash, &p.Name, &p.HeightCM, &p.BirthDate, &gender,
		&p.SmokingHistory, &p.NationalIDHash, &p.NationalIDLookup, &p.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: patient", apperr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("select patient: %w", err)
	}
	if gender != nil {
		g := Gender(*gender)
		p.Gender = &g
	}
	return &p, nil
}

// -- Clinician Repository --

type clinicianRepoPG struct {
	pool *pgxpool.Pool
}

func NewClinicianRepo(pool *pgxpool.Pool) ClinicianRepository {
	return &clinicianRepoPG{pool: pool}
}

func (r *clinicianRepoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

const clinicianCols = `id, email, password_hash, name, license_no, created_at`

func (r *clinicianRepoPG) Create(ctx context.Context, c *Clinician) error {
	c.ID = uuid.New()
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO clinician (id, email, password_hash, name, license_no)
		VALUES ($1,$2,$3,$4,$5)
		RETURNING created_at`,
		c.ID, c.Email, c.PasswordHash, c.Name, c.LicenseNo,
	).Scan(&c.CreatedAt)
	if db.IsUniqueViolation(err, "") {
		return fmt.Errorf("%w: clinician", apperr.ErrDuplicateIdentity)
	}
	if err != nil {
		return fmt.Errorf("insert clinician: %w", err)
	}
	return nil
}

func (r *clinicianRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Clinician, error) {
	return scanClinician(r.conn(ctx).QueryRow(ctx, `SELECT `+clinicianCols+` FROM clinician WHERE id = $1`, id))
}

func (r *clinicianRepoPG) GetByEmail(ctx context.Context, email string) (*Clinician, error) {
	return scanClinician(r.conn(ctx).QueryRow(ctx, `SELECT `+clinicianCols+` FROM clinician WHERE email = $1`, email))
}

func scanClinician(row pgx.Row) (*Clinician, error) {
	var c Clinician
	err := row.Scan(&c.ID, &c.Email, &c.PasswordHash, &c.Name, &c.LicenseNo, &c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: clinician", apperr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("select clinician: %w", err)
	}
	return &c, nil
}
