package identity

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/carelink/carelink/internal/platform/apperr"
	"github.com/carelink/carelink/internal/platform/auth"
	"github.com/carelink/carelink/internal/platform/db"
	"github.com/carelink/carelink/internal/platform/phi"
)

// LookupMode selects how a raw national identifier is resolved to a patient.
type LookupMode string

const (
	// LookupIndex matches the keyed lookup digest against a unique index.
	LookupIndex LookupMode = "index"
	// LookupScan verifies the raw value against every stored salted digest.
	// Cost is one bcrypt comparison per patient.
	LookupScan LookupMode = "scan"
)

const minPasswordLen = 8

// registrationLockKey is the advisory lock that serializes patient
// registrations when no lookup index backs national-ID uniqueness.
const registrationLockKey int64 = 0x6361726c696e6b01

type Service struct {
	patients   PatientRepository
	clinicians ClinicianRepository
	digester   *phi.Digester
	tx         db.Transactor
	mode       LookupMode
	bcryptCost int
	logger     zerolog.Logger
	now        func() time.Time
}

type Options struct {
	Mode       LookupMode
	BcryptCost int
	Logger     zerolog.Logger
}

func NewService(patients PatientRepository, clinicians ClinicianRepository, digester *phi.Digester, tx db.Transactor, opts Options) *Service {
	mode := opts.Mode
	if mode != LookupScan && !digester.LookupEnabled() {
		mode = LookupScan
	}
	if mode == "" {
		mode = LookupIndex
	}
	return &Service{
		patients:   patients,
		clinicians: clinicians,
		digester:   digester,
		tx:         tx,
		mode:       mode,
		bcryptCost: opts.BcryptCost,
		logger:     opts.Logger,
		now:        time.Now,
	}
}

func (s *Service) Mode() LookupMode { return s.mode }

// -- Registration --

func (s *Service) RegisterPatient(ctx context.Context, reg PatientRegistration) (*Patient, error) {
	p, err := s.validatePatient(reg)
	if err != nil {
		return nil, err
	}

	digest, err := s.digester.Digest(reg.NationalID)
	if err != nil {
		return nil, err
	}
	p.NationalIDHash = &digest
	if s.digester.LookupEnabled() {
		lookup, err := s.digester.LookupDigest(reg.NationalID)
		if err != nil {
			return nil, err
		}
		p.NationalIDLookup = &lookup
	}

	p.PasswordHash, err = auth.HashPassword(reg.Password, s.bcryptCost)
	if err != nil {
		return nil, err
	}

	err = s.tx.WithTx(ctx, func(ctx context.Context) error {
		// Salted digests never collide, so without a lookup digest the
		// duplicate scan below is only sound if registrations take turns.
		if p.NationalIDLookup == nil {
			if err := s.tx.AdvisoryLock(ctx, registrationLockKey); err != nil {
				return err
			}
		}

		if _, err := s.patients.GetByEmail(ctx, p.Email); err == nil {
			return fmt.Errorf("%w: email", apperr.ErrDuplicateIdentity)
		} else if !errors.Is(err, apperr.ErrNotFound) {
			return err
		}

		if _, err := s.ResolvePatient(ctx, reg.NationalID); err == nil {
			return fmt.Errorf("%w: national id", apperr.ErrDuplicateIdentity)
		} else if !errors.Is(err, apperr.ErrNotFound) {
			return err
		}

		return s.patients.Create(ctx, p)
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Service) validatePatient(reg PatientRegistration) (*Patient, error) {
	email, err := validateAccount(reg.Email, reg.Password, reg.Name)
	if err != nil {
		return nil, err
	}
	if _, err := phi.Normalize(reg.NationalID); err != nil {
		return nil, err
	}

	p := &Patient{
		Email:          email,
		Name:           strings.TrimSpace(reg.Name),
		SmokingHistory: reg.SmokingHistory,
	}

	if reg.HeightCM != nil {
		h := *reg.HeightCM
		if math.IsNaN(h) || math.IsInf(h, 0) || h <= 0 || h > 300 {
			return nil, apperr.Validation("height_cm must be between 0 and 300")
		}
		p.HeightCM = &h
	}

	if reg.BirthDate != nil && *reg.BirthDate != "" {
		bd, err := time.Parse("2006-01-02", *reg.BirthDate)
		if err != nil {
			return nil, apperr.Validation("birth_date must be YYYY-MM-DD")
		}
		if bd.After(s.now().UTC()) {
			return nil, apperr.Validation("birth_date must not be in the future")
		}
		p.BirthDate = &bd
	}

	if reg.Gender != nil && *reg.Gender != "" {
		g := Gender(strings.ToLower(strings.TrimSpace(*reg.Gender)))
		if !g.Valid() {
			return nil, apperr.Validation("gender must be one of female, male, other")
		}
		p.Gender = &g
	}

	return p, nil
}

func (s *Service) RegisterClinician(ctx context.Context, reg ClinicianRegistration) (*Clinician, error) {
	email, err := validateAccount(reg.Email, reg.Password, reg.Name)
	if err != nil {
		return nil, err
	}
	if reg.LicenseNo <= 0 {
		return nil, apperr.Validation("license_no must be a positive integer")
	}

	c := &Clinician{
		Email:     email,
		Name:      strings.TrimSpace(reg.Name),
		LicenseNo: reg.LicenseNo,
	}
	c.PasswordHash, err = auth.HashPassword(reg.Password, s.bcryptCost)
	if err != nil {
		return nil, err
	}

	err = s.tx.WithTx(ctx, func(ctx context.Context) error {
		if _, err := s.clinicians.GetByEmail(ctx, c.Email); err == nil {
			return fmt.Errorf("%w: email", apperr.ErrDuplicateIdentity)
		} else if !errors.Is(err, apperr.ErrNotFound) {
			return err
		}
		return s.clinicians.Create(ctx, c)
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

func validateAccount(email, password, name string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return "", apperr.Validation("email is required")
	}
	if addr, err := mail.ParseAddress(email); err != nil || addr.Address != email {
		return "", apperr.Validation("email is not valid")
	}
	if len(password) < minPasswordLen {
		return "", apperr.Validation("password must be at least %d characters", minPasswordLen)
	}
	if strings.TrimSpace(name) == "" {
		return "", apperr.Validation("name is required")
	}
	return email, nil
}

// -- Authentication --

// Authenticate checks credentials against the table for role only. A missing
// account and a wrong password are indistinguishable to the caller.
func (s *Service) Authenticate(ctx context.Context, email, password string, role auth.Role) (*Principal, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	var (
		id   uuid.UUID
		hash string
		name string
	)
	switch role {
	case auth.RolePatient:
		p, err := s.patients.GetByEmail(ctx, email)
		if err != nil && !errors.Is(err, apperr.ErrNotFound) {
			return nil, err
		}
		if p != nil {
			id, hash, name = p.ID, p.PasswordHash, p.Name
		}
	case auth.RoleClinician:
		c, err := s.clinicians.GetByEmail(ctx, email)
		if err != nil && !errors.Is(err, apperr.ErrNotFound) {
			return nil, err
		}
		if c != nil {
			id, hash, name = c.ID, c.PasswordHash, c.Name
		}
	default:
		return nil, apperr.Validation("role must be patient or clinician")
	}

	if !auth.CheckPassword(hash, password) {
		return nil, apperr.ErrInvalidCredentials
	}
	return &Principal{
		Identity: auth.Identity{ID: id, Role: role},
		Email:    email,
		Name:     name,
	}, nil
}

// -- Resolution --

// FindPatientByRawIdentifier verifies raw against every stored digest in
// turn. It is O(n) in the number of patients with one bcrypt comparison per
// row, so it is only suitable for small directories.
func (s *Service) FindPatientByRawIdentifier(ctx context.Context, raw string) (*Patient, error) {
	return s.scan(ctx, raw, false)
}

func (s *Service) scan(ctx context.Context, raw string, unindexedOnly bool) (*Patient, error) {
	if _, err := phi.Normalize(raw); err != nil {
		return nil, err
	}

	var match uuid.UUID
	err := s.patients.ScanNationalIDDigests(ctx, unindexedOnly, func(d PatientDigest) bool {
		if s.digester.Verify(raw, d.Digest) {
			match = d.ID
			return true
		}
		return false
	})
	if err != nil {
		return nil, err
	}
	if match == uuid.Nil {
		return nil, fmt.Errorf("%w: patient", apperr.ErrNotFound)
	}
	return s.patients.GetByID(ctx, match)
}

// ResolvePatient maps a raw national identifier to a patient using the
// configured lookup mode. In index mode, patients registered before a lookup
// key was configured are found by scanning only the unindexed rows, and their
// lookup digest is filled in on the way.
func (s *Service) ResolvePatient(ctx context.Context, raw string) (*Patient, error) {
	if s.mode == LookupScan {
		return s.FindPatientByRawIdentifier(ctx, raw)
	}

	lookup, err := s.digester.LookupDigest(raw)
	if err != nil {
		return nil, err
	}
	p, err := s.patients.GetByNationalIDLookup(ctx, lookup)
	if err == nil || !errors.Is(err, apperr.ErrNotFound) {
		return p, err
	}

	p, err = s.scan(ctx, raw, true)
	if err != nil {
		return nil, err
	}
	err = s.tx.WithSavepoint(ctx, func(ctx context.Context) error {
		return s.patients.SetNationalIDLookup(ctx, p.ID, lookup)
	})
	if err != nil {
		s.logger.Warn().Err(err).Str("patient_id", p.ID.String()).Msg("backfilling national id lookup digest")
	} else {
		p.NationalIDLookup = &lookup
	}
	return p, nil
}

// -- Profiles --

func (s *Service) GetPatient(ctx context.Context, id uuid.UUID) (*Patient, error) {
	return s.patients.GetByID(ctx, id)
}

func (s *Service) GetClinician(ctx context.Context, id uuid.UUID) (*Clinician, error) {
	return s.clinicians.GetByID(ctx, id)
}
