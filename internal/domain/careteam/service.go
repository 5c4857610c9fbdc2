package careteam

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/carelink/carelink/internal/domain/clinical"
	"github.com/carelink/carelink/internal/domain/identity"
	"github.com/carelink/carelink/internal/platform/apperr"
	"github.com/carelink/carelink/internal/platform/auth"
	"github.com/carelink/carelink/internal/platform/db"
)

// PatientResolver finds a patient from a raw national identifier.
type PatientResolver interface {
	ResolvePatient(ctx context.Context, raw string) (*identity.Patient, error)
}

// HistoryReader exposes a patient's measurement history.
type HistoryReader interface {
	ListForPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*clinical.Measurement, int, error)
	ExportForPatient(ctx context.Context, patientID uuid.UUID) ([]byte, error)
}

type Service struct {
	links    CareLinkRepository
	patients PatientResolver
	history  HistoryReader
	tx       db.Transactor
	logger   zerolog.Logger
}

func NewService(links CareLinkRepository, patients PatientResolver, history HistoryReader, tx db.Transactor, logger zerolog.Logger) *Service {
	return &Service{
		links:    links,
		patients: patients,
		history:  history,
		tx:       tx,
		logger:   logger,
	}
}

func requireClinician(caller auth.Identity) error {
	if !caller.IsClinician() {
		return apperr.ErrUnauthorized
	}
	return nil
}

// AddLink links the calling clinician to the patient holding rawNationalID.
func (s *Service) AddLink(ctx context.Context, caller auth.Identity, rawNationalID string) (*CareLink, error) {
	if err := requireClinician(caller); err != nil {
		return nil, err
	}

	var link *CareLink
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		p, err := s.patients.ResolvePatient(ctx, rawNationalID)
		if err != nil {
			return err
		}
		exists, err := s.links.Exists(ctx, caller.ID, p.ID)
		if err != nil {
			return err
		}
		if exists {
			return fmt.Errorf("%w: care link", apperr.ErrAlreadyExists)
		}
		link = &CareLink{ClinicianID: caller.ID, PatientID: p.ID}
		return s.links.Add(ctx, link)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("clinician_id", caller.ID.String()).
		Str("patient_id", link.PatientID.String()).
		Msg("care link added")
	return link, nil
}

// RemoveLink deletes the link between the calling clinician and the patient
// holding rawNationalID.
func (s *Service) RemoveLink(ctx context.Context, caller auth.Identity, rawNationalID string) error {
	if err := requireClinician(caller); err != nil {
		return err
	}

	return s.tx.WithTx(ctx, func(ctx context.Context) error {
		p, err := s.patients.ResolvePatient(ctx, rawNationalID)
		if err != nil {
			return err
		}
		if err := s.links.Remove(ctx, caller.ID, p.ID); err != nil {
			return err
		}
		s.logger.Info().
			Str("clinician_id", caller.ID.String()).
			Str("patient_id", p.ID.String()).
			Msg("care link removed")
		return nil
	})
}

func (s *Service) ListPatients(ctx context.Context, caller auth.Identity) ([]*LinkedPatient, error) {
	if err := requireClinician(caller); err != nil {
		return nil, err
	}
	return s.links.ListPatients(ctx, caller.ID)
}

// requireLink reports apperr.ErrNotFound both for an unknown patient and for
// one the caller is not linked to.
func (s *Service) requireLink(ctx context.Context, caller auth.Identity, patientID uuid.UUID) error {
	if err := requireClinician(caller); err != nil {
		return err
	}
	ok, err := s.links.Exists(ctx, caller.ID, patientID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: patient", apperr.ErrNotFound)
	}
	return nil
}

func (s *Service) PatientMeasurements(ctx context.Context, caller auth.Identity, patientID uuid.UUID, limit, offset int) ([]*clinical.Measurement, int, error) {
	if err := s.requireLink(ctx, caller, patientID); err != nil {
		return nil, 0, err
	}
	return s.history.ListForPatient(ctx, patientID, limit, offset)
}

func (s *Service) ExportPatientMeasurements(ctx context.Context, caller auth.Identity, patientID uuid.UUID) ([]byte, error) {
	if err := s.requireLink(ctx, caller, patientID); err != nil {
		return nil, err
	}
	return s.history.ExportForPatient(ctx, patientID)
}
