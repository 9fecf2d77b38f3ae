package visit

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/rme/rme/internal/domain/patient"
	"github.com/rme/rme/internal/domain/queue"
	"github.com/rme/rme/internal/platform/db"
)

var ErrPatientNotFound = errors.New("patient not found in this tenant")

// Service handles check-in: one transaction creates the visit and admits a
// queue ticket, so a failed admission leaves no orphan visit.
type Service struct {
	repo     Repository
	patients patient.Repository
	tickets  *queue.Service
	inTx     db.TxRunner
}

func NewService(repo Repository, patients patient.Repository, tickets *queue.Service, inTx db.TxRunner) *Service {
	return &Service{repo: repo, patients: patients, tickets: tickets, inTx: inTx}
}

// CheckInResult is what the front desk shows after check-in.
type CheckInResult struct {
	Visit  *Visit        `json:"visit"`
	Ticket *queue.Ticket `json:"ticket"`
}

func (s *Service) CheckIn(ctx context.Context, tenantID, patientID uuid.UUID) (*CheckInResult, error) {
	if patientID == uuid.Nil {
		return nil, fmt.Errorf("patient_id is required")
	}

	var result CheckInResult
	err := s.inTx(ctx, func(ctx context.Context) error {
		p, err := s.patients.GetByID(ctx, tenantID, patientID)
		if err != nil {
			if errors.Is(err, patient.ErrNotFound) {
				return ErrPatientNotFound
			}
			return err
		}

		v := &Visit{TenantID: tenantID, PatientID: p.ID}
		if err := s.repo.Create(ctx, v); err != nil {
			return fmt.Errorf("create visit: %w", err)
		}

		t, err := s.tickets.Admit(ctx, tenantID, v.ID)
		if err != nil {
			return fmt.Errorf("admit ticket: %w", err)
		}
		t.PatientName = p.FullName

		result.Visit = v
		result.Ticket = t
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (s *Service) Get(ctx context.Context, tenantID, id uuid.UUID) (*Visit, error) {
	return s.repo.GetByID(ctx, tenantID, id)
}

func (s *Service) ListByPatient(ctx context.Context, tenantID, patientID uuid.UUID, limit, offset int) ([]*Visit, int, error) {
	return s.repo.ListByPatient(ctx, tenantID, patientID, limit, offset)
}
