package queue

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/rme/rme/internal/platform/db"
)

// Service is the queue dispatcher. Every mutation runs inside one transaction
// so that number allocation, the row lock taken by call-next and the state
// write commit or roll back together.
type Service struct {
	repo Repository
	inTx db.TxRunner
}

func NewService(repo Repository, inTx db.TxRunner) *Service {
	return &Service{repo: repo, inTx: inTx}
}

// Admit creates a WAITING ticket for the visit, allocating the next dense
// number for the tenant.
func (s *Service) Admit(ctx context.Context, tenantID, visitID uuid.UUID) (*Ticket, error) {
	if tenantID == uuid.Nil {
		return nil, fmt.Errorf("tenant_id is required")
	}
	var t *Ticket
	err := s.inTx(ctx, func(ctx context.Context) error {
		var err error
		t, err = s.repo.AllocateAndCreate(ctx, tenantID, visitID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return t, nil
}

// CallNext atomically claims the earliest WAITING ticket and moves it to
// IN_PROGRESS. Concurrent calls claim distinct tickets; ErrEmptyQueue when
// there is nothing to claim.
func (s *Service) CallNext(ctx context.Context, tenantID uuid.UUID) (*Ticket, error) {
	var t *Ticket
	err := s.inTx(ctx, func(ctx context.Context) error {
		locked, err := s.repo.LockNextWaiting(ctx, tenantID)
		if err != nil {
			return err
		}
		t, err = s.repo.Transition(ctx, tenantID, locked.ID, StateInProgress)
		return err
	})
	if err != nil {
		return nil, err
	}
	return t, nil
}

// Complete moves the ticket to DONE.
func (s *Service) Complete(ctx context.Context, tenantID, id uuid.UUID) (*Ticket, error) {
	return s.transition(ctx, tenantID, id, StateDone)
}

// Skip moves the ticket to SKIPPED.
func (s *Service) Skip(ctx context.Context, tenantID, id uuid.UUID) (*Ticket, error) {
	return s.transition(ctx, tenantID, id, StateSkipped)
}

// transition delegates the state-machine check to the store's conditional
// write. Reading the state first and deciding in memory would let two
// concurrent callers both observe a non-terminal state and both write; the
// single compare-and-swap cannot lose that race.
func (s *Service) transition(ctx context.Context, tenantID, id uuid.UUID, state string) (*Ticket, error) {
	var t *Ticket
	err := s.inTx(ctx, func(ctx context.Context) error {
		var err error
		t, err = s.repo.Transition(ctx, tenantID, id, state)
		return err
	})
	if err != nil {
		return nil, err
	}
	return t, nil
}

// ListActive returns the tenant's WAITING and IN_PROGRESS tickets in
// admission order.
func (s *Service) ListActive(ctx context.Context, tenantID uuid.UUID) ([]*Ticket, error) {
	return s.repo.ListActive(ctx, tenantID)
}

// Get returns a single ticket scoped to the tenant.
func (s *Service) Get(ctx context.Context, tenantID, id uuid.UUID) (*Ticket, error) {
	return s.repo.GetByID(ctx, tenantID, id)
}
