package queue

import (
	"context"

	"github.com/google/uuid"
)

// Repository is the ticket store. Admission and call-next must run inside a
// transaction (db.WithTx); the implementations pick the transaction up from
// the context.
type Repository interface {
	// AllocateAndCreate atomically increments the tenant's ticket counter
	// and inserts a WAITING ticket carrying the allocated number.
	AllocateAndCreate(ctx context.Context, tenantID, visitID uuid.UUID) (*Ticket, error)
	// GetByID returns the ticket scoped to the tenant; ErrTicketNotFound on
	// miss or cross-tenant access.
	GetByID(ctx context.Context, tenantID, id uuid.UUID) (*Ticket, error)
	// ListActive returns WAITING and IN_PROGRESS tickets in admission order.
	ListActive(ctx context.Context, tenantID uuid.UUID) ([]*Ticket, error)
	// LockNextWaiting row-locks and returns the earliest WAITING ticket,
	// skipping rows locked by concurrent callers. ErrEmptyQueue when none.
	LockNextWaiting(ctx context.Context, tenantID uuid.UUID) (*Ticket, error)
	// Transition moves the ticket to state in one conditional write: the
	// update only applies while the row is in a state the machine allows as
	// a source. A concurrent writer that got there first makes the ticket
	// ineligible, so a terminal state can never be overwritten. Returns
	// ErrTicketNotFound on miss or cross-tenant access, ErrInvalidState when
	// the ticket exists but the move is not allowed.
	Transition(ctx context.Context, tenantID, id uuid.UUID, state string) (*Ticket, error)
}
