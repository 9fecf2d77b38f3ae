package patient

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var (
	ErrNotFound = errors.New("patient not found")
	ErrConflict = errors.New("mrn already registered for this tenant")
)

type Repository interface {
	Create(ctx context.Context, p *Patient) error
	GetByID(ctx context.Context, tenantID, id uuid.UUID) (*Patient, error)
	Update(ctx context.Context, p *Patient) error
	Delete(ctx context.Context, tenantID, id uuid.UUID) error
	// List returns patients for the tenant; when search is non-empty the
	// result is filtered to rows whose full_name, mrn, nik or bpjs_no match.
	List(ctx context.Context, tenantID uuid.UUID, search string, limit, offset int) ([]*Patient, int, error)
}
