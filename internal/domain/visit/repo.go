package visit

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("visit not found")

type Repository interface {
	Create(ctx context.Context, v *Visit) error
	GetByID(ctx context.Context, tenantID, id uuid.UUID) (*Visit, error)
	ListByPatient(ctx context.Context, tenantID, patientID uuid.UUID, limit, offset int) ([]*Visit, int, error)
}
