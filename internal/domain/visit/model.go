package visit

import (
	"time"

	"github.com/google/uuid"
)

// Visit records one patient attendance; check-in creates it together with a
// queue ticket.
type Visit struct {
	ID        uuid.UUID `db:"id" json:"id"`
	TenantID  uuid.UUID `db:"tenant_id" json:"tenant_id"`
	PatientID uuid.UUID `db:"patient_id" json:"patient_id"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
