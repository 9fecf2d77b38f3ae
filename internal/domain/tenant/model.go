package tenant

import (
	"time"

	"github.com/google/uuid"
)

// Tenant maps to the tenants table. One row per clinic; every other table in
// the system is partitioned by a reference to it.
type Tenant struct {
	ID        uuid.UUID `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Subdomain string    `db:"subdomain" json:"subdomain"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
