package tenant

import (
	"time"
)

// Tenant carries the fleet operator identity printed on export documents
type Tenant struct {
	ID         string     `db:"id" json:"id"`
	Name       string     `db:"name" json:"name"`
	BusinessID string     `db:"business_id" json:"business_id"`
	VatNumber  *string    `db:"vat_number" json:"vat_number,omitempty"`
	CreatedAt  time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time  `db:"updated_at" json:"updated_at"`
}
