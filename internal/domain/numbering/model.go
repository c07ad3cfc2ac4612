package numbering

import (
	"time"

	"github.com/cabfleet/cabfleet/internal/types"
)

// NumberSequence is the tenant's receipt number counter for a specific
// document type and calendar-month period. It is the only durable state the
// export core mutates. Current is monotonically non-decreasing for a given
// key and increments only inside a serializable transaction.
type NumberSequence struct {
	ID           string             `db:"id" json:"id"`
	TenantID     string             `db:"tenant_id" json:"tenant_id"`
	DocumentType types.DocumentType `db:"document_type" json:"document_type"`
	Period       string             `db:"period" json:"period"`
	Current      int64              `db:"current" json:"current"`
	CreatedAt    time.Time          `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time          `db:"updated_at" json:"updated_at"`
}

// AssignedNumber pairs a payment with the receipt number issued to it
type AssignedNumber struct {
	PaymentID     string `json:"payment_id"`
	ReceiptNumber string `json:"receipt_number"`
}

// AssignmentSummary reports the outcome of one allocation call. When nothing
// needed assignment StartingNumber and EndingNumber both equal the stored
// counter; otherwise StartingNumber is the first value issued by this call.
type AssignmentSummary struct {
	Period               string           `json:"period"`
	StartingNumber       int64            `json:"starting_number"`
	EndingNumber         int64            `json:"ending_number"`
	AssignedCount        int              `json:"assigned_count"`
	AlreadyNumberedCount int              `json:"already_numbered_count"`
	Assigned             []AssignedNumber `json:"assigned"`
}
