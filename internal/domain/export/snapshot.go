package export

// SnapshotVersion tags the snapshot document schema
const SnapshotVersion = "v1"

// Snapshot is the canonical, hashable representation of one export run.
// Struct field order below IS the serialized key order: the content hash is
// computed over this schema, never over incidental map iteration order.
// Immutable once built.
type Snapshot struct {
	Meta       SnapshotMeta       `json:"meta"`
	Vat        SnapshotVat        `json:"vat"`
	Payments   []SnapshotPayment  `json:"payments"`
	Exceptions SnapshotExceptions `json:"exceptions"`
	Annex      SnapshotAnnex      `json:"annex"`
}

// SnapshotMeta is the document header
type SnapshotMeta struct {
	Version     string            `json:"version"`
	Type        string            `json:"type"`
	PeriodFrom  string            `json:"period_from"`
	PeriodTo    string            `json:"period_to"`
	Tenant      SnapshotTenant    `json:"tenant"`
	GeneratedAt string            `json:"generated_at,omitempty"`
	GeneratedBy SnapshotActor     `json:"generated_by"`
	Numbering   SnapshotNumbering `json:"numbering"`
}

// SnapshotTenant is the operator identity block
type SnapshotTenant struct {
	Name       string  `json:"name"`
	BusinessID string  `json:"business_id"`
	VatNumber  *string `json:"vat_number,omitempty"`
}

// SnapshotActor identifies who requested the export
type SnapshotActor struct {
	ID      string `json:"id"`
	Display string `json:"display"`
}

// SnapshotNumbering summarizes the receipt numbering state of the window
type SnapshotNumbering struct {
	Period               string `json:"period"`
	StartingNumber       int64  `json:"starting_number"`
	EndingNumber         int64  `json:"ending_number"`
	AssignedCount        int    `json:"assigned_count"`
	AlreadyNumberedCount int    `json:"already_numbered_count"`
}

// SnapshotVat holds both summary bucket lists
type SnapshotVat struct {
	ByRate          []SnapshotVatBucket `json:"by_rate"`
	ByRateAndMethod []SnapshotVatBucket `json:"by_rate_and_method"`
}

// SnapshotVatBucket is one aggregated VAT line. Money fields are fixed
// 2-decimal strings.
type SnapshotVatBucket struct {
	Rate   string `json:"rate"`
	Method string `json:"method,omitempty"`
	Count  int    `json:"count"`
	Base   string `json:"base"`
	Tax    string `json:"tax"`
	Total  string `json:"total"`
}

// SnapshotPayment is one canonically ordered payment line
type SnapshotPayment struct {
	ReceiptNumber *string `json:"receipt_number"`
	PaymentID     string  `json:"payment_id"`
	CapturedAt    string  `json:"captured_at"`
	ServiceDate   *string `json:"service_date,omitempty"`
	VatRate       string  `json:"vat_rate"`
	Base          string  `json:"base"`
	Tax           string  `json:"tax"`
	Total         string  `json:"total"`
	Currency      string  `json:"currency"`
	Method        string  `json:"method,omitempty"`
	RideID        *string `json:"ride_id,omitempty"`
	DriverName    *string `json:"driver_name,omitempty"`
}

// SnapshotExceptions is the data-integrity block
type SnapshotExceptions struct {
	RidesWithoutPayments []SnapshotRideException    `json:"rides_without_payments"`
	PaymentsWithoutRide  []SnapshotPaymentException `json:"payments_without_ride"`
	Warnings             []string                   `json:"warnings"`
}

// SnapshotRideException is a completed ride with no settled payment
type SnapshotRideException struct {
	RideID     string  `json:"ride_id"`
	EndedAt    *string `json:"ended_at,omitempty"`
	DriverName string  `json:"driver_name,omitempty"`
	FareTotal  *string `json:"fare_total,omitempty"`
}

// SnapshotPaymentException is a paid payment with no ride context
type SnapshotPaymentException struct {
	PaymentID  string `json:"payment_id"`
	CapturedAt string `json:"captured_at"`
	Amount     string `json:"amount"`
	Method     string `json:"method,omitempty"`
}

// SnapshotAnnex only records whether the annex was requested in v1
type SnapshotAnnex struct {
	Enabled bool `json:"enabled"`
}
