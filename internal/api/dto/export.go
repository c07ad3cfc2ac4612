package dto

import (
	"time"

	"github.com/cabfleet/cabfleet/internal/domain/export"
	"github.com/cabfleet/cabfleet/internal/domain/numbering"
	ierr "github.com/cabfleet/cabfleet/internal/errors"
	"github.com/cabfleet/cabfleet/internal/types"
)

// AssignNumbersRequest asks the allocator to number every still-unnumbered
// PAID payment captured in [from, to)
type AssignNumbersRequest struct {
	From time.Time `json:"from" binding:"required"`
	To   time.Time `json:"to" binding:"required"`
}

func (r AssignNumbersRequest) Validate() error {
	return validateWindow(r.From, r.To)
}

// AssignNumbersResponse reports the allocation outcome
type AssignNumbersResponse struct {
	Period               string                     `json:"period"`
	StartingNumber       int64                      `json:"starting_number"`
	EndingNumber         int64                      `json:"ending_number"`
	AssignedCount        int                        `json:"assigned_count"`
	AlreadyNumberedCount int                        `json:"already_numbered_count"`
	Assigned             []numbering.AssignedNumber `json:"assigned"`
}

// NewAssignNumbersResponse creates a response from an assignment summary
func NewAssignNumbersResponse(summary *numbering.AssignmentSummary) *AssignNumbersResponse {
	return &AssignNumbersResponse{
		Period:               summary.Period,
		StartingNumber:       summary.StartingNumber,
		EndingNumber:         summary.EndingNumber,
		AssignedCount:        summary.AssignedCount,
		AlreadyNumberedCount: summary.AlreadyNumberedCount,
		Assigned:             summary.Assigned,
	}
}

// CreateExportRequest asks for a full export snapshot of one window
type CreateExportRequest struct {
	From time.Time        `json:"from" binding:"required"`
	To   time.Time        `json:"to" binding:"required"`
	Type types.ExportType `json:"type" binding:"required"`
	// IncludeAnnex requests the per-payment annex section of the rendered document
	IncludeAnnex bool `json:"include_annex"`
	// GeneratedBy is the display identifier of the requesting actor for the
	// audit trail; the actor id is taken from the request context
	GeneratedBy string `json:"generated_by" binding:"required"`
}

func (r CreateExportRequest) Validate() error {
	if err := r.Type.Validate(); err != nil {
		return ierr.WithError(err).
			WithHintf("Unsupported export type: %s", r.Type).
			Mark(ierr.ErrValidation)
	}
	if r.GeneratedBy == "" {
		return ierr.NewError("missing generated_by").
			WithHint("Generated by is required for the audit trail").
			Mark(ierr.ErrValidation)
	}
	return validateWindow(r.From, r.To)
}

// ExportSnapshotResponse carries the snapshot, its integrity fingerprint and
// the exact serialization the fingerprint was computed over
type ExportSnapshotResponse struct {
	// Reference is the short human-facing identifier of this export run,
	// e.g. EXPX1A8QZT. Generated per run and never part of the hashed
	// snapshot.
	Reference     string           `json:"reference"`
	SHA256        string           `json:"sha256"`
	Snapshot      *export.Snapshot `json:"snapshot"`
	CanonicalJSON string           `json:"canonical_json"`
}

func validateWindow(from, to time.Time) error {
	if from.IsZero() || to.IsZero() {
		return ierr.NewError("missing date range").
			WithHint("Both from and to are required").
			Mark(ierr.ErrValidation)
	}
	if !from.Before(to) {
		return ierr.NewError("invalid date range").
			WithHint("From must be before to").
			WithReportableDetails(map[string]any{
				"from": from,
				"to":   to,
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}
