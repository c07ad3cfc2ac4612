package types

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/samber/lo"
)

// DocumentType identifies which numbered document a sequence belongs to
type DocumentType string

const (
	DocumentTypeReceipt DocumentType = "RECEIPT"
)

func (d DocumentType) String() string {
	return string(d)
}

func (d DocumentType) Validate() error {
	allowed := []DocumentType{
		DocumentTypeReceipt,
	}
	if !lo.Contains(allowed, d) {
		return fmt.Errorf("invalid document type: %s", d)
	}
	return nil
}

// ExportType identifies the export document variant
type ExportType string

const (
	// ExportTypeSimplified is the v1 document type. A full VAT-invoice
	// export is a planned variant and is rejected until it exists.
	ExportTypeSimplified ExportType = "simplified"
)

func (t ExportType) String() string {
	return string(t)
}

func (t ExportType) Validate() error {
	allowed := []ExportType{
		ExportTypeSimplified,
	}
	if !lo.Contains(allowed, t) {
		return fmt.Errorf("invalid export type: %s", t)
	}
	return nil
}

// receiptNumberPadding is the minimum width of the numeric part of a receipt
// number. Values past 9999 grow to more digits, they never wrap.
const receiptNumberPadding = 4

// PeriodFromTime returns the calendar-month numbering period (YYYYMM, UTC)
// the given instant falls in.
func PeriodFromTime(t time.Time) string {
	return t.UTC().Format("200601")
}

// PeriodOfWindow returns the single numbering period covered by the
// inclusive-start/exclusive-end window, or an error when the window spans
// more than one calendar month.
func PeriodOfWindow(from, to time.Time) (string, error) {
	start := PeriodFromTime(from)
	// to is exclusive, so the last covered instant is just before it
	end := PeriodFromTime(to.Add(-time.Nanosecond))
	if start != end {
		return "", fmt.Errorf("window spans numbering periods %s and %s", start, end)
	}
	return start, nil
}

// FormatReceiptNumber renders the public receipt number for a sequence value,
// e.g. "202501-0001".
func FormatReceiptNumber(period string, value int64) string {
	return fmt.Sprintf("%s-%0*d", period, receiptNumberPadding, value)
}

// ParseReceiptSequence extracts the numeric suffix of a receipt number.
// Returns false when the text does not carry a parseable suffix.
func ParseReceiptSequence(receiptNumber string) (int64, bool) {
	idx := strings.LastIndex(receiptNumber, "-")
	if idx < 0 || idx == len(receiptNumber)-1 {
		return 0, false
	}
	value, err := strconv.ParseInt(receiptNumber[idx+1:], 10, 64)
	if err != nil {
		return 0, false
	}
	return value, true
}
