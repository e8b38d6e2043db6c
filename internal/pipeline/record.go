package pipeline

import (
	"time"
)

// RawRecord is one untyped record as produced by a format strategy. Values are
// strings (CSV, tokenizer), json.Number, float64, bool, nil or nested JSON.
type RawRecord map[string]interface{}

// Format identifies the strategy that produced the records of an upload.
type Format string

const (
	FormatJSON     Format = "json"
	FormatCSV      Format = "csv"
	FormatPDF      Format = "pdf"
	FormatPDFModel Format = "pdf_model"
	FormatUnknown  Format = "unknown"
)

// CanonicalTransaction is the source-independent shape of one record.
type CanonicalTransaction struct {
	ExternalID string
	Date       time.Time
	// Zoned is set when the source date carried a UTC offset; it controls the
	// ISO rendering used in the fingerprint.
	Zoned    bool
	Amount   float64
	Merchant string
}

// DateISO renders Date the way the fingerprint expects.
func (c CanonicalTransaction) DateISO() string {
	return formatISO(c.Date, c.Zoned)
}
