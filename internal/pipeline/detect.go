package pipeline

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/dvloznov/family-ledger/internal/domain"
	"github.com/rs/zerolog"
)

// Detection is the outcome of format detection for one upload.
type Detection struct {
	Format  Format
	Records []RawRecord
}

// Detector tries JSON, then CSV, then PDF text, then the optional model.
type Detector struct {
	extractor TextExtractor
	model     StatementModel
	log       zerolog.Logger
}

// NewDetector creates a Detector. model may be nil.
func NewDetector(extractor TextExtractor, model StatementModel, log zerolog.Logger) *Detector {
	if extractor == nil {
		extractor = NewPDFTextExtractor()
	}
	return &Detector{extractor: extractor, model: model, log: log}
}

// Detect returns the records of the first strategy that yields any, or
// domain.ErrUnparsableFile.
func (d *Detector) Detect(ctx context.Context, content []byte) (Detection, error) {
	if text, ok := decodeText(content); ok {
		if records := parseJSONRecords(text); len(records) > 0 {
			return Detection{Format: FormatJSON, Records: records}, nil
		}
		if records := parseCSVRecords(text); len(records) > 0 {
			return Detection{Format: FormatCSV, Records: records}, nil
		}
	}

	text, err := d.extractor.ExtractText(content)
	if err != nil {
		d.log.Debug().Err(err).Msg("PDF text extraction failed")
	} else if records := TokenizeStatement(text); len(records) > 0 {
		return Detection{Format: FormatPDF, Records: records}, nil
	}

	if d.model != nil && looksLikePDF(content) {
		records, err := d.model.ExtractRecords(ctx, content)
		if err != nil {
			d.log.Warn().Err(err).Msg("Statement model fallback failed")
		} else if len(records) > 0 {
			return Detection{Format: FormatPDFModel, Records: records}, nil
		}
	}

	return Detection{Format: FormatUnknown}, domain.ErrUnparsableFile
}

// decodeText reports false for content that is not valid UTF-8.
func decodeText(content []byte) (string, bool) {
	if len(content) == 0 || !utf8.Valid(content) {
		return "", false
	}
	return string(content), true
}

// parseJSONRecords accepts a top-level array or an object with a
// "transactions" array. Non-object elements become empty records.
func parseJSONRecords(text string) []RawRecord {
	dec := json.NewDecoder(strings.NewReader(text))
	dec.UseNumber()

	var parsed interface{}
	if err := dec.Decode(&parsed); err != nil {
		return nil
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil
	}

	var items []interface{}
	switch v := parsed.(type) {
	case []interface{}:
		items = v
	case map[string]interface{}:
		list, ok := v["transactions"].([]interface{})
		if !ok {
			return nil
		}
		items = list
	default:
		return nil
	}

	records := make([]RawRecord, 0, len(items))
	for _, item := range items {
		obj, ok := item.(map[string]interface{})
		if !ok {
			obj = map[string]interface{}{}
		}
		records = append(records, RawRecord(obj))
	}
	return records
}

// parseCSVRecords reads a header row and maps each following row onto it.
// Reading stops at the first malformed row; earlier rows are kept.
func parseCSVRecords(text string) []RawRecord {
	r := csv.NewReader(strings.NewReader(strings.TrimPrefix(text, "\ufeff")))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	header, err := r.Read()
	if err != nil {
		return nil
	}

	var records []RawRecord
	for {
		row, err := r.Read()
		if err != nil {
			break
		}
		rec := make(RawRecord, len(header))
		for i, name := range header {
			if i < len(row) {
				rec[name] = row[i]
			}
		}
		records = append(records, rec)
	}
	return records
}

// String implements fmt.Stringer for log fields.
func (d Detection) String() string {
	return fmt.Sprintf("%s:%d", d.Format, len(d.Records))
}
