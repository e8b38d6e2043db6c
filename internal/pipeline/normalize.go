package pipeline

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Normalizer converts raw records from any source into CanonicalTransaction.
// It never rejects a record: a bad date becomes Now() and a bad amount 0.
type Normalizer struct {
	Now func() time.Time
}

// NewNormalizer returns a Normalizer on the UTC wall clock.
func NewNormalizer() *Normalizer {
	return &Normalizer{Now: func() time.Time { return time.Now().UTC() }}
}

// Normalize maps the id, date, amount and merchant fields of r.
func (n *Normalizer) Normalize(r RawRecord) CanonicalTransaction {
	c := CanonicalTransaction{
		ExternalID: stringField(r, "id"),
		Amount:     amountField(r, "amount"),
		Merchant:   stringField(r, "merchant"),
	}

	if t, zoned, err := parseISO(stringField(r, "date")); err == nil {
		c.Date, c.Zoned = t, zoned
	} else {
		c.Date = n.now().Truncate(time.Microsecond)
	}
	return c
}

func (n *Normalizer) now() time.Time {
	if n.Now == nil {
		return time.Now().UTC()
	}
	return n.Now()
}

// stringField returns the field as text. Absent, null, false and empty values
// all read as "".
func stringField(r RawRecord, key string) string {
	v, ok := r[key]
	if !ok || v == nil {
		return ""
	}
	switch val := v.(type) {
	case string:
		return val
	case json.Number:
		return val.String()
	case float64:
		return formatAmount(val)
	case bool:
		if val {
			return "true"
		}
		return ""
	default:
		b, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprint(val)
		}
		return string(b)
	}
}

// amountField coerces the field to float64. Anything unparsable, including
// "inf" and "nan", is 0.
func amountField(r RawRecord, key string) float64 {
	v, ok := r[key]
	if !ok || v == nil {
		return 0
	}
	switch val := v.(type) {
	case float64:
		return finite(val)
	case json.Number:
		f, err := val.Float64()
		if err != nil {
			return 0
		}
		return finite(f)
	case string:
		s := strings.TrimSpace(val)
		if s == "" {
			return 0
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0
		}
		return finite(f)
	case bool:
		if val {
			return 1
		}
		return 0
	default:
		return 0
	}
}

func finite(f float64) float64 {
	if math.IsInf(f, 0) || math.IsNaN(f) {
		return 0
	}
	return f
}
