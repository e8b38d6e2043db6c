package pipeline

import (
	"crypto/sha256"
	"encoding/hex"
	"math"
	"strconv"
	"strings"
)

// Fingerprint is the hex SHA-256 of "id|iso-date|amount". Merchant text is
// not part of it.
func Fingerprint(c CanonicalTransaction) string {
	s := c.ExternalID + "|" + c.DateISO() + "|" + formatAmount(c.Amount)
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// formatAmount renders the shortest round-trip representation with at least
// one fractional digit ("450" -> "450.0"), switching to exponent form below
// 1e-4 and from 1e16 upwards.
func formatAmount(f float64) string {
	switch {
	case math.IsNaN(f):
		return "nan"
	case math.IsInf(f, 1):
		return "inf"
	case math.IsInf(f, -1):
		return "-inf"
	}

	if f != 0 {
		e := strconv.FormatFloat(f, 'e', -1, 64)
		exp, _ := strconv.Atoi(e[strings.IndexByte(e, 'e')+1:])
		if exp < -4 || exp >= 16 {
			return e
		}
	}

	s := strconv.FormatFloat(f, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}
