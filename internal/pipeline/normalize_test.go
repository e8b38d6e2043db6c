package pipeline

import (
	"encoding/json"
	"testing"
	"time"
)

func fixedClock() time.Time {
	return time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
}

func TestNormalizer_Normalize(t *testing.T) {
	n := &Normalizer{Now: fixedClock}

	tests := []struct {
		name         string
		raw          RawRecord
		wantID       string
		wantISO      string
		wantAmount   float64
		wantMerchant string
	}{
		{
			name:         "csv strings",
			raw:          RawRecord{"id": "T1", "date": "2024-01-05", "amount": " 450.00 ", "merchant": "Starbucks"},
			wantID:       "T1",
			wantISO:      "2024-01-05T00:00:00",
			wantAmount:   450,
			wantMerchant: "Starbucks",
		},
		{
			name:       "json numbers keep their literal",
			raw:        RawRecord{"id": json.Number("123456"), "date": "2024-01-05T10:15:30", "amount": json.Number("99.5")},
			wantID:     "123456",
			wantISO:    "2024-01-05T10:15:30",
			wantAmount: 99.5,
		},
		{
			name:       "space separator and offset",
			raw:        RawRecord{"date": "2024-03-01 10:30:00+05:30", "amount": 12.0},
			wantISO:    "2024-03-01T10:30:00+05:30",
			wantAmount: 12,
		},
		{
			name:    "utc designator and fraction",
			raw:     RawRecord{"date": "2024-03-01T10:30:00.250Z"},
			wantISO: "2024-03-01T10:30:00.250000+00:00",
		},
		{
			name:    "missing fields",
			raw:     RawRecord{},
			wantISO: "2024-06-01T12:00:00",
		},
		{
			name:       "malformed date and amount fall back",
			raw:        RawRecord{"id": nil, "date": "05/01/2024", "amount": "12,50", "merchant": nil},
			wantISO:    "2024-06-01T12:00:00",
			wantAmount: 0,
		},
		{
			name:       "infinite amount reads as zero",
			raw:        RawRecord{"amount": "inf"},
			wantISO:    "2024-06-01T12:00:00",
			wantAmount: 0,
		},
		{
			name:       "nan amount reads as zero",
			raw:        RawRecord{"amount": " NaN "},
			wantISO:    "2024-06-01T12:00:00",
			wantAmount: 0,
		},
		{
			name:       "overflowing amount reads as zero",
			raw:        RawRecord{"amount": json.Number("1e400")},
			wantISO:    "2024-06-01T12:00:00",
			wantAmount: 0,
		},
		{
			name:       "bool amount",
			raw:        RawRecord{"amount": true},
			wantISO:    "2024-06-01T12:00:00",
			wantAmount: 1,
		},
		{
			name:       "nested amount reads as zero",
			raw:        RawRecord{"amount": map[string]interface{}{"value": 10}},
			wantISO:    "2024-06-01T12:00:00",
			wantAmount: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := n.Normalize(tt.raw)
			if got.ExternalID != tt.wantID {
				t.Errorf("ExternalID = %q, want %q", got.ExternalID, tt.wantID)
			}
			if iso := got.DateISO(); iso != tt.wantISO {
				t.Errorf("DateISO() = %q, want %q", iso, tt.wantISO)
			}
			if got.Amount != tt.wantAmount {
				t.Errorf("Amount = %v, want %v", got.Amount, tt.wantAmount)
			}
			if got.Merchant != tt.wantMerchant {
				t.Errorf("Merchant = %q, want %q", got.Merchant, tt.wantMerchant)
			}
		})
	}
}

func TestParseISO(t *testing.T) {
	tests := []struct {
		in        string
		wantISO   string
		wantZoned bool
		wantErr   bool
	}{
		{in: "2024-01-05", wantISO: "2024-01-05T00:00:00"},
		{in: "2024-01-05T09:07", wantISO: "2024-01-05T09:07:00"},
		{in: "2024-01-05T09:07:03.5", wantISO: "2024-01-05T09:07:03.500000"},
		{in: "2024-01-05T09:07:03.123456789", wantISO: "2024-01-05T09:07:03.123456"},
		{in: "2024-01-05T09:07:03-04:00", wantISO: "2024-01-05T09:07:03-04:00", wantZoned: true},
		{in: "2024-01-05T09:07:03+0530", wantISO: "2024-01-05T09:07:03+05:30", wantZoned: true},
		{in: "05Jan,2024", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, zoned, err := parseISO(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseISO() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if zoned != tt.wantZoned {
				t.Errorf("zoned = %v, want %v", zoned, tt.wantZoned)
			}
			if iso := formatISO(got, zoned); iso != tt.wantISO {
				t.Errorf("formatISO() = %q, want %q", iso, tt.wantISO)
			}
		})
	}
}
