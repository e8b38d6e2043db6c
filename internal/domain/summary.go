package domain

import (
	"github.com/shopspring/decimal"
)

// Summary lists a user's unpaid transactions in a date window and who to pay.
type Summary struct {
	Unpaid []Transaction `json:"unpaid"`
	Total  float64       `json:"total"`
	UPI    string        `json:"upi"`
	Name   string        `json:"name"`
}

// NewSummary totals rows in decimal and rounds once at the end.
func NewSummary(rows []Transaction, upi, name string) Summary {
	total := decimal.Zero
	for _, r := range rows {
		total = total.Add(decimal.NewFromFloat(r.Amount))
	}
	if rows == nil {
		rows = []Transaction{}
	}
	return Summary{
		Unpaid: rows,
		Total:  total.InexactFloat64(),
		UPI:    upi,
		Name:   name,
	}
}
