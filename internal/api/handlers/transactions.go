package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/dvloznov/family-ledger/internal/api/middleware"
	"github.com/dvloznov/family-ledger/internal/domain"
	"github.com/rs/zerolog"
)

// TransactionsHandler handles transaction-related endpoints.
type TransactionsHandler struct {
	store TransactionStore
	log   zerolog.Logger
}

// NewTransactionsHandler creates a new transactions handler.
func NewTransactionsHandler(store TransactionStore, log zerolog.Logger) *TransactionsHandler {
	return &TransactionsHandler{
		store: store,
		log:   log,
	}
}

// ListTransactions handles GET /api/transactions?start=&end=
func (h *TransactionsHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}

	filter := domain.TransactionFilter{UserID: id.UserID}
	query := r.URL.Query()

	var err error
	if s := query.Get("start"); s != "" {
		if filter.Start, err = parseDay(s); err != nil {
			middleware.WriteError(w, http.StatusBadRequest, "Invalid start date")
			return
		}
	}
	if s := query.Get("end"); s != "" {
		if filter.End, err = parseDay(s); err != nil {
			middleware.WriteError(w, http.StatusBadRequest, "Invalid end date")
			return
		}
	}

	transactions, err := h.store.ListTransactions(r.Context(), filter)
	if err != nil {
		writeStoreError(w, h.log, err, "Failed to list transactions")
		return
	}

	// Return array directly for frontend compatibility
	if transactions == nil {
		transactions = []domain.Transaction{}
	}
	middleware.WriteJSON(w, http.StatusOK, transactions)
}

// Archive handles POST /api/transactions/archive. Only the caller's rows are
// marked paid.
func (h *TransactionsHandler) Archive(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}

	var req struct {
		IDs []int64 `json:"ids"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	n, err := h.store.ArchiveTransactions(r.Context(), id.UserID, req.IDs)
	if err != nil {
		writeStoreError(w, h.log, err, "Failed to archive transactions")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]int{"archived": n})
}

// SummaryHandler serves the unpaid summary.
type SummaryHandler struct {
	store       TransactionStore
	defaultDays int
	upi         string
	name        string
	now         func() time.Time
	log         zerolog.Logger
}

// NewSummaryHandler creates a summary handler naming the payee by UPI id and
// display name.
func NewSummaryHandler(store TransactionStore, defaultDays int, upi, name string, log zerolog.Logger) *SummaryHandler {
	return &SummaryHandler{
		store:       store,
		defaultDays: defaultDays,
		upi:         upi,
		name:        name,
		now:         time.Now,
		log:         log,
	}
}

// SetClock replaces the clock that anchors the summary window.
func (h *SummaryHandler) SetClock(now func() time.Time) { h.now = now }

// Summary handles GET /api/summary?days=N. The window runs from N days
// before today through today, in UTC.
func (h *SummaryHandler) Summary(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}

	days := h.defaultDays
	if s := r.URL.Query().Get("days"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			middleware.WriteError(w, http.StatusBadRequest, "Invalid days")
			return
		}
		days = n
	}

	now := h.now().UTC()
	end := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	start := end.AddDate(0, 0, -days)

	rows, err := h.store.ListUnpaid(r.Context(), id.UserID, start, end)
	if err != nil {
		writeStoreError(w, h.log, err, "Failed to build summary")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, domain.NewSummary(rows, h.upi, h.name))
}

// MarkPaid handles POST /api/summary/mark-paid. Rows already paid are not
// counted.
func (h *SummaryHandler) MarkPaid(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}

	var req struct {
		TxnIDs []int64 `json:"txnIds"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	n, err := h.store.MarkPaid(r.Context(), id.HouseholdID, req.TxnIDs)
	if err != nil {
		writeStoreError(w, h.log, err, "Failed to mark transactions paid")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]int{"marked": n})
}

func parseDay(s string) (time.Time, error) {
	if len(s) > len(dateLayout) {
		s = s[:len(dateLayout)]
	}
	return time.Parse(dateLayout, s)
}
