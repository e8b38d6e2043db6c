// Package handlers implements the ledger's HTTP endpoints.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/dvloznov/family-ledger/internal/api/middleware"
	"github.com/dvloznov/family-ledger/internal/domain"
	"github.com/dvloznov/family-ledger/internal/pipeline"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

const dateLayout = "2006-01-02"

// Importer runs uploads through the import pipeline.
type Importer interface {
	Import(ctx context.Context, upload pipeline.Upload) (domain.ImportResult, error)
}

// TransactionStore reads and updates ledger rows.
type TransactionStore interface {
	ListTransactions(ctx context.Context, f domain.TransactionFilter) ([]domain.Transaction, error)
	ListUnpaid(ctx context.Context, userID string, start, end time.Time) ([]domain.Transaction, error)
	ArchiveTransactions(ctx context.Context, userID string, ids []int64) (int, error)
	MarkPaid(ctx context.Context, householdID string, ids []int64) (int, error)
}

// CategoryStore manages household categories and merchant rules.
type CategoryStore interface {
	ListCategories(ctx context.Context, householdID string) ([]domain.Category, error)
	CreateCategory(ctx context.Context, householdID, name string) (domain.Category, error)
	DeleteCategory(ctx context.Context, householdID string, id int64) error
	ListRules(ctx context.Context, householdID string) ([]domain.Rule, error)
	CreateRule(ctx context.Context, householdID, pattern string, categoryID int64) (domain.Rule, error)
	DeleteRule(ctx context.Context, householdID string, id int64) error
}

// identity returns the caller set by middleware.Identity. Routes mounted
// without that middleware get a 401.
func identity(w http.ResponseWriter, r *http.Request) (domain.Identity, bool) {
	id, ok := middleware.IdentityFrom(r.Context())
	if !ok {
		middleware.WriteError(w, http.StatusUnauthorized, "Missing identity")
	}
	return id, ok
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid id")
		return 0, false
	}
	return id, true
}

// writeStoreError maps domain errors to status codes. Unexpected errors are
// logged and reported as a generic failure.
func writeStoreError(w http.ResponseWriter, log zerolog.Logger, err error, msg string) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		middleware.WriteError(w, http.StatusNotFound, "Not found")
	case errors.Is(err, domain.ErrCategoryInUse):
		middleware.WriteError(w, http.StatusConflict, "Category is used by merchant rules")
	case errors.Is(err, domain.ErrCategoryExists):
		middleware.WriteError(w, http.StatusConflict, "Category already exists")
	case errors.Is(err, domain.ErrInvalidInput):
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
	default:
		log.Error().Err(err).Msg(msg)
		middleware.WriteError(w, http.StatusInternalServerError, msg)
	}
}
