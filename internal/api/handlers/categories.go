package handlers

import (
	"net/http"

	"github.com/dvloznov/family-ledger/internal/api/middleware"
	"github.com/dvloznov/family-ledger/internal/categorize"
	"github.com/rs/zerolog"
)

// CategoriesHandler handles category and merchant rule endpoints.
type CategoriesHandler struct {
	store CategoryStore
	log   zerolog.Logger
}

// NewCategoriesHandler creates a new categories handler.
func NewCategoriesHandler(store CategoryStore, log zerolog.Logger) *CategoriesHandler {
	return &CategoriesHandler{
		store: store,
		log:   log,
	}
}

// ListCategories handles GET /api/categories
func (h *CategoriesHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}

	categories, err := h.store.ListCategories(r.Context(), id.HouseholdID)
	if err != nil {
		writeStoreError(w, h.log, err, "Failed to list categories")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"categories": categories,
		"count":      len(categories),
	})
}

// CreateCategory handles POST /api/categories
func (h *CategoriesHandler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}

	var req struct {
		Name string `json:"name"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	category, err := h.store.CreateCategory(r.Context(), id.HouseholdID, req.Name)
	if err != nil {
		writeStoreError(w, h.log, err, "Failed to create category")
		return
	}
	middleware.WriteJSON(w, http.StatusCreated, category)
}

// DeleteCategory handles DELETE /api/categories/{id}
func (h *CategoriesHandler) DeleteCategory(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}
	categoryID, ok := pathID(w, r)
	if !ok {
		return
	}

	if err := h.store.DeleteCategory(r.Context(), id.HouseholdID, categoryID); err != nil {
		writeStoreError(w, h.log, err, "Failed to delete category")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]bool{"deleted": true})
}

// ListRules handles GET /api/rules. Rules are returned in match order.
func (h *CategoriesHandler) ListRules(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}

	rules, err := h.store.ListRules(r.Context(), id.HouseholdID)
	if err != nil {
		writeStoreError(w, h.log, err, "Failed to list rules")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"rules": rules,
		"count": len(rules),
	})
}

// CreateRule handles POST /api/rules
func (h *CategoriesHandler) CreateRule(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}

	var req struct {
		Pattern    string `json:"pattern"`
		CategoryID int64  `json:"category_id"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	rule, err := h.store.CreateRule(r.Context(), id.HouseholdID, req.Pattern, req.CategoryID)
	if err != nil {
		writeStoreError(w, h.log, err, "Failed to create rule")
		return
	}
	middleware.WriteJSON(w, http.StatusCreated, rule)
}

// DeleteRule handles DELETE /api/rules/{id}
func (h *CategoriesHandler) DeleteRule(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}
	ruleID, ok := pathID(w, r)
	if !ok {
		return
	}

	if err := h.store.DeleteRule(r.Context(), id.HouseholdID, ruleID); err != nil {
		writeStoreError(w, h.log, err, "Failed to delete rule")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]bool{"deleted": true})
}

// TestRules handles POST /api/rules/test. It classifies one merchant with
// every strategy against the household's current rules.
func (h *CategoriesHandler) TestRules(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}

	var req struct {
		Merchant string `json:"merchant"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	rules, err := h.store.ListRules(r.Context(), id.HouseholdID)
	if err != nil {
		writeStoreError(w, h.log, err, "Failed to list rules")
		return
	}

	results := make(map[string]string, 3)
	for _, strategy := range []string{categorize.StrategyRules, categorize.StrategyKeywords, categorize.StrategyChain} {
		c, err := categorize.New(strategy, rules)
		if err != nil {
			writeStoreError(w, h.log, err, "Failed to build classifier")
			return
		}
		results[strategy] = c.Classify(req.Merchant)
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"merchant":   req.Merchant,
		"categories": results,
	})
}
