package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/dvloznov/family-ledger/internal/categorize"
	"github.com/dvloznov/family-ledger/internal/domain"
)

// ─── Categories ─────────────────────────────────────────────────────────────

// ListCategories returns the household's categories in creation order.
func (db *DB) ListCategories(ctx context.Context, householdID string) ([]domain.Category, error) {
	rows, err := db.db.QueryContext(ctx, `
		SELECT id, household_id, name FROM categories
		WHERE household_id = ? ORDER BY id
	`, householdID)
	if err != nil {
		return nil, fmt.Errorf("ListCategories: query: %w", err)
	}
	defer rows.Close()

	out := []domain.Category{}
	for rows.Next() {
		var c domain.Category
		if err := rows.Scan(&c.ID, &c.HouseholdID, &c.Name); err != nil {
			return nil, fmt.Errorf("ListCategories: scan: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// CreateCategory adds a named category to the household.
func (db *DB) CreateCategory(ctx context.Context, householdID, name string) (domain.Category, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.Category{}, fmt.Errorf("CreateCategory: name required: %w", domain.ErrInvalidInput)
	}

	res, err := db.db.ExecContext(ctx,
		`INSERT INTO categories (household_id, name) VALUES (?, ?)`, householdID, name)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.Category{}, fmt.Errorf("CreateCategory: %q: %w", name, domain.ErrCategoryExists)
		}
		return domain.Category{}, fmt.Errorf("CreateCategory: insert: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return domain.Category{}, fmt.Errorf("CreateCategory: last insert id: %w", err)
	}
	return domain.Category{ID: id, HouseholdID: householdID, Name: name}, nil
}

// DeleteCategory removes a category unless a merchant rule still points at it.
func (db *DB) DeleteCategory(ctx context.Context, householdID string, id int64) error {
	tx, err := db.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("DeleteCategory: begin: %w", err)
	}
	defer tx.Rollback()

	var exists int
	err = tx.QueryRowContext(ctx,
		`SELECT 1 FROM categories WHERE id = ? AND household_id = ?`, id, householdID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("DeleteCategory: category %d: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("DeleteCategory: lookup: %w", err)
	}

	var inUse int
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM merchant_rules WHERE category_id = ?`, id).Scan(&inUse); err != nil {
		return fmt.Errorf("DeleteCategory: count rules: %w", err)
	}
	if inUse > 0 {
		return fmt.Errorf("DeleteCategory: category %d: %w", id, domain.ErrCategoryInUse)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM categories WHERE id = ?`, id); err != nil {
		return fmt.Errorf("DeleteCategory: delete: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("DeleteCategory: commit: %w", err)
	}
	return nil
}

// ─── Merchant Rules ─────────────────────────────────────────────────────────

// ListRules returns the household's rules in match order with category names
// resolved.
func (db *DB) ListRules(ctx context.Context, householdID string) ([]domain.Rule, error) {
	rows, err := db.db.QueryContext(ctx, `
		SELECT r.id, r.household_id, r.pattern, r.category_id, c.name
		FROM merchant_rules r
		JOIN categories c ON c.id = r.category_id
		WHERE r.household_id = ?
		ORDER BY r.id
	`, householdID)
	if err != nil {
		return nil, fmt.Errorf("ListRules: query: %w", err)
	}
	defer rows.Close()

	out := []domain.Rule{}
	for rows.Next() {
		var r domain.Rule
		if err := rows.Scan(&r.ID, &r.HouseholdID, &r.Pattern, &r.CategoryID, &r.Category); err != nil {
			return nil, fmt.Errorf("ListRules: scan: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// CreateRule appends a rule. The pattern is stored uppercase and the category
// must belong to the household.
func (db *DB) CreateRule(ctx context.Context, householdID, pattern string, categoryID int64) (domain.Rule, error) {
	pattern = strings.ToUpper(pattern)
	if strings.TrimSpace(pattern) == "" || categoryID == 0 {
		return domain.Rule{}, fmt.Errorf("CreateRule: pattern and category_id required: %w", domain.ErrInvalidInput)
	}

	var name string
	err := db.db.QueryRowContext(ctx,
		`SELECT name FROM categories WHERE id = ? AND household_id = ?`, categoryID, householdID).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Rule{}, fmt.Errorf("CreateRule: category %d: %w", categoryID, domain.ErrNotFound)
	}
	if err != nil {
		return domain.Rule{}, fmt.Errorf("CreateRule: lookup category: %w", err)
	}

	res, err := db.db.ExecContext(ctx,
		`INSERT INTO merchant_rules (household_id, pattern, category_id) VALUES (?, ?, ?)`,
		householdID, pattern, categoryID)
	if err != nil {
		return domain.Rule{}, fmt.Errorf("CreateRule: insert: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return domain.Rule{}, fmt.Errorf("CreateRule: last insert id: %w", err)
	}
	return domain.Rule{
		ID:          id,
		HouseholdID: householdID,
		Pattern:     pattern,
		CategoryID:  categoryID,
		Category:    name,
	}, nil
}

// DeleteRule removes one of the household's rules.
func (db *DB) DeleteRule(ctx context.Context, householdID string, id int64) error {
	res, err := db.db.ExecContext(ctx,
		`DELETE FROM merchant_rules WHERE id = ? AND household_id = ?`, id, householdID)
	if err != nil {
		return fmt.Errorf("DeleteRule: delete: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("DeleteRule: rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("DeleteRule: rule %d: %w", id, domain.ErrNotFound)
	}
	return nil
}

// ─── Seeding ────────────────────────────────────────────────────────────────

// SeedResult reports what SeedDefaults added.
type SeedResult struct {
	Categories int `json:"categories"`
	Rules      int `json:"rules"`
}

// SeedDefaults adds the default categories and rules that the household does
// not have yet. Running it again adds nothing.
func (db *DB) SeedDefaults(ctx context.Context, householdID string) (SeedResult, error) {
	var result SeedResult

	tx, err := db.db.BeginTx(ctx, nil)
	if err != nil {
		return result, fmt.Errorf("SeedDefaults: begin: %w", err)
	}
	defer tx.Rollback()

	ids := make(map[string]int64)
	for _, name := range categorize.DefaultCategories {
		res, err := tx.ExecContext(ctx,
			`INSERT INTO categories (household_id, name) VALUES (?, ?) ON CONFLICT(household_id, name) DO NOTHING`,
			householdID, name)
		if err != nil {
			return result, fmt.Errorf("SeedDefaults: category %q: %w", name, err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			result.Categories++
		}

		var id int64
		if err := tx.QueryRowContext(ctx,
			`SELECT id FROM categories WHERE household_id = ? AND name = ?`, householdID, name).Scan(&id); err != nil {
			return result, fmt.Errorf("SeedDefaults: category id %q: %w", name, err)
		}
		ids[name] = id
	}

	for _, rule := range categorize.DefaultRules {
		categoryID, ok := ids[rule.Category]
		if !ok {
			return result, fmt.Errorf("SeedDefaults: rule %q: unknown category %q: %w", rule.Pattern, rule.Category, domain.ErrInvalidInput)
		}

		var exists int
		err := tx.QueryRowContext(ctx,
			`SELECT 1 FROM merchant_rules WHERE household_id = ? AND pattern = ?`, householdID, rule.Pattern).Scan(&exists)
		if err == nil {
			continue
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return result, fmt.Errorf("SeedDefaults: rule lookup %q: %w", rule.Pattern, err)
		}

		if _, err := tx.ExecContext(ctx,
			`INSERT INTO merchant_rules (household_id, pattern, category_id) VALUES (?, ?, ?)`,
			householdID, rule.Pattern, categoryID); err != nil {
			return result, fmt.Errorf("SeedDefaults: rule %q: %w", rule.Pattern, err)
		}
		result.Rules++
	}

	if err := tx.Commit(); err != nil {
		return result, fmt.Errorf("SeedDefaults: commit: %w", err)
	}
	return result, nil
}
