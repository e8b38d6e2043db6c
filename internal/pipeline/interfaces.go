package pipeline

import (
	"context"

	"github.com/dvloznov/family-ledger/internal/domain"
)

// Store persists one transaction. Implementations must return an error
// wrapping domain.ErrDuplicate when the fingerprint already exists and must
// leave earlier inserts committed.
type Store interface {
	InsertTransaction(ctx context.Context, tx *domain.Transaction) error
}

// RuleSource supplies a household's ordered category rules.
type RuleSource interface {
	ListRules(ctx context.Context, householdID string) ([]domain.Rule, error)
}

// Archiver keeps a copy of the raw upload and returns its URI.
type Archiver interface {
	Archive(ctx context.Context, householdID, uploadID, filename string, content []byte) (string, error)
}
