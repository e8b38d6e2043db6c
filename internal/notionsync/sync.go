package notionsync

import (
	"context"
	"fmt"

	"github.com/dvloznov/family-ledger/internal/domain"
	"github.com/dvloznov/family-ledger/internal/logger"
	"github.com/jomei/notionapi"
)

const (
	// BatchSize defines the number of transactions to process in a single batch
	BatchSize = 100

	pageSize = 100
)

// Syncer mirrors ledger transactions into one Notion database. Pages are
// keyed by the transaction fingerprint.
type Syncer struct {
	client     NotionService
	databaseID string
}

// NewSyncer creates a Syncer for databaseID.
func NewSyncer(client NotionService, databaseID string) *Syncer {
	return &Syncer{client: client, databaseID: databaseID}
}

// Name identifies the sink in logs and metrics.
func (s *Syncer) Name() string { return "notion" }

// InsertTransaction creates a page for tx unless one with the same
// fingerprint exists, in which case it returns domain.ErrDuplicate.
func (s *Syncer) InsertTransaction(ctx context.Context, tx *domain.Transaction) error {
	resp, err := s.client.QueryDatabase(ctx, s.databaseID, &notionapi.DatabaseQueryRequest{
		Filter: notionapi.PropertyFilter{
			Property: PropFingerprint,
			RichText: &notionapi.TextFilterCondition{Equals: tx.Fingerprint},
		},
		PageSize: 1,
	})
	if err != nil {
		return fmt.Errorf("InsertTransaction: lookup: %w", err)
	}
	if len(resp.Results) > 0 {
		return fmt.Errorf("InsertTransaction: %s: %w", tx.Fingerprint, domain.ErrDuplicate)
	}

	if _, err := s.client.CreatePage(ctx, s.databaseID, TransactionToNotionProperties(tx)); err != nil {
		return fmt.Errorf("InsertTransaction: %w", err)
	}
	return nil
}

// SyncStats summarises a full sync.
type SyncStats struct {
	Created int `json:"created"`
	Updated int `json:"updated"`
	Skipped int `json:"skipped"`
	Deleted int `json:"deleted"`
	Failed  int `json:"failed"`
}

// SyncOptions controls SyncTransactions.
type SyncOptions struct {
	// DryRun logs intended changes without calling Notion's write endpoints.
	DryRun bool
	// Prune archives pages whose fingerprint is not in the given set.
	Prune bool
	// UpdateExisting rewrites the properties of pages that already exist,
	// which picks up paid flags and category changes.
	UpdateExisting bool
}

// SyncTransactions reconciles the database with transactions. Failures on
// individual pages are logged and counted; only the initial query fails the
// call.
func (s *Syncer) SyncTransactions(ctx context.Context, transactions []domain.Transaction, opts SyncOptions) (SyncStats, error) {
	log := logger.FromContext(ctx)
	var stats SyncStats

	log.Info().
		Int("transaction_count", len(transactions)).
		Bool("dry_run", opts.DryRun).
		Bool("prune", opts.Prune).
		Msg("Starting transaction sync to Notion")

	pages, err := queryAllNotionPages(ctx, s.client, s.databaseID)
	if err != nil {
		return stats, fmt.Errorf("SyncTransactions: %w", err)
	}
	log.Info().Int("notion_page_count", len(pages)).Msg("Retrieved existing Notion pages")

	existing := make(map[string]string, len(pages))
	for _, page := range pages {
		if fp := extractFingerprint(page); fp != "" {
			existing[fp] = string(page.ID)
		}
	}

	if opts.Prune {
		valid := make(map[string]bool, len(transactions))
		for _, tx := range transactions {
			valid[tx.Fingerprint] = true
		}
		for _, page := range pages {
			fp := extractFingerprint(page)
			if fp != "" && valid[fp] {
				continue
			}
			if opts.DryRun {
				log.Info().Str("fingerprint", fp).Str("page_id", string(page.ID)).Msg("[DRY RUN] Would delete stale Notion page")
				stats.Deleted++
				continue
			}
			if err := s.client.DeletePage(ctx, string(page.ID)); err != nil {
				log.Warn().Err(err).Str("page_id", string(page.ID)).Msg("Failed to delete stale Notion page")
				stats.Failed++
				continue
			}
			stats.Deleted++
		}
	}

	for i := 0; i < len(transactions); i += BatchSize {
		end := i + BatchSize
		if end > len(transactions) {
			end = len(transactions)
		}
		log.Debug().Int("batch_start", i).Int("batch_end", end).Msg("Processing batch")

		for j := i; j < end; j++ {
			tx := &transactions[j]
			pageID, found := existing[tx.Fingerprint]

			switch {
			case found && !opts.UpdateExisting:
				stats.Skipped++
			case opts.DryRun:
				if found {
					log.Info().Str("fingerprint", tx.Fingerprint).Str("page_id", pageID).Msg("[DRY RUN] Would update Notion page")
					stats.Updated++
				} else {
					log.Info().Str("fingerprint", tx.Fingerprint).Msg("[DRY RUN] Would create Notion page")
					stats.Created++
				}
			case found:
				if _, err := s.client.UpdatePage(ctx, pageID, TransactionToNotionProperties(tx)); err != nil {
					log.Warn().Err(err).Str("fingerprint", tx.Fingerprint).Str("page_id", pageID).Msg("Failed to update Notion page")
					stats.Failed++
					continue
				}
				stats.Updated++
			default:
				page, err := s.client.CreatePage(ctx, s.databaseID, TransactionToNotionProperties(tx))
				if err != nil {
					log.Warn().Err(err).Str("fingerprint", tx.Fingerprint).Msg("Failed to create Notion page")
					stats.Failed++
					continue
				}
				existing[tx.Fingerprint] = string(page.ID)
				stats.Created++
			}
		}
	}

	log.Info().
		Int("created", stats.Created).
		Int("updated", stats.Updated).
		Int("skipped", stats.Skipped).
		Int("deleted", stats.Deleted).
		Int("failed", stats.Failed).
		Msg("Transaction sync completed")

	return stats, nil
}

// queryAllNotionPages queries all pages from a Notion database and returns them.
// Handles pagination automatically.
func queryAllNotionPages(ctx context.Context, client NotionService, databaseID string) ([]notionapi.Page, error) {
	var allPages []notionapi.Page
	var cursor notionapi.Cursor

	for {
		req := &notionapi.DatabaseQueryRequest{PageSize: pageSize}
		if cursor != "" {
			req.StartCursor = cursor
		}

		resp, err := client.QueryDatabase(ctx, databaseID, req)
		if err != nil {
			return nil, fmt.Errorf("queryAllNotionPages: %w", err)
		}
		allPages = append(allPages, resp.Results...)

		if !resp.HasMore {
			break
		}
		cursor = resp.NextCursor
	}
	return allPages, nil
}
