package cli

import (
	"fmt"
	"os"

	"github.com/dvloznov/family-ledger/internal/domain"
	"github.com/dvloznov/family-ledger/internal/export"
	"github.com/dvloznov/family-ledger/internal/jobs"
	"github.com/dvloznov/family-ledger/internal/notionsync"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(warehouseCmd)
	warehouseCmd.AddCommand(warehouseMigrateCmd)
	warehouseMigrateCmd.Flags().String("applied-by", "", "Name recorded in schema_migrations (default $USER)")

	rootCmd.AddCommand(syncCmd)
	syncCmd.Flags().Bool("dry-run", false, "Show what would change without writing")
	syncCmd.Flags().Bool("prune", false, "Archive Notion pages whose fingerprint is not in the ledger")
	syncCmd.Flags().Bool("update", false, "Rewrite existing Notion pages (paid flags, categories)")
	syncCmd.Flags().String("start", "", "First day to include (YYYY-MM-DD)")
	syncCmd.Flags().String("end", "", "Last day to include (YYYY-MM-DD)")
}

var warehouseCmd = &cobra.Command{
	Use:   "warehouse",
	Short: "Manage the BigQuery warehouse table",
}

var warehouseMigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending warehouse schema migrations",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.close()
		ctx := a.context(cmd.Context())

		appliedBy, _ := cmd.Flags().GetString("applied-by")
		if appliedBy == "" {
			appliedBy = envOr("USER", "ledger-cli")
		}

		store, err := a.warehouse(ctx)
		if err != nil {
			return err
		}
		n, err := store.Migrate(ctx, appliedBy)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Applied %d migrations\n", n)
		return nil
	},
}

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Push the household's transactions to the enabled sinks",
	Long: `Reconcile the household's ledger rows with the enabled sinks. The Notion
database is reconciled page by page (see --prune and --update); the warehouse
only receives rows whose fingerprint it does not have yet.`,
	Args: cobra.NoArgs,
	RunE: runSync,
}

func runSync(cmd *cobra.Command, args []string) error {
	household, err := requireHousehold()
	if err != nil {
		return err
	}
	filter := domain.TransactionFilter{HouseholdID: household}
	if filter.Start, err = dayFlag(cmd, "start"); err != nil {
		return err
	}
	if filter.End, err = dayFlag(cmd, "end"); err != nil {
		return err
	}
	dryRun, _ := cmd.Flags().GetBool("dry-run")
	prune, _ := cmd.Flags().GetBool("prune")
	update, _ := cmd.Flags().GetBool("update")

	a, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.close()
	ctx := a.context(cmd.Context())

	if !a.cfg.Warehouse.Enabled && !a.cfg.Notion.Enabled {
		return fmt.Errorf("no sink enabled: set warehouse.enabled or notion.enabled")
	}

	txs, err := a.db.ListTransactions(ctx, filter)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	if a.cfg.Notion.Enabled {
		stats, err := a.notion().SyncTransactions(ctx, txs, notionsync.SyncOptions{
			DryRun:         dryRun,
			Prune:          prune,
			UpdateExisting: update,
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "notion: created %d, updated %d, skipped %d, deleted %d, failed %d\n",
			stats.Created, stats.Updated, stats.Skipped, stats.Deleted, stats.Failed)
	}

	if a.cfg.Warehouse.Enabled {
		if dryRun {
			fmt.Fprintf(out, "bigquery: would push up to %d rows\n", len(txs))
			return nil
		}
		store, err := a.warehouse(ctx)
		if err != nil {
			return err
		}

		ids := make([]int64, 0, len(txs))
		for _, t := range txs {
			ids = append(ids, t.ID)
		}
		job := &jobs.SyncJob{JobID: "cli-sync", HouseholdID: household, TransactionIDs: ids}
		if err := export.NewExporter(a.db, a.log, store).Handle(ctx, job); err != nil {
			fmt.Fprintln(os.Stderr, "bigquery: some rows failed, see log")
			return err
		}
		fmt.Fprintf(out, "bigquery: %d rows reconciled\n", len(ids))
	}
	return nil
}
