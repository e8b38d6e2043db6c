package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dvloznov/family-ledger/internal/domain"
	"github.com/dvloznov/family-ledger/internal/gcsuploader"
	"github.com/dvloznov/family-ledger/internal/jobs"
	"github.com/dvloznov/family-ledger/internal/pipeline"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(importCmd)
	importCmd.Flags().String("gcs-uri", "", "Import gs://bucket/object instead of a local file")
	importCmd.Flags().Bool("no-sync", false, "Skip pushing new rows to the configured sinks")
}

var importCmd = &cobra.Command{
	Use:   "import [FILE]",
	Short: "Import a JSON, CSV or PDF statement",
	Long: `Import a statement for --user in --household. The format is detected from
the content: JSON, then CSV, then PDF. Rows whose fingerprint already exists
are counted as duplicates.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runImport,
}

func runImport(cmd *cobra.Command, args []string) error {
	id, err := requireIdentity()
	if err != nil {
		return err
	}
	gcsURI, _ := cmd.Flags().GetString("gcs-uri")
	noSync, _ := cmd.Flags().GetBool("no-sync")
	if (len(args) == 1) == (gcsURI != "") {
		return fmt.Errorf("pass exactly one of FILE or --gcs-uri")
	}

	a, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.close()
	ctx := a.context(cmd.Context())

	var upload pipeline.Upload
	upload.Identity = id
	if gcsURI != "" {
		storage, err := a.storage(ctx)
		if err != nil {
			return err
		}
		if upload.Content, err = gcsuploader.FetchFromGCS(ctx, storage, gcsURI); err != nil {
			return err
		}
		upload.Filename = gcsuploader.ExtractFilenameFromGCSURI(gcsURI)
	} else {
		if upload.Content, err = os.ReadFile(args[0]); err != nil {
			return fmt.Errorf("reading %s: %w", args[0], err)
		}
		upload.Filename = filepath.Base(args[0])
	}

	importer, err := a.importer(ctx)
	if err != nil {
		return err
	}

	result, err := importer.Import(ctx, upload)
	if errors.Is(err, domain.ErrUnparsableFile) {
		return fmt.Errorf("could not parse %s", upload.Filename)
	}
	if err != nil {
		return err
	}

	if !noSync && len(result.NewIDs) > 0 {
		exporter, err := a.exporter(ctx)
		if err != nil {
			return err
		}
		if exporter != nil {
			job := &jobs.SyncJob{
				JobID:          result.UploadID,
				HouseholdID:    id.HouseholdID,
				UploadID:       result.UploadID,
				TransactionIDs: result.NewIDs,
			}
			if err := exporter.Handle(ctx, job); err != nil {
				a.log.Warn().Err(err).Msg("Sync after import failed; run 'ledger sync' to retry")
			}
		}
	}

	out := cmd.OutOrStdout()
	if jsonOutput {
		return printJSON(out, result)
	}
	fmt.Fprintf(out, "Format:     %s\n", result.Format)
	fmt.Fprintf(out, "Imported:   %d\n", result.Imported)
	fmt.Fprintf(out, "Duplicates: %d\n", result.Duplicates)
	return nil
}
