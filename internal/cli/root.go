// Package cli implements the ledger command line.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/dvloznov/family-ledger/internal/domain"
	"github.com/spf13/cobra"
)

var (
	configPath  string
	userID      string
	householdID string
	logLevel    string
	jsonOutput  bool
)

var rootCmd = &cobra.Command{
	Use:   "ledger",
	Short: "Family expense ledger",
	Long: `Family expense ledger: import bank and UPI statements (JSON, CSV or PDF),
categorize merchants and track what is still unpaid.

Settings come from ledger.toml, overridden by LEDGER_* environment variables.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", envOr("LEDGER_CONFIG", "ledger.toml"), "Path to the TOML config file")
	rootCmd.PersistentFlags().StringVar(&userID, "user", envOr("LEDGER_USER", ""), "User id to act as")
	rootCmd.PersistentFlags().StringVar(&householdID, "household", envOr("LEDGER_HOUSEHOLD", ""), "Household id to act as")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Override the configured log level")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Print results as JSON")
}

// Execute runs the root command.
func Execute(ctx context.Context, version string) error {
	rootCmd.Version = version
	return rootCmd.ExecuteContext(ctx)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// requireIdentity returns the --user/--household identity.
func requireIdentity() (domain.Identity, error) {
	if userID == "" || householdID == "" {
		return domain.Identity{}, fmt.Errorf("--user and --household are required (or LEDGER_USER and LEDGER_HOUSEHOLD)")
	}
	return domain.Identity{UserID: userID, HouseholdID: householdID}, nil
}

func requireHousehold() (string, error) {
	if householdID == "" {
		return "", fmt.Errorf("--household is required (or LEDGER_HOUSEHOLD)")
	}
	return householdID, nil
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
