package cli

import (
	"fmt"
	"strconv"
	"time"

	"github.com/dvloznov/family-ledger/internal/categorize"
	"github.com/dvloznov/family-ledger/internal/domain"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(seedCmd)

	rootCmd.AddCommand(categoriesCmd)
	categoriesCmd.AddCommand(categoriesListCmd, categoriesAddCmd, categoriesDeleteCmd)

	rootCmd.AddCommand(rulesCmd)
	rulesCmd.AddCommand(rulesListCmd, rulesAddCmd, rulesDeleteCmd, rulesTestCmd)

	rootCmd.AddCommand(transactionsCmd)
	transactionsCmd.AddCommand(transactionsListCmd, transactionsArchiveCmd)
	transactionsListCmd.Flags().String("start", "", "First day to include (YYYY-MM-DD)")
	transactionsListCmd.Flags().String("end", "", "Last day to include (YYYY-MM-DD)")

	rootCmd.AddCommand(summaryCmd)
	summaryCmd.Flags().Int("days", 0, "Window length in days (default summary.days)")
	summaryCmd.Flags().Bool("mark-paid", false, "Mark every listed row as paid")
}

// ─── seed ───────────────────────────────────────────────────────────────────

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Add the default categories and merchant rules to a household",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		household, err := requireHousehold()
		if err != nil {
			return err
		}
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.close()

		result, err := a.db.SeedDefaults(cmd.Context(), household)
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), result)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Added %d categories and %d rules\n", result.Categories, result.Rules)
		return nil
	},
}

// ─── categories ─────────────────────────────────────────────────────────────

var categoriesCmd = &cobra.Command{
	Use:   "categories",
	Short: "Manage household categories",
}

var categoriesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List categories",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		household, err := requireHousehold()
		if err != nil {
			return err
		}
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.close()

		categories, err := a.db.ListCategories(cmd.Context(), household)
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), categories)
		}
		for _, c := range categories {
			fmt.Fprintf(cmd.OutOrStdout(), "%4d  %s\n", c.ID, c.Name)
		}
		return nil
	},
}

var categoriesAddCmd = &cobra.Command{
	Use:   "add NAME",
	Short: "Create a category",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		household, err := requireHousehold()
		if err != nil {
			return err
		}
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.close()

		c, err := a.db.CreateCategory(cmd.Context(), household, args[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Created category %d %q\n", c.ID, c.Name)
		return nil
	},
}

var categoriesDeleteCmd = &cobra.Command{
	Use:   "delete ID",
	Short: "Delete a category no rule uses",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		household, err := requireHousehold()
		if err != nil {
			return err
		}
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.close()

		if err := a.db.DeleteCategory(cmd.Context(), household, id); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted category %d\n", id)
		return nil
	},
}

// ─── rules ──────────────────────────────────────────────────────────────────

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "Manage merchant rules",
	Long: `Merchant rules map an uppercase substring of the merchant text to a
category. Rules are tried in creation order and the first match wins.`,
}

var rulesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List rules in match order",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		household, err := requireHousehold()
		if err != nil {
			return err
		}
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.close()

		rules, err := a.db.ListRules(cmd.Context(), household)
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), rules)
		}
		for _, r := range rules {
			fmt.Fprintf(cmd.OutOrStdout(), "%4d  %-24s %s\n", r.ID, r.Pattern, r.Category)
		}
		return nil
	},
}

var rulesAddCmd = &cobra.Command{
	Use:   "add PATTERN CATEGORY_ID",
	Short: "Append a rule",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		household, err := requireHousehold()
		if err != nil {
			return err
		}
		categoryID, err := parseID(args[1])
		if err != nil {
			return err
		}
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.close()

		r, err := a.db.CreateRule(cmd.Context(), household, args[0], categoryID)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Created rule %d %q -> %s\n", r.ID, r.Pattern, r.Category)
		return nil
	},
}

var rulesDeleteCmd = &cobra.Command{
	Use:   "delete ID",
	Short: "Delete a rule",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		household, err := requireHousehold()
		if err != nil {
			return err
		}
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.close()

		if err := a.db.DeleteRule(cmd.Context(), household, id); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted rule %d\n", id)
		return nil
	},
}

var rulesTestCmd = &cobra.Command{
	Use:   "test MERCHANT",
	Short: "Classify a merchant with every strategy",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		household, err := requireHousehold()
		if err != nil {
			return err
		}
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.close()

		rules, err := a.db.ListRules(cmd.Context(), household)
		if err != nil {
			return err
		}

		results := make(map[string]string, 3)
		strategies := []string{categorize.StrategyRules, categorize.StrategyKeywords, categorize.StrategyChain}
		for _, s := range strategies {
			c, err := categorize.New(s, rules)
			if err != nil {
				return err
			}
			results[s] = c.Classify(args[0])
		}

		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), results)
		}
		for _, s := range strategies {
			fmt.Fprintf(cmd.OutOrStdout(), "%-9s %s\n", s, results[s])
		}
		return nil
	},
}

// ─── transactions ───────────────────────────────────────────────────────────

var transactionsCmd = &cobra.Command{
	Use:     "transactions",
	Aliases: []string{"tx"},
	Short:   "List and archive transactions",
}

var transactionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the user's transactions, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := requireIdentity()
		if err != nil {
			return err
		}
		filter := domain.TransactionFilter{UserID: id.UserID}
		if filter.Start, err = dayFlag(cmd, "start"); err != nil {
			return err
		}
		if filter.End, err = dayFlag(cmd, "end"); err != nil {
			return err
		}

		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.close()

		txs, err := a.db.ListTransactions(cmd.Context(), filter)
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), txs)
		}
		printTransactions(cmd, txs)
		return nil
	},
}

var transactionsArchiveCmd = &cobra.Command{
	Use:   "archive ID...",
	Short: "Mark the user's transactions as paid",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := requireIdentity()
		if err != nil {
			return err
		}
		ids, err := parseIDs(args)
		if err != nil {
			return err
		}
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.close()

		n, err := a.db.ArchiveTransactions(cmd.Context(), id.UserID, ids)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Archived %d transactions\n", n)
		return nil
	},
}

// ─── summary ────────────────────────────────────────────────────────────────

var summaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Show unpaid transactions of the last days and who to pay",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := requireIdentity()
		if err != nil {
			return err
		}
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.close()

		days, _ := cmd.Flags().GetInt("days")
		if days <= 0 {
			days = a.cfg.Summary.Days
		}
		now := time.Now().UTC()
		end := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
		start := end.AddDate(0, 0, -days)

		rows, err := a.db.ListUnpaid(cmd.Context(), id.UserID, start, end)
		if err != nil {
			return err
		}
		summary := domain.NewSummary(rows, a.cfg.Summary.PayeeUPI, a.cfg.Summary.PayeeName)

		if markPaid, _ := cmd.Flags().GetBool("mark-paid"); markPaid && len(rows) > 0 {
			ids := make([]int64, 0, len(rows))
			for _, r := range rows {
				ids = append(ids, r.ID)
			}
			n, err := a.db.MarkPaid(cmd.Context(), id.HouseholdID, ids)
			if err != nil {
				return err
			}
			a.log.Info().Int("marked", n).Msg("Marked transactions paid")
		}

		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), summary)
		}
		printTransactions(cmd, summary.Unpaid)
		fmt.Fprintf(cmd.OutOrStdout(), "\nTotal %.2f to %s (%s)\n", summary.Total, summary.Name, summary.UPI)
		return nil
	},
}

func printTransactions(cmd *cobra.Command, txs []domain.Transaction) {
	out := cmd.OutOrStdout()
	for _, t := range txs {
		paid := ""
		if t.Paid {
			paid = "paid"
		}
		fmt.Fprintf(out, "%6d  %s  %10.2f  %-30s %-12s %s\n",
			t.ID, t.Date.Format("2006-01-02"), t.Amount, t.Merchant, t.Category, paid)
	}
}

func dayFlag(cmd *cobra.Command, name string) (time.Time, error) {
	v, _ := cmd.Flags().GetString(name)
	if v == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse("2006-01-02", v)
	if err != nil {
		return time.Time{}, fmt.Errorf("--%s: %w", name, err)
	}
	return t, nil
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return id, nil
}

func parseIDs(args []string) ([]int64, error) {
	ids := make([]int64, 0, len(args))
	for _, s := range args {
		id, err := parseID(s)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}
