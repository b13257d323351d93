package cli

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"github.com/riverqueue/river/rivermigrate"
	"github.com/spf13/cobra"

	"github.com/Bukachka23/image-backend/internal/auth"
	"github.com/Bukachka23/image-backend/internal/config"
	"github.com/Bukachka23/image-backend/internal/models"
	"github.com/Bukachka23/image-backend/internal/repository"
	"github.com/Bukachka23/image-backend/internal/services"
)

func init() {
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(balanceCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(tokenCmd)

	historyCmd.Flags().IntP("limit", "n", services.DefaultHistoryLimit, "Maximum number of records to show")
}

// ─── migrate ────────────────────────────────────────────────────────────────

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply ledger (and, on PostgreSQL, job queue) migrations",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		_, pool, closeFn, err := openStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer closeFn()

		if pool != nil {
			if err := repository.Migrate(ctx, pool); err != nil {
				return err
			}
			migrator, err := rivermigrate.New(riverpgxv5.New(pool), nil)
			if err != nil {
				return fmt.Errorf("river migrator: %w", err)
			}
			if _, err := migrator.Migrate(ctx, rivermigrate.DirectionUp, nil); err != nil {
				return fmt.Errorf("river migrate: %w", err)
			}
		}
		fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
		return nil
	},
}

// ─── balance ────────────────────────────────────────────────────────────────

var balanceCmd = &cobra.Command{
	Use:   "balance EMAIL",
	Short: "Show an account's balance without creating it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		email, err := models.ParseEmail(args[0])
		if err != nil {
			return err
		}
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		store, _, closeFn, err := openStore(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer closeFn()

		acc, err := store.FindAccountByEmail(cmd.Context(), email)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s\t%d credits\t%s purchased\n", acc.Email(), acc.Balance(), acc.TotalPurchased())
		return nil
	},
}

// ─── history ────────────────────────────────────────────────────────────────

var historyCmd = &cobra.Command{
	Use:   "history EMAIL",
	Short: "List an account's ledger records, newest first",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		email, err := models.ParseEmail(args[0])
		if err != nil {
			return err
		}
		limit, _ := cmd.Flags().GetInt("limit")
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		store, _, closeFn, err := openStore(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer closeFn()

		l := services.NewLedger(store, nil, nil, quietLogger())
		acc, recs, err := l.ListTransactions(cmd.Context(), email, limit)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%s balance=%d\n", acc.Email(), acc.Balance())
		tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "CREATED\tKIND\tCREDITS\tREFERENCE\tDESCRIPTION")
		for _, rec := range recs {
			ref := rec.PaymentReference()
			if id, ok := rec.RelatedTransactionID(); ok {
				ref = id.String()
			}
			fmt.Fprintf(tw, "%s\t%s\t%+d\t%s\t%s\n",
				rec.CreatedAt().UTC().Format(time.RFC3339), rec.Kind(), rec.Credits().Int64(), ref, rec.Description())
		}
		return tw.Flush()
	},
}

// ─── token ──────────────────────────────────────────────────────────────────

var tokenCmd = &cobra.Command{
	Use:   "token OPERATOR",
	Short: "Issue an operator token for the admin API",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		svc, err := auth.NewService(cfg.OperatorJWTSecret)
		if err != nil {
			return fmt.Errorf("%w (set OPERATOR_JWT_SECRET)", err)
		}
		tok, err := svc.IssueToken(args[0])
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), tok)
		return nil
	},
}
