// Package cli implements creditctl, the operator command line for the credit
// ledger.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/Bukachka23/image-backend/internal/config"
	"github.com/Bukachka23/image-backend/internal/ledger"
	"github.com/Bukachka23/image-backend/internal/repository"
	"github.com/Bukachka23/image-backend/internal/repository/sqlite"
)

var rootCmd = &cobra.Command{
	Use:   "creditctl",
	Short: "Inspect and maintain the credit ledger",
	Long: `creditctl talks directly to the ledger database configured by
DATABASE_URL (a postgres:// URL, or sqlite:<path> for the embedded store).`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// openStore opens the configured store. The returned close func is never nil.
func openStore(ctx context.Context, cfg *config.Config) (ledger.Store, *pgxpool.Pool, func(), error) {
	if cfg.UsesSQLite() {
		store, err := sqlite.Open(ctx, cfg.SQLitePath())
		if err != nil {
			return nil, nil, func() {}, fmt.Errorf("open sqlite: %w", err)
		}
		return store, nil, func() { store.Close() }, nil
	}
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, func() {}, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, func() {}, fmt.Errorf("ping postgres: %w", err)
	}
	return repository.NewStore(pool), pool, pool.Close, nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
