package cli

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/emiliopalmerini/lostfound-admin/internal/adapters/turso"
	"github.com/emiliopalmerini/lostfound-admin/internal/config"
	"github.com/emiliopalmerini/lostfound-admin/internal/retry"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate [version]",
	Short: "Run database migrations",
	Long: `Run database migrations.

Without arguments, runs all pending migrations (up).
With a version number, migrates to that specific version (up or down as needed).
Each migration is applied in its own transaction.

Examples:
  lostfound-admin migrate      # Run all pending migrations
  lostfound-admin migrate 1    # Migrate to version 1
  lostfound-admin migrate 0    # Rollback all migrations`,
	Args: cobra.MaximumNArgs(1),
	RunE: runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	if appConfig.Store != config.StoreSQLite {
		return fmt.Errorf("migrations only apply to the %s store", config.StoreSQLite)
	}

	target := -1
	if len(args) == 1 {
		v, err := strconv.Atoi(args[0])
		if err != nil || v < 0 {
			return fmt.Errorf("invalid version number: %s", args[0])
		}
		target = v
	}

	// Connect to database
	db, err := turso.Open(ctx, appConfig.DatabaseURL, appConfig.AuthToken)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	migrator := newMigrator(db, logger)
	policy := appConfig.RetryPolicy()

	current, err := retry.Do(ctx, policy, logger, "read schema version", migrator.Version)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Current version: %d\n", current)

	if target == current {
		fmt.Fprintln(cmd.OutOrStdout(), "Already at target version")
		return nil
	}

	_, err = retry.Do(ctx, policy, logger, "migrate", func(ctx context.Context) (struct{}, error) {
		if target < 0 {
			return struct{}{}, migrator.Up(ctx)
		}
		return struct{}{}, migrator.To(ctx, target)
	})
	if err != nil {
		return err
	}

	version, err := migrator.Version(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Migrated to version: %d\n", version)
	return nil
}
