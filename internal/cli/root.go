package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/emiliopalmerini/lostfound-admin/internal/config"
)

var (
	appConfig *config.Config
	logger    *slog.Logger
	outputFmt string
)

var rootCmd = &cobra.Command{
	Use:   "lostfound-admin",
	Short: "Experimentation admin for the lost-and-found platform",
	Long: `lostfound-admin runs A/B experiments for the lost-and-found platform.

Define experiments and their variants, move them through their lifecycle,
ingest participant outcomes and read conversion results.

Configuration comes from LFADMIN_* environment variables.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}
		appConfig = cfg
		logger = cfg.Logger(cmd.ErrOrStderr())
		slog.SetDefault(logger)

		switch outputFmt {
		case outputTable, outputJSON:
			return nil
		default:
			return fmt.Errorf("--output must be %s or %s", outputTable, outputJSON)
		}
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&outputFmt, "output", "o", outputTable, "Output format (table, json)")
}
