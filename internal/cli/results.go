package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/emiliopalmerini/lostfound-admin/internal/domain"
)

var experimentResultsCmd = &cobra.Command{
	Use:   "results <id>",
	Short: "Show conversion results for an experiment",
	Long: `Show per-variant conversion rates and the lift of each treatment over the control.

The "needs more data" flag is a fixed minimum-sample gate, not a significance test.

Examples:
  lostfound-admin experiment results 3f2a...
  lostfound-admin experiment results 3f2a... --archived   # summary stored at completion`,
	Args: cobra.ExactArgs(1),
	RunE: runExperimentResults,
}

var experimentAssignCmd = &cobra.Command{
	Use:   "assign <id> <participant-id>",
	Short: "Show which variant a participant is assigned to",
	Args:  cobra.ExactArgs(2),
	RunE:  runExperimentAssign,
}

var experimentIngestCmd = &cobra.Command{
	Use:   "ingest <id>",
	Short: "Record a participation or conversion event",
	Long: `Record one participation event. Redelivering the same event is safe.

Examples:
  lostfound-admin experiment ingest 3f2a... --participant user-1 --variant Control
  lostfound-admin experiment ingest 3f2a... --participant user-1 --variant Control --converted`,
	Args: cobra.ExactArgs(1),
	RunE: runExperimentIngest,
}

var (
	resultsArchived   bool
	ingestParticipant string
	ingestVariant     string
	ingestConverted   bool
)

func init() {
	experimentCmd.AddCommand(experimentResultsCmd)
	experimentCmd.AddCommand(experimentAssignCmd)
	experimentCmd.AddCommand(experimentIngestCmd)

	experimentResultsCmd.Flags().BoolVar(&resultsArchived, "archived", false, "Show the summary archived when the experiment completed")

	experimentIngestCmd.Flags().StringVarP(&ingestParticipant, "participant", "p", "", "Participant ID")
	experimentIngestCmd.Flags().StringVarP(&ingestVariant, "variant", "v", "", "Variant the participant saw")
	experimentIngestCmd.Flags().BoolVarP(&ingestConverted, "converted", "c", false, "Participant converted")
	_ = experimentIngestCmd.MarkFlagRequired("participant")
	_ = experimentIngestCmd.MarkFlagRequired("variant")
}

func runExperimentResults(cmd *cobra.Command, args []string) error {
	return withApp(cmd.Context(), func(app *AppContext) error {
		var (
			summary *domain.ResultsSummary
			err     error
		)
		if resultsArchived {
			summary, err = app.Service.ArchivedResults(cmd.Context(), args[0])
		} else {
			summary, err = app.Service.Results(cmd.Context(), args[0])
		}
		if err != nil {
			return err
		}
		return printResults(cmd.OutOrStdout(), summary)
	})
}

func runExperimentAssign(cmd *cobra.Command, args []string) error {
	return withApp(cmd.Context(), func(app *AppContext) error {
		a, err := app.Service.Assign(cmd.Context(), args[0], args[1])
		if err != nil {
			return err
		}
		if outputFmt == outputJSON {
			return printJSON(cmd.OutOrStdout(), a)
		}
		if !a.Included {
			fmt.Fprintf(cmd.OutOrStdout(), "%s is excluded (%s)\n", a.ParticipantID, a.Reason)
			return nil
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s -> %s\n", a.ParticipantID, a.Variant)
		return nil
	})
}

func runExperimentIngest(cmd *cobra.Command, args []string) error {
	rec := domain.ParticipationRecord{
		ExperimentID:  args[0],
		ParticipantID: ingestParticipant,
		VariantName:   ingestVariant,
		Converted:     ingestConverted,
		Timestamp:     time.Now().UTC(),
	}
	return withApp(cmd.Context(), func(app *AppContext) error {
		outcome, err := app.Service.Ingest(cmd.Context(), rec)
		if err != nil {
			return err
		}
		if outputFmt == outputJSON {
			return printJSON(cmd.OutOrStdout(), map[string]domain.IngestOutcome{"outcome": outcome})
		}
		fmt.Fprintln(cmd.OutOrStdout(), outcome)
		return nil
	})
}
