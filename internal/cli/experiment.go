package cli

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/emiliopalmerini/lostfound-admin/internal/domain"
	"github.com/emiliopalmerini/lostfound-admin/internal/lifecycle"
)

var experimentCmd = &cobra.Command{
	Use:     "experiment",
	Aliases: []string{"exp"},
	Short:   "Manage experiments",
	Long:    `Create, list, start, pause, resume, complete and delete A/B experiments.`,
}

var experimentCreateCmd = &cobra.Command{
	Use:   "create [name]",
	Short: "Create a new experiment in draft",
	Long: `Create a new experiment in draft status.

Without --variant flags the experiment gets a 50/50 Control/Treatment split.
Each --variant is NAME:PERCENT[:DESCRIPTION]; percentages must sum to 100.
With --file the definition is read from YAML instead.

Examples:
  lostfound-admin experiment create "Matching Algorithm V2" --traffic 50
  lostfound-admin experiment create "Photo prompt" --variant Control:70 --variant "Two photos:30:Ask for a second photo"
  lostfound-admin experiment create --file experiment.yaml`,
	Args: cobra.MaximumNArgs(1),
	RunE: runExperimentCreate,
}

var experimentListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all experiments",
	Args:  cobra.NoArgs,
	RunE:  runExperimentList,
}

var experimentShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show an experiment and its variants",
	Args:  cobra.ExactArgs(1),
	RunE:  runExperimentShow,
}

var experimentStatusCmd = &cobra.Command{
	Use:   "status <id> <draft|running|paused|completed>",
	Short: "Move an experiment to a target status",
	Args:  cobra.ExactArgs(2),
	RunE:  runExperimentStatus,
}

var experimentActionsCmd = &cobra.Command{
	Use:   "actions <id>",
	Short: "List the actions available for an experiment",
	Args:  cobra.ExactArgs(1),
	RunE:  runExperimentActions,
}

var experimentDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete an experiment and its counters",
	Args:  cobra.ExactArgs(1),
	RunE:  runExperimentDelete,
}

// Flags
var (
	expDescription string
	expTraffic     int
	expVariants    []string
	expFile        string
)

func init() {
	rootCmd.AddCommand(experimentCmd)

	experimentCmd.AddCommand(experimentCreateCmd)
	experimentCmd.AddCommand(experimentListCmd)
	experimentCmd.AddCommand(experimentShowCmd)
	experimentCmd.AddCommand(experimentStatusCmd)
	experimentCmd.AddCommand(experimentActionsCmd)
	experimentCmd.AddCommand(experimentDeleteCmd)
	for _, action := range []domain.Action{domain.ActionStart, domain.ActionPause, domain.ActionResume, domain.ActionComplete} {
		experimentCmd.AddCommand(newActionCmd(action))
	}

	// Flags for create command
	experimentCreateCmd.Flags().StringVarP(&expDescription, "description", "d", "", "Description of the experiment")
	experimentCreateCmd.Flags().IntVarP(&expTraffic, "traffic", "t", 100, "Percentage of participants included in the experiment (1-100)")
	experimentCreateCmd.Flags().StringArrayVar(&expVariants, "variant", nil, "Variant as NAME:PERCENT[:DESCRIPTION], repeatable")
	experimentCreateCmd.Flags().StringVarP(&expFile, "file", "f", "", "Read the experiment definition from a YAML file")
}

func newActionCmd(action domain.Action) *cobra.Command {
	return &cobra.Command{
		Use:   string(action) + " <id>",
		Short: fmt.Sprintf("Apply the %s action to an experiment", action),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(app *AppContext) error {
				exp, err := app.Service.ApplyAction(cmd.Context(), args[0], action)
				if err != nil {
					return err
				}
				if outputFmt == outputJSON {
					return printJSON(cmd.OutOrStdout(), toView(exp))
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Experiment %s is now %s\n", exp.Name, colorStatus(exp.Status))
				return nil
			})
		},
	}
}

// parseVariant parses NAME:PERCENT[:DESCRIPTION].
func parseVariant(s string) (domain.Variant, error) {
	parts := strings.SplitN(s, ":", 3)
	if len(parts) < 2 {
		return domain.Variant{}, domain.Validationf("variant %q must be NAME:PERCENT[:DESCRIPTION]", s)
	}
	pct, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return domain.Variant{}, domain.Validationf("variant %q has a non-numeric percentage", s)
	}
	v := domain.Variant{Name: strings.TrimSpace(parts[0]), Percentage: pct}
	if len(parts) == 3 {
		v.Description = strings.TrimSpace(parts[2])
	}
	return v, nil
}

func buildDraft(args []string) (domain.ExperimentDraft, error) {
	if expFile != "" {
		if len(args) > 0 || len(expVariants) > 0 {
			return domain.ExperimentDraft{}, fmt.Errorf("--file cannot be combined with a name or --variant")
		}
		f, err := os.Open(expFile)
		if err != nil {
			return domain.ExperimentDraft{}, fmt.Errorf("failed to open experiment definition: %w", err)
		}
		defer f.Close()
		return lifecycle.LoadDraft(f)
	}

	if len(args) == 0 {
		return domain.ExperimentDraft{}, fmt.Errorf("experiment name is required unless --file is given")
	}

	b := lifecycle.NewDraftBuilder(args[0]).
		Description(expDescription).
		Traffic(expTraffic)
	if len(expVariants) > 0 {
		b.ClearVariants()
		for _, raw := range expVariants {
			v, err := parseVariant(raw)
			if err != nil {
				return domain.ExperimentDraft{}, err
			}
			b.AddVariant(v)
		}
	}
	return b.Build()
}

func runExperimentCreate(cmd *cobra.Command, args []string) error {
	draft, err := buildDraft(args)
	if err != nil {
		return err
	}

	return withApp(cmd.Context(), func(app *AppContext) error {
		exp, err := app.Service.CreateExperiment(cmd.Context(), draft)
		if err != nil {
			return err
		}
		if outputFmt == outputJSON {
			return printJSON(cmd.OutOrStdout(), toView(exp))
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Created experiment %s (%s) in %s\n", exp.Name, exp.ID, colorStatus(exp.Status))
		return nil
	})
}

func runExperimentList(cmd *cobra.Command, args []string) error {
	return withApp(cmd.Context(), func(app *AppContext) error {
		exps, err := app.Service.ListExperiments(cmd.Context())
		if err != nil {
			return err
		}
		return printExperiments(cmd.OutOrStdout(), exps)
	})
}

func runExperimentShow(cmd *cobra.Command, args []string) error {
	return withApp(cmd.Context(), func(app *AppContext) error {
		exp, err := app.Service.GetExperiment(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return printExperiment(cmd.OutOrStdout(), exp)
	})
}

func runExperimentStatus(cmd *cobra.Command, args []string) error {
	target, err := domain.ParseStatus(args[1])
	if err != nil {
		return err
	}
	return withApp(cmd.Context(), func(app *AppContext) error {
		exp, err := app.Service.SetStatus(cmd.Context(), args[0], target)
		if err != nil {
			return err
		}
		if outputFmt == outputJSON {
			return printJSON(cmd.OutOrStdout(), toView(exp))
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Experiment %s is now %s\n", exp.Name, colorStatus(exp.Status))
		return nil
	})
}

func runExperimentActions(cmd *cobra.Command, args []string) error {
	return withApp(cmd.Context(), func(app *AppContext) error {
		actions, err := app.Service.AvailableActions(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if outputFmt == outputJSON {
			if actions == nil {
				actions = []domain.Action{}
			}
			return printJSON(cmd.OutOrStdout(), actions)
		}
		if len(actions) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No actions available")
			return nil
		}
		for _, a := range actions {
			fmt.Fprintln(cmd.OutOrStdout(), a)
		}
		return nil
	})
}

func runExperimentDelete(cmd *cobra.Command, args []string) error {
	return withApp(cmd.Context(), func(app *AppContext) error {
		if err := app.Service.DeleteExperiment(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted experiment %s\n", args[0])
		return nil
	})
}
