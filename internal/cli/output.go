package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/fatih/color"

	"github.com/emiliopalmerini/lostfound-admin/internal/domain"
	"github.com/emiliopalmerini/lostfound-admin/internal/util"
)

const (
	outputTable = "table"
	outputJSON  = "json"
)

var (
	statusColors = map[domain.Status]*color.Color{
		domain.StatusDraft:     color.New(color.FgHiBlack),
		domain.StatusRunning:   color.New(color.FgGreen, color.Bold),
		domain.StatusPaused:    color.New(color.FgYellow),
		domain.StatusCompleted: color.New(color.FgCyan),
	}
	warnColor = color.New(color.FgYellow)
)

func colorStatus(s domain.Status) string {
	if c, ok := statusColors[s]; ok {
		return c.Sprint(s)
	}
	return string(s)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// experimentView is the JSON shape shared with the HTTP API.
type experimentView struct {
	ExperimentID      string           `json:"experimentId"`
	Name              string           `json:"name"`
	Description       string           `json:"description"`
	Status            domain.Status    `json:"status"`
	TrafficPercentage int              `json:"trafficPercentage"`
	Variants          []domain.Variant `json:"variants"`
	CreatedAt         string           `json:"createdAt"`
	Metrics           struct {
		TotalParticipants int64 `json:"totalParticipants"`
	} `json:"metrics"`
}

func toView(e *domain.Experiment) experimentView {
	v := experimentView{
		ExperimentID:      e.ID,
		Name:              e.Name,
		Description:       e.Description,
		Status:            e.Status,
		TrafficPercentage: e.TrafficPercentage,
		Variants:          e.Variants,
		CreatedAt:         e.CreatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
	}
	v.Metrics.TotalParticipants = e.ParticipantCount
	return v
}

func printExperiments(w io.Writer, exps []*domain.Experiment) error {
	if outputFmt == outputJSON {
		views := make([]experimentView, 0, len(exps))
		for _, e := range exps {
			views = append(views, toView(e))
		}
		return printJSON(w, views)
	}

	if len(exps) == 0 {
		fmt.Fprintln(w, "No experiments found")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tSTATUS\tTRAFFIC\tVARIANTS\tPARTICIPANTS\tCREATED")
	fmt.Fprintln(tw, "--\t----\t------\t-------\t--------\t------------\t-------")
	for _, e := range exps {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d%%\t%d\t%s\t%s\n",
			e.ID, e.Name, colorStatus(e.Status), e.TrafficPercentage, len(e.Variants),
			util.FormatNumber(e.ParticipantCount), util.FormatDateTime(e.CreatedAt))
	}
	return tw.Flush()
}

func printExperiment(w io.Writer, e *domain.Experiment) error {
	if outputFmt == outputJSON {
		return printJSON(w, toView(e))
	}

	fmt.Fprintf(w, "Experiment: %s\n", e.Name)
	fmt.Fprintf(w, "ID:           %s\n", e.ID)
	fmt.Fprintf(w, "Status:       %s\n", colorStatus(e.Status))
	if e.Description != "" {
		fmt.Fprintf(w, "Description:  %s\n", e.Description)
	}
	fmt.Fprintf(w, "Traffic:      %d%%\n", e.TrafficPercentage)
	fmt.Fprintf(w, "Participants: %d\n", e.ParticipantCount)
	fmt.Fprintf(w, "Created:      %s\n", util.FormatDateTime(e.CreatedAt))
	fmt.Fprintf(w, "Updated:      %s\n", util.FormatDateTime(e.UpdatedAt))
	fmt.Fprintln(w)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "VARIANT\tSHARE\tDESCRIPTION")
	for _, v := range e.Variants {
		fmt.Fprintf(tw, "%s\t%d%%\t%s\n", v.Name, v.Percentage, v.Description)
	}
	return tw.Flush()
}

func printResults(w io.Writer, s *domain.ResultsSummary) error {
	if outputFmt == outputJSON {
		return printJSON(w, s)
	}

	fmt.Fprintf(w, "Results for %s (%s), %d participants\n\n", s.ExperimentID, colorStatus(s.Status), s.TotalParticipants)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "VARIANT\tPARTICIPANTS\tCONVERSIONS\tRATE")
	for _, v := range s.Variants {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%s\n", v.Name, v.Participants, v.Conversions, util.FormatPercent(v.ConversionRate, false))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if len(s.Comparisons) == 0 {
		return nil
	}
	fmt.Fprintln(w)
	tw = tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "CONTROL\tTREATMENT\tCONTROL RATE\tTREATMENT RATE\tLIFT")
	for _, c := range s.Comparisons {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", c.ControlVariant, c.TreatmentVariant,
			util.FormatPercent(c.ControlConversionRate, false),
			util.FormatPercent(c.TreatmentConversionRate, false),
			util.FormatPercent(c.RelativeLift, true))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if s.Comparison != nil && s.Comparison.NeedsMoreData {
		fmt.Fprintln(w)
		warnColor.Fprintf(w, "Needs more data: fewer than %d participants. This is a sample-size gate, not a significance test.\n", domain.NeedsMoreDataThreshold)
	}
	return nil
}
