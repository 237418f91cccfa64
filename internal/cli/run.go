package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/taxlien-works/harvest/internal/ui"
	"github.com/taxlien-works/harvest/pkg/models"
)

var (
	runCounty          string
	runPartyType       string
	runInstrument      string
	runName            string
	runFromDate        string
	runToDate          string
	runIncludeCounties bool
	runMaxRows         string
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run an extraction job for one search criterion",
	Long: `Submits a name search against the lien index, walks every results page,
extracts each record (falling back to OCR for scanned-image pages), renders a
PDF artifact per record, and writes the deduplicated export workbook.`,
	Example: `  # Liens against a tax commissioner in county 60, 2023
  $ harvest run --county=60 --name="TAX COMMISSIONER" --from=01/01/2023 --to=12/31/2023

  # Include surrounding counties, debtor-side search
  $ harvest run --county=33 --name="SMITH" --party-type=2 --include-counties`,
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVar(&runCounty, "county", "", "County option value on the search form (required)")
	runCmd.Flags().StringVar(&runPartyType, "party-type", "2", "Party type to search (2 = direct party / debtor)")
	runCmd.Flags().StringVar(&runInstrument, "instrument", "2", "Instrument code (2 = lien)")
	runCmd.Flags().StringVar(&runName, "name", "", "Party name to search (required)")
	runCmd.Flags().StringVar(&runFromDate, "from", "", "Start of the filing date window, MM/DD/YYYY (required)")
	runCmd.Flags().StringVar(&runToDate, "to", "", "End of the filing date window, MM/DD/YYYY (required)")
	runCmd.Flags().BoolVar(&runIncludeCounties, "include-counties", false, "Include surrounding counties")
	runCmd.Flags().StringVar(&runMaxRows, "max-rows", "", "Rows per results page")
	runCmd.MarkFlagRequired("county")
	runCmd.MarkFlagRequired("name")
	runCmd.MarkFlagRequired("from")
	runCmd.MarkFlagRequired("to")
}

func runRun(cmd *cobra.Command, args []string) error {
	a := GetApp()

	crit := models.SearchCriterion{
		County:          runCounty,
		PartyType:       runPartyType,
		InstrumentType:  runInstrument,
		SearchName:      runName,
		FromDate:        runFromDate,
		ToDate:          runToDate,
		IncludeCounties: runIncludeCounties,
		MaxRows:         runMaxRows,
	}

	id := a.Controller.StartJob(context.Background(), crit)
	fmt.Printf("\n%s %s\n\n", ui.Bold("Job started:"), id)

	bar := progressbar.NewOptions(-1,
		progressbar.OptionSetDescription("establishing session"),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionShowCount(),
	)

	done := make(chan models.JobState, 1)
	go func() {
		state, _ := a.Controller.Wait(id)
		done <- state
	}()

	var final models.JobState
poll:
	for {
		select {
		case final = <-done:
			break poll
		case <-time.After(time.Second):
			if state, err := a.Controller.GetJobState(id); err == nil {
				bar.Describe(fmt.Sprintf("page %d | %d records | %d failed",
					state.PagesProcessed, state.RecordsFound, state.RecordsFailed))
				_ = bar.Add(1)
			}
		}
	}
	_ = bar.Finish()
	fmt.Println()

	return printSummary(final)
}

func printSummary(state models.JobState) error {
	status := string(state.Status)
	switch state.Status {
	case models.StatusCompleted:
		status = ui.Success(status)
	case models.StatusPartiallyFailed, models.StatusCancelled:
		status = ui.Warn(status)
	case models.StatusFailed:
		status = ui.Error(status)
	}

	fmt.Printf("%s %s\n", ui.Bold("Status:"), status)
	fmt.Printf("%s %d pages, %d records exported, %d excluded\n",
		ui.Bold("Processed:"), state.PagesProcessed, state.RecordsFound, state.RecordsFailed)
	if state.ExportPath != "" {
		fmt.Printf("%s %s\n", ui.Bold("Export:"), state.ExportPath)
	}
	if !state.FinishedAt.IsZero() {
		fmt.Printf("%s %s\n", ui.Bold("Duration:"), state.FinishedAt.Sub(state.StartedAt).Round(time.Second))
	}

	var excluded []models.RecordOutcome
	for _, o := range state.Outcomes {
		if o.Outcome == models.OutcomeExcluded {
			excluded = append(excluded, o)
		}
	}
	if len(excluded) > 0 {
		fmt.Printf("\n%s\n", ui.Bold("Excluded records:"))
		for _, o := range excluded {
			fmt.Printf("  %s %s (%s)\n", ui.ColorDim+"-"+ui.ColorReset, o.SourceURL, o.Reason)
		}
	}

	if state.Status == models.StatusFailed {
		return fmt.Errorf("job failed: %s", state.Error)
	}
	return nil
}
