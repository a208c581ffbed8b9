package main

import (
	"fmt"
	"io"
	"os"
	"slices"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/paper-harvester/internal/journal"
	"github.com/pdiddy/paper-harvester/internal/ledger"
	"github.com/pdiddy/paper-harvester/pkg/types"
)

// unclassifiedLabel is how status reports rows with an empty category.
const unclassifiedLabel = "Unclassified"

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Summarize the ledger and recent crawl runs",
	Long: `Status prints ledger counts by category and the most recent crawl runs
from the crawl journal, followed by the pages that failed in the latest run.`,
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().Int("runs", 5, "number of recent crawl runs to show")

	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg := crawlConfig(viper.GetViper())
	if cfg.PDFDir == "" && cfg.LedgerPath == "" {
		return fmt.Errorf("pdf_dir is required")
	}
	limit, _ := cmd.Flags().GetInt("runs")
	out := cmd.OutOrStdout()

	if _, err := os.Stat(cfg.Ledger()); err == nil {
		tbl, err := ledger.Load(cfg.Ledger())
		if err != nil {
			return err
		}
		printLedgerStats(out, tbl.Records())
	} else {
		fmt.Fprintf(out, "no ledger at %s\n", cfg.Ledger())
	}

	if _, err := os.Stat(cfg.Journal()); err != nil {
		fmt.Fprintf(out, "no crawl journal at %s\n", cfg.Journal())
		return nil
	}
	j, err := journal.Open(cfg.Journal())
	if err != nil {
		return err
	}
	defer j.Close()

	runs, err := j.Runs(cmd.Context(), limit)
	if err != nil {
		return err
	}
	fmt.Fprintln(out, "\nrecent crawl runs:")
	for _, r := range runs {
		finished := "running or interrupted"
		if !r.Finished.IsZero() {
			finished = r.Finished.Sub(r.Started).Round(time.Second).String()
		}
		fmt.Fprintf(out, "  %s  %s  %d downloaded, %d without PDF, %d failed  (%s)\n",
			r.Started.Local().Format(types.TimestampLayout), r.ID, r.Downloaded, r.NoAsset, r.Failed, finished)
	}
	if len(runs) == 0 {
		return nil
	}

	failures, err := j.Failures(cmd.Context(), runs[0].ID)
	if err != nil {
		return err
	}
	if len(failures) > 0 {
		fmt.Fprintf(out, "\nfailed in latest run:\n")
		for _, f := range failures {
			fmt.Fprintf(out, "  %s (%d attempts): %s\n", f.URL, f.Attempts, f.Err)
		}
	}
	return nil
}

func printLedgerStats(w io.Writer, records []types.PaperRecord) {
	withAsset := 0
	byCategory := make(map[string]int)
	for _, rec := range records {
		if rec.HasAsset() {
			withAsset++
		}
		category := rec.Category
		if category == "" {
			category = unclassifiedLabel
		}
		byCategory[category]++
	}

	fmt.Fprintf(w, "%d papers in ledger, %d with PDF\n", len(records), withAsset)
	names := make([]string, 0, len(byCategory))
	for name := range byCategory {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		fmt.Fprintf(w, "  %-45s %d\n", name, byCategory[name])
	}
}
