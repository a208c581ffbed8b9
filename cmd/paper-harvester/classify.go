package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/pdiddy/paper-harvester/internal/classify"
	"github.com/pdiddy/paper-harvester/internal/ledger"
	"github.com/pdiddy/paper-harvester/internal/resolve"
)

var classifyCmd = &cobra.Command{
	Use:   "classify",
	Short: "Label downloaded papers with a taxonomy category",
	Long: `Classify reads the metadata ledger and, for every row without a category,
finds the paper's PDF, sends an excerpt of its first pages to the
classification model and stores the returned label. Answers that are not
exactly one of the taxonomy labels are stored as "Unknown", as are papers
whose PDF cannot be found or read.

The ledger is saved after every row; rerunning skips rows that already have
a category.`,
	RunE: runClassify,
}

func init() {
	classifyCmd.Flags().String("model", "", "classification model identifier")
	classifyCmd.Flags().String("taxonomy-file", "", "YAML file listing the taxonomy labels")
	classifyCmd.Flags().Bool("retry-unknown", false, "reprocess rows previously marked Unknown")

	viper.BindPFlag(keyModel, classifyCmd.Flags().Lookup("model"))                //nolint:errcheck
	viper.BindPFlag(keyTaxonomyFile, classifyCmd.Flags().Lookup("taxonomy-file")) //nolint:errcheck
	viper.BindPFlag(keyRetryUnknown, classifyCmd.Flags().Lookup("retry-unknown")) //nolint:errcheck

	rootCmd.AddCommand(classifyCmd)
}

func runClassify(cmd *cobra.Command, args []string) error {
	cfg, tax, err := classifyConfig(viper.GetViper())
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	tbl, err := ledger.Load(cfg.Ledger())
	if err != nil {
		return err
	}

	s := &classify.Sweeper{
		Table:     tbl,
		Resolver:  resolve.FileResolver{Dir: cfg.PDFDir},
		Extractor: classify.PDFExtractor{},
		Backend:   classify.NewClaudeBackend(cfg.APIKey, cfg.Model),
		Taxonomy:  tax,
		Config:    cfg,
		Logger:    logger,
	}

	logger.Info("starting classification",
		zap.String("ledger", tbl.Path()),
		zap.Int("rows", tbl.Len()),
		zap.String("model", cfg.Model),
		zap.Bool("retry_unknown", cfg.RetryUnknown))

	summary, err := s.Run(cmd.Context(), os.Stdout)
	printClassifySummary(os.Stdout, summary)
	if err != nil {
		return err
	}
	if summary.SaveErrors > 0 {
		return fmt.Errorf("ledger could not be saved %d time(s)", summary.SaveErrors)
	}
	return nil
}

func printClassifySummary(w io.Writer, s classify.Summary) {
	fmt.Fprintf(w, "\n%d rows: %d classified, %d unknown, %d skipped\n",
		s.Total(), s.Classified, s.Unknown, s.Skipped)
}
