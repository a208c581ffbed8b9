package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/pdiddy/paper-harvester/internal/crawl"
	"github.com/pdiddy/paper-harvester/internal/download"
	"github.com/pdiddy/paper-harvester/internal/httputil"
	"github.com/pdiddy/paper-harvester/internal/journal"
	"github.com/pdiddy/paper-harvester/internal/ledger"
)

var crawlCmd = &cobra.Command{
	Use:   "crawl",
	Short: "Download papers and metadata from the archive",
	Long: `Crawl walks the archive index, every year archive it links, and every
paper page listed there. Each paper's PDF is downloaded into the PDF
directory and one row is appended to the metadata ledger. Papers without a
PDF link are recorded with an empty PDF URL.

Papers already in the ledger are skipped, so an interrupted crawl can be
rerun.`,
	RunE: runCrawl,
}

func init() {
	crawlCmd.Flags().String("root-url", "", "archive index URL")
	crawlCmd.Flags().Int("workers", 0, "paper pages processed at once")
	crawlCmd.Flags().Int("max-attempts", 0, "attempts per paper on network errors")
	crawlCmd.Flags().Float64("requests-per-second", 0, "pace all requests (0 disables)")

	viper.BindPFlag(keyRootURL, crawlCmd.Flags().Lookup("root-url"))                      //nolint:errcheck
	viper.BindPFlag(keyWorkers, crawlCmd.Flags().Lookup("workers"))                       //nolint:errcheck
	viper.BindPFlag(keyMaxAttempts, crawlCmd.Flags().Lookup("max-attempts"))              //nolint:errcheck
	viper.BindPFlag(keyRequestsPerSecond, crawlCmd.Flags().Lookup("requests-per-second")) //nolint:errcheck

	rootCmd.AddCommand(crawlCmd)
}

func runCrawl(cmd *cobra.Command, args []string) error {
	cfg := crawlConfig(viper.GetViper())
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	known, err := knownURLs(cfg.Ledger())
	if err != nil {
		return err
	}

	w, err := ledger.Open(cfg.Ledger())
	if err != nil {
		return err
	}
	defer w.Close()

	j, err := journal.Open(cfg.Journal())
	if err != nil {
		return err
	}
	defer j.Close()

	fetcher := httputil.NewFetcher(nil, cfg.HTTPConfig)
	c := crawl.New(cfg, fetcher, download.New(fetcher, cfg.PDFDir), w, j, logger)
	c.SkipURLs(known)

	logger.Info("starting crawl",
		zap.String("root", cfg.RootURL),
		zap.String("pdf_dir", cfg.PDFDir),
		zap.String("ledger", w.Path()),
		zap.Int("workers", cfg.Workers),
		zap.Int("known", len(known)))

	result, err := c.Run(cmd.Context(), os.Stdout)
	printCrawlSummary(os.Stdout, result)
	if err != nil {
		return err
	}
	if result.Recorded() == 0 && result.Failed > 0 {
		return fmt.Errorf("no papers recorded, %d failed", result.Failed)
	}
	return nil
}

// knownURLs returns the paper URLs already in the ledger at path. A
// missing or empty ledger has none.
func knownURLs(path string) (map[string]bool, error) {
	info, err := os.Stat(path)
	if os.IsNotExist(err) || (err == nil && info.Size() == 0) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("stat ledger: %w", err)
	}
	tbl, err := ledger.Load(path)
	if err != nil {
		return nil, err
	}
	return tbl.SourceURLs(), nil
}

func printCrawlSummary(w io.Writer, r crawl.Result) {
	fmt.Fprintf(w, "\n%d papers in %d year archives: %d downloaded, %d without PDF, %d already recorded, %d failed\n",
		r.Papers, r.Years, r.Downloaded, r.NoAsset, r.Resumed, r.Failed)
	if r.YearsFailed > 0 {
		fmt.Fprintf(w, "%d year archive(s) could not be read\n", r.YearsFailed)
	}
}
