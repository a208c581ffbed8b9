// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package crawl walks a paged publication archive and downloads each
// paper's PDF. The traversal has exactly three levels: the index page
// lists year archives, each year archive lists paper pages, and each paper
// page links its PDF. Index and year pages are fetched in order; paper
// pages are processed by a bounded pool of workers. A ledger row is written
// only after the paper's PDF is fully on disk, or immediately when the
// paper page has no PDF link.
package crawl

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/pdiddy/paper-harvester/internal/download"
	"github.com/pdiddy/paper-harvester/internal/httputil"
	"github.com/pdiddy/paper-harvester/internal/journal"
	"github.com/pdiddy/paper-harvester/internal/links"
	"github.com/pdiddy/paper-harvester/pkg/types"
)

const defaultWorkers = 50

// PageFetcher retrieves an HTML page.
type PageFetcher interface {
	Get(ctx context.Context, url string) ([]byte, error)
}

// AssetDownloader stores the asset at assetURL under name and returns the
// final path.
type AssetDownloader interface {
	Download(ctx context.Context, assetURL, name string) (string, error)
}

// RowAppender appends one ledger row. It must be safe for concurrent use.
type RowAppender interface {
	Append(rec types.PaperRecord) error
}

// Journal records run history. It is optional.
type Journal interface {
	StartRun(ctx context.Context, rootURL string) (string, error)
	Record(ctx context.Context, runID string, o journal.Outcome) error
	FinishRun(ctx context.Context, runID string) error
}

// Result holds counts from one crawl.
type Result struct {
	RunID       string
	Years       int
	YearsFailed int
	Papers      int
	Downloaded  int
	NoAsset     int
	Resumed     int
	Failed      int
}

// Recorded returns the number of ledger rows written by the run.
func (r Result) Recorded() int {
	return r.Downloaded + r.NoAsset
}

// HasFailures reports whether any year archive or paper failed.
func (r Result) HasFailures() bool {
	return r.Failed > 0 || r.YearsFailed > 0
}

// Crawler runs one crawl. Create it with New.
type Crawler struct {
	cfg        types.CrawlConfig
	fetcher    PageFetcher
	downloader AssetDownloader
	ledger     RowAppender
	journal    Journal
	logger     *zap.Logger
	policy     httputil.Policy
	skip       map[string]bool

	// now stamps ledger rows; tests replace it.
	now func() time.Time

	mu     sync.Mutex
	out    io.Writer
	result Result
}

// New creates a Crawler. journal may be nil.
func New(cfg types.CrawlConfig, fetcher PageFetcher, downloader AssetDownloader, ledger RowAppender, journal Journal, logger *zap.Logger) *Crawler {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Crawler{
		cfg:        cfg,
		fetcher:    fetcher,
		downloader: downloader,
		ledger:     ledger,
		journal:    journal,
		logger:     logger,
		now:        time.Now,
	}
	c.policy = httputil.Policy{
		MaxAttempts: cfg.MaxAttempts,
		Backoff:     cfg.RetryBackoff,
		Retryable:   httputil.IsTransient,
	}
	return c
}

// SkipURLs marks paper page URLs that already have a ledger row. They are
// counted as resumed and not fetched again.
func (c *Crawler) SkipURLs(urls map[string]bool) {
	c.skip = urls
}

// Run crawls from the configured root URL and writes one status line per
// paper to w. It fails only when the index page cannot be fetched or
// parsed, or when ctx is canceled; every other failure is counted and the
// crawl continues.
func (c *Crawler) Run(ctx context.Context, w io.Writer) (Result, error) {
	c.out = w
	c.result = Result{}

	root, err := url.Parse(c.cfg.RootURL)
	if err != nil {
		return Result{}, fmt.Errorf("parsing root URL: %w", err)
	}

	if c.journal != nil {
		id, err := c.journal.StartRun(ctx, c.cfg.RootURL)
		if err != nil {
			return Result{}, err
		}
		c.result.RunID = id
		defer func() {
			if err := c.journal.FinishRun(context.WithoutCancel(ctx), id); err != nil {
				c.logger.Warn("finishing journal run", zap.Error(err))
			}
		}()
	}

	years, err := c.links(ctx, root, c.cfg.Year)
	if err != nil {
		return c.result, fmt.Errorf("reading index %s: %w", root, err)
	}
	c.logger.Info("found year archives", zap.Int("count", len(years)))

	var g errgroup.Group
	g.SetLimit(c.workers())
	seen := make(map[string]bool)

	for _, yearURL := range years {
		if ctx.Err() != nil {
			break
		}
		c.result.Years++

		base, err := url.Parse(yearURL)
		if err != nil {
			c.yearFailed(yearURL, err)
			continue
		}
		papers, err := c.links(ctx, base, c.cfg.Paper)
		if err != nil {
			c.yearFailed(yearURL, err)
			continue
		}
		c.logger.Debug("found papers", zap.String("year", yearURL), zap.Int("count", len(papers)))

		for _, paperURL := range papers {
			if seen[paperURL] {
				continue
			}
			seen[paperURL] = true

			c.mu.Lock()
			c.result.Papers++
			if c.skip[paperURL] {
				c.result.Resumed++
				c.mu.Unlock()
				continue
			}
			c.mu.Unlock()

			g.Go(func() error {
				c.processPaper(ctx, paperURL)
				return nil
			})
		}
	}
	g.Wait()

	if err := ctx.Err(); err != nil {
		return c.result, err
	}
	return c.result, nil
}

// links fetches an index or year page once and extracts the links
// matching selector. Only paper pages are retried.
func (c *Crawler) links(ctx context.Context, page *url.URL, selector string) ([]string, error) {
	doc, err := c.fetcher.Get(ctx, page.String())
	if err != nil {
		return nil, err
	}
	return links.Extract(doc, page, selector)
}

func (c *Crawler) workers() int {
	if c.cfg.Workers > 0 {
		return c.cfg.Workers
	}
	return defaultWorkers
}

func (c *Crawler) yearFailed(yearURL string, err error) {
	c.logger.Warn("skipping year archive", zap.String("url", yearURL), zap.Error(err))
	c.mu.Lock()
	c.result.YearsFailed++
	fmt.Fprintf(c.out, "failed     %s: %v\n", yearURL, err)
	c.mu.Unlock()
}

// processPaper fetches one paper page, downloads its asset and records
// the outcome. Fetch and download are retried together under the policy.
func (c *Crawler) processPaper(ctx context.Context, pageURL string) {
	var rec types.PaperRecord
	attempts, err := c.policy.Do(ctx, func(ctx context.Context) error {
		r, err := c.fetchPaper(ctx, pageURL)
		if err != nil {
			return err
		}
		rec = r
		return nil
	})
	if err == nil {
		rec.DownloadedAt = c.now()
		err = c.ledger.Append(rec)
	}

	outcome := journal.Outcome{URL: pageURL, Title: rec.Title, Attempts: attempts}
	c.mu.Lock()
	switch {
	case err != nil:
		c.result.Failed++
		outcome.Status = journal.StatusFailed
		outcome.Err = err.Error()
		fmt.Fprintf(c.out, "failed     %s: %v\n", pageURL, err)
	case rec.HasAsset():
		c.result.Downloaded++
		outcome.Status = journal.StatusDownloaded
		fmt.Fprintf(c.out, "downloaded %s\n", rec.Title)
	default:
		c.result.NoAsset++
		outcome.Status = journal.StatusNoAsset
		fmt.Fprintf(c.out, "no asset   %s\n", rec.Title)
	}
	c.mu.Unlock()

	if err != nil {
		c.logger.Warn("paper failed", zap.String("url", pageURL), zap.Int("attempts", attempts), zap.Error(err))
	}
	if c.journal != nil {
		if jerr := c.journal.Record(context.WithoutCancel(ctx), c.result.RunID, outcome); jerr != nil {
			c.logger.Warn("recording journal outcome", zap.String("url", pageURL), zap.Error(jerr))
		}
	}
}

// fetchPaper makes one attempt at a paper: fetch the page, find the asset
// link and download it. A page without an asset link is not an error.
func (c *Crawler) fetchPaper(ctx context.Context, pageURL string) (types.PaperRecord, error) {
	base, err := url.Parse(pageURL)
	if err != nil {
		return types.PaperRecord{}, err
	}
	doc, err := c.fetcher.Get(ctx, pageURL)
	if err != nil {
		return types.PaperRecord{}, err
	}

	title, err := links.Title(doc)
	if err != nil {
		return types.PaperRecord{}, err
	}
	if title == "" {
		title = titleFromURL(base)
	}
	rec := types.PaperRecord{Title: title, SourceURL: pageURL}

	asset, err := links.First(doc, base, c.cfg.Asset)
	if err != nil {
		return types.PaperRecord{}, err
	}
	if asset == "" {
		return rec, nil
	}

	if _, err := c.downloader.Download(ctx, asset, download.Sanitize(title)); err != nil {
		return types.PaperRecord{}, err
	}
	rec.AssetURL = asset
	return rec, nil
}

// titleFromURL names a paper whose page has no <title> after the last
// path segment of its URL.
func titleFromURL(u *url.URL) string {
	name := path.Base(u.Path)
	return strings.TrimSuffix(name, path.Ext(name))
}
