package types

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"
)

// LedgerFile is the default ledger file name inside the PDF directory.
const LedgerFile = "metadata.csv"

// HTTPConfig holds shared HTTP settings used by stages that make network requests.
type HTTPConfig struct {
	// Timeout bounds a single request attempt, including reading the body.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests
	// (e.g. "paper-harvester/0.1").
	UserAgent string `json:"user_agent" yaml:"user_agent"`

	// RequestsPerSecond paces all requests of a run. Zero disables pacing.
	RequestsPerSecond float64 `json:"requests_per_second" yaml:"requests_per_second"`
}

// SelectorConfig holds the CSS selectors for each crawl level.
type SelectorConfig struct {
	// Year matches year-archive links on the index page.
	Year string `json:"year_selector" yaml:"year_selector"`

	// Paper matches paper detail links on a year page.
	Paper string `json:"paper_selector" yaml:"paper_selector"`

	// Asset matches the PDF link on a paper page.
	Asset string `json:"asset_selector" yaml:"asset_selector"`
}

// CrawlConfig holds settings for the crawl stage.
type CrawlConfig struct {
	HTTPConfig     `yaml:",inline"`
	SelectorConfig `yaml:",inline"`

	// RootURL is the archive index page.
	RootURL string `json:"root_url" yaml:"root_url"`

	// PDFDir is the flat directory receiving downloaded PDFs.
	PDFDir string `json:"pdf_dir" yaml:"pdf_dir"`

	// LedgerPath is the CSV ledger (default PDFDir/metadata.csv).
	LedgerPath string `json:"ledger" yaml:"ledger"`

	// JournalPath is the SQLite crawl journal (default PDFDir/crawl.db).
	JournalPath string `json:"journal" yaml:"journal"`

	// Workers bounds the number of paper pages processed at once (default 50).
	Workers int `json:"workers" yaml:"workers"`

	// MaxAttempts is the number of attempts per paper on transient failures (default 3).
	MaxAttempts int `json:"max_attempts" yaml:"max_attempts"`

	// RetryBackoff is the pause between attempts for one paper.
	RetryBackoff time.Duration `json:"retry_backoff" yaml:"retry_backoff"`
}

// Validate checks the settings that make a crawl impossible.
func (c CrawlConfig) Validate() error {
	var errs []error
	if c.PDFDir == "" {
		errs = append(errs, errors.New("pdf_dir is required"))
	}
	if c.RootURL == "" {
		errs = append(errs, errors.New("root_url is required"))
	}
	if c.Workers <= 0 {
		errs = append(errs, fmt.Errorf("workers must be positive, got %d", c.Workers))
	}
	if c.MaxAttempts <= 0 {
		errs = append(errs, fmt.Errorf("max_attempts must be positive, got %d", c.MaxAttempts))
	}
	if c.Year == "" || c.Paper == "" || c.Asset == "" {
		errs = append(errs, errors.New("year, paper and asset selectors are required"))
	}
	return errors.Join(errs...)
}

// Ledger returns the ledger path, defaulting into the PDF directory.
func (c CrawlConfig) Ledger() string {
	if c.LedgerPath != "" {
		return c.LedgerPath
	}
	return filepath.Join(c.PDFDir, LedgerFile)
}

// Journal returns the journal path, defaulting into the PDF directory.
func (c CrawlConfig) Journal() string {
	if c.JournalPath != "" {
		return c.JournalPath
	}
	return filepath.Join(c.PDFDir, "crawl.db")
}

// AIConfig holds shared settings for stages that call a Generative AI API.
type AIConfig struct {
	// Model is the AI model identifier (e.g. "claude-haiku-4-5").
	Model string `json:"model" yaml:"model"`

	// APIKey is the authentication key for the AI API.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty"`

	// Timeout bounds a single classification call. Zero leaves it to the transport.
	Timeout time.Duration `json:"classify_timeout" yaml:"classify_timeout"`
}

// ClassifyConfig holds settings for the classification sweep.
type ClassifyConfig struct {
	AIConfig `yaml:",inline"`

	// PDFDir is the directory the crawl downloaded into.
	PDFDir string `json:"pdf_dir" yaml:"pdf_dir"`

	// LedgerPath is the CSV ledger (default PDFDir/metadata.csv).
	LedgerPath string `json:"ledger" yaml:"ledger"`

	// Pages is how many leading pages are read from each PDF (default 2).
	Pages int `json:"pages" yaml:"pages"`

	// ExcerptChars caps the excerpt sent for classification (default 1000).
	ExcerptChars int `json:"excerpt_chars" yaml:"excerpt_chars"`

	// Taxonomy lists the allowed labels in order.
	Taxonomy []string `json:"taxonomy" yaml:"taxonomy"`

	// RetryUnknown re-processes rows previously marked Unknown.
	RetryUnknown bool `json:"retry_unknown" yaml:"retry_unknown"`
}

// Validate checks the settings that make a sweep impossible.
func (c ClassifyConfig) Validate() error {
	var errs []error
	if c.PDFDir == "" {
		errs = append(errs, errors.New("pdf_dir is required"))
	}
	if c.APIKey == "" {
		errs = append(errs, errors.New("api_key is required (set ANTHROPIC_API_KEY or .secrets/anthropic-api-key)"))
	}
	if c.Pages <= 0 {
		errs = append(errs, fmt.Errorf("pages must be positive, got %d", c.Pages))
	}
	if c.ExcerptChars <= 0 {
		errs = append(errs, fmt.Errorf("excerpt_chars must be positive, got %d", c.ExcerptChars))
	}
	if len(c.Taxonomy) == 0 {
		errs = append(errs, errors.New("taxonomy must not be empty"))
	}
	return errors.Join(errs...)
}

// Ledger returns the ledger path, defaulting into the PDF directory.
func (c ClassifyConfig) Ledger() string {
	if c.LedgerPath != "" {
		return c.LedgerPath
	}
	return filepath.Join(c.PDFDir, LedgerFile)
}

// LogConfig selects the logger level and encoding.
type LogConfig struct {
	// Level is a zap level name: debug, info, warn, error.
	Level string `json:"level" yaml:"level"`

	// Format is "console" or "json".
	Format string `json:"format" yaml:"format"`
}
