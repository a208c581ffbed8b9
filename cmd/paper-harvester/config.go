package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/pdiddy/paper-harvester/internal/secrets"
	"github.com/pdiddy/paper-harvester/internal/taxonomy"
	"github.com/pdiddy/paper-harvester/pkg/types"
)

// Configuration keys. Nested keys map to env vars with "." replaced by "_".
const (
	keyPDFDir            = "pdf_dir"
	keyLedger            = "ledger"
	keyJournal           = "journal"
	keyRootURL           = "root_url"
	keyWorkers           = "workers"
	keyMaxAttempts       = "max_attempts"
	keyRetryBackoff      = "retry_backoff"
	keyTimeout           = "timeout"
	keyUserAgent         = "user_agent"
	keyRequestsPerSecond = "requests_per_second"
	keyYearSelector      = "year_selector"
	keyPaperSelector     = "paper_selector"
	keyAssetSelector     = "asset_selector"

	keyAPIKey          = "api_key"
	keyModel           = "model"
	keyPages           = "pages"
	keyExcerptChars    = "excerpt_chars"
	keyTaxonomy        = "taxonomy"
	keyTaxonomyFile    = "taxonomy_file"
	keyRetryUnknown    = "retry_unknown"
	keyClassifyTimeout = "classify_timeout"

	keyLogLevel  = "log.level"
	keyLogFormat = "log.format"
)

// configure sets defaults and environment bindings on v. Every key can be
// set with PAPER_HARVESTER_<KEY>; a few also accept the names the original
// scripts used.
func configure(v *viper.Viper) {
	v.SetEnvPrefix("PAPER_HARVESTER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.BindEnv(keyPDFDir, "PAPER_HARVESTER_PDF_DIR", "PDF_FOLDER_PATH")   //nolint:errcheck
	v.BindEnv(keyAPIKey, "PAPER_HARVESTER_API_KEY", "ANTHROPIC_API_KEY") //nolint:errcheck

	v.SetDefault(keyRootURL, "https://papers.nips.cc")
	v.SetDefault(keyWorkers, 50)
	v.SetDefault(keyMaxAttempts, 3)
	v.SetDefault(keyRetryBackoff, time.Second)
	v.SetDefault(keyTimeout, 90*time.Second)
	v.SetDefault(keyUserAgent, "paper-harvester/"+version)
	v.SetDefault(keyRequestsPerSecond, 0.0)
	v.SetDefault(keyYearSelector, "a[href^='/paper_files/paper/']")
	v.SetDefault(keyPaperSelector, "ul.paper-list li a[href$='Abstract-Conference.html']")
	v.SetDefault(keyAssetSelector, "a[href$='Paper-Conference.pdf']")

	v.SetDefault(keyModel, "claude-haiku-4-5")
	v.SetDefault(keyPages, 2)
	v.SetDefault(keyExcerptChars, 1000)
	v.SetDefault(keyClassifyTimeout, 60*time.Second)

	v.SetDefault(keyLogLevel, "info")
	v.SetDefault(keyLogFormat, "console")
}

func crawlConfig(v *viper.Viper) types.CrawlConfig {
	return types.CrawlConfig{
		HTTPConfig: types.HTTPConfig{
			Timeout:           v.GetDuration(keyTimeout),
			UserAgent:         v.GetString(keyUserAgent),
			RequestsPerSecond: v.GetFloat64(keyRequestsPerSecond),
		},
		SelectorConfig: types.SelectorConfig{
			Year:  v.GetString(keyYearSelector),
			Paper: v.GetString(keyPaperSelector),
			Asset: v.GetString(keyAssetSelector),
		},
		RootURL:      v.GetString(keyRootURL),
		PDFDir:       v.GetString(keyPDFDir),
		LedgerPath:   v.GetString(keyLedger),
		JournalPath:  v.GetString(keyJournal),
		Workers:      v.GetInt(keyWorkers),
		MaxAttempts:  v.GetInt(keyMaxAttempts),
		RetryBackoff: v.GetDuration(keyRetryBackoff),
	}
}

// classifyConfig reads the sweep settings. The taxonomy is resolved from
// taxonomy_file, then the taxonomy list, then the built-in default.
func classifyConfig(v *viper.Viper) (types.ClassifyConfig, taxonomy.Taxonomy, error) {
	tax, err := taxonomyFrom(v)
	if err != nil {
		return types.ClassifyConfig{}, taxonomy.Taxonomy{}, err
	}
	cfg := types.ClassifyConfig{
		AIConfig: types.AIConfig{
			Model:   v.GetString(keyModel),
			APIKey:  secretDefault(secrets.AnthropicAPIKey, v.GetString(keyAPIKey)),
			Timeout: v.GetDuration(keyClassifyTimeout),
		},
		PDFDir:       v.GetString(keyPDFDir),
		LedgerPath:   v.GetString(keyLedger),
		Pages:        v.GetInt(keyPages),
		ExcerptChars: v.GetInt(keyExcerptChars),
		Taxonomy:     tax.Labels(),
		RetryUnknown: v.GetBool(keyRetryUnknown),
	}
	return cfg, tax, nil
}

func taxonomyFrom(v *viper.Viper) (taxonomy.Taxonomy, error) {
	if path := v.GetString(keyTaxonomyFile); path != "" {
		return taxonomy.Load(path)
	}
	if labels := taxonomyLabels(v); len(labels) > 0 {
		t, err := taxonomy.New(labels)
		if err != nil {
			return taxonomy.Taxonomy{}, fmt.Errorf("taxonomy: %w", err)
		}
		return t, nil
	}
	return taxonomy.Default(), nil
}

// taxonomyLabels reads the taxonomy list. A list from an environment
// variable arrives as one string; labels contain spaces, so it is split on
// commas and newlines rather than whitespace.
func taxonomyLabels(v *viper.Viper) []string {
	raw, ok := v.Get(keyTaxonomy).(string)
	if !ok {
		return v.GetStringSlice(keyTaxonomy)
	}
	var labels []string
	for _, l := range strings.FieldsFunc(raw, func(r rune) bool { return r == ',' || r == '\n' }) {
		if l = strings.TrimSpace(l); l != "" {
			labels = append(labels, l)
		}
	}
	return labels
}

func logConfig(v *viper.Viper) types.LogConfig {
	return types.LogConfig{
		Level:  v.GetString(keyLogLevel),
		Format: v.GetString(keyLogFormat),
	}
}
