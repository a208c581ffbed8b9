// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the paper-harvester CLI.
// The crawl and classify stages are separate subcommands so that the
// sweep can be rerun without crawling again.
package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"slices"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/pdiddy/paper-harvester/internal/logging"
	"github.com/pdiddy/paper-harvester/internal/secrets"
)

// version is set at build time via ldflags.
var version = "dev"

// loadedSecrets holds API keys loaded from .secrets/ at startup.
var loadedSecrets map[string]string

// logger is built from the log settings before any subcommand runs.
var logger = zap.NewNop()

// secretDefault returns the secret value for key if it exists, or fallback otherwise.
func secretDefault(key, fallback string) string {
	if fallback != "" {
		return fallback
	}
	return loadedSecrets[key]
}

// rootCmd is the base command for the paper-harvester CLI.
var rootCmd = &cobra.Command{
	Use:   "paper-harvester",
	Short: "Crawl a paper archive and classify the downloaded PDFs",
	Long: `paper-harvester downloads conference papers and their metadata from a
paged publication archive, then labels each downloaded paper with one
category of a fixed taxonomy.

Run "crawl" first; it fills the PDF directory and appends one row per paper
to the metadata ledger. "classify" then labels every unclassified row and
saves the ledger after each one, so both stages can be interrupted and
rerun.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		l, err := logging.New(logConfig(viper.GetViper()))
		if err != nil {
			return err
		}
		logger = l

		if f := viper.ConfigFileUsed(); f != "" {
			logger.Info("using config file", zap.String("path", f))
		}

		s, err := secrets.Load(secrets.DefaultDir, logger)
		if err != nil {
			return err
		}
		loadedSecrets = s
		if len(s) > 0 {
			keys := make([]string, 0, len(s))
			for k := range s {
				keys = append(keys, k)
			}
			slices.Sort(keys)
			logger.Debug("loaded secrets", zap.Strings("keys", keys))
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logger.Sync() //nolint:errcheck
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./paper-harvester.yaml or ~/.config/paper-harvester/paper-harvester.yaml)")
	rootCmd.PersistentFlags().String("pdf-dir", "", "directory for downloaded PDFs and the ledger (env PDF_FOLDER_PATH)")
	rootCmd.PersistentFlags().String("ledger", "", "metadata ledger CSV (default <pdf-dir>/metadata.csv)")
	rootCmd.PersistentFlags().String("log-level", "", "log level: debug, info, warn, error")

	viper.BindPFlag(keyPDFDir, rootCmd.PersistentFlags().Lookup("pdf-dir"))     //nolint:errcheck
	viper.BindPFlag(keyLedger, rootCmd.PersistentFlags().Lookup("ledger"))      //nolint:errcheck
	viper.BindPFlag(keyLogLevel, rootCmd.PersistentFlags().Lookup("log-level")) //nolint:errcheck
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("paper-harvester")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "paper-harvester"))
		}
	}

	configure(viper.GetViper())

	viper.ReadInConfig() //nolint:errcheck
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
