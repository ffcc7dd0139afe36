// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the pdf-throughput CLI.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/pdf-throughput/internal/secrets"
)

// version is set at build time via ldflags.
var version = "dev"

// loadedSecrets holds engine credentials loaded from .secrets/ at startup.
var loadedSecrets secrets.Secrets

// rootCmd is the base command for the pdf-throughput CLI.
var rootCmd = &cobra.Command{
	Use:   "pdf-throughput",
	Short: "Benchmark PDF-to-Markdown conversion engines",
	Long: `pdf-throughput measures how fast PDF-to-Markdown engines convert a fixed
document. It builds one or more extractors for the chosen engine outside the
timed region, runs repeated conversion loops (optionally with several
extractors converting at once), and reports mean conversion time, pages per
second, and peak memory.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		s, err := secrets.Load(".secrets/")
		if err != nil {
			return err
		}
		loadedSecrets = s
		if keys := s.Keys(); len(keys) > 0 {
			fmt.Fprintf(os.Stderr, "Loaded secrets: %v\n", keys)
		}
		return nil
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./pdf-throughput.yaml or ~/.config/pdf-throughput/config.yaml)")
	rootCmd.PersistentFlags().String("log_level", "info", "diagnostic log level: debug, info, warn, error")
	rootCmd.PersistentFlags().String("log_format", "console", "diagnostic log format: console or json")
	viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log_level"))
	viper.BindPFlag("log.format", rootCmd.PersistentFlags().Lookup("log_format"))
}

func initConfig() {
	// A missing .env is normal.
	_ = godotenv.Load()

	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("pdf-throughput")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "pdf-throughput"))
		}
	}

	configureEnv(viper.GetViper())
	setDefaults(viper.GetViper())

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// configureEnv maps PDF_THROUGHPUT_BENCH_LOOPS to bench.loops and so on,
// and keeps the TIKA_TIMEOUT and TIKA_SKIP_OCR variables working.
func configureEnv(v *viper.Viper) {
	v.SetEnvPrefix("PDF_THROUGHPUT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	v.BindEnv("engines.tika.timeout", "PDF_THROUGHPUT_ENGINES_TIKA_TIMEOUT", "TIKA_TIMEOUT")
	v.BindEnv("engines.tika.skip_ocr", "PDF_THROUGHPUT_ENGINES_TIKA_SKIP_OCR", "TIKA_SKIP_OCR")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		color.New(color.FgRed, color.Bold).Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
