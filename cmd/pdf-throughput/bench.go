// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/pdf-throughput/internal/bench"
	"github.com/pdiddy/pdf-throughput/internal/convert"
	"github.com/pdiddy/pdf-throughput/internal/logging"
	"github.com/pdiddy/pdf-throughput/internal/memtrace"
	"github.com/pdiddy/pdf-throughput/internal/progress"
)

var benchCmd = &cobra.Command{
	Use:   "bench <pdf_path>",
	Short: "Benchmark PDF to Markdown conversion throughput",
	Long: `Bench converts pdf_path repeatedly with one engine and reports the mean
conversion time, pages per second, and memory peaks.

With --parallel N, N extractors are built up front and each loop converts
the document once per extractor at the same time. --trace_memory samples the
resident memory of this process, its children, and any engine worker
containers, and runs a single loop. Accelerator memory of the same processes
is reported whenever nvidia-smi is available; it is a peak over all
extractors together and cannot be split between them.`,
	Args: cobra.ExactArgs(1),
	RunE: runBench,
}

func init() {
	f := benchCmd.Flags()
	f.String("engine", convert.DefaultEngine, "conversion engine (see 'pdf-throughput engines')")
	f.Int("loops", 10, "number of benchmark loops")
	f.Int("parallel", 1, "number of extractors converting concurrently")
	f.Bool("trace_memory", false, "trace process memory (forces a single loop)")
	f.String("timeout", "0s", "per-conversion timeout (duration or seconds), 0 for none")
	f.String("format", bench.FormatText, "report format: text, json, or yaml")
	f.Bool("skip_ocr", true, "tika: skip Tesseract OCR")
	f.String("tika_timeout", "600s", "tika: request timeout (duration or seconds)")

	for key, flag := range map[string]string{
		"bench.engine":          "engine",
		"bench.loops":           "loops",
		"bench.parallel":        "parallel",
		"bench.trace_memory":    "trace_memory",
		"bench.timeout":         "timeout",
		"bench.format":          "format",
		"engines.tika.skip_ocr": "skip_ocr",
		"engines.tika.timeout":  "tika_timeout",
	} {
		viper.BindPFlag(key, f.Lookup(flag))
	}

	rootCmd.AddCommand(benchCmd)
}

func runBench(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(viper.GetViper())
	if err != nil {
		return err
	}
	cfg.Bench.PDFPath = args[0]
	engineName := viper.GetString("bench.engine")
	format := viper.GetString("bench.format")
	switch format {
	case bench.FormatText, bench.FormatJSON, bench.FormatYAML:
	default:
		return fmt.Errorf("unsupported format %q: use text, json, or yaml", format)
	}

	stdout, stderr := cmd.OutOrStdout(), cmd.ErrOrStderr()
	log := logging.New(cfg.Log, stderr)
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = log.WithContext(ctx)

	registry := convert.NewRegistry(cfg.Engines, convert.Options{Secrets: loadedSecrets})
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := registry.Close(closeCtx); err != nil {
			log.Warn().Err(err).Msg("releasing engine resources")
		}
	}()
	engine, err := registry.Lookup(engineName)
	if err != nil {
		return err
	}

	var prog progress.Reporter = progress.Nop{}
	if f, ok := stderr.(*os.File); ok && isatty.IsTerminal(f.Fd()) {
		prog = progress.NewTerminal(stderr)
	}

	tree := memtrace.NewProcessTree()
	h := &bench.Harness{
		Engine:      engine,
		Processes:   tree,
		DeviceProbe: memtrace.DetectDeviceProbe(ctx, tree),
		Progress:    prog,
		Logger:      log,
	}

	if format == bench.FormatText {
		bench.PrintStart(stdout, cfg.Bench.Effective())
	}
	res, runErr := h.Run(ctx, cfg.Bench)
	if res != nil {
		if err := bench.Encode(stdout, res.Summary, format); err != nil {
			return err
		}
		if runErr == nil && res.Summary.Failures > 0 {
			color.New(color.FgYellow).Fprintf(stderr, "%d of %d conversions failed\n",
				res.Summary.Failures, res.Summary.Samples)
		}
	}
	if runErr != nil {
		return fmt.Errorf("engine %s (loops=%d, parallel=%d): %w",
			engineName, cfg.Bench.Effective().Loops, cfg.Bench.Parallel, runErr)
	}
	return nil
}
