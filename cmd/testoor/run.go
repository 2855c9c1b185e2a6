package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethpandaops/testoor/pkg/config"
	"github.com/ethpandaops/testoor/pkg/driver"
	"github.com/ethpandaops/testoor/pkg/indexstore"
	"github.com/ethpandaops/testoor/pkg/reporter"
	"github.com/ethpandaops/testoor/pkg/runner"
	"github.com/ethpandaops/testoor/pkg/upload"
	"github.com/spf13/cobra"
)

var (
	suiteDirs      []string
	outDir         string
	targets        []string
	dryRun         bool
	testFilter     string
	workers        int
	testTimeout    time.Duration
	resultsOwner   string
	reporterFormat string
	jsonlOut       string
	uploadResults  bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run test suites",
	Long: `Discover and execute every test case of the given suites against the
requested targets. The command exits non-zero when any test fails.`,
	RunE: runSuites,
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().StringSliceVarP(&suiteDirs, "suite-dir", "d", nil,
		"suite directory containing a suite manifest (can be repeated)")
	runCmd.Flags().StringVarP(&outDir, "out-dir", "o", config.DefaultOutDir,
		"directory that receives per-test log artifacts")
	runCmd.Flags().StringSliceVarP(&targets, "target", "t", nil,
		"target to run every test case against (can be repeated, "+
			"defaults to the targets declared in each suite manifest)")
	runCmd.Flags().BoolVarP(&dryRun, "dry-run", "n", false,
		"walk the whole test matrix without executing anything")
	runCmd.Flags().StringVar(&testFilter, "filter", "",
		"only run test cases whose qualified name contains this substring")
	runCmd.Flags().IntVar(&workers, "workers", 1,
		"number of test cases to execute in parallel per suite")
	runCmd.Flags().DurationVar(&testTimeout, "timeout", 0,
		"per-test timeout, 0 disables (e.g. 30s, 5m)")
	runCmd.Flags().StringVar(&resultsOwner, "results-owner", "",
		"chown log artifacts to UID:GID")
	runCmd.Flags().StringVar(&reporterFormat, "reporter", "console",
		"report format (console, jsonl, none)")
	runCmd.Flags().StringVar(&jsonlOut, "jsonl-out", "",
		"additionally write a JSONL report to this file")
	runCmd.Flags().BoolVar(&uploadResults, "upload", false,
		"upload the output directory to S3 after the run (requires upload config)")
}

func runSuites(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	settings := &config.Settings{
		SuiteDirs:    suiteDirs,
		OutDir:       outDir,
		Targets:      targets,
		DryRun:       dryRun,
		Filter:       testFilter,
		Workers:      workers,
		Timeout:      testTimeout,
		ResultsOwner: resultsOwner,
	}

	if err := settings.Validate(); err != nil {
		return fmt.Errorf("validating settings: %w", err)
	}

	ctx, cancel := signalContext()
	defer cancel()

	rep, err := buildReporter()
	if err != nil {
		return err
	}

	var index indexstore.Store

	if cfg.Index.Enabled {
		index = indexstore.NewStore(log, &cfg.Index.Database)

		if err := index.Start(ctx); err != nil {
			return fmt.Errorf("starting index store: %w", err)
		}

		defer func() {
			if err := index.Stop(); err != nil {
				log.WithError(err).Warn("Failed to stop index store")
			}
		}()
	}

	r, err := runner.New(log, settings, driver.NewRegistry(log), rep, index)
	if err != nil {
		return err
	}

	for _, dir := range suiteDirs {
		if err := r.AddSuite(dir); err != nil {
			return err
		}
	}

	sum, err := r.Run(ctx)
	if err != nil {
		return err
	}

	if uploadResults && !dryRun {
		if err := uploadOutDir(ctx, cfg, outDir, r.RunID()); err != nil {
			log.WithError(err).Warn("Failed to upload results")
		}
	}

	if sum.Failed > 0 {
		return fmt.Errorf("%d test case(s) failed", sum.Failed)
	}

	return nil
}

// uploadOutDir pushes the run's log artifacts to the configured bucket.
func uploadOutDir(ctx context.Context, cfg *config.Config, dir, runID string) error {
	if cfg.Upload.Bucket == "" {
		return fmt.Errorf("upload requested but no bucket is configured")
	}

	uploader, err := upload.NewS3Uploader(log, &cfg.Upload)
	if err != nil {
		return fmt.Errorf("creating S3 uploader: %w", err)
	}

	return uploader.Upload(ctx, dir, runID)
}

// buildReporter selects the report renderer for this invocation. When
// --jsonl-out is set, a JSONL file report is produced alongside it.
func buildReporter() (reporter.Reporter, error) {
	var primary reporter.Reporter

	switch reporterFormat {
	case "console":
		primary = reporter.NewConsole(os.Stdout)
	case "jsonl":
		primary = reporter.NewJSONL(os.Stdout)
	case "none":
		primary = reporter.NewNull()
	default:
		return nil, fmt.Errorf("unknown reporter %q (use console, jsonl or none)", reporterFormat)
	}

	if jsonlOut == "" {
		return primary, nil
	}

	f, err := os.Create(jsonlOut)
	if err != nil {
		return nil, fmt.Errorf("creating jsonl report file: %w", err)
	}

	return reporter.NewMulti(log, primary, reporter.NewJSONL(f)), nil
}

// loadConfig loads the optional config file, falling back to defaults.
func loadConfig() (*config.Config, error) {
	if cfgFile == "" {
		return config.Default(), nil
	}

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	return cfg, nil
}

// signalContext returns a context cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		log.WithField("signal", sig).Info("Received shutdown signal")
		cancel()
	}()

	return ctx, cancel
}
