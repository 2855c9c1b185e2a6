package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethpandaops/testoor/pkg/api"
	"github.com/ethpandaops/testoor/pkg/config"
	"github.com/ethpandaops/testoor/pkg/indexstore"
	"github.com/spf13/cobra"
)

var serveResultsDir string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the run history index and log artifacts over HTTP",
	RunE:  serveResults,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVarP(&serveResultsDir, "results-dir", "r", config.DefaultOutDir,
		"results directory whose log artifacts are served under /logs/")
}

func serveResults(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if !cfg.Index.Enabled {
		return fmt.Errorf("serving requires the run index (set index.enabled in the config)")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	index := indexstore.NewStore(log, &cfg.Index.Database)

	if err := index.Start(ctx); err != nil {
		return fmt.Errorf("starting index store: %w", err)
	}

	defer func() {
		if err := index.Stop(); err != nil {
			log.WithError(err).Warn("Failed to stop index store")
		}
	}()

	srv := api.NewServer(log, &cfg.Server, index, serveResultsDir)

	if err := srv.Start(ctx); err != nil {
		return fmt.Errorf("starting results server: %w", err)
	}

	// Wait for shutdown signal.
	sig := <-sigCh
	log.WithField("signal", sig).Info("Shutting down results server")
	cancel()

	if err := srv.Stop(); err != nil {
		return fmt.Errorf("stopping results server: %w", err)
	}

	return nil
}
