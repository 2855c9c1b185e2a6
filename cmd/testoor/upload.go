package main

import (
	"fmt"
	"path/filepath"

	"github.com/ethpandaops/testoor/pkg/upload"
	"github.com/spf13/cobra"
)

var (
	uploadDir   string
	uploadRunID string
)

var uploadCmd = &cobra.Command{
	Use:   "upload-results",
	Short: "Upload a results directory to S3-compatible storage",
	RunE:  runUpload,
}

func init() {
	rootCmd.AddCommand(uploadCmd)
	uploadCmd.Flags().StringVarP(&uploadDir, "dir", "r", "",
		"results directory to upload (required)")
	uploadCmd.Flags().StringVar(&uploadRunID, "run-id", "",
		"run identifier keyed under the remote prefix (defaults to the directory basename)")

	if err := uploadCmd.MarkFlagRequired("dir"); err != nil {
		panic(err)
	}
}

func runUpload(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if cfg.Upload.Bucket == "" {
		return fmt.Errorf("upload requires a bucket (set upload.bucket in the config)")
	}

	if uploadRunID == "" {
		uploadRunID = filepath.Base(filepath.Clean(uploadDir))
	}

	uploader, err := upload.NewS3Uploader(log, &cfg.Upload)
	if err != nil {
		return fmt.Errorf("creating S3 uploader: %w", err)
	}

	ctx := cmd.Context()

	// Fail fast: verify the bucket is reachable and writable first.
	if err := uploader.Preflight(ctx); err != nil {
		return fmt.Errorf("upload preflight check failed: %w", err)
	}

	return uploader.Upload(ctx, uploadDir, uploadRunID)
}
