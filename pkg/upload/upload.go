package upload

import "context"

// Uploader pushes a run's log artifacts to remote storage.
type Uploader interface {
	// Preflight verifies that the remote storage is reachable and writable.
	// Writes a small test object to the bucket to fail fast on misconfiguration.
	Preflight(ctx context.Context) error

	// Upload pushes every file under resultsDir. Objects are keyed under
	// the configured prefix and the run ID, preserving the per-suite
	// directory layout.
	Upload(ctx context.Context, resultsDir, runID string) error
}
