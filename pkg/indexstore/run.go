package indexstore

import "time"

// Run is one indexed suite execution. A testoor invocation produces one
// row per suite, sharing the invocation's run ID.
type Run struct {
	ID           uint   `gorm:"primaryKey" json:"-"`
	RunID        string `gorm:"not null;uniqueIndex:idx_runs_run_suite" json:"run_id"`
	SuiteName    string `gorm:"not null;uniqueIndex:idx_runs_run_suite" json:"suite_name"`
	SuiteVersion string `json:"suite_version,omitempty"`
	Driver       string `json:"driver"`

	// Targets is the comma-joined requested target list.
	Targets string `json:"targets"`

	Timestamp    int64 `json:"timestamp"`
	TimestampEnd int64 `json:"timestamp_end"`

	Total   int `json:"total"`
	Passed  int `json:"passed"`
	Failed  int `json:"failed"`
	Skipped int `json:"skipped"`
	DryRun  int `json:"dry_run"`

	DurationMs int64  `json:"duration_ms"`
	OutDir     string `json:"out_dir"`

	// DryRunMode marks runs that never spawned a child process.
	DryRunMode bool `json:"dry_run_mode"`

	IndexedAt time.Time `json:"indexed_at"`
}
