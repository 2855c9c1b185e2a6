package suite

import (
	"github.com/ethpandaops/testoor/pkg/config"
)

// Suite aggregates a suite configuration with the records discovered for
// it and its own wall-clock interval. The suite owns its records: once
// execution begins nothing mutates them except the driver invoked on the
// runner's behalf.
type Suite struct {
	// Dir is the suite directory the manifest was loaded from.
	Dir string

	// Config is the immutable suite manifest.
	Config *config.SuiteConfig

	// Records is the (test function x target) matrix populated by
	// discovery, in deterministic order.
	Records []*Record

	// Interval measures the suite execution time.
	Interval Interval
}

// New creates an empty suite for the given directory and manifest.
func New(dir string, cfg *config.SuiteConfig) *Suite {
	return &Suite{
		Dir:    dir,
		Config: cfg,
	}
}

// QualifiedNames returns the unique qualified test names in discovery
// order, collapsing the per-target dimension.
func (s *Suite) QualifiedNames() []string {
	seen := make(map[string]struct{}, len(s.Records))
	names := make([]string, 0, len(s.Records))

	for _, rec := range s.Records {
		if _, ok := seen[rec.QualifiedName]; ok {
			continue
		}

		seen[rec.QualifiedName] = struct{}{}
		names = append(names, rec.QualifiedName)
	}

	return names
}

// Summary tallies record results. Records still in NotRun when the
// summary is taken (an interrupted run) are counted as skipped.
func (s *Suite) Summary() Summary {
	var sum Summary

	for _, rec := range s.Records {
		sum.Count(rec.Result())
	}

	return sum
}

// Summary holds per-result counts for a suite or a whole run.
type Summary struct {
	Total   int `json:"total"`
	Passed  int `json:"passed"`
	Failed  int `json:"failed"`
	Skipped int `json:"skipped"`
	DryRun  int `json:"dry_run"`
}

// Count adds one record result to the tally.
func (s *Summary) Count(result Result) {
	s.Total++

	switch result {
	case ResultPassed:
		s.Passed++
	case ResultFailed:
		s.Failed++
	case ResultDryRun:
		s.DryRun++
	case ResultSkipped, ResultNotRun, ResultRunning:
		s.Skipped++
	}
}

// Merge adds the counts of other into s.
func (s *Summary) Merge(other Summary) {
	s.Total += other.Total
	s.Passed += other.Passed
	s.Failed += other.Failed
	s.Skipped += other.Skipped
	s.DryRun += other.DryRun
}
