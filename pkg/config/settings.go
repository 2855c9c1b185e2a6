package config

import (
	"fmt"
	"time"
)

// Settings is the run-scoped configuration handed to the runner. It is
// assembled by the CLI layer and read-only once constructed; its lifetime
// is one invocation of the engine.
type Settings struct {
	// SuiteDirs are the suite directories to load.
	SuiteDirs []string

	// OutDir is the directory that receives per-test log artifacts.
	OutDir string

	// Targets are the requested execution targets. When empty, the
	// targets declared in each suite manifest are used.
	Targets []string

	// DryRun walks the whole matrix without spawning child processes.
	DryRun bool

	// Filter keeps only records whose qualified name contains it.
	Filter string

	// Workers bounds concurrent test execution. Values below 2 mean
	// strictly sequential execution.
	Workers int

	// Timeout is the per-test-case timeout. Zero disables it.
	Timeout time.Duration

	// ResultsOwner optionally sets "UID:GID" ownership on written
	// artifacts, for orchestrators running as root on behalf of a user.
	ResultsOwner string
}

// Validate checks the settings for errors.
func (s *Settings) Validate() error {
	if len(s.SuiteDirs) == 0 {
		return fmt.Errorf("at least one suite directory is required")
	}

	if s.OutDir == "" {
		return fmt.Errorf("output directory is required")
	}

	if s.Workers < 0 {
		return fmt.Errorf("workers must not be negative")
	}

	if s.Timeout < 0 {
		return fmt.Errorf("timeout must not be negative")
	}

	return nil
}
