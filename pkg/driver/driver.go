package driver

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"time"

	"github.com/ethpandaops/testoor/pkg/config"
	"github.com/ethpandaops/testoor/pkg/fsutil"
	"github.com/ethpandaops/testoor/pkg/suite"
	"github.com/sirupsen/logrus"
)

// Driver discovers and executes test bodies written in one specific
// scripting convention. Additional test-body languages are added by
// registering a new Driver; the orchestrator never changes.
type Driver interface {
	// ID is the identifier suites select the driver by.
	ID() string

	// DefaultFilePatterns returns the file patterns used when a suite
	// manifest omits an explicit list. Pure, no side effects.
	DefaultFilePatterns() []string

	// DiscoverTests scans suiteDir recursively for test files matching
	// the effective pattern, excluding the global fixture, and returns
	// one NotRun record per (target, function) pair. Files are visited
	// in lexicographic order by relative path; function order within a
	// file is preserved. A file that cannot be introspected is logged
	// and skipped without aborting the scan.
	DiscoverTests(
		ctx context.Context,
		suiteDir string,
		cfg *config.SuiteConfig,
		targets []string,
	) ([]*suite.Record, error)

	// RunTest executes one record in an isolated child process and
	// mutates its result and timing. The merged child output is written
	// to a log file under opts.OutDir. Passed requires exit status 0;
	// crashes, missing interpreters and timeouts become Failed. The
	// returned error covers orchestration failures only (the record is
	// still driven to a terminal state).
	RunTest(ctx context.Context, rec *suite.Record, opts *RunOptions) error
}

// RunOptions carries the per-suite execution context handed to RunTest.
type RunOptions struct {
	// SuiteDir is the suite root; record source paths are relative to it.
	SuiteDir string

	// GlobalFixture is the absolute path of the suite fixture file,
	// sourced before the test file. Empty when the suite has none.
	GlobalFixture string

	// OutDir is the suite-level log directory.
	OutDir string

	// Timeout forcibly terminates the child process. Zero disables it.
	Timeout time.Duration

	// Owner optionally sets ownership on written log files.
	Owner *fsutil.OwnerConfig
}

// Registry holds the known drivers keyed by their identifier.
type Registry interface {
	// Get returns the driver registered under id. An unknown id is a
	// fatal configuration error for the suite that requested it.
	Get(id string) (Driver, error)

	// Register adds a driver. Registering an existing id replaces it.
	Register(d Driver)
}

// NewRegistry creates a registry with the built-in drivers registered.
func NewRegistry(log logrus.FieldLogger) Registry {
	r := &registry{
		drivers: make(map[string]Driver, 1),
	}

	r.Register(NewBashDriver(log))

	return r
}

type registry struct {
	drivers map[string]Driver
}

var _ Registry = (*registry)(nil)

func (r *registry) Get(id string) (Driver, error) {
	d, ok := r.drivers[id]
	if !ok {
		return nil, fmt.Errorf("unknown test driver %q", id)
	}

	return d, nil
}

func (r *registry) Register(d Driver) {
	r.drivers[d.ID()] = d
}

// filePatterns returns the manifest patterns, or the driver defaults
// when the manifest omits them.
func filePatterns(d Driver, cfg *config.SuiteConfig) []string {
	if len(cfg.TestFilePatterns) > 0 {
		return cfg.TestFilePatterns
	}

	return d.DefaultFilePatterns()
}

// discoverTestFiles walks suiteDir and returns the relative paths of all
// files matching one of the patterns, excluding the global fixture, in
// lexicographic order.
func discoverTestFiles(suiteDir string, patterns []string, globalFixture string) ([]string, error) {
	var files []string

	err := filepath.WalkDir(suiteDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() {
			return nil
		}

		matched := false

		for _, pattern := range patterns {
			ok, matchErr := filepath.Match(pattern, d.Name())
			if matchErr != nil {
				return fmt.Errorf("invalid test file pattern %q: %w", pattern, matchErr)
			}

			if ok {
				matched = true

				break
			}
		}

		if !matched {
			return nil
		}

		rel, err := filepath.Rel(suiteDir, path)
		if err != nil {
			return fmt.Errorf("computing relative path for %s: %w", path, err)
		}

		if globalFixture != "" && filepath.Clean(rel) == filepath.Clean(globalFixture) {
			return nil
		}

		files = append(files, rel)

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking suite directory %s: %w", suiteDir, err)
	}

	sort.Strings(files)

	return files, nil
}
