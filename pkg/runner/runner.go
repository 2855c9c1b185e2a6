package runner

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/ethpandaops/testoor/pkg/config"
	"github.com/ethpandaops/testoor/pkg/driver"
	"github.com/ethpandaops/testoor/pkg/fsutil"
	"github.com/ethpandaops/testoor/pkg/indexstore"
	"github.com/ethpandaops/testoor/pkg/reporter"
	"github.com/ethpandaops/testoor/pkg/suite"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Runner orchestrates suites through discovery, execution and reporting.
type Runner interface {
	// AddSuite loads the manifest in dir and registers the suite. A
	// missing manifest, an unknown driver or a declared-but-missing
	// global fixture fail the whole run before any discovery happens.
	AddSuite(dir string) error

	// Suites returns the registered suites.
	Suites() []*suite.Suite

	// ListTests discovers (if needed) and renders the qualified test
	// names of every suite. Never mutates execution state.
	ListTests(ctx context.Context) error

	// ListTargets renders the static target list of every suite.
	ListTargets() error

	// Run executes the full (test case x target) matrix of every suite
	// and returns the aggregate summary.
	Run(ctx context.Context) (suite.Summary, error)

	// RunID identifies this invocation in the run index.
	RunID() string
}

// suitePhase tracks a suite through its lifecycle.
type suitePhase int

const (
	phaseConfigured suitePhase = iota
	phaseDiscovering
	phaseExecuting
	phaseReported
)

type suiteEntry struct {
	suite      *suite.Suite
	driver     driver.Driver
	phase      suitePhase
	discovered bool
}

type runner struct {
	log      logrus.FieldLogger
	settings *config.Settings
	registry driver.Registry
	reporter reporter.Reporter
	index    indexstore.Store
	owner    *fsutil.OwnerConfig
	runID    string
	entries  []*suiteEntry

	// mu serializes reporter calls and summary aggregation; workers
	// only claim-and-complete individual records.
	mu sync.Mutex
}

// Ensure interface compliance.
var _ Runner = (*runner)(nil)

// New creates a runner. The index store may be nil when run history
// indexing is disabled.
func New(
	log logrus.FieldLogger,
	settings *config.Settings,
	registry driver.Registry,
	rep reporter.Reporter,
	index indexstore.Store,
) (Runner, error) {
	owner, err := fsutil.ParseOwner(settings.ResultsOwner)
	if err != nil {
		return nil, fmt.Errorf("parsing results owner: %w", err)
	}

	return &runner{
		log:      log.WithField("component", "runner"),
		settings: settings,
		registry: registry,
		reporter: rep,
		index:    index,
		owner:    owner,
		runID:    newRunID(),
	}, nil
}

func (r *runner) RunID() string {
	return r.runID
}

func (r *runner) AddSuite(dir string) error {
	cfg, err := config.LoadSuiteConfig(dir)
	if err != nil {
		return err
	}

	drv, err := r.registry.Get(cfg.Driver)
	if err != nil {
		return fmt.Errorf("suite %q: %w", cfg.Name, err)
	}

	if cfg.GlobalFixture != "" {
		fixture := filepath.Join(dir, cfg.GlobalFixture)
		if _, err := os.Stat(fixture); err != nil {
			return fmt.Errorf("suite %q: global fixture %s: %w", cfg.Name, fixture, err)
		}
	}

	r.entries = append(r.entries, &suiteEntry{
		suite:  suite.New(dir, cfg),
		driver: drv,
		phase:  phaseConfigured,
	})

	r.log.WithFields(logrus.Fields{
		"suite":  cfg.Name,
		"driver": cfg.Driver,
	}).Debug("Suite added")

	return nil
}

func (r *runner) Suites() []*suite.Suite {
	suites := make([]*suite.Suite, 0, len(r.entries))
	for _, e := range r.entries {
		suites = append(suites, e.suite)
	}

	return suites
}

func (r *runner) ListTests(ctx context.Context) error {
	for _, e := range r.entries {
		if err := r.discover(ctx, e); err != nil {
			return err
		}

		r.report(func(rep reporter.Reporter) error {
			return rep.ReportTestList(e.suite)
		})
	}

	return nil
}

func (r *runner) ListTargets() error {
	for _, e := range r.entries {
		r.report(func(rep reporter.Reporter) error {
			return rep.ReportTargetList(e.suite)
		})
	}

	return nil
}

func (r *runner) Run(ctx context.Context) (suite.Summary, error) {
	var total suite.Summary

	if err := r.prepareOutDir(); err != nil {
		return total, err
	}

	var runInterval suite.Interval

	runInterval.Begin()

	for _, e := range r.entries {
		sum, err := r.runSuite(ctx, e)
		if err != nil {
			return total, err
		}

		total.Merge(sum)
	}

	elapsed := runInterval.Stop()

	r.report(func(rep reporter.Reporter) error {
		return rep.ReportRunSummary(total, elapsed)
	})

	return total, nil
}

// targetsFor resolves the effective targets: the requested ones, or the
// suite manifest's own target list when none were requested.
func (r *runner) targetsFor(cfg *config.SuiteConfig) ([]string, error) {
	if len(r.settings.Targets) > 0 {
		return r.settings.Targets, nil
	}

	if len(cfg.Targets) > 0 {
		return cfg.Targets, nil
	}

	return nil, fmt.Errorf("suite %q: no targets requested and none declared in the manifest", cfg.Name)
}

// discover populates the suite's record matrix. Discovery is idempotent:
// an already-discovered suite is left untouched.
func (r *runner) discover(ctx context.Context, e *suiteEntry) error {
	if e.discovered {
		return nil
	}

	e.phase = phaseDiscovering

	targets, err := r.targetsFor(e.suite.Config)
	if err != nil {
		return err
	}

	records, err := e.driver.DiscoverTests(ctx, e.suite.Dir, e.suite.Config, targets)
	if err != nil {
		return fmt.Errorf("discovering tests for suite %q: %w", e.suite.Config.Name, err)
	}

	if filter := r.settings.Filter; filter != "" {
		filtered := make([]*suite.Record, 0, len(records))

		for _, rec := range records {
			if strings.Contains(rec.QualifiedName, filter) {
				filtered = append(filtered, rec)
			}
		}

		records = filtered
	}

	e.suite.Records = records
	e.discovered = true

	r.log.WithFields(logrus.Fields{
		"suite":   e.suite.Config.Name,
		"records": len(records),
		"targets": len(targets),
	}).Info("Discovery completed")

	return nil
}

func (r *runner) runSuite(ctx context.Context, e *suiteEntry) (suite.Summary, error) {
	// Records are set-once; a suite that has been reported cannot be
	// driven through execution again.
	if e.phase == phaseReported {
		return suite.Summary{}, fmt.Errorf(
			"suite %q has already been executed and reported", e.suite.Config.Name)
	}

	if err := r.discover(ctx, e); err != nil {
		return suite.Summary{}, err
	}

	e.phase = phaseExecuting

	suiteOutDir := filepath.Join(r.settings.OutDir, e.suite.Config.Name)
	if err := fsutil.MkdirAll(suiteOutDir, 0755, r.owner); err != nil {
		return suite.Summary{}, fmt.Errorf("creating suite output directory: %w", err)
	}

	opts := &driver.RunOptions{
		SuiteDir: e.suite.Dir,
		OutDir:   suiteOutDir,
		Timeout:  r.settings.Timeout,
		Owner:    r.owner,
	}

	if e.suite.Config.GlobalFixture != "" {
		opts.GlobalFixture = filepath.Join(e.suite.Dir, e.suite.Config.GlobalFixture)
	}

	e.suite.Interval.Begin()

	switch {
	case r.settings.DryRun:
		r.dryRunSuite(e)
	case r.settings.Workers > 1:
		r.executeSuiteParallel(ctx, e, opts)
	default:
		r.executeSuiteSequential(ctx, e, opts)
	}

	elapsed := e.suite.Interval.Stop()
	sum := e.suite.Summary()

	e.phase = phaseReported

	r.report(func(rep reporter.Reporter) error {
		return rep.ReportSuiteSummary(e.suite, sum, elapsed)
	})

	r.indexSuite(ctx, e, sum, elapsed)

	return sum, nil
}

// dryRunSuite transitions every record straight to DryRun. No child
// process is spawned; the only filesystem effect of a dry run is the
// log directory creation that already happened.
func (r *runner) dryRunSuite(e *suiteEntry) {
	for _, rec := range e.suite.Records {
		if err := rec.Begin(); err != nil {
			r.log.WithError(err).Warn("Skipping record in unexpected state")

			continue
		}

		if err := rec.Finish(suite.ResultDryRun, ""); err != nil {
			r.log.WithError(err).Warn("Failed to finish dry-run record")

			continue
		}

		r.report(func(rep reporter.Reporter) error {
			return rep.ReportResult(e.suite, rec)
		})
	}
}

func (r *runner) executeSuiteSequential(ctx context.Context, e *suiteEntry, opts *driver.RunOptions) {
	for _, rec := range e.suite.Records {
		r.executeRecord(ctx, e, opts, rec)
	}
}

// executeSuiteParallel runs the record matrix on a bounded worker pool.
// Records are embarrassingly parallel: each spawns its own child process
// and writes its own uniquely named log file. Reporting and aggregation
// are serialized behind the runner mutex.
func (r *runner) executeSuiteParallel(ctx context.Context, e *suiteEntry, opts *driver.RunOptions) {
	g := new(errgroup.Group)
	g.SetLimit(r.settings.Workers)

	for _, rec := range e.suite.Records {
		g.Go(func() error {
			r.executeRecord(ctx, e, opts, rec)

			return nil
		})
	}

	// Workers never return errors; failures are contained per record.
	_ = g.Wait()
}

// executeRecord runs one record and reports its terminal state. A
// cancelled run leaves unclaimed records in NotRun, which the summary
// counts as skipped.
func (r *runner) executeRecord(ctx context.Context, e *suiteEntry, opts *driver.RunOptions, rec *suite.Record) {
	if ctx.Err() != nil {
		return
	}

	if err := e.driver.RunTest(ctx, rec, opts); err != nil {
		r.log.WithError(err).WithFields(logrus.Fields{
			"test":   rec.QualifiedName,
			"target": rec.Target,
		}).Warn("Test invocation failed")
	}

	if !rec.Result().Terminal() {
		return
	}

	r.report(func(rep reporter.Reporter) error {
		return rep.ReportResult(e.suite, rec)
	})
}

// indexSuite records the suite execution in the run history index.
func (r *runner) indexSuite(ctx context.Context, e *suiteEntry, sum suite.Summary, elapsed time.Duration) {
	if r.index == nil {
		return
	}

	targets, _ := r.targetsFor(e.suite.Config)

	now := time.Now()
	run := &indexstore.Run{
		RunID:        r.runID,
		SuiteName:    e.suite.Config.Name,
		SuiteVersion: e.suite.Config.Version,
		Driver:       e.suite.Config.Driver,
		Targets:      strings.Join(targets, ","),
		Timestamp:    now.Add(-elapsed).Unix(),
		TimestampEnd: now.Unix(),
		Total:        sum.Total,
		Passed:       sum.Passed,
		Failed:       sum.Failed,
		Skipped:      sum.Skipped,
		DryRun:       sum.DryRun,
		DurationMs:   elapsed.Milliseconds(),
		OutDir:       r.settings.OutDir,
		DryRunMode:   r.settings.DryRun,
		IndexedAt:    now,
	}

	if err := r.index.UpsertRun(ctx, run); err != nil {
		r.log.WithError(err).Warn("Failed to index suite run")
	}
}

// prepareOutDir creates the output directory once, before any worker
// starts. An existing directory is not an error, but its contents may be
// stale logs from a previous run.
func (r *runner) prepareOutDir() error {
	outDir := r.settings.OutDir

	if info, err := os.Stat(outDir); err == nil && info.IsDir() {
		r.log.WithField("dir", outDir).
			Warn("Output directory already exists, it may contain stale logs")

		return nil
	}

	if err := fsutil.MkdirAll(outDir, 0755, r.owner); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}

	return nil
}

// report invokes a reporter call under the aggregation mutex. Reporter
// failures are logged and swallowed; they never affect record state.
func (r *runner) report(call func(reporter.Reporter) error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := call(r.reporter); err != nil {
		r.log.WithError(err).Warn("Reporter failed to render")
	}
}

// newRunID generates a short random identifier for this invocation.
func newRunID() string {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		return fmt.Sprintf("%d", time.Now().UnixNano())
	}

	return hex.EncodeToString(b)
}
