package driver

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/ethpandaops/testoor/pkg/config"
	"github.com/ethpandaops/testoor/pkg/fsutil"
	"github.com/ethpandaops/testoor/pkg/suite"
	"github.com/sirupsen/logrus"
)

const (
	// bashBinary must be resolvable on the execution environment.
	bashBinary = "bash"

	// testFunctionPrefix marks the invocable test entry points.
	testFunctionPrefix = "test_"

	// setupFunction and teardownFunction are reserved names, invoked
	// around each test function when defined.
	setupFunction    = "setup"
	teardownFunction = "teardown"

	// introspectionFailedStatus flags a file that could not be sourced
	// during discovery, to tell it apart from "no functions defined".
	introspectionFailedStatus = 61
)

// BashDriver discovers and runs bash test files. Discovery sources each
// candidate file in a throwaway shell and asks that same interpreter for
// its function table, so discovery and execution are guaranteed to see
// identical definitions.
type BashDriver struct {
	log logrus.FieldLogger
}

var _ Driver = (*BashDriver)(nil)

// NewBashDriver creates the shell test driver.
func NewBashDriver(log logrus.FieldLogger) *BashDriver {
	return &BashDriver{
		log: log.WithField("driver", "bash"),
	}
}

// ID returns the driver identifier used in suite manifests.
func (d *BashDriver) ID() string {
	return "bash"
}

// DefaultFilePatterns returns the patterns used when a suite manifest
// does not declare any.
func (d *BashDriver) DefaultFilePatterns() []string {
	return []string{"*.sh", "*.bash"}
}

// DiscoverTests scans suiteDir for test files and produces one NotRun
// record per (target, test function) pair.
func (d *BashDriver) DiscoverTests(
	ctx context.Context,
	suiteDir string,
	cfg *config.SuiteConfig,
	targets []string,
) ([]*suite.Record, error) {
	files, err := discoverTestFiles(suiteDir, filePatterns(d, cfg), cfg.GlobalFixture)
	if err != nil {
		return nil, err
	}

	records := make([]*suite.Record, 0, len(files)*len(targets))

	for _, rel := range files {
		functions, err := d.listTestFunctions(ctx, filepath.Join(suiteDir, rel))
		if err != nil {
			d.log.WithError(err).WithField("file", rel).
				Warn("Skipping test file that could not be introspected")

			continue
		}

		for _, fn := range functions {
			for _, target := range targets {
				records = append(records, suite.NewRecord(rel, fn, target))
			}
		}
	}

	return records, nil
}

// listTestFunctions sources the file in a fresh shell and returns the
// function names matching the test convention, in the order the
// interpreter listed them.
func (d *BashDriver) listTestFunctions(ctx context.Context, path string) ([]string, error) {
	script := fmt.Sprintf(
		"source %s >/dev/null || exit %d; compgen -A function",
		shellQuote(path), introspectionFailedStatus,
	)

	cmd := exec.CommandContext(ctx, bashBinary, "--noprofile", "--norc", "-c", script)

	var stdout, stderr bytes.Buffer

	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError

		// compgen exits non-zero when the file defines no functions at
		// all; that is an empty list, not a discovery failure.
		if errors.As(err, &exitErr) &&
			exitErr.ExitCode() != introspectionFailedStatus &&
			stdout.Len() == 0 && stderr.Len() == 0 {
			return nil, nil
		}

		return nil, fmt.Errorf("sourcing %s: %w (%s)",
			path, err, strings.TrimSpace(stderr.String()))
	}

	var functions []string

	for _, name := range strings.Split(strings.TrimSpace(stdout.String()), "\n") {
		name = strings.TrimSpace(name)

		if !strings.HasPrefix(name, testFunctionPrefix) {
			continue
		}

		if name == setupFunction || name == teardownFunction {
			continue
		}

		functions = append(functions, name)
	}

	return functions, nil
}

// RunTest executes one record in an isolated bash process and drives it
// to a terminal state. The merged stdout/stderr of the child is written
// to the record's log file.
func (d *BashDriver) RunTest(ctx context.Context, rec *suite.Record, opts *RunOptions) error {
	if err := rec.Begin(); err != nil {
		return err
	}

	logPath := filepath.Join(opts.OutDir, rec.LogName())

	logFile, err := fsutil.Create(logPath, opts.Owner)
	if err != nil {
		_ = rec.Finish(suite.ResultFailed, "creating log file")

		return fmt.Errorf("creating log file %s: %w", logPath, err)
	}

	defer func() { _ = logFile.Close() }()

	rec.LogPath = logPath

	runCtx := ctx

	if opts.Timeout > 0 {
		var cancel context.CancelFunc

		runCtx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	script := buildTestScript(
		opts.GlobalFixture,
		filepath.Join(opts.SuiteDir, rec.SourceFile),
		rec.Function,
	)

	// The target name and the out dir are handed to the test function
	// as positional arguments.
	cmd := exec.CommandContext(runCtx, bashBinary, "--noprofile", "--norc",
		"-c", script, bashBinary, rec.Target, opts.OutDir)
	cmd.Stdout = logFile
	cmd.Stderr = logFile

	err = cmd.Run()

	switch {
	case err == nil:
		return rec.Finish(suite.ResultPassed, "")

	case errors.Is(runCtx.Err(), context.DeadlineExceeded):
		fmt.Fprintf(logFile, "\ntestoor: test timed out after %s\n", opts.Timeout)

		return rec.Finish(suite.ResultFailed, fmt.Sprintf("timed out after %s", opts.Timeout))

	case ctx.Err() != nil:
		// The run was cancelled: the log is partial, drop it.
		_ = logFile.Close()
		_ = os.Remove(logPath)
		rec.LogPath = ""

		return rec.Finish(suite.ResultFailed, "interrupted")

	default:
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return rec.Finish(suite.ResultFailed,
				fmt.Sprintf("exit status %d", exitErr.ExitCode()))
		}

		// The interpreter itself could not be started; the log carries
		// the tooling error instead of test output.
		fmt.Fprintf(logFile, "testoor: failed to invoke %s: %v\n", bashBinary, err)

		return rec.Finish(suite.ResultFailed, err.Error())
	}
}

// buildTestScript assembles the wrapper executed in the child shell:
// strict-failure semantics, fixture then test file sourced, setup if
// defined, the test function in a subshell so errexit stays active
// inside it while its status is still captured, then teardown regardless
// of the outcome. Teardown runs in its own subshell too, so an exit
// inside it cannot take down the wrapper. The script exits with the test
// function's original status; a teardown failure is logged but never
// overrides it.
func buildTestScript(globalFixture, testFile, function string) string {
	var b strings.Builder

	b.WriteString("set -euo pipefail\n")

	if globalFixture != "" {
		fmt.Fprintf(&b, "source %s\n", shellQuote(globalFixture))
	}

	fmt.Fprintf(&b, "source %s\n", shellQuote(testFile))
	fmt.Fprintf(&b, "if declare -F %s >/dev/null; then %s \"$1\" \"$2\"; fi\n",
		setupFunction, setupFunction)
	b.WriteString("set +e\n")
	fmt.Fprintf(&b, "( set -euo pipefail; %s \"$1\" \"$2\" )\n", shellQuote(function))
	b.WriteString("rc=$?\n")
	b.WriteString("set -e\n")
	fmt.Fprintf(&b,
		"if declare -F %s >/dev/null; then ( %s \"$1\" \"$2\" ) || echo \"testoor: %s failed with status $?\" >&2; fi\n",
		teardownFunction, teardownFunction, teardownFunction)
	b.WriteString("exit $rc\n")

	return b.String()
}

// shellQuote wraps s in single quotes, escaping embedded ones.
func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
