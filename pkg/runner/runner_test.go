package runner

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/ethpandaops/testoor/pkg/config"
	"github.com/ethpandaops/testoor/pkg/driver"
	"github.com/ethpandaops/testoor/pkg/reporter"
	"github.com/ethpandaops/testoor/pkg/suite"
	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	color.NoColor = true
}

func testLogger() logrus.FieldLogger {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)

	return log
}

func requireBash(t *testing.T) {
	t.Helper()

	if _, err := exec.LookPath("bash"); err != nil {
		t.Skip("bash not available")
	}
}

// writeSuiteDir creates a suite directory with a manifest and test files.
func writeSuiteDir(t *testing.T, manifest string, files map[string]string) string {
	t.Helper()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, config.ManifestFile), []byte(manifest), 0644))

	for name, content := range files {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	}

	return dir
}

func newTestRunner(t *testing.T, settings *config.Settings, out *bytes.Buffer) Runner {
	t.Helper()

	r, err := New(testLogger(), settings, driver.NewRegistry(testLogger()),
		reporter.NewConsole(out), nil)
	require.NoError(t, err)

	return r
}

const basicManifest = `
name: demo
driver: bash
targets:
  - staging
`

const basicTests = `
test_pass() {
	echo "all good on $1"
}

test_fail() {
	echo "about to fail"
	exit 1
}
`

func TestRunnerBasicRun(t *testing.T) {
	requireBash(t)

	suiteDir := writeSuiteDir(t, basicManifest, map[string]string{"basic.sh": basicTests})
	outDir := filepath.Join(t.TempDir(), "results")

	var buf bytes.Buffer

	r := newTestRunner(t, &config.Settings{
		SuiteDirs: []string{suiteDir},
		OutDir:    outDir,
		Workers:   1,
	}, &buf)

	require.NoError(t, r.AddSuite(suiteDir))

	sum, err := r.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, sum.Total)
	assert.Equal(t, 1, sum.Passed)
	assert.Equal(t, 1, sum.Failed)
	assert.Equal(t, 0, sum.Skipped)
	assert.Equal(t, sum.Total, sum.Passed+sum.Failed+sum.Skipped+sum.DryRun)

	out := buf.String()
	assert.Contains(t, out, "Ran test case `basic::test_pass` on target `staging`")
	assert.Contains(t, out, "STATUS: PASSED")
	assert.Contains(t, out, "STATUS: FAILED")
	assert.Contains(t, out, "Test suite `demo` finished in")
	assert.Contains(t, out, "SUMMARY: Total: 2, Passed: 1, Failed: 1, Skipped: 0")
	assert.Contains(t, out, "All test suites finished in")

	// Log artifacts live under <outDir>/<suite>/.
	passLog := filepath.Join(outDir, "demo", "basic__test_pass@staging.log")
	data, err := os.ReadFile(passLog)
	require.NoError(t, err)
	assert.Contains(t, string(data), "all good on staging")
}

func TestRunnerDryRun(t *testing.T) {
	requireBash(t)

	suiteDir := writeSuiteDir(t, basicManifest, map[string]string{"basic.sh": basicTests})
	outDir := filepath.Join(t.TempDir(), "results")

	var buf bytes.Buffer

	r := newTestRunner(t, &config.Settings{
		SuiteDirs: []string{suiteDir},
		OutDir:    outDir,
		DryRun:    true,
		Workers:   1,
	}, &buf)

	require.NoError(t, r.AddSuite(suiteDir))

	sum, err := r.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, sum.Total)
	assert.Equal(t, 2, sum.DryRun)
	assert.Equal(t, 0, sum.Passed)
	assert.Equal(t, 0, sum.Failed)

	assert.Contains(t, buf.String(), "STATUS: DRYRUN")
	assert.Contains(t, buf.String(), "DryRun: 2")

	// No log artifacts are written in dry-run mode.
	entries, err := os.ReadDir(filepath.Join(outDir, "demo"))
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestRunnerParallel(t *testing.T) {
	requireBash(t)

	suiteDir := writeSuiteDir(t, `
name: parallel
driver: bash
targets:
  - t1
  - t2
`, map[string]string{"many.sh": `
test_one() { :; }
test_two() { :; }
test_three() { :; }
`})

	var buf bytes.Buffer

	r := newTestRunner(t, &config.Settings{
		SuiteDirs: []string{suiteDir},
		OutDir:    filepath.Join(t.TempDir(), "results"),
		Workers:   4,
	}, &buf)

	require.NoError(t, r.AddSuite(suiteDir))

	sum, err := r.Run(context.Background())
	require.NoError(t, err)

	// Three functions against two targets.
	assert.Equal(t, 6, sum.Total)
	assert.Equal(t, 6, sum.Passed)
}

func TestRunnerFilter(t *testing.T) {
	requireBash(t)

	suiteDir := writeSuiteDir(t, basicManifest, map[string]string{"basic.sh": basicTests})

	var buf bytes.Buffer

	r := newTestRunner(t, &config.Settings{
		SuiteDirs: []string{suiteDir},
		OutDir:    filepath.Join(t.TempDir(), "results"),
		Filter:    "test_pass",
		Workers:   1,
	}, &buf)

	require.NoError(t, r.AddSuite(suiteDir))

	sum, err := r.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, sum.Total)
	assert.Equal(t, 1, sum.Passed)
	assert.Equal(t, 0, sum.Failed)
}

func TestRunnerTargetOverride(t *testing.T) {
	requireBash(t)

	suiteDir := writeSuiteDir(t, basicManifest, map[string]string{"basic.sh": "test_t() { echo \"on $1\"; }\n"})
	outDir := filepath.Join(t.TempDir(), "results")

	var buf bytes.Buffer

	r := newTestRunner(t, &config.Settings{
		SuiteDirs: []string{suiteDir},
		OutDir:    outDir,
		Targets:   []string{"override-a", "override-b"},
		Workers:   1,
	}, &buf)

	require.NoError(t, r.AddSuite(suiteDir))

	sum, err := r.Run(context.Background())
	require.NoError(t, err)

	// Requested targets replace the manifest's list entirely.
	assert.Equal(t, 2, sum.Total)

	data, err := os.ReadFile(filepath.Join(outDir, "demo", "basic__test_t@override-a.log"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "on override-a")
}

func TestRunnerNoTargets(t *testing.T) {
	requireBash(t)

	suiteDir := writeSuiteDir(t, "name: bare\ndriver: bash\n",
		map[string]string{"basic.sh": "test_t() { :; }\n"})

	var buf bytes.Buffer

	r := newTestRunner(t, &config.Settings{
		SuiteDirs: []string{suiteDir},
		OutDir:    filepath.Join(t.TempDir(), "results"),
		Workers:   1,
	}, &buf)

	require.NoError(t, r.AddSuite(suiteDir))

	_, err := r.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no targets")
}

func TestRunnerMissingManifest(t *testing.T) {
	var buf bytes.Buffer

	r := newTestRunner(t, &config.Settings{
		SuiteDirs: []string{t.TempDir()},
		OutDir:    filepath.Join(t.TempDir(), "results"),
		Workers:   1,
	}, &buf)

	err := r.AddSuite(t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), config.ManifestFile)
}

func TestRunnerUnknownDriver(t *testing.T) {
	suiteDir := writeSuiteDir(t, "name: exotic\ndriver: python\n", nil)

	var buf bytes.Buffer

	r := newTestRunner(t, &config.Settings{
		SuiteDirs: []string{suiteDir},
		OutDir:    filepath.Join(t.TempDir(), "results"),
		Workers:   1,
	}, &buf)

	err := r.AddSuite(suiteDir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown test driver "python"`)
}

func TestRunnerMissingGlobalFixture(t *testing.T) {
	suiteDir := writeSuiteDir(t, `
name: demo
driver: bash
global-fixture: fixtures/common.sh
targets:
  - staging
`, map[string]string{"basic.sh": "test_t() { :; }\n"})

	var buf bytes.Buffer

	r := newTestRunner(t, &config.Settings{
		SuiteDirs: []string{suiteDir},
		OutDir:    filepath.Join(t.TempDir(), "results"),
		Workers:   1,
	}, &buf)

	err := r.AddSuite(suiteDir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "global fixture")
}

func TestRunnerCancelledRunSkipsRemaining(t *testing.T) {
	requireBash(t)

	suiteDir := writeSuiteDir(t, basicManifest, map[string]string{"basic.sh": basicTests})

	var buf bytes.Buffer

	r := newTestRunner(t, &config.Settings{
		SuiteDirs: []string{suiteDir},
		OutDir:    filepath.Join(t.TempDir(), "results"),
		Workers:   1,
	}, &buf)

	require.NoError(t, r.AddSuite(suiteDir))

	// Discover with a live context; discovery is idempotent so Run
	// reuses the records.
	require.NoError(t, r.ListTests(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sum, err := r.Run(ctx)
	require.NoError(t, err)

	// Nothing executed; unclaimed records count as skipped.
	assert.Equal(t, 2, sum.Total)
	assert.Equal(t, 2, sum.Skipped)
	assert.Equal(t, 0, sum.Passed)
	assert.Equal(t, 0, sum.Failed)
}

func TestRunnerRejectsSecondRun(t *testing.T) {
	requireBash(t)

	suiteDir := writeSuiteDir(t, basicManifest, map[string]string{"basic.sh": basicTests})

	var buf bytes.Buffer

	r := newTestRunner(t, &config.Settings{
		SuiteDirs: []string{suiteDir},
		OutDir:    filepath.Join(t.TempDir(), "results"),
		Workers:   1,
	}, &buf)

	require.NoError(t, r.AddSuite(suiteDir))

	_, err := r.Run(context.Background())
	require.NoError(t, err)

	_, err = r.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already been executed")
}

func TestRunnerListTests(t *testing.T) {
	requireBash(t)

	suiteDir := writeSuiteDir(t, basicManifest, map[string]string{"basic.sh": basicTests})

	var buf bytes.Buffer

	r := newTestRunner(t, &config.Settings{
		SuiteDirs: []string{suiteDir},
		OutDir:    filepath.Join(t.TempDir(), "results"),
		Workers:   1,
	}, &buf)

	require.NoError(t, r.AddSuite(suiteDir))
	require.NoError(t, r.ListTests(context.Background()))

	out := buf.String()
	assert.Contains(t, out, "Tests defined in test suite `demo`:")
	assert.Contains(t, out, "basic::test_pass")
	assert.Contains(t, out, "basic::test_fail")

	// Listing never transitions records.
	for _, s := range r.Suites() {
		for _, rec := range s.Records {
			assert.Equal(t, suite.ResultNotRun, rec.Result())
		}
	}
}

func TestRunnerListTargets(t *testing.T) {
	suiteDir := writeSuiteDir(t, basicManifest, nil)

	var buf bytes.Buffer

	r := newTestRunner(t, &config.Settings{
		SuiteDirs: []string{suiteDir},
		OutDir:    filepath.Join(t.TempDir(), "results"),
		Workers:   1,
	}, &buf)

	require.NoError(t, r.AddSuite(suiteDir))
	require.NoError(t, r.ListTargets())

	out := buf.String()
	assert.Contains(t, out, "Targets supported by test suite `demo`:")
	assert.Contains(t, out, "staging")
}

func TestRunnerRunID(t *testing.T) {
	var buf bytes.Buffer

	suiteDir := writeSuiteDir(t, basicManifest, nil)

	a := newTestRunner(t, &config.Settings{
		SuiteDirs: []string{suiteDir},
		OutDir:    filepath.Join(t.TempDir(), "results"),
		Workers:   1,
	}, &buf)
	b := newTestRunner(t, &config.Settings{
		SuiteDirs: []string{suiteDir},
		OutDir:    filepath.Join(t.TempDir(), "results"),
		Workers:   1,
	}, &buf)

	assert.NotEmpty(t, a.RunID())
	assert.NotEqual(t, a.RunID(), b.RunID())
}

func TestRunnerInvalidResultsOwner(t *testing.T) {
	_, err := New(testLogger(), &config.Settings{
		SuiteDirs:    []string{"./x"},
		OutDir:       "./results",
		ResultsOwner: "not-an-owner",
	}, driver.NewRegistry(testLogger()), reporter.NewNull(), nil)

	assert.Error(t, err)
}
