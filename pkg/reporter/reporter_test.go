package reporter

import (
	"bytes"
	"fmt"
	"testing"
	"time"

	"github.com/ethpandaops/testoor/pkg/suite"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type faultyReporter struct {
	mode string
}

var _ Reporter = (*faultyReporter)(nil)

func (f *faultyReporter) fail() error {
	if f.mode == "panic" {
		panic("reporter blew up")
	}

	return fmt.Errorf("render failed")
}

func (f *faultyReporter) ReportTestList(*suite.Suite) error   { return f.fail() }
func (f *faultyReporter) ReportTargetList(*suite.Suite) error { return f.fail() }
func (f *faultyReporter) ReportResult(*suite.Suite, *suite.Record) error {
	return f.fail()
}
func (f *faultyReporter) ReportSuiteSummary(*suite.Suite, suite.Summary, time.Duration) error {
	return f.fail()
}
func (f *faultyReporter) ReportRunSummary(suite.Summary, time.Duration) error {
	return f.fail()
}

func TestMultiIsolatesFailures(t *testing.T) {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)

	var buf bytes.Buffer

	m := NewMulti(log, &faultyReporter{mode: "error"}, NewConsole(&buf))

	rec := finishedRecord(t, suite.ResultPassed, "")
	require.NoError(t, m.ReportResult(demoSuite(), rec))
	require.NoError(t, m.ReportRunSummary(suite.Summary{Total: 1, Passed: 1}, time.Second))

	// The healthy reporter still rendered everything.
	assert.Contains(t, buf.String(), "STATUS: PASSED")
	assert.Contains(t, buf.String(), "SUMMARY: Total: 1")
}

func TestMultiRecoversPanics(t *testing.T) {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)

	var buf bytes.Buffer

	m := NewMulti(log, &faultyReporter{mode: "panic"}, NewConsole(&buf))

	assert.NotPanics(t, func() {
		require.NoError(t, m.ReportResult(demoSuite(), finishedRecord(t, suite.ResultFailed, "boom")))
	})

	assert.Contains(t, buf.String(), "STATUS: FAILED")
}

func TestNullReporter(t *testing.T) {
	n := NewNull()

	assert.NoError(t, n.ReportTestList(demoSuite()))
	assert.NoError(t, n.ReportTargetList(demoSuite()))
	assert.NoError(t, n.ReportResult(demoSuite(), finishedRecord(t, suite.ResultPassed, "")))
	assert.NoError(t, n.ReportSuiteSummary(demoSuite(), suite.Summary{}, 0))
	assert.NoError(t, n.ReportRunSummary(suite.Summary{}, 0))
}
