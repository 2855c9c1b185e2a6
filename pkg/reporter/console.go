package reporter

import (
	"fmt"
	"io"
	"time"

	"github.com/ethpandaops/testoor/pkg/suite"
	"github.com/fatih/color"
)

// Console renders human-readable, color-coded output. Per-test lines use
// the "STATUS: <result>" form and summaries the
// "SUMMARY: Total: n, Passed: p, Failed: f, Skipped: s" form.
type Console struct {
	out io.Writer
}

var _ Reporter = (*Console)(nil)

// NewConsole creates a console reporter writing to out.
func NewConsole(out io.Writer) *Console {
	return &Console{out: out}
}

func (c *Console) ReportTestList(s *suite.Suite) error {
	fmt.Fprintf(c.out, "Tests defined in test suite `%s`:\n", s.Config.Name)

	for _, name := range s.QualifiedNames() {
		fmt.Fprintf(c.out, "  %s\n", name)
	}

	return nil
}

func (c *Console) ReportTargetList(s *suite.Suite) error {
	fmt.Fprintf(c.out, "Targets supported by test suite `%s`:\n", s.Config.Name)

	for _, target := range s.Config.Targets {
		fmt.Fprintf(c.out, "  %s\n", target)
	}

	return nil
}

func (c *Console) ReportResult(s *suite.Suite, rec *suite.Record) error {
	fmt.Fprintf(c.out, "Ran test case `%s` on target `%s`\n",
		rec.QualifiedName, rec.Target)
	fmt.Fprintf(c.out, "STATUS: %s\n", colorizeResult(rec.Result()))

	if reason := rec.Reason(); reason != "" && rec.Result() == suite.ResultFailed {
		fmt.Fprintf(c.out, "  reason: %s\n", reason)
	}

	return nil
}

func (c *Console) ReportSuiteSummary(s *suite.Suite, sum suite.Summary, elapsed time.Duration) error {
	fmt.Fprintf(c.out, "Test suite `%s` finished in %s\n",
		s.Config.Name, suite.FormatDuration(elapsed))
	c.printSummary(sum)

	return nil
}

func (c *Console) ReportRunSummary(sum suite.Summary, elapsed time.Duration) error {
	fmt.Fprintf(c.out, "All test suites finished in %s\n", suite.FormatDuration(elapsed))
	c.printSummary(sum)

	return nil
}

func (c *Console) printSummary(sum suite.Summary) {
	line := fmt.Sprintf("SUMMARY: Total: %d, Passed: %d, Failed: %d, Skipped: %d",
		sum.Total, sum.Passed, sum.Failed, sum.Skipped)

	if sum.DryRun > 0 {
		line += fmt.Sprintf(", DryRun: %d", sum.DryRun)
	}

	fmt.Fprintln(c.out, line)
}

// colorizeResult maps a result to its color-coded display string.
func colorizeResult(r suite.Result) string {
	switch r {
	case suite.ResultPassed:
		return color.GreenString(r.String())
	case suite.ResultFailed:
		return color.RedString(r.String())
	case suite.ResultSkipped, suite.ResultDryRun:
		return color.YellowString(r.String())
	default:
		return r.String()
	}
}
