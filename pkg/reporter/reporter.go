package reporter

import (
	"time"

	"github.com/ethpandaops/testoor/pkg/suite"
	"github.com/sirupsen/logrus"
)

// Reporter renders published run state. Implementations are observers:
// they only ever read from records and suites and can never influence
// execution order or outcome. A rendering failure is returned to the
// caller, which logs and swallows it.
type Reporter interface {
	// ReportTestList renders the discovered qualified test names.
	ReportTestList(s *suite.Suite) error

	// ReportTargetList renders the targets declared by the suite.
	ReportTargetList(s *suite.Suite) error

	// ReportResult renders one record that reached a terminal state.
	ReportResult(s *suite.Suite, rec *suite.Record) error

	// ReportSuiteSummary renders the per-suite tally and timing.
	ReportSuiteSummary(s *suite.Suite, sum suite.Summary, elapsed time.Duration) error

	// ReportRunSummary renders the aggregate tally across all suites.
	ReportRunSummary(sum suite.Summary, elapsed time.Duration) error
}

// NewMulti fans out to multiple reporters in attachment order. Errors
// and panics from one reporter are logged and never reach the others,
// nor the orchestrator.
func NewMulti(log logrus.FieldLogger, reporters ...Reporter) Reporter {
	return &multi{
		log:       log.WithField("component", "reporter"),
		reporters: reporters,
	}
}

type multi struct {
	log       logrus.FieldLogger
	reporters []Reporter
}

var _ Reporter = (*multi)(nil)

func (m *multi) ReportTestList(s *suite.Suite) error {
	m.each(func(r Reporter) error { return r.ReportTestList(s) })

	return nil
}

func (m *multi) ReportTargetList(s *suite.Suite) error {
	m.each(func(r Reporter) error { return r.ReportTargetList(s) })

	return nil
}

func (m *multi) ReportResult(s *suite.Suite, rec *suite.Record) error {
	m.each(func(r Reporter) error { return r.ReportResult(s, rec) })

	return nil
}

func (m *multi) ReportSuiteSummary(s *suite.Suite, sum suite.Summary, elapsed time.Duration) error {
	m.each(func(r Reporter) error { return r.ReportSuiteSummary(s, sum, elapsed) })

	return nil
}

func (m *multi) ReportRunSummary(sum suite.Summary, elapsed time.Duration) error {
	m.each(func(r Reporter) error { return r.ReportRunSummary(sum, elapsed) })

	return nil
}

func (m *multi) each(call func(Reporter) error) {
	for _, r := range m.reporters {
		m.dispatch(r, call)
	}
}

func (m *multi) dispatch(r Reporter, call func(Reporter) error) {
	defer func() {
		if rec := recover(); rec != nil {
			m.log.WithField("panic", rec).Warn("Reporter panicked")
		}
	}()

	if err := call(r); err != nil {
		m.log.WithError(err).Warn("Reporter failed to render")
	}
}
