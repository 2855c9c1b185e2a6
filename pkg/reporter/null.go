package reporter

import (
	"time"

	"github.com/ethpandaops/testoor/pkg/suite"
)

// Null is the silent reporter variant.
type Null struct{}

var _ Reporter = (*Null)(nil)

// NewNull creates a reporter that renders nothing.
func NewNull() *Null {
	return &Null{}
}

func (n *Null) ReportTestList(*suite.Suite) error { return nil }

func (n *Null) ReportTargetList(*suite.Suite) error { return nil }

func (n *Null) ReportResult(*suite.Suite, *suite.Record) error { return nil }

func (n *Null) ReportSuiteSummary(*suite.Suite, suite.Summary, time.Duration) error {
	return nil
}

func (n *Null) ReportRunSummary(suite.Summary, time.Duration) error { return nil }
