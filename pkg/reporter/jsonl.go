package reporter

import (
	"encoding/json"
	"io"
	"time"

	"github.com/ethpandaops/testoor/pkg/suite"
)

// JSONL emits one machine-readable JSON record per line, suitable for CI
// consumption: one record per test result plus one summary record per
// suite and per run.
type JSONL struct {
	enc *json.Encoder
}

var _ Reporter = (*JSONL)(nil)

// NewJSONL creates a structured reporter writing to out.
func NewJSONL(out io.Writer) *JSONL {
	return &JSONL{enc: json.NewEncoder(out)}
}

type jsonlTest struct {
	Type  string `json:"type"`
	Suite string `json:"suite"`
	Name  string `json:"name"`
}

type jsonlTarget struct {
	Type   string `json:"type"`
	Suite  string `json:"suite"`
	Target string `json:"target"`
}

type jsonlResult struct {
	Type       string `json:"type"`
	Suite      string `json:"suite"`
	Name       string `json:"name"`
	Target     string `json:"target"`
	Result     string `json:"result"`
	Reason     string `json:"reason,omitempty"`
	DurationMs int64  `json:"duration_ms"`
	Log        string `json:"log,omitempty"`
}

type jsonlSummary struct {
	Type       string `json:"type"`
	Suite      string `json:"suite,omitempty"`
	Total      int    `json:"total"`
	Passed     int    `json:"passed"`
	Failed     int    `json:"failed"`
	Skipped    int    `json:"skipped"`
	DryRun     int    `json:"dry_run"`
	DurationMs int64  `json:"duration_ms"`
}

func (j *JSONL) ReportTestList(s *suite.Suite) error {
	for _, name := range s.QualifiedNames() {
		if err := j.enc.Encode(jsonlTest{
			Type:  "test",
			Suite: s.Config.Name,
			Name:  name,
		}); err != nil {
			return err
		}
	}

	return nil
}

func (j *JSONL) ReportTargetList(s *suite.Suite) error {
	for _, target := range s.Config.Targets {
		if err := j.enc.Encode(jsonlTarget{
			Type:   "target",
			Suite:  s.Config.Name,
			Target: target,
		}); err != nil {
			return err
		}
	}

	return nil
}

func (j *JSONL) ReportResult(s *suite.Suite, rec *suite.Record) error {
	elapsed, err := rec.Elapsed()
	if err != nil {
		elapsed = 0
	}

	return j.enc.Encode(jsonlResult{
		Type:       "result",
		Suite:      s.Config.Name,
		Name:       rec.QualifiedName,
		Target:     rec.Target,
		Result:     rec.Result().String(),
		Reason:     rec.Reason(),
		DurationMs: elapsed.Milliseconds(),
		Log:        rec.LogPath,
	})
}

func (j *JSONL) ReportSuiteSummary(s *suite.Suite, sum suite.Summary, elapsed time.Duration) error {
	return j.enc.Encode(jsonlSummary{
		Type:       "suite_summary",
		Suite:      s.Config.Name,
		Total:      sum.Total,
		Passed:     sum.Passed,
		Failed:     sum.Failed,
		Skipped:    sum.Skipped,
		DryRun:     sum.DryRun,
		DurationMs: elapsed.Milliseconds(),
	})
}

func (j *JSONL) ReportRunSummary(sum suite.Summary, elapsed time.Duration) error {
	return j.enc.Encode(jsonlSummary{
		Type:       "run_summary",
		Total:      sum.Total,
		Passed:     sum.Passed,
		Failed:     sum.Failed,
		Skipped:    sum.Skipped,
		DryRun:     sum.DryRun,
		DurationMs: elapsed.Milliseconds(),
	})
}
