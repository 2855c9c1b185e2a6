package suite

// Result is the execution state of a single test record.
type Result int

const (
	// ResultNotRun is the initial state of every discovered record.
	ResultNotRun Result = iota

	// ResultRunning means the record has been claimed by a worker.
	ResultRunning

	// ResultPassed means the test function exited with status 0.
	ResultPassed

	// ResultFailed means the test function exited non-zero, crashed or
	// timed out.
	ResultFailed

	// ResultSkipped means the record was never executed.
	ResultSkipped

	// ResultDryRun means the record was walked in dry-run mode without
	// spawning a child process.
	ResultDryRun
)

// String returns the canonical upper-case name used in reporter output.
func (r Result) String() string {
	switch r {
	case ResultNotRun:
		return "NOTRUN"
	case ResultRunning:
		return "RUNNING"
	case ResultPassed:
		return "PASSED"
	case ResultFailed:
		return "FAILED"
	case ResultSkipped:
		return "SKIPPED"
	case ResultDryRun:
		return "DRYRUN"
	default:
		return "UNKNOWN"
	}
}

// Terminal reports whether r is a final state.
func (r Result) Terminal() bool {
	switch r {
	case ResultPassed, ResultFailed, ResultSkipped, ResultDryRun:
		return true
	default:
		return false
	}
}
