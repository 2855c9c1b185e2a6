package suite

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// Record is the unit of work: one discovered test function bound to one
// execution target. Result state is mutated exactly once, through Begin
// and Finish, which also stamp timing.
type Record struct {
	// SourceFile is the test file path relative to the suite directory.
	SourceFile string

	// Function is the test function name inside SourceFile.
	Function string

	// QualifiedName is "<relative-path-without-extension>::<function>",
	// unique within a suite+target pair.
	QualifiedName string

	// Target is the named execution context the function runs against.
	Target string

	// LogPath is the log artifact written for this record, set by the
	// driver once execution starts. Empty for dry runs.
	LogPath string

	result   Result
	reason   string
	interval Interval
}

// NewRecord creates a record in the NotRun state.
func NewRecord(sourceFile, function, target string) *Record {
	return &Record{
		SourceFile:    sourceFile,
		Function:      function,
		QualifiedName: QualifiedName(sourceFile, function),
		Target:        target,
		result:        ResultNotRun,
	}
}

// QualifiedName builds the suite-unique test case identifier from a
// relative file path and a function name.
func QualifiedName(sourceFile, function string) string {
	rel := filepath.ToSlash(sourceFile)
	rel = strings.TrimSuffix(rel, filepath.Ext(rel))

	return rel + "::" + function
}

// Result returns the current execution state.
func (r *Record) Result() Result {
	return r.result
}

// Reason returns the annotation attached to a terminal state, such as a
// timeout or the child process exit status.
func (r *Record) Reason() string {
	return r.reason
}

// Begin transitions the record from NotRun to Running and stamps the
// start time.
func (r *Record) Begin() error {
	if r.result != ResultNotRun {
		return fmt.Errorf("record %q@%s: cannot start from state %s",
			r.QualifiedName, r.Target, r.result)
	}

	r.result = ResultRunning
	r.interval.Begin()

	return nil
}

// Finish transitions the record from Running to a terminal state and
// stamps the end time. The reason annotates failures and skips.
func (r *Record) Finish(result Result, reason string) error {
	if r.result != ResultRunning {
		return fmt.Errorf("record %q@%s: cannot finish from state %s",
			r.QualifiedName, r.Target, r.result)
	}

	if !result.Terminal() {
		return fmt.Errorf("record %q@%s: %s is not a terminal state",
			r.QualifiedName, r.Target, result)
	}

	r.result = result
	r.reason = reason
	r.interval.Stop()

	return nil
}

// Elapsed returns the execution duration. It errors until the record has
// reached a terminal state.
func (r *Record) Elapsed() (time.Duration, error) {
	return r.interval.Elapsed()
}

var logNameReplacer = strings.NewReplacer("/", "_", "::", "__")

// LogName returns the log file name for this record. Path separators in
// the qualified name are flattened and the target is appended so that
// every (qualifiedName, target) pair maps to a distinct file.
func (r *Record) LogName() string {
	return logNameReplacer.Replace(r.QualifiedName) + "@" + r.Target + ".log"
}
