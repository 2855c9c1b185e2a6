package suite

import (
	"fmt"
	"time"
)

// ErrIntervalOpen is returned when Elapsed is called before the interval
// has both a start and an end stamp.
var ErrIntervalOpen = fmt.Errorf("interval is not closed yet")

// Interval measures wall-clock time between two stamps.
type Interval struct {
	start time.Time
	end   time.Time
}

// Begin stamps the start of the interval.
func (i *Interval) Begin() {
	i.start = time.Now()
}

// Stop stamps the end of the interval and returns the elapsed duration.
func (i *Interval) Stop() time.Duration {
	i.end = time.Now()

	return i.end.Sub(i.start)
}

// Started reports whether Begin has been called.
func (i *Interval) Started() bool {
	return !i.start.IsZero()
}

// Elapsed returns the measured duration. Calling it before both stamps
// are set is a contract violation and returns ErrIntervalOpen.
func (i *Interval) Elapsed() (time.Duration, error) {
	if i.start.IsZero() || i.end.IsZero() {
		return 0, ErrIntervalOpen
	}

	return i.end.Sub(i.start), nil
}

// FormatDuration renders a duration as "1h 2m 3s", dropping leading
// zero components.
func FormatDuration(d time.Duration) string {
	seconds := int64(d.Seconds())
	minutes := seconds / 60
	hours := minutes / 60

	seconds %= 60
	minutes %= 60

	switch {
	case hours > 0:
		return fmt.Sprintf("%dh %dm %ds", hours, minutes, seconds)
	case minutes > 0:
		return fmt.Sprintf("%dm %ds", minutes, seconds)
	default:
		return fmt.Sprintf("%ds", seconds)
	}
}
