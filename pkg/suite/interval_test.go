package suite

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIntervalElapsedBeforeClose(t *testing.T) {
	var i Interval

	_, err := i.Elapsed()
	assert.ErrorIs(t, err, ErrIntervalOpen)

	i.Begin()

	_, err = i.Elapsed()
	assert.ErrorIs(t, err, ErrIntervalOpen)
}

func TestIntervalElapsed(t *testing.T) {
	var i Interval

	assert.False(t, i.Started())

	i.Begin()
	assert.True(t, i.Started())

	d := i.Stop()

	elapsed, err := i.Elapsed()
	require.NoError(t, err)
	assert.Equal(t, d, elapsed)
	assert.GreaterOrEqual(t, elapsed, time.Duration(0))
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		name string
		d    time.Duration
		want string
	}{
		{"zero", 0, "0s"},
		{"seconds only", 42 * time.Second, "42s"},
		{"minutes and seconds", 2*time.Minute + 3*time.Second, "2m 3s"},
		{"exact minute", time.Minute, "1m 0s"},
		{"hours", time.Hour + time.Minute + time.Second, "1h 1m 1s"},
		{"sub-second truncates", 900 * time.Millisecond, "0s"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatDuration(tt.d))
		})
	}
}
