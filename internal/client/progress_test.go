package client

import (
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewProgress(t *testing.T) {
	tests := []struct {
		name      string
		done      int64
		total     int64
		speed     float64
		percent   int
		remaining time.Duration
		known     bool
	}{
		{"halfway", 50, 100, 10, 50, 5 * time.Second, true},
		{"rounds percent", 2, 3, 1, 67, time.Second, true},
		{"zero speed leaves eta unknown", 10, 100, 0, 10, 0, false},
		{"empty total", 0, 0, 0, 0, 0, false},
		{"done", 100, 100, 25, 100, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newProgress(tt.done, tt.total, tt.speed)
			assert.Equal(t, tt.percent, p.Percentage)
			assert.Equal(t, tt.known, p.RemainingKnown)
			assert.Equal(t, tt.remaining, p.Remaining)
		})
	}
}

// steppingClock advances one second per reading
func steppingClock() func() time.Time {
	t := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	return func() time.Time {
		t = t.Add(time.Second)
		return t
	}
}

func TestProgressReaderInstantaneousSpeed(t *testing.T) {
	rec := &recordingReporter{}
	r := newProgressReader(io.LimitReader(strings.NewReader(strings.Repeat("x", 30)), 30), 30, rec, steppingClock())

	buf := make([]byte, 10)
	for i := 0; i < 3; i++ {
		_, err := r.Read(buf)
		require.NoError(t, err)
	}

	require.Len(t, rec.updates, 3)
	for i, p := range rec.updates {
		assert.Equal(t, int64(10*(i+1)), p.UploadedBytes)
		// ten bytes per one second step
		assert.InDelta(t, 10.0, p.Speed, 0.001)
	}
	assert.Equal(t, 100, rec.last().Percentage)
	assert.Zero(t, rec.last().Remaining)
}

func TestCumulativeProgressAverages(t *testing.T) {
	rec := &recordingReporter{}
	clock := steppingClock()
	c := &cumulativeProgress{total: 100, start: clock(), reporter: rec, now: clock}

	c.add(20)
	c.add(20)

	require.Len(t, rec.updates, 2)
	assert.Equal(t, 40, rec.updates[1].Percentage)
	// 40 bytes over two seconds
	assert.InDelta(t, 20.0, rec.updates[1].Speed, 0.001)
	assert.Equal(t, 3*time.Second, rec.updates[1].Remaining)
}
