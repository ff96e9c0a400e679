package client

import (
	"io"
	"math"
	"sync"
	"time"
)

// Progress is a transfer telemetry sample.
type Progress struct {
	// Percentage is rounded to whole percent, 0..100
	Percentage    int
	UploadedBytes int64
	TotalBytes    int64

	// Speed is in bytes per second
	Speed float64

	// Remaining is only meaningful when RemainingKnown is set; a zero speed
	// leaves the estimate unknown
	Remaining      time.Duration
	RemainingKnown bool
}

// ProgressReporter receives telemetry. Update may be called from several
// goroutines; implementations must not block for long.
type ProgressReporter interface {
	Update(Progress)
	Complete()
	Error(error)
}

// NopReporter discards all telemetry.
type NopReporter struct{}

func (NopReporter) Update(Progress) {}
func (NopReporter) Complete()       {}
func (NopReporter) Error(error)     {}

// ReporterFunc adapts a function to ProgressReporter, ignoring completion and errors.
type ReporterFunc func(Progress)

func (f ReporterFunc) Update(p Progress) { f(p) }
func (ReporterFunc) Complete()           {}
func (ReporterFunc) Error(error)         {}

func newProgress(done, total int64, speed float64) Progress {
	p := Progress{
		UploadedBytes: done,
		TotalBytes:    total,
		Speed:         speed,
	}
	if total > 0 {
		p.Percentage = int(math.Round(float64(done) / float64(total) * 100))
		p.Percentage = min(max(p.Percentage, 0), 100)
	}
	if speed > 0 {
		p.Remaining = time.Duration(float64(total-done) / speed * float64(time.Second))
		p.RemainingKnown = true
	}
	return p
}

// progressReader samples instantaneous throughput on every read: the bytes
// since the previous sample over the time since the previous sample.
type progressReader struct {
	r        io.Reader
	total    int64
	reporter ProgressReporter
	now      func() time.Time

	mu        sync.Mutex
	done      int64
	lastBytes int64
	lastTime  time.Time
	speed     float64
}

func newProgressReader(r io.Reader, total int64, reporter ProgressReporter, now func() time.Time) *progressReader {
	return &progressReader{
		r:        r,
		total:    total,
		reporter: reporter,
		now:      now,
		lastTime: now(),
	}
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	if n > 0 {
		p.sample(int64(n))
	}
	return n, err
}

func (p *progressReader) sample(n int64) {
	p.mu.Lock()
	p.done += n
	t := p.now()
	if elapsed := t.Sub(p.lastTime).Seconds(); elapsed > 0 {
		p.speed = float64(p.done-p.lastBytes) / elapsed
		p.lastBytes = p.done
		p.lastTime = t
	}
	progress := newProgress(p.done, p.total, p.speed)
	p.mu.Unlock()

	p.reporter.Update(progress)
}

// cumulativeProgress aggregates bytes across workers and reports the
// average rate since the transfer began.
type cumulativeProgress struct {
	total    int64
	start    time.Time
	reporter ProgressReporter
	now      func() time.Time

	mu   sync.Mutex
	done int64
}

func (c *cumulativeProgress) add(n int64) {
	c.mu.Lock()
	c.done += n
	done := c.done
	elapsed := c.now().Sub(c.start).Seconds()
	c.mu.Unlock()

	var speed float64
	if elapsed > 0 {
		speed = float64(done) / elapsed
	}
	c.reporter.Update(newProgress(done, c.total, speed))
}

