package main

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/docker/go-units"
	"github.com/hako/durafmt"

	"github.com/stefando/shareDrop/internal/client"
)

// terminalReporter redraws a single status line, at most once per percent.
type terminalReporter struct {
	out   io.Writer
	label string

	mu      sync.Mutex
	percent int
}

func newTerminalReporter(out io.Writer, label string) *terminalReporter {
	return &terminalReporter{out: out, label: label, percent: -1}
}

func (r *terminalReporter) Update(p client.Progress) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if p.Percentage == r.percent {
		return
	}
	r.percent = p.Percentage
	fmt.Fprintf(r.out, "\r\033[K%s", formatProgress(r.label, p))
}

func (r *terminalReporter) Complete() {
	fmt.Fprintln(r.out)
}

func (r *terminalReporter) Error(err error) {
	fmt.Fprintln(r.out)
}

func formatProgress(label string, p client.Progress) string {
	eta := "unknown"
	if p.RemainingKnown {
		eta = formatDuration(p.Remaining)
	}
	return fmt.Sprintf("%s %3d%% %s / %s  %s/s  ETA %s",
		label,
		p.Percentage,
		units.BytesSize(float64(p.UploadedBytes)),
		units.BytesSize(float64(p.TotalBytes)),
		units.BytesSize(p.Speed),
		eta,
	)
}

func formatDuration(d time.Duration) string {
	if d < time.Second {
		return "0 seconds"
	}
	return durafmt.Parse(d.Truncate(time.Second)).LimitFirstN(2).String()
}
