package main

import (
	"fmt"
	"io"
	"sync"
	"time"
)

// progressTracker reports how many files have been seeded.
type progressTracker struct {
	writer    io.Writer
	total     int
	current   int
	failed    int
	startTime time.Time
	started   bool
	mu        sync.Mutex
}

func newProgressTracker(writer io.Writer, total int) *progressTracker {
	return &progressTracker{writer: writer, total: total}
}

func (p *progressTracker) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.startTime = time.Now()
	p.started = true
	p.current = 0
	p.failed = 0
}

// Done records one processed file.
func (p *progressTracker) Done(failed bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.started {
		return
	}
	if p.current < p.total {
		p.current++
	}
	if failed {
		p.failed++
	}
	p.report()
}

// Finish prints the final line.
func (p *progressTracker) Finish() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.started {
		return
	}
	p.report()
	fmt.Fprintln(p.writer)
}

// Counts returns processed and failed totals.
func (p *progressTracker) Counts() (current, failed int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current, p.failed
}

// report must be called with the lock held.
func (p *progressTracker) report() {
	elapsed := time.Since(p.startTime)
	rate := 0.0
	if elapsed > 0 {
		rate = float64(p.current) / elapsed.Seconds()
	}

	percentage := 0.0
	if p.total > 0 {
		percentage = float64(p.current) / float64(p.total) * 100.0
	}

	fmt.Fprintf(p.writer, "\rProgress: %d/%d (%.1f%%), %d failed - %.1f files/s",
		p.current, p.total, percentage, p.failed, rate)
}
