package ui

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/progress"
)

// ProgressDisplay renders a single progress line for the download pipeline
type ProgressDisplay struct {
	mu       sync.Mutex
	out      io.Writer
	bar      progress.Model
	total    int
	written  int
	skipped  int
	failed   int
	start    time.Time
	last     time.Time
	interval time.Duration
	plain    bool
}

// NewProgressDisplay creates a display for total items. A non-positive
// total renders counts without a bar.
func NewProgressDisplay(w io.Writer, total int) *ProgressDisplay {
	mu.Lock()
	plain := noColor
	mu.Unlock()

	return &ProgressDisplay{
		out:      w,
		bar:      progress.New(progress.WithDefaultGradient(), progress.WithWidth(30)),
		total:    total,
		start:    time.Now(),
		interval: 200 * time.Millisecond,
		plain:    plain,
	}
}

// ItemWritten records a published image
func (p *ProgressDisplay) ItemWritten(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.written++
	p.refresh(false)
}

// ItemSkipped records an image that was already present
func (p *ProgressDisplay) ItemSkipped(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.skipped++
	p.refresh(false)
}

// ItemFailed records an item that could not be published
func (p *ProgressDisplay) ItemFailed(id string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failed++
	p.refresh(false)
}

// Finish prints the final line
func (p *ProgressDisplay) Finish() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.refresh(true)
	fmt.Fprintln(p.out)
}

// Line renders the current progress line
func (p *ProgressDisplay) Line() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.line()
}

func (p *ProgressDisplay) refresh(force bool) {
	now := time.Now()
	if !force && now.Sub(p.last) < p.interval {
		return
	}
	p.last = now
	fmt.Fprintf(p.out, "\r%s\r%s", strings.Repeat(" ", 100), p.line())
}

func (p *ProgressDisplay) line() string {
	done := p.written + p.skipped + p.failed
	rate := 0.0
	if elapsed := time.Since(p.start).Minutes(); elapsed > 0 {
		rate = float64(done) / elapsed
	}

	counts := fmt.Sprintf("written %d • skipped %d • failed %d • %.1f/min", p.written, p.skipped, p.failed, rate)
	if p.total <= 0 {
		return fmt.Sprintf("%d done • %s", done, counts)
	}

	pct := float64(done) / float64(p.total)
	if pct > 1 {
		pct = 1
	}
	bar := fmt.Sprintf("%3.0f%%", pct*100)
	if !p.plain {
		bar = p.bar.ViewAs(pct)
	}
	return fmt.Sprintf("%s %d/%d • %s", bar, done, p.total, counts)
}
