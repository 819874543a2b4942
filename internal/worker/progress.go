package worker

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

// Progress tracks and displays the completed fraction of a morphology
// operation. Lines report their weight through Add; updates are printed at
// most every Step of progress.
type Progress struct {
	startTime time.Time
	output    io.Writer
	label     string
	fraction  float64
	printed   float64
	step      float64
	mu        sync.Mutex
	enabled   bool
}

// NewProgress creates a new progress tracker.
func NewProgress(label string, enabled bool) *Progress {
	return &Progress{
		label:     label,
		startTime: time.Now(),
		output:    os.Stderr,
		step:      1.0 / 30,
		enabled:   enabled,
	}
}

// Add records delta of completed work. Safe for concurrent use.
func (p *Progress) Add(delta float64) {
	p.mu.Lock()
	p.fraction += delta
	if p.fraction > 1 {
		p.fraction = 1
	}
	show := p.enabled && p.fraction-p.printed >= p.step
	if show {
		p.printed = p.fraction
	}
	p.mu.Unlock()

	if show {
		p.Print()
	}
}

// Fraction returns the completed fraction in [0,1].
func (p *Progress) Fraction() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.fraction
}

// Print displays the current progress to output.
func (p *Progress) Print() {
	p.mu.Lock()
	fraction := p.fraction
	startTime := p.startTime
	p.mu.Unlock()

	elapsed := time.Since(startTime)

	var eta time.Duration
	if fraction > 0 && fraction < 1 {
		eta = time.Duration(float64(elapsed) * (1 - fraction) / fraction)
	}

	barWidth := 30
	filledWidth := int(fraction * float64(barWidth))
	bar := strings.Repeat("█", filledWidth) + strings.Repeat("░", barWidth-filledWidth)

	line := fmt.Sprintf("\r[%s] %5.1f%% %s", bar, fraction*100, p.label)
	if eta > 0 {
		line += fmt.Sprintf(" - ETA: %s", formatDuration(eta))
	}
	if fraction >= 1 {
		line += fmt.Sprintf(" - Done in %s", formatDuration(elapsed))
	}

	// Pad to clear previous line content
	line += "          "

	fmt.Fprint(p.output, line)
}

// Done prints the final progress and a newline.
func (p *Progress) Done() {
	if p.enabled {
		p.Print()
		fmt.Fprintln(p.output)
	}
}

// Summary returns a summary string of the completed work.
func (p *Progress) Summary() string {
	p.mu.Lock()
	fraction := p.fraction
	startTime := p.startTime
	p.mu.Unlock()

	return fmt.Sprintf("%s %.0f%% complete in %s", p.label, fraction*100, formatDuration(time.Since(startTime)))
}

// formatDuration formats a duration in a human-readable way.
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.0fs", d.Seconds())
	}
	if d < time.Hour {
		mins := int(d.Minutes())
		secs := int(d.Seconds()) % 60
		return fmt.Sprintf("%dm%ds", mins, secs)
	}
	hours := int(d.Hours())
	mins := int(d.Minutes()) % 60
	return fmt.Sprintf("%dh%dm", hours, mins)
}
