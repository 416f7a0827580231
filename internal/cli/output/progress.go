package output

import (
	"fmt"
	"io"
	"strings"
	"sync"
)

// ProgressBar draws fractional progress on one line. Report has the
// signature of an operation progress sink, so a bar can be handed to the
// orchestrator directly.
type ProgressBar struct {
	w        io.Writer
	title    string
	label    string
	fraction float64
	width    int
	done     bool
	mu       sync.Mutex
}

// NewProgressBar creates a new progress bar.
func NewProgressBar(w io.Writer, title string) *ProgressBar {
	return &ProgressBar{
		w:     w,
		title: title,
		width: 40,
	}
}

// Report sets the completed fraction, clamped to [0, 1], and redraws.
func (p *ProgressBar) Report(fraction float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.done {
		return
	}
	switch {
	case fraction < 0:
		fraction = 0
	case fraction > 1:
		fraction = 1
	}
	p.fraction = fraction
	p.render()
}

// SetLabel changes the text shown after the percentage.
func (p *ProgressBar) SetLabel(label string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.label = label
}

// Fraction returns the last reported value.
func (p *ProgressBar) Fraction() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.fraction
}

// Finish draws the final state and ends the line. Later reports are ignored.
func (p *ProgressBar) Finish() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.done {
		return
	}
	p.render()
	p.done = true
	fmt.Fprintln(p.w)
}

func (p *ProgressBar) render() {
	filled := int(float64(p.width) * p.fraction)
	bar := strings.Repeat("█", filled) + strings.Repeat("░", p.width-filled)
	line := fmt.Sprintf("\r%s [%s] %3.0f%%", p.title, bar, p.fraction*100)
	if p.label != "" {
		line += " " + p.label
	}
	fmt.Fprint(p.w, line)
}
