package progress

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/term"
)

const (
	defaultInterval = 200 * time.Millisecond
	defaultWidth    = 80
)

// Reporter counts completed units of work and periodically redraws a
// single-line progress bar.
type Reporter struct {
	label    string
	total    int64
	done     atomic.Int64
	out      io.Writer
	width    int
	interval time.Duration

	stopOnce sync.Once
	stop     chan struct{}
	wg       sync.WaitGroup
}

// New creates a reporter for total units that draws on out.
func New(out io.Writer, label string, total int) *Reporter {
	width := defaultWidth
	if f, ok := out.(*os.File); ok {
		width = TerminalWidth(f)
	}
	return &Reporter{
		label:    label,
		total:    int64(total),
		out:      out,
		width:    width,
		interval: defaultInterval,
		stop:     make(chan struct{}),
	}
}

// Increment records one completed unit. Safe for concurrent use.
func (r *Reporter) Increment() {
	r.done.Add(1)
}

// Done returns the number of completed units.
func (r *Reporter) Done() int64 {
	return r.done.Load()
}

// Start begins redrawing in the background until Stop is called.
func (r *Reporter) Start() {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				r.draw()
			case <-r.stop:
				return
			}
		}
	}()
}

// Stop halts the background redraw and prints the final state.
func (r *Reporter) Stop() {
	r.stopOnce.Do(func() {
		close(r.stop)
		r.wg.Wait()
		r.draw()
		fmt.Fprintln(r.out)
	})
}

func (r *Reporter) draw() {
	fmt.Fprintf(r.out, "\r%s", Render(r.label, r.done.Load(), r.total, r.width))
}

// Render formats a progress line no wider than width:
//
//	compositing [=========>          ]  45% (9/20)
func Render(label string, done, total int64, width int) string {
	if total <= 0 {
		total = 1
	}
	if done > total {
		done = total
	}
	pct := done * 100 / total
	suffix := fmt.Sprintf(" %3d%% (%d/%d)", pct, done, total)

	barWidth := width - len(label) - len(suffix) - 3
	if barWidth < 10 {
		barWidth = 10
	}
	filled := int(int64(barWidth) * done / total)

	var b strings.Builder
	b.WriteString(label)
	b.WriteString(" [")
	switch {
	case filled >= barWidth:
		b.WriteString(strings.Repeat("=", barWidth))
	default:
		b.WriteString(strings.Repeat("=", filled))
		b.WriteString(">")
		b.WriteString(strings.Repeat(" ", barWidth-filled-1))
	}
	b.WriteString("]")
	b.WriteString(suffix)
	return b.String()
}

// IsTerminal reports whether f is attached to a terminal.
func IsTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// TerminalWidth returns the column count of f, or 80 when f is not a
// terminal.
func TerminalWidth(f *os.File) int {
	if !IsTerminal(f) {
		return defaultWidth
	}
	w, _, err := term.GetSize(int(f.Fd()))
	if err != nil || w <= 0 {
		return defaultWidth
	}
	return w
}
