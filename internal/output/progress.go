package output

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/mattn/go-isatty"
)

const progressWidth = 30

const clearLine = "\033[2K\r"

// Progress reports completed/total after each trial. On a terminal it redraws
// a single status line; otherwise it logs one line per update.
type Progress struct {
	w    io.Writer
	tty  bool
	mu   sync.Mutex
	open bool
	last string
}

// NewProgress renders to f, detecting whether f is a terminal.
func NewProgress(f *os.File) *Progress {
	tty := isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	return NewProgressWriter(f, tty)
}

// NewProgressWriter renders to w; tty selects the redrawing mode.
func NewProgressWriter(w io.Writer, tty bool) *Progress {
	return &Progress{w: w, tty: tty}
}

// Update reports that done of total trials have finished; label names the last one.
func (p *Progress) Update(done, total int, label string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.tty {
		Logger.Info("Progress", "completed", done, "total", total, "last", label)
		return
	}
	p.last = fmt.Sprintf("%s %d/%d %s", bar(done, total), done, total, label)
	fmt.Fprint(p.w, clearLine+p.last)
	p.open = true
}

// Wrap returns a writer for log output that shares the terminal with the status
// line: each write clears the line first and redraws it afterwards.
func (p *Progress) Wrap(w io.Writer) io.Writer {
	if !p.tty {
		return w
	}
	return &progressWriter{p: p, w: w}
}

type progressWriter struct {
	p *Progress
	w io.Writer
}

func (pw *progressWriter) Write(b []byte) (int, error) {
	pw.p.mu.Lock()
	defer pw.p.mu.Unlock()

	if pw.p.open {
		fmt.Fprint(pw.p.w, clearLine)
	}
	n, err := pw.w.Write(b)
	if pw.p.open {
		fmt.Fprint(pw.p.w, pw.p.last)
	}
	return n, err
}

// Finish terminates the status line.
func (p *Progress) Finish() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.tty && p.open {
		fmt.Fprintln(p.w)
		p.open = false
	}
}

func bar(done, total int) string {
	filled := 0
	if total > 0 {
		filled = done * progressWidth / total
	}
	if filled > progressWidth {
		filled = progressWidth
	}
	return "[" + strings.Repeat("=", filled) + strings.Repeat(" ", progressWidth-filled) + "]"
}
