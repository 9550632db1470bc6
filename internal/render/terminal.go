package render

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"golang.org/x/term"

	"github.com/Guliveer/vitalis/cpumon/internal/procstat"
)

const (
	clearScreen     = "\033[H\033[2J"
	altScreenOn     = "\033[?1049h"
	altScreenOff    = "\033[?1049l"
	cursorHidden    = "\033[?25l"
	cursorVisible   = "\033[?25h"
	defaultPlainSep = "\n"
)

// Terminal renders frames to an output stream. On a TTY it switches to the
// alternate screen, hides the cursor and redraws in place; otherwise every
// frame is appended followed by a blank line.
type Terminal struct {
	out     io.Writer
	columns int
	buf     bytes.Buffer

	interactive bool
	restore     []func()
}

// NewTerminal creates a sink writing to out. When view is true and out is a
// terminal, the single-view mode is enabled; stdin echo is suppressed if in is
// a terminal too.
func NewTerminal(out, in *os.File, columns int, view bool) *Terminal {
	t := &Terminal{out: out, columns: columns}
	if !view || !term.IsTerminal(int(out.Fd())) {
		return t
	}

	t.interactive = true
	fmt.Fprint(out, altScreenOn+cursorHidden)

	if in != nil && term.IsTerminal(int(in.Fd())) {
		if undo, err := disableInputEcho(int(in.Fd())); err == nil && undo != nil {
			t.restore = append(t.restore, undo)
		}
	}
	return t
}

// NewPlain creates a sink that appends frames to w.
func NewPlain(w io.Writer, columns int) *Terminal {
	return &Terminal{out: w, columns: columns}
}

// Render writes frame as a single Write.
func (t *Terminal) Render(frame []procstat.Usage) error {
	t.buf.Reset()
	if t.interactive {
		t.buf.WriteString(clearScreen)
	}
	if err := Format(&t.buf, frame, t.columns); err != nil {
		return err
	}
	if !t.interactive {
		t.buf.WriteString(defaultPlainSep)
	}
	_, err := t.out.Write(t.buf.Bytes())
	return err
}

// Close restores the terminal state changed by NewTerminal.
func (t *Terminal) Close() error {
	for i := len(t.restore) - 1; i >= 0; i-- {
		t.restore[i]()
	}
	t.restore = nil
	if t.interactive {
		t.interactive = false
		_, err := fmt.Fprint(t.out, cursorVisible+altScreenOff)
		return err
	}
	return nil
}
