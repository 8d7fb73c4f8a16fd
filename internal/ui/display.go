package ui

import (
	"os"

	"github.com/charmbracelet/x/term"
)

// DefaultTermWidth is the fallback terminal width when detection fails.
const DefaultTermWidth = 120

// DisplayContext holds display parameters, auto-detecting terminal width.
type DisplayContext struct {
	TermWidth int  // detected or fallback terminal width
	IsTTY     bool // whether output is a terminal
}

// NewDisplayContext inspects stdout.
func NewDisplayContext() *DisplayContext {
	return DisplayContextFor(os.Stdout)
}

// DisplayContextFor inspects the given file. A nil file is not a terminal.
func DisplayContextFor(f *os.File) *DisplayContext {
	if f == nil {
		return &DisplayContext{TermWidth: DefaultTermWidth}
	}
	fd := f.Fd()
	isTTY := term.IsTerminal(fd)

	width := DefaultTermWidth
	if isTTY {
		if w, _, err := term.GetSize(fd); err == nil && w > 0 {
			width = w
		}
	}

	return &DisplayContext{
		TermWidth: width,
		IsTTY:     isTTY,
	}
}

// NewDisplayContextWithWidth creates a DisplayContext with a fixed width (for testing).
func NewDisplayContextWithWidth(width int, tty bool) *DisplayContext {
	return &DisplayContext{
		TermWidth: width,
		IsTTY:     tty,
	}
}
