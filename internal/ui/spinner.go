package ui

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/mattn/go-isatty"
)

var defaultFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// Spinner animates a status line on stderr while a sync pass runs.
// It stays silent when stderr is not a terminal.
type Spinner struct {
	out     io.Writer
	enabled bool

	mu      sync.Mutex
	message string
	current int

	done chan struct{}
	wg   sync.WaitGroup
}

// NewSpinner creates a spinner on stderr.
func NewSpinner(message string) *Spinner {
	return &Spinner{
		out:     os.Stderr,
		enabled: isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd()),
		message: message,
		done:    make(chan struct{}),
	}
}

// SetMessage replaces the text next to the spinner.
func (s *Spinner) SetMessage(message string) {
	s.mu.Lock()
	s.message = message
	s.mu.Unlock()
}

// Start begins the spinner animation.
func (s *Spinner) Start() {
	if !s.enabled {
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(80 * time.Millisecond)
		defer ticker.Stop()

		for {
			select {
			case <-s.done:
				fmt.Fprint(s.out, "\r\033[K")
				return
			case <-ticker.C:
				s.mu.Lock()
				frame := defaultFrames[s.current%len(defaultFrames)]
				s.current++
				msg := s.message
				s.mu.Unlock()
				fmt.Fprintf(s.out, "\r\033[K%s %s", Bold.Render(frame), msg)
			}
		}
	}()
}

// Stop clears the spinner line. It is safe to call more than once.
func (s *Spinner) Stop() {
	if !s.enabled {
		return
	}
	select {
	case <-s.done:
	default:
		close(s.done)
	}
	s.wg.Wait()
}
