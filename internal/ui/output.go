package ui

import "fmt"

// Unicode symbols for status indicators
const (
	SymbolSuccess = "✓"
	SymbolError   = "✗"
	SymbolWarning = "⚠"
	SymbolSkip    = "–"
	SymbolInfo    = "ℹ"
)

// Successf returns a formatted message prefixed with a check mark.
func Successf(format string, args ...any) string {
	return SymbolSuccess + " " + fmt.Sprintf(format, args...)
}

// Errorf returns a formatted message prefixed with a cross.
func Errorf(format string, args ...any) string {
	return SymbolError + " " + fmt.Sprintf(format, args...)
}

// Warningf returns a formatted message prefixed with a warning sign.
func Warningf(format string, args ...any) string {
	return SymbolWarning + " " + fmt.Sprintf(format, args...)
}

// Infof returns a formatted message prefixed with an info sign.
func Infof(format string, args ...any) string {
	return SymbolInfo + " " + fmt.Sprintf(format, args...)
}

// Header returns a styled section header
func Header(msg string) string {
	return Bold.Render(msg)
}

// FilePath returns an accent-styled file path
func FilePath(path string) string {
	return Accent.Render(path)
}

// Hint returns muted hint text
func Hint(msg string) string {
	return Muted.Render(msg)
}

// Count returns a count with the right noun form, e.g. "3 notes".
func Count(n int, singular, plural string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, singular)
	}
	return fmt.Sprintf("%d %s", n, plural)
}
