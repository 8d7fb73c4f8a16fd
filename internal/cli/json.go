package cli

import (
	"errors"
	"fmt"

	"github.com/goccy/go-json"
)

// errReported marks an error whose message was already written (as a JSON
// envelope or a rendered report). Execute exits non-zero without printing it.
var errReported = errors.New("error already reported")

// Response is the standard JSON envelope for all CLI output.
type Response struct {
	OK       bool       `json:"ok"`
	Data     any        `json:"data,omitempty"`
	Error    *ErrorInfo `json:"error,omitempty"`
	Warnings []Warning  `json:"warnings,omitempty"`
	Meta     *Meta      `json:"meta,omitempty"`
}

// ErrorInfo contains structured error information.
type ErrorInfo struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	Details    any    `json:"details,omitempty"`
	Suggestion string `json:"suggestion,omitempty"`
}

// Warning represents a non-fatal warning.
type Warning struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Meta contains metadata about the response.
type Meta struct {
	Count      int   `json:"count,omitempty"`
	DurationMs int64 `json:"duration_ms,omitempty"`
}

func (a *app) outputJSON(resp Response) {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	_ = enc.Encode(resp)
}

func (a *app) outputSuccess(data any, warnings []Warning, meta *Meta) {
	a.outputJSON(Response{
		OK:       true,
		Data:     data,
		Warnings: warnings,
		Meta:     meta,
	})
}

// fail reports err with a stable code. In JSON mode the envelope is written
// and errReported returned; otherwise the error (with the suggestion) is
// returned for Execute to print.
func (a *app) fail(code string, err error, suggestion string) error {
	return a.failWithDetails(code, err, suggestion, nil)
}

func (a *app) failWithDetails(code string, err error, suggestion string, details any) error {
	if a.jsonOutput {
		a.outputJSON(Response{
			OK: false,
			Error: &ErrorInfo{
				Code:       code,
				Message:    err.Error(),
				Details:    details,
				Suggestion: suggestion,
			},
		})
		return errReported
	}
	if suggestion != "" {
		return fmt.Errorf("%w\n\n%s", err, suggestion)
	}
	return err
}
