package featuresync

import (
	"fmt"
	"strings"
	"time"

	"github.com/NathanCastle/arcgis-in-obsidian/internal/geo"
)

// Status is the outcome of one document in one connection.
type Status string

const (
	StatusCreated Status = "created"
	StatusUpdated Status = "updated"
	StatusSkipped Status = "skipped"
	StatusFailed  Status = "failed"
)

// DocumentResult records what happened to one document.
type DocumentResult struct {
	Connection string        `json:"connection"`
	Path       string        `json:"path"`
	Status     Status        `json:"status"`
	ObjectID   int64         `json:"object_id,omitempty"`
	Location   *geo.Location `json:"location,omitempty"`
	Source     string        `json:"source,omitempty"`
	Reason     string        `json:"reason,omitempty"`
	Error      string        `json:"error,omitempty"`

	Err error `json:"-"`
}

// ConfigError is a connection that could not be synced at all.
type ConfigError struct {
	Index      int    `json:"index"`
	Connection string `json:"connection"`
	Message    string `json:"message"`

	Err error `json:"-"`
}

func (e ConfigError) Error() string {
	return fmt.Sprintf("connection %d (%s): %v", e.Index+1, e.Connection, e.Err)
}

func (e ConfigError) Unwrap() error { return e.Err }

// Counts summarizes a report by status.
type Counts struct {
	Created int `json:"created"`
	Updated int `json:"updated"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
}

// Report is the end-of-pass summary.
type Report struct {
	RunID      string    `json:"run_id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	DryRun     bool      `json:"dry_run"`
	Cancelled  bool      `json:"cancelled,omitempty"`

	// Excluded counts notes that were listed but carry no geo value.
	Excluded     int              `json:"excluded"`
	Results      []DocumentResult `json:"results"`
	ConfigErrors []ConfigError    `json:"config_errors,omitempty"`
}

// Counts tallies results by status.
func (r *Report) Counts() Counts {
	var c Counts
	for _, res := range r.Results {
		switch res.Status {
		case StatusCreated:
			c.Created++
		case StatusUpdated:
			c.Updated++
		case StatusSkipped:
			c.Skipped++
		case StatusFailed:
			c.Failed++
		}
	}
	return c
}

// HasFailures reports whether any document or connection failed.
func (r *Report) HasFailures() bool {
	return len(r.ConfigErrors) > 0 || r.Counts().Failed > 0
}

// Failures returns the failed document results.
func (r *Report) Failures() []DocumentResult {
	var out []DocumentResult
	for _, res := range r.Results {
		if res.Status == StatusFailed {
			out = append(out, res)
		}
	}
	return out
}

// Duration is the wall time of the pass.
func (r *Report) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// Summary renders a one-line description of the pass.
func (r *Report) Summary() string {
	c := r.Counts()
	var b strings.Builder
	if r.DryRun {
		b.WriteString("dry run: ")
	}
	fmt.Fprintf(&b, "%d created, %d updated, %d skipped, %d failed", c.Created, c.Updated, c.Skipped, c.Failed)
	if n := len(r.ConfigErrors); n > 0 {
		fmt.Fprintf(&b, ", %d connection error(s)", n)
	}
	if r.Cancelled {
		b.WriteString(" (cancelled)")
	}
	return b.String()
}
