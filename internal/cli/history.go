package cli

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/NathanCastle/arcgis-in-obsidian/internal/featuresync"
	"github.com/NathanCastle/arcgis-in-obsidian/internal/history"
	"github.com/NathanCastle/arcgis-in-obsidian/internal/ui"
)

const historyTimeFormat = "2006-01-02 15:04:05"

func newHistoryCmd(a *app) *cobra.Command {
	var limit, keep int
	cmd := &cobra.Command{
		Use:   "history [run-id]",
		Short: "Show past sync passes",
		Long: `Without arguments, lists the most recent sync passes recorded in the vault.
With a run id, shows the per-note outcomes of that pass.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.openStore()
			if err != nil {
				return err
			}
			db, err := history.Open(store.Root())
			if err != nil {
				return a.fail(ErrDatabaseError, err, "")
			}
			defer db.Close()

			if keep > 0 {
				return a.pruneRuns(cmd, db, keep)
			}
			if len(args) == 1 {
				return a.showRun(cmd, db, args[0])
			}
			return a.listRuns(cmd, db, limit)
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "Number of runs to list")
	cmd.Flags().IntVar(&keep, "prune", 0, "Delete all but the newest N runs")
	return cmd
}

func (a *app) pruneRuns(cmd *cobra.Command, db *history.DB, keep int) error {
	removed, err := db.Prune(cmd.Context(), keep)
	if err != nil {
		return a.fail(ErrDatabaseError, err, "")
	}
	if a.jsonOutput {
		a.outputSuccess(map[string]int64{"removed": removed}, nil, nil)
		return nil
	}
	a.println(ui.Successf("Removed %s", ui.Count(int(removed), "run", "runs")))
	return nil
}

func (a *app) listRuns(cmd *cobra.Command, db *history.DB, limit int) error {
	runs, err := db.Recent(cmd.Context(), limit)
	if err != nil {
		return a.fail(ErrDatabaseError, err, "")
	}

	if a.jsonOutput {
		if runs == nil {
			runs = []history.Run{}
		}
		a.outputSuccess(runs, nil, &Meta{Count: len(runs)})
		return nil
	}
	if len(runs) == 0 {
		a.println(ui.Hint("No sync passes recorded yet."))
		return nil
	}

	rows := make([][]string, 0, len(runs))
	for _, r := range runs {
		mode := "sync"
		if r.DryRun {
			mode = "dry run"
		}
		if r.Cancelled {
			mode += " (cancelled)"
		}
		rows = append(rows, []string{
			r.ID,
			r.StartedAt.Local().Format(historyTimeFormat),
			mode,
			strconv.Itoa(r.Counts.Created),
			strconv.Itoa(r.Counts.Updated),
			strconv.Itoa(r.Counts.Skipped),
			strconv.Itoa(r.Counts.Failed),
			strconv.Itoa(len(r.ConfigErrors)),
		})
	}
	a.printf("%s", ui.Table(ui.DisplayContextFor(stdoutFile(a)),
		[]string{"run", "started", "mode", "created", "updated", "skipped", "failed", "conn errors"}, rows))
	return nil
}

func (a *app) showRun(cmd *cobra.Command, db *history.DB, id string) error {
	run, err := db.Get(cmd.Context(), id)
	if errors.Is(err, history.ErrRunNotFound) {
		return a.fail(ErrRunNotFound, err, "Run 'arcsync history' to list recorded runs")
	}
	if err != nil {
		return a.fail(ErrDatabaseError, err, "")
	}
	results, err := db.Results(cmd.Context(), id)
	if err != nil {
		return a.fail(ErrDatabaseError, err, "")
	}

	if a.jsonOutput {
		if results == nil {
			results = []featuresync.DocumentResult{}
		}
		a.outputSuccess(map[string]any{"run": run, "results": results}, nil, &Meta{Count: len(results)})
		return nil
	}

	md := runMarkdown(run, results)
	display := ui.DisplayContextFor(stdoutFile(a))
	if !display.IsTTY {
		a.printf("%s", md)
		return nil
	}
	rendered, err := ui.RenderMarkdown(md, display.TermWidth)
	if err != nil {
		a.printf("%s", md)
		return nil
	}
	a.printf("%s", rendered)
	return nil
}

func runMarkdown(run *history.Run, results []featuresync.DocumentResult) string {
	report := featuresync.Report{
		StartedAt:  run.StartedAt,
		FinishedAt: run.FinishedAt,
		DryRun:     run.DryRun,
		Cancelled:  run.Cancelled,
		Results:    results,
		// Summary only counts these.
		ConfigErrors: run.ConfigErrors,
	}

	md := fmt.Sprintf("# Run %s\n\n%s, started %s, took %s.\n\n",
		run.ID, report.Summary(), run.StartedAt.Local().Format(historyTimeFormat),
		report.Duration().Round(time.Millisecond))

	if len(results) > 0 {
		rows := make([][]string, 0, len(results))
		for _, res := range results {
			id := ""
			if res.ObjectID != 0 {
				id = strconv.FormatInt(res.ObjectID, 10)
			}
			rows = append(rows, []string{res.Path, string(res.Status), id, res.Connection, detail(res)})
		}
		md += ui.MarkdownTable([]string{"note", "status", "OBJECTID", "connection", "detail"}, rows) + "\n"
	}

	if len(run.ConfigErrors) > 0 {
		md += "## Connection errors\n\n"
		for _, ce := range run.ConfigErrors {
			md += fmt.Sprintf("- connection %d (`%s`): %s\n", ce.Index+1, ce.Connection, ce.Message)
		}
	}
	return md
}
