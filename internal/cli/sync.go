package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/NathanCastle/arcgis-in-obsidian/internal/config"
	"github.com/NathanCastle/arcgis-in-obsidian/internal/featuresync"
	"github.com/NathanCastle/arcgis-in-obsidian/internal/history"
	"github.com/NathanCastle/arcgis-in-obsidian/internal/logging"
	"github.com/NathanCastle/arcgis-in-obsidian/internal/ui"
	"github.com/NathanCastle/arcgis-in-obsidian/internal/vault"
)

type syncFlags struct {
	connection string
	dryRun     bool
	noHistory  bool
}

func newSyncCmd(a *app) *cobra.Command {
	var flags syncFlags
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Push located notes to the configured feature services",
		Long: `Runs one sync pass over the vault.

For every configured connection, notes matching its include pattern are
located (cached geoXYCached first, else the geo address is geocoded) and
created or updated as point features. OBJECTID and geoXYCached are written
back to each synced note.

Connections run in configuration order; a note matched by several
connections ends up linked to the last one.`,
		Example: `  arcsync sync
  arcsync sync --dry-run
  arcsync sync --connection 2 --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runSync(cmd.Context(), flags)
		},
	}
	cmd.Flags().StringVar(&flags.connection, "connection", "", "Sync only this connection (1-based index or feature service URL)")
	cmd.Flags().BoolVar(&flags.dryRun, "dry-run", false, "Locate notes and plan edits without changing the services or notes")
	cmd.Flags().BoolVar(&flags.noHistory, "no-history", false, "Do not record this pass in the vault's history database")
	return cmd
}

func (a *app) runSync(ctx context.Context, flags syncFlags) error {
	store, err := a.openStore()
	if err != nil {
		return err
	}
	if !a.cfg.HasConnections() {
		return a.fail(ErrNoConnections, errors.New("no feature service connections configured"),
			"Run 'arcsync connection add <feature-layer-url>'")
	}

	issues := a.cfg.Validate()
	if fatal := config.FatalIssues(issues); len(fatal) > 0 {
		return a.failWithDetails(ErrConfigInvalid, fmt.Errorf("invalid config: %s", joinIssues(fatal)),
			"Fix "+a.resolvedConfigPath, fatal)
	}

	conns := connectionsFromConfig(a.cfg.FeatureServiceSync, issues)
	if flags.connection != "" {
		idx, ok := findConnection(a.cfg, flags.connection)
		if !ok {
			return a.fail(ErrConnectionNotFound, fmt.Errorf("connection %q not found", flags.connection),
				"Run 'arcsync connection list' to see configured connections")
		}
		conns = conns[idx : idx+1]
	}

	lock, err := vault.AcquireLock(store.Root())
	if errors.Is(err, vault.ErrSyncLocked) {
		return a.fail(ErrSyncLocked, err, "Wait for the other pass to finish")
	}
	if err != nil {
		return a.fail(ErrInternal, err, "")
	}
	defer lock.Release()

	geocoder, err := a.newGeocoder()
	if err != nil {
		return a.fail(ErrConfigInvalid, fmt.Errorf("geocoder: %w", err), "Check geocoder.url in "+a.resolvedConfigPath)
	}

	runID := logging.NewRunID()
	ctx = logging.ContextWithRunID(ctx, runID)

	var spinner *ui.Spinner
	if !a.jsonOutput {
		spinner = ui.NewSpinner("Syncing " + ui.Count(len(conns), "connection", "connections") + "...")
		spinner.Start()
	}

	sc := featuresync.NewSyncContext(ctx, conns, a.dialer())
	report := featuresync.NewEngine(store, geocoder, sc, featuresync.Options{
		Concurrency: a.cfg.Concurrency(),
		DryRun:      flags.dryRun,
		RunID:       runID,
	}).Run(ctx)

	if spinner != nil {
		spinner.Stop()
	}

	var warnings []Warning
	for _, issue := range issues {
		if issue.Connection >= 0 {
			warnings = append(warnings, Warning{Code: WarnConnectionInvalid, Message: issue.String()})
		}
	}
	if a.cfg.HistoryEnabled() && !flags.noHistory {
		if err := recordHistory(ctx, store.Root(), report); err != nil {
			logging.Ctx(ctx).Warn().Err(err).Msg("failed to record sync history")
			warnings = append(warnings, Warning{Code: WarnHistoryFailed, Message: err.Error()})
		}
	}

	if a.jsonOutput {
		a.outputJSON(Response{
			OK:       !report.HasFailures(),
			Data:     report,
			Warnings: warnings,
			Meta:     &Meta{Count: len(report.Results), DurationMs: report.Duration().Milliseconds()},
		})
	} else {
		a.printReport(report, warnings)
	}

	if report.HasFailures() || report.Cancelled {
		return errReported
	}
	return nil
}

func recordHistory(ctx context.Context, vaultPath string, report *featuresync.Report) error {
	db, err := history.Open(vaultPath)
	if err != nil {
		return err
	}
	defer db.Close()
	// Cancellation must not lose the record of a partial pass.
	return db.Record(context.WithoutCancel(ctx), report)
}

func (a *app) printReport(report *featuresync.Report, warnings []Warning) {
	for _, res := range report.Results {
		a.println(resultLine(res))
	}
	for _, ce := range report.ConfigErrors {
		a.println(ui.Errorf("connection %d (%s): %s", ce.Index+1, ui.FilePath(ce.Connection), ce.Message))
	}
	for _, w := range warnings {
		if w.Code == WarnConnectionInvalid {
			continue
		}
		a.println(ui.Warningf("%s", w.Message))
	}
	if report.Cancelled {
		a.println(ui.Infof("pass cancelled; rerun to sync the remaining notes"))
	}
	if len(report.Results) > 0 || len(report.ConfigErrors) > 0 {
		a.println()
	}

	summary := report.Summary()
	if report.Excluded > 0 {
		summary += ui.Hint(fmt.Sprintf(" (%s without geo)", ui.Count(report.Excluded, "note", "notes")))
	}
	a.println(ui.Header(summary))
	a.println(ui.Hint(fmt.Sprintf("run %s, %s", report.RunID, report.Duration().Round(time.Millisecond))))
}

func resultLine(res featuresync.DocumentResult) string {
	path := ui.FilePath(res.Path)
	switch res.Status {
	case featuresync.StatusCreated, featuresync.StatusUpdated:
		return ui.Successf("%-7s %s %s", res.Status, path, ui.Hint(fmt.Sprintf("#%d", res.ObjectID)))
	case featuresync.StatusSkipped:
		return fmt.Sprintf("%s %-7s %s %s", ui.SymbolSkip, res.Status, path, ui.Hint(detail(res)))
	default:
		return ui.Errorf("%-7s %s %s", res.Status, path, detail(res))
	}
}

func detail(res featuresync.DocumentResult) string {
	var parts []string
	if res.Reason != "" {
		parts = append(parts, res.Reason)
	}
	if res.Error != "" {
		parts = append(parts, res.Error)
	}
	if len(parts) == 0 {
		return ""
	}
	return "(" + strings.Join(parts, ": ") + ")"
}

func joinIssues(issues []config.Issue) string {
	msgs := make([]string, len(issues))
	for i, issue := range issues {
		msgs[i] = issue.String()
	}
	return strings.Join(msgs, "; ")
}
