// Package cli implements the command-line interface.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/NathanCastle/arcgis-in-obsidian/internal/config"
	"github.com/NathanCastle/arcgis-in-obsidian/internal/logging"
	"github.com/NathanCastle/arcgis-in-obsidian/internal/ui"
	"github.com/NathanCastle/arcgis-in-obsidian/internal/vault"
)

// app carries the flags and resolved state shared by every command.
type app struct {
	// Global flags
	vaultPathFlag string
	configPath    string
	jsonOutput    bool
	logLevel      string

	// Resolved values
	cfg                *config.Config
	resolvedConfigPath string

	out    io.Writer
	errOut io.Writer

	httpClient *http.Client
	now        func() time.Time
}

// Execute runs the CLI. Interrupts cancel the running command's context.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := &app{out: os.Stdout, errOut: os.Stderr, now: time.Now}
	err := newRootCmd(a).ExecuteContext(ctx)
	if ctx.Err() != nil {
		logging.Warn().Msg("interrupted")
	}
	if err != nil && !errors.Is(err, errReported) {
		fmt.Fprintln(a.errOut, ui.Errorf("%v", err))
	}
	return err
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "arcsync",
		Short: "Sync Obsidian notes with ArcGIS feature services",
		Long: `arcsync pushes located notes from an Obsidian vault to ArcGIS feature layers.

Each note whose frontmatter carries a geo address (or a cached geoXYCached
location) becomes a point feature. The feature's OBJECTID is written back to
the note so later passes update it instead of creating a duplicate.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			switch cmd.Name() {
			case "version", "help", "completion", "docs":
				return nil
			}
			return a.loadConfig()
		},
	}
	root.SetOut(a.out)
	root.SetErr(a.errOut)

	root.PersistentFlags().StringVar(&a.vaultPathFlag, "vault-path", "", "Path to the vault directory (overrides vault in config)")
	root.PersistentFlags().StringVar(&a.configPath, "config", "", "Path to config file")
	root.PersistentFlags().BoolVar(&a.jsonOutput, "json", false, "Output in JSON format (for agent/script use)")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "Diagnostic log level: trace, debug, info, warn, error, disabled")

	root.AddCommand(
		newSyncCmd(a),
		newHistoryCmd(a),
		newConnectionCmd(a),
		newAuthCmd(a),
		newMapsCmd(a),
		newDocsCmd(a),
		newVersionCmd(a),
	)
	return root
}

func (a *app) loadConfig() error {
	a.resolvedConfigPath = config.ResolveConfigPath(a.configPath)
	cfg, err := config.LoadFrom(a.resolvedConfigPath)
	if err != nil {
		return a.fail(ErrConfigInvalid, fmt.Errorf("failed to load config: %w", err), "Check "+a.resolvedConfigPath)
	}
	a.cfg = cfg

	ui.ConfigureTheme(cfg.UI.Accent)
	ui.ConfigureMarkdownCodeTheme(cfg.UI.CodeTheme)

	level := cfg.Log.Level
	if strings.TrimSpace(a.logLevel) != "" {
		level = a.logLevel
	}
	logging.Init(logging.Config{Level: level, Format: cfg.Log.Format, Output: a.errOut})
	logging.Debug().Str("config", a.resolvedConfigPath).Int("connections", len(cfg.FeatureServiceSync)).Msg("config loaded")
	return nil
}

// openStore resolves the vault from --vault-path or config.
func (a *app) openStore() (*vault.Store, error) {
	path, err := a.cfg.GetVaultPath(a.vaultPathFlag)
	if errors.Is(err, config.ErrNoVault) {
		return nil, a.fail(ErrVaultNotSpecified, errors.New("no vault specified"),
			"Pass --vault-path /path/to/vault or set vault in "+a.resolvedConfigPath)
	}
	if err != nil {
		return nil, a.fail(ErrVaultNotFound, err, "")
	}
	store, err := vault.Open(path, a.cfg.VaultName)
	if err != nil {
		return nil, a.fail(ErrVaultNotFound, err, "")
	}
	return store, nil
}

func (a *app) printf(format string, args ...any) {
	fmt.Fprintf(a.out, format, args...)
}

func (a *app) println(args ...any) {
	fmt.Fprintln(a.out, args...)
}

// stdoutFile returns the command's output as a file for terminal detection,
// or nil when output is redirected to a buffer.
func stdoutFile(a *app) *os.File {
	f, _ := a.out.(*os.File)
	return f
}
