package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/NathanCastle/arcgis-in-obsidian/internal/mapembed"
	"github.com/NathanCastle/arcgis-in-obsidian/internal/ui"
)

type mapEntry struct {
	Path string `json:"path"`
	mapembed.Map
	Source string `json:"source"`
}

func newMapsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "maps",
		Short: "List embedded arcgis map blocks in the vault",
		Long: "Lists every ```arcgis code block with its effective settings " +
			"(basemap or web map id, zoom, center, min-height).",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, err := a.openStore()
			if err != nil {
				return err
			}
			docs, err := store.List(ctx)
			if err != nil {
				return a.fail(ErrFileReadError, err, "")
			}

			var entries []mapEntry
			var warnings []Warning
			for _, doc := range docs {
				if !doc.IsMarkdown() {
					continue
				}
				content, err := store.Read(ctx, doc)
				if err != nil {
					return a.fail(ErrFileReadError, err, "")
				}
				for _, m := range mapembed.Extract(content) {
					entries = append(entries, mapEntry{Path: doc.Path, Map: m, Source: m.Source()})
					for _, w := range m.Warnings {
						warnings = append(warnings, Warning{Code: WarnMapDirective, Message: fmt.Sprintf("%s:%d: %s", doc.Path, m.Line, w)})
					}
				}
			}

			if a.jsonOutput {
				if entries == nil {
					entries = []mapEntry{}
				}
				a.outputSuccess(entries, warnings, &Meta{Count: len(entries)})
				return nil
			}
			if len(entries) == 0 {
				a.println(ui.Hint("No arcgis map blocks found."))
				return nil
			}
			rows := make([][]string, 0, len(entries))
			for _, e := range entries {
				rows = append(rows, []string{
					fmt.Sprintf("%s:%d", e.Path, e.Line),
					e.Source,
					fmt.Sprint(e.Zoom),
					fmt.Sprintf("%g, %g", e.Center[0], e.Center[1]),
					fmt.Sprintf("%dpx", e.MinHeight),
				})
			}
			a.printf("%s", ui.Table(ui.DisplayContextFor(stdoutFile(a)),
				[]string{"location", "map", "zoom", "center", "min-height"}, rows))
			for _, w := range warnings {
				a.println(ui.Warningf("%s", w.Message))
			}
			return nil
		},
	}
}
