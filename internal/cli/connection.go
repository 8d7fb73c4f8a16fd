package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/NathanCastle/arcgis-in-obsidian/internal/arcgis"
	"github.com/NathanCastle/arcgis-in-obsidian/internal/config"
	"github.com/NathanCastle/arcgis-in-obsidian/internal/fieldmap"
	"github.com/NathanCastle/arcgis-in-obsidian/internal/logging"
	"github.com/NathanCastle/arcgis-in-obsidian/internal/reconcile"
	"github.com/NathanCastle/arcgis-in-obsidian/internal/ui"
)

func newConnectionCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "connection",
		Aliases: []string{"connections", "conn"},
		Short:   "Manage feature service connections",
	}
	cmd.AddCommand(
		newConnectionListCmd(a),
		newConnectionAddCmd(a),
		newConnectionRemoveCmd(a),
		newConnectionTestCmd(a),
	)
	return cmd
}

type connectionView struct {
	Index int `json:"index"`
	config.FeatureServiceSync
	Issues []string `json:"issues,omitempty"`
}

func newConnectionListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List configured connections in sync order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			issues := a.cfg.Validate()
			views := make([]connectionView, 0, len(a.cfg.FeatureServiceSync))
			for i, fs := range a.cfg.FeatureServiceSync {
				v := connectionView{Index: i + 1, FeatureServiceSync: fs}
				for _, issue := range issues {
					if issue.Connection == i {
						v.Issues = append(v.Issues, issue.String())
					}
				}
				views = append(views, v)
			}

			if a.jsonOutput {
				a.outputSuccess(views, nil, &Meta{Count: len(views)})
				return nil
			}
			if len(views) == 0 {
				a.println(ui.Hint("No connections configured. Run 'arcsync connection add <feature-layer-url>'."))
				return nil
			}

			rows := make([][]string, 0, len(views))
			for _, v := range views {
				title := v.TitleField
				if title == "" {
					title = reconcile.DefaultTitleField
				}
				wkid := ""
				if v.SpatialReference > 0 {
					wkid = strconv.Itoa(v.SpatialReference)
				}
				status := ui.SymbolSuccess
				if len(v.Issues) > 0 {
					status = ui.SymbolWarning + " " + strings.Join(v.Issues, "; ")
				}
				rows = append(rows, []string{strconv.Itoa(v.Index), v.FeatureServiceURL, v.NoteIncludePattern, title, v.FieldMap, wkid, status})
			}
			a.printf("%s", ui.Table(ui.DisplayContextFor(stdoutFile(a)),
				[]string{"#", "feature service", "include", "title field", "field map", "wkid", "status"}, rows))
			return nil
		},
	}
}

func newConnectionAddCmd(a *app) *cobra.Command {
	var entry config.FeatureServiceSync
	cmd := &cobra.Command{
		Use:   "add <feature-layer-url>",
		Short: "Append a connection to the config",
		Example: `  arcsync connection add https://services.arcgis.com/abc/arcgis/rest/services/Places/FeatureServer/0 \
    --include '^trip' --field-map 'category:CATEGORY,rating:RATING' --wkid 4326`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			entry.FeatureServiceURL = strings.TrimSpace(args[0])

			candidate := *a.cfg
			candidate.FeatureServiceSync = append(append([]config.FeatureServiceSync(nil), a.cfg.FeatureServiceSync...), entry)
			idx := len(candidate.FeatureServiceSync) - 1
			for _, issue := range candidate.Validate() {
				if issue.Connection == idx {
					return a.fail(ErrInvalidInput, fmt.Errorf("invalid connection: %s", issue), "")
				}
			}

			if err := config.SaveTo(a.resolvedConfigPath, &candidate); err != nil {
				return a.fail(ErrConfigWrite, err, "")
			}
			*a.cfg = candidate
			logging.Info().Str("url", entry.FeatureServiceURL).Str("config", a.resolvedConfigPath).Msg("connection added")

			if a.jsonOutput {
				a.outputSuccess(connectionView{Index: idx + 1, FeatureServiceSync: entry}, nil, nil)
				return nil
			}
			a.println(ui.Successf("Added connection %d: %s", idx+1, ui.FilePath(entry.FeatureServiceURL)))
			a.println(ui.Hint("Saved to " + a.resolvedConfigPath))
			return nil
		},
	}
	cmd.Flags().StringVar(&entry.NoteIncludePattern, "include", "", "Regular expression matched against note names (default: all notes)")
	cmd.Flags().StringVar(&entry.TitleField, "title-field", "", "Layer field that receives the note name (default: TITLE)")
	cmd.Flags().StringVar(&entry.FieldMap, "field-map", "", "Frontmatter-to-field mapping, e.g. 'category:CATEGORY,rating:RATING'")
	cmd.Flags().IntVar(&entry.SpatialReference, "wkid", 0, "Spatial reference WKID of synced geometries (only 4326 is supported)")
	return cmd
}

func newConnectionRemoveCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "remove <index|url>",
		Aliases: []string{"rm"},
		Short:   "Remove a connection from the config",
		Long:    "Removes the connection at a 1-based index, or the first connection with the given URL. Linked notes keep their OBJECTID.",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			idx, ok := findConnection(a.cfg, args[0])
			if !ok {
				return a.fail(ErrConnectionNotFound, fmt.Errorf("connection %q not found", args[0]),
					"Run 'arcsync connection list' to see configured connections")
			}
			removed := a.cfg.FeatureServiceSync[idx]

			candidate := *a.cfg
			candidate.FeatureServiceSync = append(append([]config.FeatureServiceSync(nil), a.cfg.FeatureServiceSync[:idx]...),
				a.cfg.FeatureServiceSync[idx+1:]...)
			if err := config.SaveTo(a.resolvedConfigPath, &candidate); err != nil {
				return a.fail(ErrConfigWrite, err, "")
			}
			*a.cfg = candidate
			logging.Info().Str("url", removed.FeatureServiceURL).Str("config", a.resolvedConfigPath).Msg("connection removed")

			if a.jsonOutput {
				a.outputSuccess(connectionView{Index: idx + 1, FeatureServiceSync: removed}, nil, nil)
				return nil
			}
			a.println(ui.Successf("Removed connection %d: %s", idx+1, ui.FilePath(removed.FeatureServiceURL)))
			return nil
		},
	}
}

type layerCheck struct {
	Index         int      `json:"index"`
	URL           string   `json:"url"`
	Name          string   `json:"name"`
	GeometryType  string   `json:"geometry_type"`
	SupportsEdits bool     `json:"supports_edits"`
	MissingFields []string `json:"missing_fields,omitempty"`
	WrongGeometry bool     `json:"wrong_geometry,omitempty"`
	ObjectIDField string   `json:"object_id_field"`
}

func newConnectionTestCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "test <index|url>",
		Short: "Check that a connection's layer can receive synced notes",
		Long: `Fetches the layer description and checks that it is a point layer that
accepts edits and defines the title, link and mapped fields.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			idx, ok := findConnection(a.cfg, args[0])
			if !ok {
				return a.fail(ErrConnectionNotFound, fmt.Errorf("connection %q not found", args[0]), "")
			}
			entry := a.cfg.FeatureServiceSync[idx]

			layer, err := arcgis.Dial(entry.FeatureServiceURL, a.serviceOptions())
			if err != nil {
				return a.fail(ErrInvalidInput, err, "")
			}
			info, err := layer.Describe(cmd.Context())
			if err != nil {
				return a.fail(ErrServiceUnreachable, err, "Check the URL and your credentials ('arcsync auth status')")
			}

			check := layerCheck{
				Index:         idx + 1,
				URL:           layer.URL(),
				Name:          info.Name,
				GeometryType:  info.GeometryType,
				SupportsEdits: info.SupportsApplyEdit,
				WrongGeometry: !info.IsPointLayer(),
				ObjectIDField: info.ObjectIDField,
			}
			for _, field := range requiredFields(entry) {
				if !info.HasField(field) {
					check.MissingFields = append(check.MissingFields, field)
				}
			}

			var warnings []Warning
			if check.WrongGeometry {
				warnings = append(warnings, Warning{Code: WarnLayerMismatch, Message: fmt.Sprintf("layer geometry is %s, not esriGeometryPoint", info.GeometryType)})
			}
			if !check.SupportsEdits {
				warnings = append(warnings, Warning{Code: WarnLayerMismatch, Message: "layer does not advertise create/update capabilities"})
			}
			for _, f := range check.MissingFields {
				warnings = append(warnings, Warning{Code: WarnLayerMismatch, Message: fmt.Sprintf("layer has no field %s", f)})
			}

			if a.jsonOutput {
				a.outputSuccess(check, warnings, nil)
				return nil
			}
			a.println(ui.Header(fmt.Sprintf("%s (%s)", info.Name, info.GeometryType)))
			a.println(ui.Hint(layer.URL()))
			if len(warnings) == 0 {
				a.println(ui.Successf("ready to sync"))
				return nil
			}
			for _, w := range warnings {
				a.println(ui.Warningf("%s", w.Message))
			}
			return nil
		},
	}
}

// requiredFields lists the layer fields a sync pass writes for a connection.
func requiredFields(entry config.FeatureServiceSync) []string {
	title := strings.TrimSpace(entry.TitleField)
	if title == "" {
		title = reconcile.DefaultTitleField
	}
	fields := []string{title, reconcile.LinkField}
	for _, pair := range fieldmap.Resolve(entry.FieldMap) {
		if pair.HasTarget() {
			fields = append(fields, pair.Target)
		}
	}
	return fields
}
