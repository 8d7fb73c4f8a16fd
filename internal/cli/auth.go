package cli

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/NathanCastle/arcgis-in-obsidian/internal/auth"
	"github.com/NathanCastle/arcgis-in-obsidian/internal/ui"
)

func newAuthCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Inspect ArcGIS credentials",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show the stored sign-in status",
		Long: `Reports the credential stored under [auth] credential in the config.
Requests use a live credential's token, falling back to api_key.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			status := auth.Status(a.cfg.Auth.Credential, a.now())
			hasKey := strings.TrimSpace(a.cfg.APIKey) != ""

			var warnings []Warning
			if status.State != auth.StateSignedIn && !hasKey {
				warnings = append(warnings, Warning{Code: WarnNotSignedIn, Message: "requests will be anonymous: no live credential and no api_key"})
			}

			if a.jsonOutput {
				a.outputSuccess(struct {
					auth.DisplayStatus
					APIKey bool `json:"api_key_configured"`
				}{status, hasKey}, warnings, nil)
				return nil
			}

			switch status.State {
			case auth.StateSignedIn:
				a.println(ui.Successf("%s", status.Message))
			case auth.StateSignedOut:
				a.println(status.Message)
			default:
				a.println(ui.Warningf("%s", status.Message))
			}
			if hasKey {
				a.println(ui.Hint("api_key is configured"))
			}
			for _, w := range warnings {
				a.println(ui.Warningf("%s", w.Message))
			}
			return nil
		},
	})
	return cmd
}
