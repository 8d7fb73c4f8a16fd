package cli

import (
	"runtime"
	"runtime/debug"
	"strings"

	"github.com/spf13/cobra"

	"github.com/NathanCastle/arcgis-in-obsidian/internal/buildinfo"
)

const defaultModulePath = "github.com/NathanCastle/arcgis-in-obsidian"

type versionInfo struct {
	Version    string `json:"version"`
	ModulePath string `json:"module_path"`
	Commit     string `json:"commit,omitempty"`
	CommitTime string `json:"commit_time,omitempty"`
	Modified   bool   `json:"modified"`
	GoVersion  string `json:"go_version"`
	GOOS       string `json:"goos"`
	GOARCH     string `json:"goarch"`
}

var readBuildInfo = debug.ReadBuildInfo

func newVersionCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show arcsync version and build information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			info := currentVersionInfo()

			if a.jsonOutput {
				a.outputSuccess(info, nil, nil)
				return nil
			}

			a.printf("arcsync %s\n", info.Version)
			if info.Commit != "" {
				a.printf("commit: %s (%s)\n", info.Commit, info.CommitTime)
			}
			a.printf("go: %s %s/%s\n", info.GoVersion, info.GOOS, info.GOARCH)
			if info.Modified {
				a.printf("modified: true\n")
			}
			return nil
		},
	}
}

func currentVersionInfo() versionInfo {
	info := versionInfo{
		Version:    "devel",
		ModulePath: defaultModulePath,
		GoVersion:  runtime.Version(),
		GOOS:       runtime.GOOS,
		GOARCH:     runtime.GOARCH,
	}

	bi, ok := readBuildInfo()
	if !ok || bi == nil {
		applyLdflags(&info)
		return info
	}

	if bi.Main.Path != "" {
		info.ModulePath = bi.Main.Path
	}
	info.Version = normalizeVersion(bi.Main.Version)
	if bi.GoVersion != "" {
		info.GoVersion = bi.GoVersion
	}

	settings := make(map[string]string, len(bi.Settings))
	for _, s := range bi.Settings {
		settings[s.Key] = s.Value
	}
	if v := settings["GOOS"]; v != "" {
		info.GOOS = v
	}
	if v := settings["GOARCH"]; v != "" {
		info.GOARCH = v
	}
	info.Commit = settings["vcs.revision"]
	info.CommitTime = settings["vcs.time"]
	info.Modified = strings.EqualFold(settings["vcs.modified"], "true")

	applyLdflags(&info)
	return info
}

func normalizeVersion(version string) string {
	if version == "" || version == "(devel)" {
		return "devel"
	}
	return version
}

// applyLdflags fills gaps from values injected at release build time.
func applyLdflags(info *versionInfo) {
	if info.Version == "devel" && buildinfo.Version != "" {
		info.Version = normalizeVersion(buildinfo.Version)
	}
	if info.Commit == "" {
		info.Commit = buildinfo.Commit
	}
	if info.CommitTime == "" {
		info.CommitTime = buildinfo.Date
	}
}
