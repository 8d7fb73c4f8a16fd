// Package buildinfo holds release metadata stamped into arcsync binaries.
package buildinfo

// Set with -ldflags "-X github.com/NathanCastle/arcgis-in-obsidian/internal/buildinfo.Version=..."
// by release builds; empty for local builds.
var (
	Version = ""
	Commit  = ""
	Date    = ""
)
