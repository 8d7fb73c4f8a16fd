// Package docs bundles the arcsync user guide into the binary.
package docs

import "embed"

// FS contains long-form Markdown docs shown by `arcsync docs`.
//
//go:embed guide
var FS embed.FS
