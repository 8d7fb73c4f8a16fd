package reconcile

import (
	"net/url"
	"strings"
)

// LinkField is the feature attribute holding the deep link back to the note.
const LinkField = "OBSIDIAN_LINK"

// DeepLink builds the obsidian:// URI that opens a note in its vault.
// Both components are percent-encoded; spaces become %20, not '+'.
func DeepLink(vaultName, docPath string) string {
	return "obsidian://open?vault=" + escapeComponent(vaultName) + "&file=" + escapeComponent(docPath)
}

func escapeComponent(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}
