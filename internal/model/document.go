package model

import (
	"path"
	"strings"
)

// Document is one file in the vault, addressed by its vault-relative path.
type Document struct {
	// Path is relative to the vault root and always uses forward slashes.
	Path string `json:"path"`
}

// BaseName returns the file name without directory or extension.
func (d Document) BaseName() string {
	base := path.Base(d.Path)
	return strings.TrimSuffix(base, path.Ext(base))
}

// Extension returns the lower-cased extension without the dot.
func (d Document) Extension() string {
	return strings.ToLower(strings.TrimPrefix(path.Ext(d.Path), "."))
}

// IsMarkdown reports whether the document is a markdown note.
func (d Document) IsMarkdown() bool {
	return d.Extension() == "md"
}
