// Package vault exposes an Obsidian vault on disk as a document store.
package vault

import (
	"context"
	"io/fs"
	"path/filepath"
	"sort"

	"github.com/NathanCastle/arcgis-in-obsidian/internal/model"
)

// StateDir is the vault-local directory holding arcsync's own files.
const StateDir = ".arcsync"

// skippedDirs are never descended into.
var skippedDirs = map[string]bool{
	StateDir:    true,
	".obsidian": true,
	".trash":    true,
	".git":      true,
}

// WalkDocuments calls fn for every regular file in the vault, in lexical
// order, skipping tool and trash directories. Paths are vault-relative and
// slash-separated.
func WalkDocuments(ctx context.Context, root string, fn func(doc model.Document) error) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		if d.IsDir() {
			if path != root && skippedDirs[d.Name()] {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		return fn(model.Document{Path: filepath.ToSlash(rel)})
	})
}

// CollectDocuments returns every document in the vault.
func CollectDocuments(ctx context.Context, root string) ([]model.Document, error) {
	var docs []model.Document
	err := WalkDocuments(ctx, root, func(doc model.Document) error {
		docs = append(docs, doc)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].Path < docs[j].Path })
	return docs, nil
}
