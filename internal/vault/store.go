package vault

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/NathanCastle/arcgis-in-obsidian/internal/atomicfile"
	"github.com/NathanCastle/arcgis-in-obsidian/internal/model"
	"github.com/NathanCastle/arcgis-in-obsidian/internal/parser"
)

// ErrOutsideVault is returned for document paths that escape the vault root.
var ErrOutsideVault = errors.New("path is outside the vault")

// Store reads and writes notes in a vault directory.
type Store struct {
	root string
	name string
}

// Open returns a store for the vault at root. An empty name defaults to the
// directory's base name.
func Open(root, name string) (*Store, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve vault path: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("open vault: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("open vault: %s is not a directory", abs)
	}
	if strings.TrimSpace(name) == "" {
		name = filepath.Base(abs)
	}
	return &Store{root: abs, name: name}, nil
}

// Root returns the absolute vault directory.
func (s *Store) Root() string { return s.root }

// CollectionName is the vault name used in deep links.
func (s *Store) CollectionName() string { return s.name }

// List returns all documents in the vault.
func (s *Store) List(ctx context.Context) ([]model.Document, error) {
	return CollectDocuments(ctx, s.root)
}

// Read returns a document's full text.
func (s *Store) Read(ctx context.Context, doc model.Document) (string, error) {
	path, err := s.resolve(doc)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", doc.Path, err)
	}
	return string(data), nil
}

// Metadata returns a document's frontmatter fields. Notes without
// frontmatter yield an empty map.
func (s *Store) Metadata(ctx context.Context, doc model.Document) (map[string]any, error) {
	content, err := s.Read(ctx, doc)
	if err != nil {
		return nil, err
	}
	md, err := parser.Metadata(content)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", doc.Path, err)
	}
	return md, nil
}

// Write replaces a document's full text.
func (s *Store) Write(ctx context.Context, doc model.Document, content string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path, err := s.resolve(doc)
	if err != nil {
		return err
	}
	if err := atomicfile.WriteFile(path, []byte(content), 0); err != nil {
		return fmt.Errorf("write %s: %w", doc.Path, err)
	}
	return nil
}

func (s *Store) resolve(doc model.Document) (string, error) {
	path := filepath.Join(s.root, filepath.FromSlash(doc.Path))
	rel, err := filepath.Rel(s.root, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%s: %w", doc.Path, ErrOutsideVault)
	}
	return path, nil
}
