// Package featuresync runs sync passes that push located vault notes into
// ArcGIS feature services and write the resulting links back into the notes.
package featuresync

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/NathanCastle/arcgis-in-obsidian/internal/fieldmap"
	"github.com/NathanCastle/arcgis-in-obsidian/internal/model"
)

// ErrNoServiceURL marks a connection without a feature service URL.
var ErrNoServiceURL = errors.New("no feature service URL")

// DocumentStore is the vault capability a sync pass needs.
type DocumentStore interface {
	List(ctx context.Context) ([]model.Document, error)
	Metadata(ctx context.Context, doc model.Document) (map[string]any, error)
	Read(ctx context.Context, doc model.Document) (string, error)
	Write(ctx context.Context, doc model.Document, content string) error
	CollectionName() string
}

// Connection binds one feature service to a subset of the vault.
type Connection struct {
	// ServiceURL is the feature layer endpoint.
	ServiceURL string
	// IncludePattern is a regular expression searched in each note's base
	// name. Empty matches every note.
	IncludePattern string
	// TitleField receives the note's base name. Empty means TITLE.
	TitleField string
	// FieldMap is a "key:FIELD,key:FIELD" directive.
	FieldMap string
	// WKID tags geometries sent to the layer. Zero means WGS84.
	WKID int
	// Invalid is set when the settings entry failed validation. Such a
	// connection is reported and never dialed or synced.
	Invalid error
}

// Label names the connection in logs and reports.
func (c Connection) Label() string {
	if c.ServiceURL == "" {
		return "(no url)"
	}
	return c.ServiceURL
}

func (c Connection) includeMatcher() (*regexp.Regexp, error) {
	if strings.TrimSpace(c.IncludePattern) == "" {
		return nil, nil
	}
	re, err := regexp.Compile(c.IncludePattern)
	if err != nil {
		return nil, fmt.Errorf("invalid include pattern: %w", err)
	}
	return re, nil
}

func (c Connection) mapping() fieldmap.Mapping {
	return fieldmap.Resolve(c.FieldMap)
}

// Dialer opens a feature service handle for a URL.
type Dialer func(ctx context.Context, serviceURL string) (model.FeatureService, error)

// SyncContext is the per-pass state: the connection list and one service
// handle per distinct URL. It is built once and read-only afterwards.
type SyncContext struct {
	Connections []Connection
	Handles     map[string]model.FeatureService
	// DialErrors records URLs whose handle could not be opened.
	DialErrors map[string]error
}

// NewSyncContext dials every distinct non-empty service URL once.
// Connections sharing a URL share a handle.
func NewSyncContext(ctx context.Context, connections []Connection, dial Dialer) *SyncContext {
	sc := &SyncContext{
		Connections: connections,
		Handles:     make(map[string]model.FeatureService),
		DialErrors:  make(map[string]error),
	}
	for _, c := range connections {
		url := strings.TrimSpace(c.ServiceURL)
		if url == "" || c.Invalid != nil {
			continue
		}
		if _, seen := sc.Handles[url]; seen {
			continue
		}
		if _, failed := sc.DialErrors[url]; failed {
			continue
		}
		handle, err := dial(ctx, url)
		if err != nil {
			sc.DialErrors[url] = err
			continue
		}
		sc.Handles[url] = handle
	}
	return sc
}

// Handle returns the service for a connection, or an error explaining why
// the connection is inert.
func (sc *SyncContext) Handle(c Connection) (model.FeatureService, error) {
	if c.Invalid != nil {
		return nil, c.Invalid
	}
	url := strings.TrimSpace(c.ServiceURL)
	if url == "" {
		return nil, ErrNoServiceURL
	}
	if err, failed := sc.DialErrors[url]; failed {
		return nil, fmt.Errorf("connect: %w", err)
	}
	handle, ok := sc.Handles[url]
	if !ok {
		return nil, fmt.Errorf("no handle for %s", url)
	}
	return handle, nil
}
