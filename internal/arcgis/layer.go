package arcgis

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/goccy/go-json"

	"github.com/NathanCastle/arcgis-in-obsidian/internal/model"
)

// FeatureLayer is a handle on one feature layer endpoint.
type FeatureLayer struct {
	c   *client
	url string
}

// Dial validates serviceURL and returns a layer handle. It does not contact
// the service; use Describe to check reachability.
func Dial(serviceURL string, opts Options) (*FeatureLayer, error) {
	normalized, err := normalizeURL(serviceURL)
	if err != nil {
		return nil, err
	}
	return &FeatureLayer{c: newClient(normalized, opts), url: normalized}, nil
}

// URL returns the normalized layer URL.
func (l *FeatureLayer) URL() string { return l.url }

// LayerInfo is the subset of the layer description arcsync uses.
type LayerInfo struct {
	Name              string `json:"name"`
	Type              string `json:"type"`
	GeometryType      string `json:"geometryType"`
	ObjectIDField     string `json:"objectIdField"`
	Capabilities      string `json:"capabilities"`
	SupportsApplyEdit bool   `json:"-"`
	Fields            []struct {
		Name string `json:"name"`
		Type string `json:"type"`
	} `json:"fields"`
}

// IsPointLayer reports whether the layer stores point geometries.
func (i *LayerInfo) IsPointLayer() bool {
	return i.GeometryType == "esriGeometryPoint"
}

// HasField reports whether the layer defines a field (case-insensitive).
func (i *LayerInfo) HasField(name string) bool {
	for _, f := range i.Fields {
		if strings.EqualFold(f.Name, name) {
			return true
		}
	}
	return false
}

// Describe fetches the layer description.
func (l *FeatureLayer) Describe(ctx context.Context) (*LayerInfo, error) {
	var info LayerInfo
	if err := l.c.get(ctx, l.url, nil, &info); err != nil {
		return nil, fmt.Errorf("describe layer: %w", err)
	}
	caps := strings.ToLower(info.Capabilities)
	info.SupportsApplyEdit = strings.Contains(caps, "create") || strings.Contains(caps, "update") || strings.Contains(caps, "editing")
	return &info, nil
}

type queryResponse struct {
	Features []model.Feature `json:"features"`
}

// Query returns the features matching q.Where in service order.
func (l *FeatureLayer) Query(ctx context.Context, q model.FeatureQuery) ([]model.Feature, error) {
	outFields := "*"
	if len(q.OutFields) > 0 {
		outFields = strings.Join(q.OutFields, ",")
	}
	where := q.Where
	if where == "" {
		where = "1=1"
	}

	form := url.Values{}
	form.Set("where", where)
	form.Set("outFields", outFields)
	form.Set("returnGeometry", "true")

	var resp queryResponse
	if err := l.c.postForm(ctx, l.url+"/query", form, &resp); err != nil {
		return nil, err
	}
	return resp.Features, nil
}

// ApplyEdits submits adds and updates in one request.
func (l *FeatureLayer) ApplyEdits(ctx context.Context, edits model.FeatureEdits) (*model.EditResults, error) {
	form := url.Values{}
	if len(edits.Adds) > 0 {
		adds, err := json.Marshal(edits.Adds)
		if err != nil {
			return nil, fmt.Errorf("encode adds: %w", err)
		}
		form.Set("adds", string(adds))
	}
	if len(edits.Updates) > 0 {
		updates, err := json.Marshal(edits.Updates)
		if err != nil {
			return nil, fmt.Errorf("encode updates: %w", err)
		}
		form.Set("updates", string(updates))
	}
	form.Set("rollbackOnFailure", "true")

	var results model.EditResults
	if err := l.c.postForm(ctx, l.url+"/applyEdits", form, &results); err != nil {
		return nil, err
	}
	return &results, nil
}
