package model

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

// ObjectIDField is the attribute holding a feature's remote object identifier.
const ObjectIDField = "OBJECTID"

// WGS84 is the WKID of geographic longitude/latitude coordinates. Geocoded
// and cached locations are always in this reference.
const WGS84 = 4326

// SpatialReference identifies a coordinate system by well-known ID.
type SpatialReference struct {
	WKID int `json:"wkid"`
}

// Point is a feature geometry.
type Point struct {
	X                float64           `json:"x"`
	Y                float64           `json:"y"`
	SpatialReference *SpatialReference `json:"spatialReference,omitempty"`
}

// Feature is one record in a feature service: attributes plus a point.
type Feature struct {
	Attributes map[string]any `json:"attributes"`
	Geometry   *Point         `json:"geometry,omitempty"`
}

// ObjectID returns the feature's object identifier, if its attributes carry one.
func (f Feature) ObjectID() (int64, bool) {
	if f.Attributes == nil {
		return 0, false
	}
	return AsObjectID(f.Attributes[ObjectIDField])
}

// FeatureQuery selects features with a where clause.
type FeatureQuery struct {
	Where     string
	OutFields []string
}

// FeatureEdits is one batched applyEdits request.
type FeatureEdits struct {
	Adds    []Feature
	Updates []Feature
}

// EditError is the service-side failure for one edit.
type EditError struct {
	Code        int    `json:"code"`
	Description string `json:"description"`
}

func (e *EditError) Error() string {
	return fmt.Sprintf("edit failed (code %d): %s", e.Code, e.Description)
}

// EditResult is the per-feature outcome of an applyEdits request.
type EditResult struct {
	ObjectID int64      `json:"objectId"`
	Success  bool       `json:"success"`
	Error    *EditError `json:"error,omitempty"`
}

// EditResults mirrors the applyEdits response.
type EditResults struct {
	AddResults    []EditResult `json:"addResults"`
	UpdateResults []EditResult `json:"updateResults"`
}

// FeatureService is a remote store of point features.
type FeatureService interface {
	Query(ctx context.Context, q FeatureQuery) ([]Feature, error)
	ApplyEdits(ctx context.Context, edits FeatureEdits) (*EditResults, error)
}

// AsObjectID converts a frontmatter or attribute value into an object id.
// Only positive integers (or their decimal text) qualify.
func AsObjectID(v any) (int64, bool) {
	var id int64
	switch n := v.(type) {
	case int:
		id = int64(n)
	case int64:
		id = n
	case uint64:
		if n > 1<<62 {
			return 0, false
		}
		id = int64(n)
	case float64:
		if n != float64(int64(n)) {
			return 0, false
		}
		id = int64(n)
	case string:
		parsed, err := strconv.ParseInt(strings.TrimSpace(n), 10, 64)
		if err != nil {
			return 0, false
		}
		id = parsed
	default:
		return 0, false
	}
	if id <= 0 {
		return 0, false
	}
	return id, true
}
