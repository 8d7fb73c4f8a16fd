// Package reconcile turns a located note into exactly one feature edit.
//
// A note is linked to a remote feature when its frontmatter holds an OBJECTID
// that still exists in the target service. Linked notes produce an update;
// everything else produces an add.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/NathanCastle/arcgis-in-obsidian/internal/fieldmap"
	"github.com/NathanCastle/arcgis-in-obsidian/internal/geo"
	"github.com/NathanCastle/arcgis-in-obsidian/internal/model"
)

// DefaultTitleField receives the note's base name when no title field is configured.
const DefaultTitleField = "TITLE"

// Action is the kind of edit a plan submits.
type Action string

const (
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
)

// ErrNoEditResult is returned when applyEdits answers without a result for the edit.
var ErrNoEditResult = errors.New("feature service returned no edit result")

// FeatureService is the remote layer a reconciler edits.
type FeatureService = model.FeatureService

// Config describes how notes map onto one feature service.
type Config struct {
	// TitleField is the attribute set to the note's base name.
	TitleField string
	// FieldMap copies extra frontmatter keys into attributes. Nil means none.
	FieldMap fieldmap.Mapping
	// VaultName is used in the deep link.
	VaultName string
	// WKID tags outgoing geometries. Zero means WGS84.
	WKID int
}

func (c Config) titleField() string {
	if strings.TrimSpace(c.TitleField) == "" {
		return DefaultTitleField
	}
	return c.TitleField
}

// Request is one located note to reconcile.
type Request struct {
	Document model.Document
	Metadata map[string]any
	Location geo.Location
}

// Plan is the edit a request will submit.
type Plan struct {
	Action   Action
	ObjectID int64 // set for updates
	Feature  model.Feature
}

// Outcome reports the applied edit and the resulting object id.
type Outcome struct {
	Action   Action
	ObjectID int64
}

// Reconciler plans and applies edits against one feature service.
type Reconciler struct {
	service FeatureService
	cfg     Config
}

// New creates a reconciler for a feature service.
func New(service FeatureService, cfg Config) *Reconciler {
	return &Reconciler{service: service, cfg: cfg}
}

// Reconcile plans the edit for req and submits it.
func (r *Reconciler) Reconcile(ctx context.Context, req Request) (*Outcome, error) {
	plan, err := r.Plan(ctx, req)
	if err != nil {
		return nil, err
	}
	return r.Apply(ctx, plan)
}

// Plan looks up the linked feature (if any) and builds the feature to submit.
// It does not modify the remote service.
func (r *Reconciler) Plan(ctx context.Context, req Request) (*Plan, error) {
	if r.service == nil {
		return nil, fmt.Errorf("no feature service for %s", req.Document.Path)
	}

	existing, err := r.findLinked(ctx, req.Metadata)
	if err != nil {
		return nil, err
	}

	plan := &Plan{Action: ActionCreate}
	attrs := map[string]any{}
	if existing != nil {
		plan.Action = ActionUpdate
		plan.ObjectID, _ = existing.ObjectID()
		for k, v := range existing.Attributes {
			attrs[k] = v
		}
		attrs[model.ObjectIDField] = plan.ObjectID
	}

	attrs[r.cfg.titleField()] = req.Document.BaseName()
	attrs[LinkField] = DeepLink(r.cfg.VaultName, req.Document.Path)
	r.cfg.FieldMap.Apply(attrs, req.Metadata, WireValue)

	wkid := r.cfg.WKID
	if wkid == 0 {
		wkid = model.WGS84
	}
	point := &model.Point{
		X:                req.Location.X,
		Y:                req.Location.Y,
		SpatialReference: &model.SpatialReference{WKID: wkid},
	}
	plan.Feature = model.Feature{Attributes: attrs, Geometry: point}
	return plan, nil
}

// Apply submits one batched edit holding exactly the plan's add or update.
func (r *Reconciler) Apply(ctx context.Context, plan *Plan) (*Outcome, error) {
	var edits model.FeatureEdits
	if plan.Action == ActionUpdate {
		edits.Updates = []model.Feature{plan.Feature}
	} else {
		edits.Adds = []model.Feature{plan.Feature}
	}

	results, err := r.service.ApplyEdits(ctx, edits)
	if err != nil {
		return nil, fmt.Errorf("apply edits: %w", err)
	}
	if results == nil {
		return nil, ErrNoEditResult
	}

	if plan.Action == ActionUpdate {
		if err := firstResultError(results.UpdateResults); err != nil {
			return nil, fmt.Errorf("update OBJECTID %d: %w", plan.ObjectID, err)
		}
		return &Outcome{Action: ActionUpdate, ObjectID: plan.ObjectID}, nil
	}

	if err := firstResultError(results.AddResults); err != nil {
		return nil, fmt.Errorf("add feature: %w", err)
	}
	added := results.AddResults[0]
	if added.ObjectID <= 0 {
		return nil, fmt.Errorf("add feature: service returned object id %d", added.ObjectID)
	}
	return &Outcome{Action: ActionCreate, ObjectID: added.ObjectID}, nil
}

// findLinked returns the feature referenced by the note's OBJECTID, or nil.
// A missing, non-integer, or dangling OBJECTID means the note is unlinked.
func (r *Reconciler) findLinked(ctx context.Context, metadata map[string]any) (*model.Feature, error) {
	id, ok := model.AsObjectID(metadata[model.ObjectIDField])
	if !ok {
		return nil, nil
	}

	features, err := r.service.Query(ctx, model.FeatureQuery{
		Where:     fmt.Sprintf("%s = %d", model.ObjectIDField, id),
		OutFields: []string{"*"},
	})
	if err != nil {
		return nil, fmt.Errorf("query OBJECTID %d: %w", id, err)
	}
	if len(features) == 0 {
		return nil, nil
	}

	found := features[0]
	if found.Attributes == nil {
		found.Attributes = map[string]any{}
	}
	if _, ok := found.ObjectID(); !ok {
		found.Attributes[model.ObjectIDField] = id
	}
	return &found, nil
}

func firstResultError(results []model.EditResult) error {
	if len(results) == 0 {
		return ErrNoEditResult
	}
	res := results[0]
	if res.Success {
		return nil
	}
	if res.Error != nil {
		return res.Error
	}
	return errors.New("edit rejected without error details")
}

// WireValue converts a frontmatter value into something a feature attribute
// can hold: dates become epoch milliseconds and lists become comma-joined text.
func WireValue(v any) any {
	switch val := v.(type) {
	case time.Time:
		return val.UnixMilli()
	case []any:
		parts := make([]string, 0, len(val))
		for _, item := range val {
			parts = append(parts, fmt.Sprint(WireValue(item)))
		}
		return strings.Join(parts, ", ")
	case map[string]any:
		return fmt.Sprint(val)
	default:
		return v
	}
}
