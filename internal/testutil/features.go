package testutil

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/NathanCastle/arcgis-in-obsidian/internal/model"
)

// FeatureService is an in-memory model.FeatureService for tests.
// Object ids are assigned sequentially starting at 1.
type FeatureService struct {
	mu       sync.Mutex
	features map[int64]model.Feature
	nextID   int64

	Queries []model.FeatureQuery
	Edits   []model.FeatureEdits

	// RejectAdd, when set, decides whether an add is refused with success=false.
	RejectAdd func(model.Feature) bool
	// QueryErr and EditErr force transport-level failures.
	QueryErr error
	EditErr  error
}

// NewFeatureService creates an empty fake service.
func NewFeatureService() *FeatureService {
	return &FeatureService{features: map[int64]model.Feature{}, nextID: 1}
}

// Seed stores a feature under a fixed object id.
func (s *FeatureService) Seed(id int64, attrs map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := map[string]any{model.ObjectIDField: id}
	for k, v := range attrs {
		copied[k] = v
	}
	s.features[id] = model.Feature{Attributes: copied}
	if id >= s.nextID {
		s.nextID = id + 1
	}
}

// Feature returns the stored feature for id.
func (s *FeatureService) Feature(id int64) (model.Feature, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.features[id]
	return f, ok
}

// Len returns the number of stored features.
func (s *FeatureService) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.features)
}

// AddCount returns the total number of adds submitted.
func (s *FeatureService) AddCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, e := range s.Edits {
		n += len(e.Adds)
	}
	return n
}

// UpdateCount returns the total number of updates submitted.
func (s *FeatureService) UpdateCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, e := range s.Edits {
		n += len(e.Updates)
	}
	return n
}

// Query understands only "OBJECTID = <n>" where clauses.
func (s *FeatureService) Query(ctx context.Context, q model.FeatureQuery) ([]model.Feature, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Queries = append(s.Queries, q)
	if s.QueryErr != nil {
		return nil, s.QueryErr
	}

	field, value, ok := strings.Cut(q.Where, "=")
	if !ok || strings.TrimSpace(field) != model.ObjectIDField {
		return nil, fmt.Errorf("unsupported where clause %q", q.Where)
	}
	id, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("unsupported where clause %q", q.Where)
	}
	f, ok := s.features[id]
	if !ok {
		return nil, nil
	}
	return []model.Feature{cloneFeature(f)}, nil
}

// ApplyEdits stores adds under new ids and merges updates.
func (s *FeatureService) ApplyEdits(ctx context.Context, edits model.FeatureEdits) (*model.EditResults, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Edits = append(s.Edits, edits)
	if s.EditErr != nil {
		return nil, s.EditErr
	}

	results := &model.EditResults{}
	for _, f := range edits.Adds {
		if s.RejectAdd != nil && s.RejectAdd(f) {
			results.AddResults = append(results.AddResults, model.EditResult{
				ObjectID: -1,
				Success:  false,
				Error:    &model.EditError{Code: 1000, Description: "add rejected"},
			})
			continue
		}
		id := s.nextID
		s.nextID++
		stored := cloneFeature(f)
		stored.Attributes[model.ObjectIDField] = id
		s.features[id] = stored
		results.AddResults = append(results.AddResults, model.EditResult{ObjectID: id, Success: true})
	}
	for _, f := range edits.Updates {
		id, ok := f.ObjectID()
		if _, exists := s.features[id]; !ok || !exists {
			results.UpdateResults = append(results.UpdateResults, model.EditResult{
				ObjectID: id,
				Success:  false,
				Error:    &model.EditError{Code: 1019, Description: "object not found"},
			})
			continue
		}
		s.features[id] = cloneFeature(f)
		results.UpdateResults = append(results.UpdateResults, model.EditResult{ObjectID: id, Success: true})
	}
	return results, nil
}

func cloneFeature(f model.Feature) model.Feature {
	attrs := make(map[string]any, len(f.Attributes))
	for k, v := range f.Attributes {
		attrs[k] = v
	}
	out := model.Feature{Attributes: attrs}
	if f.Geometry != nil {
		g := *f.Geometry
		out.Geometry = &g
	}
	return out
}
