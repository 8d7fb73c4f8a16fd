// Package fieldmap resolves frontmatter-to-feature field mapping directives.
package fieldmap

import "strings"

// Pair maps one frontmatter key onto one feature attribute.
type Pair struct {
	Source string
	Target string
}

// HasTarget reports whether the directive segment named a target field.
// Segments without a ':' are kept but never applied.
func (p Pair) HasTarget() bool {
	return p.Target != ""
}

// Mapping is an ordered list of pairs. A nil Mapping means "no mapping":
// only the title and link attributes are synced.
type Mapping []Pair

// Resolve parses a directive of the form "yamlKey1:arcField1,yamlKey2:arcField2".
//
// Each segment is split on its first ':'. Order and duplicates are preserved.
// An empty or blank directive returns nil.
func Resolve(directive string) Mapping {
	if strings.TrimSpace(directive) == "" {
		return nil
	}

	segments := strings.Split(directive, ",")
	pairs := make(Mapping, 0, len(segments))
	for _, segment := range segments {
		source, target, _ := strings.Cut(segment, ":")
		pairs = append(pairs, Pair{
			Source: strings.TrimSpace(source),
			Target: strings.TrimSpace(target),
		})
	}
	return pairs
}

// Apply copies mapped metadata values into attrs, in directive order.
// Later pairs targeting the same field overwrite earlier ones. Values are
// passed through convert (which may be nil) before being stored.
func (m Mapping) Apply(attrs map[string]any, metadata map[string]any, convert func(any) any) {
	for _, pair := range m {
		if !pair.HasTarget() || pair.Source == "" {
			continue
		}
		value, ok := Lookup(metadata, pair.Source)
		if !ok {
			continue
		}
		if convert != nil {
			value = convert(value)
		}
		attrs[pair.Target] = value
	}
}

// Lookup returns a metadata value when the key is present with a usable value.
// nil and empty strings count as absent.
func Lookup(metadata map[string]any, key string) (any, bool) {
	value, ok := metadata[key]
	if !ok || value == nil {
		return nil, false
	}
	if s, isString := value.(string); isString && s == "" {
		return nil, false
	}
	return value, true
}

// String renders the mapping back into directive form.
func (m Mapping) String() string {
	parts := make([]string, 0, len(m))
	for _, pair := range m {
		if pair.HasTarget() {
			parts = append(parts, pair.Source+":"+pair.Target)
		} else {
			parts = append(parts, pair.Source)
		}
	}
	return strings.Join(parts, ",")
}
