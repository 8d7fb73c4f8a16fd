package geo

import (
	"context"
	"fmt"
	"strings"
)

// Candidate is one geocoder match, best match first.
type Candidate struct {
	Address  string
	Location Location
	Score    float64
}

// Geocoder turns a single-line address into ordered candidates.
type Geocoder interface {
	Geocode(ctx context.Context, singleLine string) ([]Candidate, error)
}

// Source records where a resolved location came from.
type Source int

const (
	// SourceNone means the document has no usable geo value.
	SourceNone Source = iota
	// SourceCache means the location was read from geoXYCached.
	SourceCache
	// SourceGeocoder means the location came from the geocoder.
	SourceGeocoder
	// SourceUnsupported means geo holds a shape this version cannot sync.
	SourceUnsupported
)

func (s Source) String() string {
	switch s {
	case SourceCache:
		return "cache"
	case SourceGeocoder:
		return "geocoder"
	case SourceUnsupported:
		return "unsupported"
	default:
		return "none"
	}
}

// Resolution is the outcome of resolving one document.
type Resolution struct {
	Location Location
	Source   Source
	// Address is the geocoded text, empty for cache hits.
	Address string
	// Reason explains why no location was produced.
	Reason string
}

// Found reports whether the resolution produced a location.
func (r Resolution) Found() bool {
	return r.Source == SourceCache || r.Source == SourceGeocoder
}

// Resolver resolves frontmatter into at most one location.
type Resolver struct {
	geocoder Geocoder
}

// NewResolver creates a resolver backed by the given geocoder.
func NewResolver(geocoder Geocoder) *Resolver {
	return &Resolver{geocoder: geocoder}
}

// Resolve determines the location for a document's frontmatter.
//
// Documents without a geo value, with an unsupported geo shape, or whose
// address has no candidates resolve to a Resolution without a location and a
// nil error. A malformed cache returns ErrMalformedCache; the geocoder is not
// consulted in that case. Geocoder failures are returned as errors.
func (r *Resolver) Resolve(ctx context.Context, metadata map[string]any) (Resolution, error) {
	raw, ok := metadata[KeyGeo]
	if !ok || raw == nil {
		return Resolution{Source: SourceNone, Reason: "no geo value"}, nil
	}
	if s, isString := raw.(string); isString && strings.TrimSpace(s) == "" {
		return Resolution{Source: SourceNone, Reason: "no geo value"}, nil
	}

	if cached, ok := metadata[KeyCache]; ok && cached != nil {
		loc, err := ParseCache(fmt.Sprint(cached))
		if err != nil {
			return Resolution{Source: SourceNone, Reason: "malformed geoXYCached"}, err
		}
		return Resolution{Location: loc, Source: SourceCache}, nil
	}

	address, isString := raw.(string)
	if !isString {
		return Resolution{Source: SourceUnsupported, Reason: fmt.Sprintf("unsupported geo value of type %T", raw)}, nil
	}
	address = strings.TrimSpace(address)

	if r.geocoder == nil {
		return Resolution{}, fmt.Errorf("geocode %q: no geocoder configured", address)
	}
	candidates, err := r.geocoder.Geocode(ctx, address)
	if err != nil {
		return Resolution{}, fmt.Errorf("geocode %q: %w", address, err)
	}
	if len(candidates) == 0 {
		return Resolution{Source: SourceNone, Address: address, Reason: "no geocode candidates"}, nil
	}

	return Resolution{
		Location: candidates[0].Location,
		Source:   SourceGeocoder,
		Address:  address,
	}, nil
}
