// Package geo resolves document coordinates from frontmatter.
//
// A document's coordinate comes from one of two places: the cached
// "geoXYCached" value written by a previous sync, or a geocoder lookup of the
// free-text "geo" address. The cache always wins when it parses.
package geo

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Frontmatter keys read and written by the resolver.
const (
	KeyGeo   = "geo"
	KeyCache = "geoXYCached"
)

// ErrMalformedCache is returned when a geoXYCached value is present but does not
// have the form "x:<num>,y:<num>".
var ErrMalformedCache = errors.New("malformed geoXYCached value")

// Location is a 2D coordinate in the feature service's spatial reference.
type Location struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// CacheString formats the location as a geoXYCached value.
func (l Location) CacheString() string {
	return "x:" + strconv.FormatFloat(l.X, 'f', -1, 64) + ",y:" + strconv.FormatFloat(l.Y, 'f', -1, 64)
}

func (l Location) String() string {
	return l.CacheString()
}

// ParseCache parses a geoXYCached value. Non-numeric, non-finite, or
// misnamed components are rejected with ErrMalformedCache.
func ParseCache(value string) (Location, error) {
	xPart, yPart, ok := strings.Cut(strings.TrimSpace(value), ",")
	if !ok {
		return Location{}, fmt.Errorf("%w: %q", ErrMalformedCache, value)
	}

	x, err := parseComponent(xPart, "x")
	if err != nil {
		return Location{}, fmt.Errorf("%w: %q: %v", ErrMalformedCache, value, err)
	}
	y, err := parseComponent(yPart, "y")
	if err != nil {
		return Location{}, fmt.Errorf("%w: %q: %v", ErrMalformedCache, value, err)
	}
	return Location{X: x, Y: y}, nil
}

func parseComponent(part, name string) (float64, error) {
	label, raw, ok := strings.Cut(strings.TrimSpace(part), ":")
	if !ok || strings.TrimSpace(label) != name {
		return 0, fmt.Errorf("expected %s:<number>", name)
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", name, err)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("%s is not finite", name)
	}
	return f, nil
}
