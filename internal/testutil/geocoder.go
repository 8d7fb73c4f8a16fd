package testutil

import (
	"context"
	"fmt"
	"sync"

	"github.com/NathanCastle/arcgis-in-obsidian/internal/geo"
)

// Geocoder is a fake geo.Geocoder that answers from a fixed address table.
// Unknown addresses have no candidates.
type Geocoder struct {
	mu        sync.Mutex
	addresses map[string]geo.Location
	calls     []string

	// Fail, when set, makes every call return an error.
	Fail error
}

// NewGeocoder creates a fake geocoder with the given address table.
func NewGeocoder(addresses map[string]geo.Location) *Geocoder {
	if addresses == nil {
		addresses = map[string]geo.Location{}
	}
	return &Geocoder{addresses: addresses}
}

// Geocode returns a single candidate for known addresses.
func (g *Geocoder) Geocode(ctx context.Context, singleLine string) ([]geo.Candidate, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = append(g.calls, singleLine)
	if g.Fail != nil {
		return nil, g.Fail
	}
	loc, ok := g.addresses[singleLine]
	if !ok {
		return nil, nil
	}
	return []geo.Candidate{{Address: fmt.Sprintf("%s (matched)", singleLine), Location: loc, Score: 100}}, nil
}

// Calls returns the addresses geocoded so far.
func (g *Geocoder) Calls() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.calls...)
}
