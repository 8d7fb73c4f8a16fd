package arcgis

import (
	"context"
	"net/url"
	"strconv"

	"github.com/NathanCastle/arcgis-in-obsidian/internal/geo"
)

// DefaultGeocodeURL is the ArcGIS World Geocoding Service.
const DefaultGeocodeURL = "https://geocode-api.arcgis.com/arcgis/rest/services/World/GeocodeServer"

// Geocoder calls findAddressCandidates on a geocode service.
type Geocoder struct {
	c            *client
	url          string
	maxLocations int
	outWKID      int
}

// GeocoderOption customizes a Geocoder.
type GeocoderOption func(*Geocoder)

// WithMaxLocations limits the number of candidates requested.
func WithMaxLocations(n int) GeocoderOption {
	return func(g *Geocoder) { g.maxLocations = n }
}

// WithOutSR requests candidate locations in the given spatial reference.
func WithOutSR(wkid int) GeocoderOption {
	return func(g *Geocoder) { g.outWKID = wkid }
}

// NewGeocoder creates a geocoder for serviceURL, or DefaultGeocodeURL when empty.
func NewGeocoder(serviceURL string, opts Options, options ...GeocoderOption) (*Geocoder, error) {
	if serviceURL == "" {
		serviceURL = DefaultGeocodeURL
	}
	normalized, err := normalizeURL(serviceURL)
	if err != nil {
		return nil, err
	}
	g := &Geocoder{
		c:            newClient(normalized, opts),
		url:          normalized,
		maxLocations: 1,
	}
	for _, o := range options {
		o(g)
	}
	return g, nil
}

type candidatesResponse struct {
	Candidates []struct {
		Address  string  `json:"address"`
		Score    float64 `json:"score"`
		Location struct {
			X float64 `json:"x"`
			Y float64 `json:"y"`
		} `json:"location"`
	} `json:"candidates"`
}

// Geocode returns candidates for a single-line address, best first.
func (g *Geocoder) Geocode(ctx context.Context, singleLine string) ([]geo.Candidate, error) {
	params := url.Values{}
	params.Set("SingleLine", singleLine)
	params.Set("outFields", "Match_addr")
	if g.maxLocations > 0 {
		params.Set("maxLocations", strconv.Itoa(g.maxLocations))
	}
	if g.outWKID != 0 {
		params.Set("outSR", strconv.Itoa(g.outWKID))
	}

	var resp candidatesResponse
	if err := g.c.get(ctx, g.url+"/findAddressCandidates", params, &resp); err != nil {
		return nil, err
	}

	out := make([]geo.Candidate, 0, len(resp.Candidates))
	for _, c := range resp.Candidates {
		out = append(out, geo.Candidate{
			Address:  c.Address,
			Location: geo.Location{X: c.Location.X, Y: c.Location.Y},
			Score:    c.Score,
		})
	}
	return out, nil
}
