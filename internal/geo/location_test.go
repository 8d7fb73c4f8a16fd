package geo

import (
	"errors"
	"testing"
)

func TestParseCache(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		value   string
		want    Location
		wantErr bool
	}{
		{name: "plain", value: "x:-122.08,y:37.42", want: Location{X: -122.08, Y: 37.42}},
		{name: "integers", value: "x:1,y:2", want: Location{X: 1, Y: 2}},
		{name: "spaces tolerated", value: " x: 1.5 , y: -2.25 ", want: Location{X: 1.5, Y: -2.25}},
		{name: "missing comma", value: "x:1 y:2", wantErr: true},
		{name: "non numeric", value: "x:abc,y:2", wantErr: true},
		{name: "swapped labels", value: "y:1,x:2", wantErr: true},
		{name: "nan rejected", value: "x:NaN,y:2", wantErr: true},
		{name: "inf rejected", value: "x:1,y:Inf", wantErr: true},
		{name: "empty", value: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := ParseCache(tt.value)
			if tt.wantErr {
				if !errors.Is(err, ErrMalformedCache) {
					t.Fatalf("ParseCache(%q) error = %v, want ErrMalformedCache", tt.value, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseCache(%q) error = %v", tt.value, err)
			}
			if got != tt.want {
				t.Fatalf("ParseCache(%q) = %+v, want %+v", tt.value, got, tt.want)
			}
		})
	}
}

func TestCacheStringRoundTrip(t *testing.T) {
	t.Parallel()

	loc := Location{X: -122.0841, Y: 37.4219}
	s := loc.CacheString()
	if s != "x:-122.0841,y:37.4219" {
		t.Fatalf("CacheString() = %q", s)
	}
	back, err := ParseCache(s)
	if err != nil {
		t.Fatalf("ParseCache() error = %v", err)
	}
	if back != loc {
		t.Fatalf("round trip = %+v, want %+v", back, loc)
	}
}
