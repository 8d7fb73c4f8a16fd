package fieldmap

import (
	"reflect"
	"testing"
)

func TestResolve(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		directive string
		want      Mapping
	}{
		{
			name:      "empty directive is no mapping",
			directive: "",
			want:      nil,
		},
		{
			name:      "blank directive is no mapping",
			directive: "   ",
			want:      nil,
		},
		{
			name:      "two pairs in order",
			directive: "category:OBS_CAT,owner:OWNER_FLD",
			want: Mapping{
				{Source: "category", Target: "OBS_CAT"},
				{Source: "owner", Target: "OWNER_FLD"},
			},
		},
		{
			name:      "split on first colon only",
			directive: "url:LINK:EXTRA",
			want:      Mapping{{Source: "url", Target: "LINK:EXTRA"}},
		},
		{
			name:      "segment without colon is kept",
			directive: "category,owner:OWNER",
			want: Mapping{
				{Source: "category", Target: ""},
				{Source: "owner", Target: "OWNER"},
			},
		},
		{
			name:      "whitespace trimmed",
			directive: " category : OBS_CAT , owner:OWNER ",
			want: Mapping{
				{Source: "category", Target: "OBS_CAT"},
				{Source: "owner", Target: "OWNER"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := Resolve(tt.directive)
			if !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("Resolve(%q) = %#v, want %#v", tt.directive, got, tt.want)
			}
		})
	}
}

func TestApplyOnlyPresentKeys(t *testing.T) {
	t.Parallel()

	m := Resolve("category:OBS_CAT,owner:OWNER_FLD")
	attrs := map[string]any{"TITLE": "Home"}
	m.Apply(attrs, map[string]any{"category": "park", "geo": "somewhere"}, nil)

	if attrs["OBS_CAT"] != "park" {
		t.Fatalf("OBS_CAT = %v, want park", attrs["OBS_CAT"])
	}
	if _, ok := attrs["OWNER_FLD"]; ok {
		t.Fatalf("OWNER_FLD should not be set when owner is absent: %v", attrs)
	}
}

func TestApplyLastPairWins(t *testing.T) {
	t.Parallel()

	m := Resolve("a:FIELD,b:FIELD")
	attrs := map[string]any{}
	m.Apply(attrs, map[string]any{"a": "first", "b": "second"}, nil)

	if attrs["FIELD"] != "second" {
		t.Fatalf("FIELD = %v, want second", attrs["FIELD"])
	}
}

func TestApplyCanOverrideTitle(t *testing.T) {
	t.Parallel()

	m := Resolve("name:TITLE")
	attrs := map[string]any{"TITLE": "file-name"}
	m.Apply(attrs, map[string]any{"name": "Display Name"}, nil)

	if attrs["TITLE"] != "Display Name" {
		t.Fatalf("TITLE = %v, want Display Name", attrs["TITLE"])
	}
}

func TestApplySkipsEmptyValuesAndTargetlessPairs(t *testing.T) {
	t.Parallel()

	m := Resolve("category,owner:OWNER,note:NOTE")
	attrs := map[string]any{}
	m.Apply(attrs, map[string]any{"category": "x", "owner": "", "note": nil}, nil)

	if len(attrs) != 0 {
		t.Fatalf("attrs = %v, want empty", attrs)
	}
}

func TestApplyConvertsValues(t *testing.T) {
	t.Parallel()

	m := Resolve("rating:RATING")
	attrs := map[string]any{}
	m.Apply(attrs, map[string]any{"rating": 4}, func(v any) any {
		return v.(int) * 10
	})

	if attrs["RATING"] != 40 {
		t.Fatalf("RATING = %v, want 40", attrs["RATING"])
	}
}

func TestMappingString(t *testing.T) {
	t.Parallel()

	m := Resolve("category:OBS_CAT,loose")
	if got := m.String(); got != "category:OBS_CAT,loose" {
		t.Fatalf("String() = %q", got)
	}
}
