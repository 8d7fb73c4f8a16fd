package parser

import (
	"errors"
	"strings"
	"testing"
)

func TestRewriteFrontmatter(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content string
		set     []Field
		want    string
		wantOK  bool
	}{
		{
			name:    "appends new keys after existing ones",
			content: "---\ngeo: Main St\n---\n# Body\n\ntext\n",
			set: []Field{
				{Key: "OBJECTID", Value: int64(42)},
				{Key: "geoXYCached", Value: "x:1.5,y:2"},
			},
			want:   "---\ngeo: Main St\nOBJECTID: 42\ngeoXYCached: x:1.5,y:2\n---\n# Body\n\ntext\n",
			wantOK: true,
		},
		{
			name:    "updates existing key in place",
			content: "---\nOBJECTID: 3\ngeo: Main St # home\nrating: 5\n---\nbody",
			set:     []Field{{Key: "OBJECTID", Value: int64(9)}},
			want:    "---\nOBJECTID: 9\ngeo: Main St # home\nrating: 5\n---\nbody",
			wantOK:  true,
		},
		{
			name:    "empty frontmatter block",
			content: "---\n---\nbody",
			set:     []Field{{Key: "OBJECTID", Value: int64(1)}},
			want:    "---\nOBJECTID: 1\n---\nbody",
			wantOK:  true,
		},
		{
			name:    "closing line at end of file",
			content: "---\na: 1\n---",
			set:     []Field{{Key: "b", Value: 2}},
			want:    "---\na: 1\nb: 2\n---",
			wantOK:  true,
		},
		{
			name:    "no frontmatter is left alone",
			content: "# Title\n\ngeo: not frontmatter\n",
			set:     []Field{{Key: "OBJECTID", Value: int64(1)}},
			want:    "# Title\n\ngeo: not frontmatter\n",
		},
		{
			name:    "unclosed frontmatter is left alone",
			content: "---\ngeo: x\nbody",
			set:     []Field{{Key: "OBJECTID", Value: int64(1)}},
			want:    "---\ngeo: x\nbody",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, ok, err := RewriteFrontmatter(tt.content, tt.set)
			if err != nil {
				t.Fatalf("RewriteFrontmatter() error = %v", err)
			}
			if ok != tt.wantOK {
				t.Errorf("ok = %v, want %v", ok, tt.wantOK)
			}
			if got != tt.want {
				t.Errorf("RewriteFrontmatter() =\n%q\nwant\n%q", got, tt.want)
			}
		})
	}
}

func TestRewriteFrontmatterRoundTrip(t *testing.T) {
	t.Parallel()

	body := "\n# Heading\n\n---\n\nA horizontal rule above must survive.\n"
	content := "---\ngeo: 380 New York St\ntags:\n  - coffee\n  - work\n---" + body

	got, ok, err := RewriteFrontmatter(content, []Field{
		{Key: "OBJECTID", Value: int64(7)},
		{Key: "geoXYCached", Value: "x:-117.195,y:34.057"},
	})
	if err != nil || !ok {
		t.Fatalf("RewriteFrontmatter() = %v, %v", ok, err)
	}
	if !strings.HasSuffix(got, "---"+body) {
		t.Errorf("body not preserved:\n%s", got)
	}

	md, err := Metadata(got)
	if err != nil {
		t.Fatalf("Metadata: %v", err)
	}
	if md["OBJECTID"] != 7 {
		t.Errorf("OBJECTID = %#v", md["OBJECTID"])
	}
	if md["geoXYCached"] != "x:-117.195,y:34.057" {
		t.Errorf("geoXYCached = %#v", md["geoXYCached"])
	}
	if tags, ok := md["tags"].([]any); !ok || len(tags) != 2 {
		t.Errorf("tags = %#v", md["tags"])
	}
}

func TestRewriteFrontmatterNotMapping(t *testing.T) {
	t.Parallel()

	content := "---\n- a\n- b\n---\nbody"
	got, ok, err := RewriteFrontmatter(content, []Field{{Key: "OBJECTID", Value: 1}})
	if !errors.Is(err, ErrNotMapping) {
		t.Fatalf("err = %v, want ErrNotMapping", err)
	}
	if ok || got != content {
		t.Errorf("content should be returned unchanged")
	}
}
