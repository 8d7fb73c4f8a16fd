// Package mapembed parses ```arcgis code blocks that embed a map in a note.
package mapembed

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	"github.com/NathanCastle/arcgis-in-obsidian/internal/parser"
)

// Defaults applied before a block's directives are read.
const (
	DefaultMinHeight = 300
	DefaultZoom      = 13
	DefaultBasemap   = "streets-navigation-vector"
)

// DefaultCenter is the map center used when a block does not set one.
var DefaultCenter = [2]float64{-118.805, 34.027}

// Map is one embedded map directive block.
type Map struct {
	// Line is the 1-indexed line of the opening fence.
	Line      int        `json:"line"`
	Basemap   string     `json:"basemap,omitempty"`
	MapID     string     `json:"id,omitempty"`
	MinHeight int        `json:"min_height"`
	Zoom      int        `json:"zoom"`
	Center    [2]float64 `json:"center"`
	Warnings  []string   `json:"warnings,omitempty"`
}

// Source describes what the map displays: a web map item, a basemap style,
// or the default basemap.
func (m Map) Source() string {
	switch {
	case m.MapID != "":
		return "webmap:" + m.MapID
	case m.Basemap != "":
		return "basemap:" + m.Basemap
	default:
		return "basemap:" + DefaultBasemap
	}
}

// Parse reads directive lines ("key: value") into a Map.
// Unknown keys are ignored; unparsable values keep the default and add a warning.
func Parse(body string) Map {
	m := Map{
		MinHeight: DefaultMinHeight,
		Zoom:      DefaultZoom,
		Center:    DefaultCenter,
	}

	for _, line := range strings.Split(strings.TrimSpace(body), "\n") {
		key, value, found := strings.Cut(line, ":")
		if !found {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)

		switch key {
		case "basemap":
			m.Basemap = value
		case "id":
			m.MapID = value
		case "min-height":
			if n, err := strconv.Atoi(value); err == nil {
				m.MinHeight = n
			} else {
				m.Warnings = append(m.Warnings, fmt.Sprintf("min-height %q is not an integer", value))
			}
		case "zoom":
			if n, err := strconv.Atoi(value); err == nil {
				m.Zoom = n
			} else {
				m.Warnings = append(m.Warnings, fmt.Sprintf("zoom %q is not an integer", value))
			}
		case "center":
			c, err := parseCenter(value)
			if err != nil {
				m.Warnings = append(m.Warnings, err.Error())
				continue
			}
			m.Center = c
		}
	}
	return m
}

func parseCenter(value string) ([2]float64, error) {
	stripped := strings.NewReplacer("[", "", "]", "").Replace(value)
	parts := strings.Split(stripped, ",")
	if len(parts) < 2 {
		return DefaultCenter, fmt.Errorf("center %q needs two coordinates", value)
	}
	x, errX := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	y, errY := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if errX != nil || errY != nil {
		return DefaultCenter, fmt.Errorf("center %q is not a coordinate pair", value)
	}
	return [2]float64{x, y}, nil
}

// IsMapFence reports whether a fenced code block language selects a map.
func IsMapFence(language string) bool {
	return strings.Contains(strings.ToLower(language), "arcgis")
}

// Extract finds every map block in a note, skipping its frontmatter.
func Extract(content string) []Map {
	body, startLine := stripFrontmatter(content)
	source := []byte(body)

	doc := goldmark.New().Parser().Parse(text.NewReader(source))
	lineStarts := computeLineStarts(body)

	var maps []Map
	ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		block, ok := n.(*ast.FencedCodeBlock)
		if !ok || !IsMapFence(string(block.Language(source))) {
			return ast.WalkContinue, nil
		}

		var b strings.Builder
		lines := block.Lines()
		for i := 0; i < lines.Len(); i++ {
			seg := lines.At(i)
			b.Write(seg.Value(source))
		}

		m := Parse(b.String())
		// A matching language implies an info string on the opening fence.
		m.Line = startLine + offsetToLine(lineStarts, block.Info.Segment.Start)
		maps = append(maps, m)
		return ast.WalkSkipChildren, nil
	})
	return maps
}

// stripFrontmatter returns the note body and the 1-indexed line it starts on.
func stripFrontmatter(content string) (string, int) {
	lines := strings.Split(content, "\n")
	_, end, ok := parser.FrontmatterBounds(lines)
	if !ok || end == -1 {
		return content, 1
	}
	return strings.Join(lines[end+1:], "\n"), end + 2
}

func computeLineStarts(content string) []int {
	starts := []int{0}
	for i, c := range content {
		if c == '\n' && i+1 < len(content) {
			starts = append(starts, i+1)
		}
	}
	return starts
}

func offsetToLine(lineStarts []int, offset int) int {
	for i := len(lineStarts) - 1; i >= 0; i-- {
		if lineStarts[i] <= offset {
			return i
		}
	}
	return 0
}
