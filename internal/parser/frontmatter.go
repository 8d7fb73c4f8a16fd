// Package parser reads and rewrites YAML frontmatter in markdown notes.
package parser

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Frontmatter represents parsed frontmatter data.
type Frontmatter struct {
	// Fields holds the decoded YAML mapping.
	Fields map[string]any

	// Raw is the raw frontmatter content.
	Raw string

	// EndLine is the line where frontmatter ends (1-indexed).
	EndLine int
}

// FrontmatterBounds returns the opening and closing frontmatter line indices.
// It only detects frontmatter when the first line is '---'.
// If frontmatter is present but unclosed, endLine is -1.
func FrontmatterBounds(lines []string) (startLine int, endLine int, ok bool) {
	if len(lines) == 0 || strings.TrimSpace(lines[0]) != "---" {
		return 0, -1, false
	}

	for i := 1; i < len(lines); i++ {
		if strings.TrimSpace(lines[i]) == "---" {
			return 0, i, true
		}
	}

	return 0, -1, true
}

// ParseFrontmatter parses YAML frontmatter from markdown content.
// Returns nil if no closed frontmatter block is found.
func ParseFrontmatter(content string) (*Frontmatter, error) {
	lines := strings.Split(content, "\n")

	_, endLine, ok := FrontmatterBounds(lines)
	if !ok || endLine == -1 {
		return nil, nil
	}

	raw := strings.Join(lines[1:endLine], "\n")

	var fields map[string]any
	if err := yaml.Unmarshal([]byte(raw), &fields); err != nil {
		return nil, fmt.Errorf("failed to parse frontmatter as YAML: %w", err)
	}
	// An empty block decodes to a nil map but still counts as frontmatter.
	if fields == nil {
		fields = map[string]any{}
	}

	return &Frontmatter{
		Fields:  fields,
		Raw:     raw,
		EndLine: endLine + 1,
	}, nil
}

// Metadata returns the frontmatter fields of content, or an empty map when
// the note has none.
func Metadata(content string) (map[string]any, error) {
	fm, err := ParseFrontmatter(content)
	if err != nil {
		return nil, err
	}
	if fm == nil {
		return map[string]any{}, nil
	}
	return fm.Fields, nil
}
