package parser

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrNotMapping is returned when a frontmatter block holds something other
// than a YAML mapping.
var ErrNotMapping = errors.New("frontmatter is not a mapping")

// Field is one key to set in a frontmatter block.
type Field struct {
	Key   string
	Value any
}

// RewriteFrontmatter sets fields in the frontmatter of content.
//
// Existing keys keep their position and comments; new keys are appended.
// Everything after the closing '---' line is preserved byte for byte.
// Content without a closed frontmatter block is returned unchanged with
// ok == false.
func RewriteFrontmatter(content string, set []Field) (result string, ok bool, err error) {
	lines := strings.Split(content, "\n")
	_, endLine, found := FrontmatterBounds(lines)
	if !found || endLine == -1 {
		return content, false, nil
	}

	raw := strings.Join(lines[1:endLine], "\n")

	var doc yaml.Node
	if err := yaml.Unmarshal([]byte(raw), &doc); err != nil {
		return content, false, fmt.Errorf("failed to parse frontmatter as YAML: %w", err)
	}

	mapping, err := documentMapping(&doc)
	if err != nil {
		return content, false, err
	}

	for _, f := range set {
		if err := setKey(mapping, f.Key, f.Value); err != nil {
			return content, false, err
		}
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(&doc); err != nil {
		return content, false, fmt.Errorf("failed to encode frontmatter: %w", err)
	}
	if err := enc.Close(); err != nil {
		return content, false, fmt.Errorf("failed to encode frontmatter: %w", err)
	}

	var out strings.Builder
	out.WriteString("---\n")
	out.WriteString(strings.TrimSpace(buf.String()))
	out.WriteString("\n---")
	if endLine+1 < len(lines) {
		out.WriteString("\n")
		out.WriteString(strings.Join(lines[endLine+1:], "\n"))
	}
	return out.String(), true, nil
}

// documentMapping returns the top-level mapping of a parsed block, creating
// one for an empty block.
func documentMapping(doc *yaml.Node) (*yaml.Node, error) {
	if doc.Kind == 0 {
		doc.Kind = yaml.DocumentNode
	}
	if doc.Kind != yaml.DocumentNode {
		return nil, ErrNotMapping
	}
	if len(doc.Content) == 0 {
		doc.Content = []*yaml.Node{{Kind: yaml.MappingNode, Tag: "!!map"}}
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, ErrNotMapping
	}
	return root, nil
}

func setKey(mapping *yaml.Node, key string, value any) error {
	var valueNode yaml.Node
	if err := valueNode.Encode(value); err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}

	for i := 0; i+1 < len(mapping.Content); i += 2 {
		if mapping.Content[i].Value != key {
			continue
		}
		old := mapping.Content[i+1]
		valueNode.LineComment = old.LineComment
		valueNode.FootComment = old.FootComment
		mapping.Content[i+1] = &valueNode
		return nil
	}

	mapping.Content = append(mapping.Content,
		&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: key},
		&valueNode,
	)
	return nil
}
