package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/NathanCastle/arcgis-in-obsidian/docs"
	"github.com/NathanCastle/arcgis-in-obsidian/internal/ui"
)

const guideDir = "guide"

func newDocsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "docs [topic]",
		Short: "Read the bundled user guide",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			topics, err := guideTopics()
			if err != nil {
				return a.fail(ErrInternal, err, "")
			}

			if len(args) == 0 {
				if a.jsonOutput {
					a.outputSuccess(topics, nil, &Meta{Count: len(topics)})
					return nil
				}
				a.println(ui.Header("Topics"))
				for _, t := range topics {
					a.println("  " + t)
				}
				a.println(ui.Hint("\nRun 'arcsync docs <topic>'."))
				return nil
			}

			topic := strings.TrimSuffix(args[0], ".md")
			content, err := fs.ReadFile(docs.FS, path.Join(guideDir, topic+".md"))
			if errors.Is(err, fs.ErrNotExist) {
				return a.fail(ErrInvalidInput, fmt.Errorf("unknown topic %q", topic),
					"Available: "+strings.Join(topics, ", "))
			}
			if err != nil {
				return a.fail(ErrInternal, err, "")
			}

			if a.jsonOutput {
				a.outputSuccess(map[string]string{"topic": topic, "content": string(content)}, nil, nil)
				return nil
			}
			display := ui.DisplayContextFor(stdoutFile(a))
			if display.IsTTY {
				if rendered, err := ui.RenderMarkdown(string(content), display.TermWidth); err == nil {
					a.printf("%s", rendered)
					return nil
				}
			}
			a.printf("%s", content)
			return nil
		},
	}
}

func guideTopics() ([]string, error) {
	entries, err := fs.ReadDir(docs.FS, guideDir)
	if err != nil {
		return nil, err
	}
	var topics []string
	for _, e := range entries {
		if name, ok := strings.CutSuffix(e.Name(), ".md"); ok && !e.IsDir() {
			topics = append(topics, name)
		}
	}
	sort.Strings(topics)
	return topics, nil
}
