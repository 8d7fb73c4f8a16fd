package ui

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

// Table renders rows under a bold header with muted separators, sized to the
// display width.
func Table(display *DisplayContext, headers []string, rows [][]string) string {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(Muted).
		BorderTop(false).
		BorderBottom(false).
		BorderLeft(false).
		BorderRight(false).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return Bold.Padding(0, 1)
			}
			return lipgloss.NewStyle().Padding(0, 1)
		})
	if display != nil && display.IsTTY {
		t = t.Width(display.TermWidth)
	}
	return t.Render() + "\n"
}
