// internal/ui/table.go

package ui

import (
	"github.com/charmbracelet/lipgloss"
	ltable "github.com/charmbracelet/lipgloss/table"
)

// Table renders rows under highlighted headers. Rows marked in warn are
// drawn in the warning color.
func Table(headers []string, rows [][]string, warn map[int]bool) string {
	style := func(row, col int) lipgloss.Style {
		base := lipgloss.NewStyle().Padding(0, 1)
		switch {
		case row == ltable.HeaderRow:
			return base.Foreground(highlight).Bold(true)
		case warn[row]:
			return base.Foreground(warning)
		default:
			return base.Foreground(special)
		}
	}

	return ltable.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(subtle)).
		StyleFunc(style).
		Headers(headers...).
		Rows(rows...).
		Render()
}
