// internal/ui/styles.go

package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	subtle    = lipgloss.AdaptiveColor{Light: "#D9DCCF", Dark: "#6C7086"}
	highlight = lipgloss.AdaptiveColor{Light: "#874BFD", Dark: "#7D56F4"}
	special   = lipgloss.AdaptiveColor{Light: "#43BF6D", Dark: "#73F59F"}
	warning   = lipgloss.AdaptiveColor{Light: "#C68A00", Dark: "#FFB86C"}
	failure   = lipgloss.AdaptiveColor{Light: "#FF0000", Dark: "#FF5555"}

	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(highlight)

	DescriptionStyle = lipgloss.NewStyle().
				Foreground(subtle)

	LabelStyle = lipgloss.NewStyle().
			Foreground(subtle).
			Width(10)

	SuccessStyle = lipgloss.NewStyle().
			Foreground(special).
			Bold(true)

	WarningStyle = lipgloss.NewStyle().
			Foreground(warning)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(failure).
			Bold(true)

	WindowStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(highlight).
			Padding(0, 2)
)

// Field renders an aligned "label value" line.
func Field(label, value string) string {
	return LabelStyle.Render(label) + " " + value
}

// Success formats a final CLI message.
func Success(format string, args ...any) string {
	return SuccessStyle.Render("✓ " + fmt.Sprintf(format, args...))
}

func Warning(format string, args ...any) string {
	return WarningStyle.Render("! " + fmt.Sprintf(format, args...))
}

func Failure(format string, args ...any) string {
	return ErrorStyle.Render("✗ " + fmt.Sprintf(format, args...))
}

// Panel draws a titled box around lines.
func Panel(title string, lines ...string) string {
	body := strings.Join(lines, "\n")
	return WindowStyle.Render(TitleStyle.Render(title) + "\n" + body)
}
