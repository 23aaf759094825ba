package ui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/jira-field-add/internal/theme"
)

// Layout tracks the terminal size shared by the interactive views.
type Layout struct {
	Width        int
	Height       int
	HeaderHeight int
	FooterHeight int
}

// NewLayout creates a Layout for a width x height terminal with a one line
// header and a two line footer (status bar plus help).
func NewLayout(width, height int) Layout {
	return Layout{
		Width:        width,
		Height:       height,
		HeaderHeight: 1,
		FooterHeight: 2,
	}
}

// ContentHeight returns the rows left for the main table.
func (l Layout) ContentHeight() int {
	h := l.Height - l.HeaderHeight - l.FooterHeight
	if h < 1 {
		return 1
	}
	return h
}

// RenderHeader renders the title on the left and a status on the right,
// filling the gap with the header background.
func (l Layout) RenderHeader(title, status string) string {
	left := theme.HeaderStyle.Render(title)
	right := theme.HeaderStyle.Align(lipgloss.Right).Render(status)

	return lipgloss.JoinHorizontal(lipgloss.Top, left, l.filler(theme.HeaderStyle, left, right), right)
}

// RenderStatusBar renders the bottom bar stretched to the full width.
func (l Layout) RenderStatusBar(text string) string {
	rendered := theme.StatusBarStyle.Render(text)
	return lipgloss.JoinHorizontal(lipgloss.Top, rendered, l.filler(theme.StatusBarStyle, rendered))
}

// RenderWithFrame stacks header, content and footer.
func (l Layout) RenderWithFrame(header, content string, footer ...string) string {
	parts := append([]string{header, content}, footer...)
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func (l Layout) filler(style lipgloss.Style, rendered ...string) string {
	gap := l.Width
	for _, r := range rendered {
		gap -= lipgloss.Width(r)
	}
	if gap <= 0 {
		return ""
	}
	return lipgloss.NewStyle().
		Width(gap).
		Background(style.GetBackground()).
		Render("")
}
