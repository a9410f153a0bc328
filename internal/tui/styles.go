// Package tui provides the terminal history dialog for chathist.
package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/diogo/chathist/internal/render"
)

// Color variables (updated from theme)
var (
	colorBorder lipgloss.Color

	colorPrimary   lipgloss.Color
	colorSecondary lipgloss.Color
	colorAccent    lipgloss.Color
	colorWarning   lipgloss.Color
	colorError     lipgloss.Color

	colorText     lipgloss.Color
	colorTextDim  lipgloss.Color
	colorTextMute lipgloss.Color
)

// Style variables (rebuilt when theme changes)
var (
	// Dialog header
	headerStyle   lipgloss.Style
	titleStyle    lipgloss.Style
	subtitleStyle lipgloss.Style

	// Hint text style
	hintStyle lipgloss.Style

	// Search input and mode badge
	searchPanelStyle lipgloss.Style
	modeBadgeStyle   lipgloss.Style

	// List panel
	listPanelStyle    lipgloss.Style
	groupLabelStyle   lipgloss.Style
	itemStyle         lipgloss.Style
	itemSelectedStyle lipgloss.Style
	itemCurrentStyle  lipgloss.Style
	cursorStyle       lipgloss.Style
	timeStyle         lipgloss.Style
	publicBadgeStyle  lipgloss.Style
	checkboxStyle     lipgloss.Style
	checkboxOnStyle   lipgloss.Style

	// Preview pane
	previewPanelStyle lipgloss.Style

	// Inline prompts (rename, delete confirmation)
	promptPanelStyle lipgloss.Style
	promptLabelStyle lipgloss.Style
	dangerStyle      lipgloss.Style

	// Loading/spinner style
	loadingStyle lipgloss.Style

	// Notices
	successStyle lipgloss.Style
	errorStyle   lipgloss.Style

	// Status bar styles
	statusBarStyle  lipgloss.Style
	statusKeyStyle  lipgloss.Style
	statusDescStyle lipgloss.Style
)

func init() {
	UpdateTheme(render.TokyoNightTheme)
}

// UpdateTheme refreshes all styles from theme
func UpdateTheme(theme render.TUITheme) {
	colorBorder = theme.Border
	colorPrimary = theme.Primary
	colorSecondary = theme.Secondary
	colorAccent = theme.Accent
	colorWarning = theme.Warning
	colorError = theme.Error
	colorText = theme.Text
	colorTextDim = theme.TextDim
	colorTextMute = theme.TextMute

	rebuildStyles()
}

// rebuildStyles creates all lipgloss styles with current color values
func rebuildStyles() {
	headerStyle = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(colorBorder).
		Padding(0, 2)

	titleStyle = lipgloss.NewStyle().
		Foreground(colorPrimary).
		Bold(true)

	subtitleStyle = lipgloss.NewStyle().
		Foreground(colorTextDim)

	hintStyle = lipgloss.NewStyle().
		Foreground(colorTextMute).
		Italic(true)

	searchPanelStyle = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(colorBorder).
		Padding(0, 1)

	modeBadgeStyle = lipgloss.NewStyle().
		Foreground(colorText).
		Background(colorBorder).
		Bold(true).
		Padding(0, 1).
		MarginRight(1)

	listPanelStyle = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(colorBorder).
		Padding(0, 1)

	groupLabelStyle = lipgloss.NewStyle().
		Foreground(colorSecondary).
		Bold(true)

	itemStyle = lipgloss.NewStyle().
		Foreground(colorText)

	itemSelectedStyle = lipgloss.NewStyle().
		Foreground(colorAccent).
		Bold(true)

	itemCurrentStyle = lipgloss.NewStyle().
		Foreground(colorPrimary).
		Underline(true)

	cursorStyle = lipgloss.NewStyle().
		Foreground(colorAccent)

	timeStyle = lipgloss.NewStyle().
		Foreground(colorTextDim)

	publicBadgeStyle = lipgloss.NewStyle().
		Foreground(colorWarning)

	checkboxStyle = lipgloss.NewStyle().
		Foreground(colorTextDim)

	checkboxOnStyle = lipgloss.NewStyle().
		Foreground(colorSecondary).
		Bold(true)

	previewPanelStyle = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(colorBorder).
		Padding(0, 1)

	promptPanelStyle = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(colorAccent).
		Padding(0, 1)

	promptLabelStyle = lipgloss.NewStyle().
		Foreground(colorSecondary).
		Bold(true)

	dangerStyle = lipgloss.NewStyle().
		Foreground(colorError).
		Bold(true)

	loadingStyle = lipgloss.NewStyle().
		Foreground(colorAccent).
		Bold(true)

	successStyle = lipgloss.NewStyle().
		Foreground(colorSecondary)

	errorStyle = lipgloss.NewStyle().
		Foreground(colorError).
		Bold(true)

	statusBarStyle = lipgloss.NewStyle().
		Foreground(colorTextMute).
		Align(lipgloss.Center)

	statusKeyStyle = lipgloss.NewStyle().
		Foreground(colorTextDim).
		Bold(true)

	statusDescStyle = lipgloss.NewStyle().
		Foreground(colorTextMute)
}
