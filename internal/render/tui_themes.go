package render

import (
	"github.com/charmbracelet/lipgloss"
)

// TUITheme defines the color scheme for the terminal dialog
type TUITheme struct {
	Name        string
	Description string

	Border lipgloss.Color

	Primary   lipgloss.Color
	Secondary lipgloss.Color
	Accent    lipgloss.Color
	Warning   lipgloss.Color
	Error     lipgloss.Color

	Text     lipgloss.Color
	TextDim  lipgloss.Color
	TextMute lipgloss.Color
}

var (
	// TokyoNightTheme is the default palette
	TokyoNightTheme = TUITheme{
		Name:        "tokyonight",
		Description: "Tokyo Night - Dark theme with blue accents",

		Border: lipgloss.Color("#414868"),

		Primary:   lipgloss.Color("#7aa2f7"),
		Secondary: lipgloss.Color("#9ece6a"),
		Accent:    lipgloss.Color("#bb9af7"),
		Warning:   lipgloss.Color("#e0af68"),
		Error:     lipgloss.Color("#f7768e"),

		Text:     lipgloss.Color("#c0caf5"),
		TextDim:  lipgloss.Color("#565f89"),
		TextMute: lipgloss.Color("#3b4261"),
	}

	// LightTheme suits bright terminals
	LightTheme = TUITheme{
		Name:        "light",
		Description: "Light - high contrast on white backgrounds",

		Border: lipgloss.Color("#c0c4d0"),

		Primary:   lipgloss.Color("#2e59c9"),
		Secondary: lipgloss.Color("#387a21"),
		Accent:    lipgloss.Color("#7847bd"),
		Warning:   lipgloss.Color("#8f5e15"),
		Error:     lipgloss.Color("#c4314b"),

		Text:     lipgloss.Color("#1f2335"),
		TextDim:  lipgloss.Color("#5c6370"),
		TextMute: lipgloss.Color("#a0a4b0"),
	}
)

// TUIThemeFor picks the dialog palette matching a markdown style.
func TUIThemeFor(style string) TUITheme {
	if style == StyleLight {
		return LightTheme
	}
	return TokyoNightTheme
}
