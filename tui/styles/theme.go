package styles

import (
	"github.com/charmbracelet/lipgloss"
)

// Theme represents the console palette
type Theme struct {
	Name      string
	Primary   lipgloss.AdaptiveColor
	Secondary lipgloss.AdaptiveColor
	Surface   lipgloss.AdaptiveColor
	Text      lipgloss.AdaptiveColor
	TextDim   lipgloss.AdaptiveColor
	Border    lipgloss.AdaptiveColor
	Success   lipgloss.AdaptiveColor
	Warning   lipgloss.AdaptiveColor
	Error     lipgloss.AdaptiveColor
	Info      lipgloss.AdaptiveColor
}

// Console is the only palette. Colors follow the 256-color values used
// across the chat screen so plain and adaptive renders look alike.
var Console = Theme{
	Name:      "console",
	Primary:   lipgloss.AdaptiveColor{Light: "#005FAF", Dark: "#5FAFFF"}, // 75
	Secondary: lipgloss.AdaptiveColor{Light: "#5F5FD7", Dark: "#5F5FD7"}, // 62
	Surface:   lipgloss.AdaptiveColor{Light: "#EEEEEE", Dark: "#303030"},
	Text:      lipgloss.AdaptiveColor{Light: "#1C1C1C", Dark: "#FFFFFF"}, // 15
	TextDim:   lipgloss.AdaptiveColor{Light: "#6C6C6C", Dark: "#8A8A8A"}, // 245
	Border:    lipgloss.AdaptiveColor{Light: "#BCBCBC", Dark: "#585858"}, // 240
	Success:   lipgloss.AdaptiveColor{Light: "#008700", Dark: "#5FD75F"},
	Warning:   lipgloss.AdaptiveColor{Light: "#AF5F00", Dark: "#FFAF00"}, // 214
	Error:     lipgloss.AdaptiveColor{Light: "#D70000", Dark: "#FF0000"}, // 196
	Info:      lipgloss.AdaptiveColor{Light: "#008787", Dark: "#5FD7D7"}, // 80
}
