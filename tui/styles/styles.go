package styles

import (
	"github.com/charmbracelet/lipgloss"
)

// Styles holds all the styles for the console
type Styles struct {
	Theme Theme

	// Layout
	Header lipgloss.Style
	Footer lipgloss.Style
	Input  lipgloss.Style

	// Transcript rows
	UserMessage      lipgloss.Style
	AssistantMessage lipgloss.Style
	SystemMessage    lipgloss.Style
	ToolMessage      lipgloss.Style
	ErrorMessage     lipgloss.Style
	Receipt          lipgloss.Style
	Timestamp        lipgloss.Style
	Streaming        lipgloss.Style

	// Status lines
	Banner       lipgloss.Style
	Notice       lipgloss.Style
	Info         lipgloss.Style
	Connected    lipgloss.Style
	Disconnected lipgloss.Style
	ToolRunning  lipgloss.Style
	ToolSuccess  lipgloss.Style
	ToolError    lipgloss.Style
	Spinner      lipgloss.Style

	// Menus
	Title           lipgloss.Style
	Label           lipgloss.Style
	Help            lipgloss.Style
	SuggestName     lipgloss.Style
	SuggestDesc     lipgloss.Style
	SuggestSelected lipgloss.Style
}

// NewStyles creates the styles for theme
func NewStyles(theme Theme) *Styles {
	s := &Styles{
		Theme: theme,
	}

	s.Header = lipgloss.NewStyle().
		Foreground(theme.Text).
		Bold(true)

	s.Footer = lipgloss.NewStyle().
		Foreground(theme.Border)

	s.Input = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(theme.Text).
		PaddingLeft(1).
		PaddingRight(1)

	s.UserMessage = lipgloss.NewStyle().
		Foreground(theme.Text)

	s.AssistantMessage = lipgloss.NewStyle().
		Foreground(theme.Primary).
		Bold(true)

	s.SystemMessage = lipgloss.NewStyle().
		Foreground(theme.TextDim)

	s.ToolMessage = lipgloss.NewStyle().
		Foreground(theme.TextDim).
		Italic(true)

	s.ErrorMessage = lipgloss.NewStyle().
		Foreground(theme.Error)

	s.Receipt = lipgloss.NewStyle().
		Foreground(theme.Info)

	s.Timestamp = lipgloss.NewStyle().
		Foreground(theme.Border)

	s.Streaming = lipgloss.NewStyle().
		Foreground(theme.Text)

	s.Banner = lipgloss.NewStyle().
		Foreground(theme.Text).
		Background(theme.Secondary)

	s.Notice = lipgloss.NewStyle().
		Foreground(theme.Warning).
		Bold(true)

	s.Info = lipgloss.NewStyle().
		Foreground(theme.TextDim)

	s.Connected = lipgloss.NewStyle().
		Foreground(theme.Success)

	s.Disconnected = lipgloss.NewStyle().
		Foreground(theme.Warning)

	s.ToolRunning = lipgloss.NewStyle().
		Foreground(theme.Warning)

	s.ToolSuccess = lipgloss.NewStyle().
		Foreground(theme.Success)

	s.ToolError = lipgloss.NewStyle().
		Foreground(theme.Error)

	s.Spinner = lipgloss.NewStyle().
		Foreground(theme.Primary)

	s.Title = lipgloss.NewStyle().
		Foreground(theme.Primary).
		Bold(true).
		MarginBottom(1)

	s.Label = lipgloss.NewStyle().
		Foreground(theme.TextDim)

	s.Help = lipgloss.NewStyle().
		Foreground(theme.Border).
		MarginTop(1)

	s.SuggestName = lipgloss.NewStyle().
		Foreground(theme.Primary)

	s.SuggestDesc = lipgloss.NewStyle().
		Foreground(theme.TextDim)

	s.SuggestSelected = lipgloss.NewStyle().
		Foreground(lipgloss.Color("230")).
		Background(theme.Secondary)

	return s
}

// RenderRole returns a styled role prefix
func (s *Styles) RenderRole(role string) string {
	switch role {
	case "user":
		return s.UserMessage.Bold(true).Render("👤 You:")
	case "assistant":
		return s.AssistantMessage.Render("🤖 Assistant:")
	case "tool":
		return s.ToolMessage.Render("🔧")
	default:
		return s.SystemMessage.Render("•")
	}
}

// RenderToolStatus returns a styled tool status
func (s *Styles) RenderToolStatus(ok bool) string {
	if ok {
		return s.ToolSuccess.Render("✓")
	}
	return s.ToolError.Render("✗")
}
