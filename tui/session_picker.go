package tui

import (
	"fmt"
	"sort"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/nachoal/pinchy-tui/api"
)

// SessionPicker is a modal for selecting which session of the agent to view
type SessionPicker struct {
	agent    string
	sessions []api.Session
	current  string
	selected int
	width    int
	height   int
	now      func() time.Time
}

// NewSessionPicker creates a session picker, newest first, with the viewed
// session preselected
func NewSessionPicker(agent string, sessions []api.Session, current string) *SessionPicker {
	p := &SessionPicker{
		agent:  agent,
		width:  80,
		height: 24,
		now:    time.Now,
	}
	p.SetSessions(sessions, current)
	return p
}

// SetSessions replaces the listed sessions, keeping the cursor on the same
// session when it is still listed
func (p *SessionPicker) SetSessions(sessions []api.Session, current string) {
	keep := ""
	if p.selected < len(p.sessions) {
		keep = p.sessions[p.selected].SessionID
	}
	if keep == "" {
		keep = current
	}

	sorted := append([]api.Session(nil), sessions...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Modified > sorted[j].Modified })
	p.sessions = sorted
	p.current = current
	p.selected = 0
	for i, s := range sorted {
		if s.SessionID == keep {
			p.selected = i
			break
		}
	}
}

func (p *SessionPicker) Init() tea.Cmd {
	return nil
}

func (p *SessionPicker) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		p.width = msg.Width
		p.height = msg.Height
		return p, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "up", "k":
			if p.selected > 0 {
				p.selected--
			}
		case "down", "j":
			if p.selected < len(p.sessions)-1 {
				p.selected++
			}
		case "enter":
			if len(p.sessions) > 0 {
				id := p.sessions[p.selected].SessionID
				return p, func() tea.Msg { return sessionChosenMsg{id: id} }
			}
		case "esc", "q":
			return p, func() tea.Msg { return pickerCancelMsg{} }
		}
	}
	return p, nil
}

func (p *SessionPicker) View() string {
	if len(p.sessions) == 0 {
		return fmt.Sprintf("\nNo sessions found for %s.\n\nPress [Esc] to go back.", p.agent)
	}

	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("75")).
		MarginBottom(1)

	selectedStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("75")).
		Bold(true)

	normalStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("246"))

	helpStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("240")).
		MarginTop(1)

	var b strings.Builder
	b.WriteString(titleStyle.Render(fmt.Sprintf("Sessions of %s:", p.agent)))
	b.WriteString("\n\n")

	// Scroll window around the cursor
	visibleHeight := p.height - 6
	if visibleHeight < 1 {
		visibleHeight = 1
	}
	startIdx := 0
	endIdx := len(p.sessions)
	if visibleHeight < len(p.sessions) {
		if p.selected > visibleHeight/2 {
			startIdx = p.selected - visibleHeight/2
			if startIdx+visibleHeight > len(p.sessions) {
				startIdx = len(p.sessions) - visibleHeight
			}
		}
		endIdx = startIdx + visibleHeight
		if endIdx > len(p.sessions) {
			endIdx = len(p.sessions)
		}
	}

	for i := startIdx; i < endIdx; i++ {
		b.WriteString(p.renderRow(i, selectedStyle, normalStyle))
		b.WriteString("\n")
	}

	if startIdx > 0 || endIdx < len(p.sessions) {
		b.WriteString(normalStyle.Render(fmt.Sprintf("\n[%d-%d of %d sessions]", startIdx+1, endIdx, len(p.sessions))))
	}

	b.WriteString(helpStyle.Render("\n[↑/↓/j/k] Navigate  [Enter] View  [Esc/q] Back"))
	return b.String()
}

func (p *SessionPicker) renderRow(i int, selectedStyle, normalStyle lipgloss.Style) string {
	s := p.sessions[i]
	cursor := "  "
	style := normalStyle
	if i == p.selected {
		cursor = "▸ "
		style = selectedStyle
	}

	marker := ""
	if s.SessionID == p.current {
		marker = " (viewing)"
	}
	modified := s.ModifiedTime()
	line := fmt.Sprintf("%s%s - %s%s (%s, %s)",
		cursor,
		modified.Format("Jan 02 15:04"),
		s.SessionID,
		marker,
		humanize.Bytes(uint64(max(s.Size, 0))),
		humanize.RelTime(modified, p.now(), "ago", "from now"))
	return style.Render(truncateToWidth(line, p.width))
}
