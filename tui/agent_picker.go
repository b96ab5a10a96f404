package tui

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nachoal/pinchy-tui/api"
)

// AgentItem represents an agent in the list
type AgentItem struct {
	Agent    api.Agent
	Selected bool
}

func (i AgentItem) Title() string {
	if i.Selected {
		return i.Agent.ID + " (current)"
	}
	return i.Agent.ID
}

func (i AgentItem) Description() string { return describeAgent(i.Agent) }
func (i AgentItem) FilterValue() string { return i.Agent.ID }

func describeAgent(a api.Agent) string {
	parts := []string{}
	if a.Model != "" {
		parts = append(parts, a.Model)
	}
	if a.HeartbeatSecs != nil && *a.HeartbeatSecs > 0 {
		parts = append(parts, "heartbeat "+(time.Duration(*a.HeartbeatSecs)*time.Second).String())
	}
	if n := len(a.EnabledSkills); n > 0 {
		parts = append(parts, plural(n, "skill"))
	}
	if a.CronJobsCount > 0 {
		parts = append(parts, plural(a.CronJobsCount, "cron job"))
	}
	if a.HasSoul {
		parts = append(parts, "soul")
	}
	if len(parts) == 0 {
		return "no details"
	}
	return strings.Join(parts, " · ")
}

// AgentPicker is a modal for selecting the agent to operate on
type AgentPicker struct {
	list   list.Model
	err    error
	width  int
	height int
}

// Messages emitted by the pickers
type (
	agentChosenMsg   struct{ id string }
	sessionChosenMsg struct{ id string }
	pickerCancelMsg  struct{}
)

// NewAgentPicker creates an agent picker listing agents, with current marked
func NewAgentPicker(agents []api.Agent, current string, width, height int) *AgentPicker {
	delegate := list.NewDefaultDelegate()
	delegate.Styles.SelectedTitle = delegate.Styles.SelectedTitle.
		Foreground(lipgloss.Color("75")).
		BorderLeftForeground(lipgloss.Color("75"))
	delegate.Styles.SelectedDesc = delegate.Styles.SelectedDesc.
		Foreground(lipgloss.Color("75")).
		BorderLeftForeground(lipgloss.Color("75"))

	if width <= 0 {
		width = 80
	}
	if height <= 0 {
		height = 20
	}

	l := list.New(nil, delegate, width, height)
	l.Title = "Select an Agent"
	l.SetShowStatusBar(true)
	l.SetFilteringEnabled(true)
	l.SetShowHelp(true)
	l.Styles.Title = lipgloss.NewStyle().
		Background(lipgloss.Color("62")).
		Foreground(lipgloss.Color("230")).
		Padding(0, 1)

	p := &AgentPicker{list: l, width: width, height: height}
	p.SetAgents(agents, current)
	return p
}

// SetAgents replaces the listed agents, sorted by id
func (p *AgentPicker) SetAgents(agents []api.Agent, current string) {
	sorted := append([]api.Agent(nil), agents...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	items := make([]list.Item, 0, len(sorted))
	cursor := 0
	for i, a := range sorted {
		if a.ID == current {
			cursor = i
		}
		items = append(items, AgentItem{Agent: a, Selected: a.ID == current})
	}
	p.list.SetItems(items)
	p.list.Select(cursor)
	if len(items) == 0 {
		p.err = fmt.Errorf("no agents configured on the gateway")
	} else {
		p.err = nil
	}
}

func (p *AgentPicker) Init() tea.Cmd {
	return nil
}

func (p *AgentPicker) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		p.width = msg.Width
		p.height = msg.Height
		p.list.SetSize(msg.Width, msg.Height)
		return p, nil

	case tea.KeyMsg:
		// While filtering, keys belong to the filter input
		if p.list.FilterState() == list.Filtering {
			break
		}
		switch msg.String() {
		case "q", "esc":
			return p, func() tea.Msg { return pickerCancelMsg{} }
		case "enter":
			if i, ok := p.list.SelectedItem().(AgentItem); ok {
				id := i.Agent.ID
				return p, func() tea.Msg { return agentChosenMsg{id: id} }
			}
			return p, nil
		}
	}

	var cmd tea.Cmd
	p.list, cmd = p.list.Update(msg)
	return p, cmd
}

func (p *AgentPicker) View() string {
	if p.err != nil {
		return lipgloss.NewStyle().
			Width(p.width).
			Height(p.height).
			Align(lipgloss.Center, lipgloss.Center).
			Foreground(lipgloss.Color("9")).
			Render(fmt.Sprintf("%v\n\nPress [Esc] to go back.", p.err))
	}
	return p.list.View()
}
