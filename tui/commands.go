package tui

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nachoal/pinchy-tui/api"
	"github.com/nachoal/pinchy-tui/transcript"
	"github.com/nachoal/pinchy-tui/transport"
)

// Backend is the REST surface the chat screen reads from
type Backend interface {
	ListAgents(ctx context.Context) ([]api.Agent, error)
	ListSessions(ctx context.Context, agent string) ([]api.Session, error)
	CurrentSession(ctx context.Context, agent string) (string, error)
	GetSession(ctx context.Context, agent, session string) (*api.SessionFile, error)
	GetReceipts(ctx context.Context, agent, session string) (*api.ReceiptFile, error)
	SlashCommands(ctx context.Context) ([]api.SlashCommand, error)
}

// Stream is the operator socket as the chat screen uses it
type Stream interface {
	Frames() <-chan []byte
	States() <-chan transport.ConnState
	SendCommand(command, agent string) error
}

// Messages for the update loop. REST results carry the view generation and
// session they were issued for so that late responses can be dropped.
type (
	frameMsg        struct{ data []byte }
	streamClosedMsg struct{}
	connStateMsg    struct{ state transport.ConnState }

	agentsLoadedMsg struct {
		agents []api.Agent
		err    error
	}

	sessionsLoadedMsg struct {
		gen      uint64
		agent    string
		sessions []api.Session
		current  string
		want     string
		pick     bool
		err      error
	}

	transcriptLoadedMsg struct {
		gen      uint64
		session  string
		messages []transcript.Message
		err      error
	}

	receiptsLoadedMsg struct {
		gen      uint64
		session  string
		receipts []transcript.Receipt
		err      error
	}

	slashLoadedMsg struct {
		commands []api.SlashCommand
		err      error
	}

	revealTickMsg           struct{ gen uint64 }
	bannerClearMsg          struct{ gen uint64 }
	clearTransientNoticeMsg struct{ id int }
)

// waitFrame bridges the socket's frame channel into the update loop. One
// frame is read per command, so frames are applied in arrival order.
func waitFrame(s Stream) tea.Cmd {
	return func() tea.Msg {
		data, ok := <-s.Frames()
		if !ok {
			return streamClosedMsg{}
		}
		return frameMsg{data: data}
	}
}

func waitState(s Stream) tea.Cmd {
	return func() tea.Msg {
		st, ok := <-s.States()
		if !ok {
			return nil
		}
		return connStateMsg{state: st}
	}
}

func revealTick(every time.Duration, gen uint64) tea.Cmd {
	return tea.Tick(every, func(time.Time) tea.Msg {
		return revealTickMsg{gen: gen}
	})
}

func bannerClear(after time.Duration, gen uint64) tea.Cmd {
	return tea.Tick(after, func(time.Time) tea.Msg {
		return bannerClearMsg{gen: gen}
	})
}

func (m *ChatTUI) fetchContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), m.opts.FetchTimeout)
}

func (m *ChatTUI) loadAgents() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := m.fetchContext()
		defer cancel()
		agents, err := m.backend.ListAgents(ctx)
		return agentsLoadedMsg{agents: agents, err: err}
	}
}

func (m *ChatTUI) loadSlashCommands() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := m.fetchContext()
		defer cancel()
		cmds, err := m.backend.SlashCommands(ctx)
		return slashLoadedMsg{commands: cmds, err: err}
	}
}

// loadSessions fetches the agent's session list. With pick set the result
// selects want, or the backend's choice when want is empty.
func (m *ChatTUI) loadSessions(want string, pick bool) tea.Cmd {
	agent := m.view.Agent()
	gen := m.view.Generation()
	if agent == "" {
		return nil
	}
	logger := m.logger
	return func() tea.Msg {
		ctx, cancel := m.fetchContext()
		defer cancel()
		sessions, err := m.backend.ListSessions(ctx, agent)
		if err != nil {
			return sessionsLoadedMsg{gen: gen, agent: agent, want: want, pick: pick, err: err}
		}
		current, err := m.backend.CurrentSession(ctx, agent)
		if err != nil {
			// the list alone is enough to pick a session
			logger.Debug("current_session_failed", "agent", agent, "err", err)
		}
		return sessionsLoadedMsg{gen: gen, agent: agent, sessions: sessions, current: current, want: want, pick: pick}
	}
}

func (m *ChatTUI) loadTranscript(gen uint64, agent, session string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := m.fetchContext()
		defer cancel()
		file, err := m.backend.GetSession(ctx, agent, session)
		if err != nil {
			return transcriptLoadedMsg{gen: gen, session: session, err: err}
		}
		return transcriptLoadedMsg{gen: gen, session: session, messages: file.Transcript()}
	}
}

func (m *ChatTUI) loadReceipts(gen uint64, agent, session string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := m.fetchContext()
		defer cancel()
		file, err := m.backend.GetReceipts(ctx, agent, session)
		if err != nil {
			return receiptsLoadedMsg{gen: gen, session: session, err: err}
		}
		return receiptsLoadedMsg{gen: gen, session: session, receipts: file.Parsed()}
	}
}
