package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"

	"github.com/nachoal/pinchy-tui/api"
	"github.com/nachoal/pinchy-tui/chat"
	"github.com/nachoal/pinchy-tui/config"
	"github.com/nachoal/pinchy-tui/event"
	"github.com/nachoal/pinchy-tui/history"
	"github.com/nachoal/pinchy-tui/internal/trace"
	"github.com/nachoal/pinchy-tui/transcript"
	"github.com/nachoal/pinchy-tui/transport"
	"github.com/nachoal/pinchy-tui/tui/styles"
)

const (
	defaultFetchTimeout = 15 * time.Second
	transientNoticeTTL  = 4 * time.Second
	maxTextareaHeight   = 10
)

// Options configures the chat screen
type Options struct {
	// Agent and Session are the initial selection. An empty Session lets the
	// backend's current or newest session win.
	Agent   string
	Session string

	RevealBudget   int
	RevealInterval time.Duration
	BannerQuiet    time.Duration
	FetchTimeout   time.Duration

	Config  *config.Manager
	History *history.Manager
	Logger  *log.Logger
}

// ChatTUI is the operator chat screen for one agent at a time
type ChatTUI struct {
	backend Backend
	stream  Stream
	view    *chat.View
	opts    Options
	logger  *log.Logger
	now     func() time.Time

	textarea textarea.Model
	viewport viewport.Model
	spinner  spinner.Model
	spinning bool
	follow   bool
	styles   *styles.Styles
	render   *renderer
	keys     KeyMap

	width       int
	height      int
	initialized bool

	conn       transport.ConnState
	connSeen   bool
	agents     []api.Agent
	autoPicked bool
	sessions   []api.Session
	suggest    suggestions

	// In-app modal: agent or session picker
	picker tea.Model

	// Transient notice displayed above prompt bar
	transientNotice   string
	transientNoticeID int
}

// NewChatTUI creates the chat screen
func NewChatTUI(backend Backend, stream Stream, opts Options) *ChatTUI {
	if opts.RevealBudget <= 0 {
		opts.RevealBudget = transcript.DefaultRevealBudget
	}
	if opts.RevealInterval <= 0 {
		opts.RevealInterval = transcript.DefaultRevealInterval
	}
	if opts.BannerQuiet <= 0 {
		opts.BannerQuiet = chat.BannerQuietPeriod
	}
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = defaultFetchTimeout
	}
	logger := opts.Logger
	if logger == nil {
		logger = trace.Disabled().Logger
	}

	ta := textarea.New()
	ta.Placeholder = ""
	ta.ShowLineNumbers = false
	ta.Prompt = "" // the prompt is drawn inside the border
	ta.CharLimit = 0
	ta.SetHeight(1)
	ta.Focus()

	// Completely transparent styles - unset all backgrounds and borders
	transparentStyle := lipgloss.NewStyle().
		UnsetBackground().
		UnsetBorderBackground().
		UnsetBorderStyle()

	ta.FocusedStyle.Base = transparentStyle
	ta.FocusedStyle.Text = transparentStyle
	ta.FocusedStyle.Placeholder = transparentStyle
	ta.FocusedStyle.Prompt = transparentStyle
	ta.FocusedStyle.CursorLine = transparentStyle

	ta.BlurredStyle.Base = transparentStyle
	ta.BlurredStyle.Text = transparentStyle
	ta.BlurredStyle.Placeholder = transparentStyle
	ta.BlurredStyle.Prompt = transparentStyle
	ta.BlurredStyle.CursorLine = transparentStyle

	// Enter sends
	ta.KeyMap.InsertNewline.SetEnabled(false)
	ta.SetWidth(74)

	st := styles.NewStyles(styles.Console)

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = st.Spinner

	return &ChatTUI{
		backend:  backend,
		stream:   stream,
		view:     chat.NewView(opts.RevealBudget),
		opts:     opts,
		logger:   logger,
		now:      time.Now,
		textarea: ta,
		viewport: viewport.New(80, 20),
		spinner:  s,
		follow:   true,
		styles:   st,
		render:   newRenderer(st, 80),
		keys:     DefaultKeyMap(),
		width:    80,
		height:   24,
	}
}

func (m *ChatTUI) Init() tea.Cmd {
	cmds := []tea.Cmd{
		textarea.Blink,
		waitFrame(m.stream),
		waitState(m.stream),
		m.loadAgents(),
		m.loadSlashCommands(),
	}
	if m.opts.Agent != "" {
		m.autoPicked = true
		cmds = append(cmds, m.selectAgent(m.opts.Agent, m.opts.Session))
	}
	return tea.Batch(cmds...)
}

func (m *ChatTUI) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	cmd := m.update(msg)
	m.layout()
	return m, cmd
}

func (m *ChatTUI) update(msg tea.Msg) tea.Cmd {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

		// border (2) + padding (2) + prompt (2)
		textareaWidth := m.width - 6
		if textareaWidth < 1 {
			textareaWidth = 1
		}
		m.textarea.SetWidth(textareaWidth)
		m.adjustTextareaHeight()
		m.render.resize(m.width)
		m.initialized = true
		m.refresh()

		if m.picker != nil {
			var cmd tea.Cmd
			m.picker, cmd = m.picker.Update(msg)
			return cmd
		}
		return nil

	case tea.KeyMsg:
		if m.picker != nil {
			if key.Matches(msg, m.keys.Quit) {
				return m.quit()
			}
			var cmd tea.Cmd
			m.picker, cmd = m.picker.Update(msg)
			return cmd
		}
		return m.handleKey(msg)

	case spinner.TickMsg:
		if !m.busy() {
			m.spinning = false
			return nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return cmd

	case frameMsg:
		return tea.Batch(waitFrame(m.stream), m.applyFrame(msg.data))

	case streamClosedMsg:
		m.logger.Debug("stream_closed")
		return nil

	case connStateMsg:
		return tea.Batch(waitState(m.stream), m.applyConnState(msg.state))

	case agentsLoadedMsg:
		return m.applyAgents(msg)

	case sessionsLoadedMsg:
		return m.applySessions(msg)

	case transcriptLoadedMsg:
		if msg.err != nil {
			m.logger.Warn("transcript_fetch_failed", "session", msg.session, "err", msg.err)
			if m.view.SetError(msg.gen, fmt.Errorf("failed to load transcript: %w", msg.err)) {
				m.refresh()
			}
			return nil
		}
		if m.view.SetPersisted(msg.gen, msg.session, msg.messages) {
			m.logger.Debug("transcript_loaded", "session", msg.session, "messages", len(msg.messages))
			m.view.SetError(msg.gen, nil)
			m.follow = true
			m.refresh()
		}
		return nil

	case receiptsLoadedMsg:
		if msg.err != nil {
			m.logger.Warn("receipts_fetch_failed", "session", msg.session, "err", msg.err)
			if m.view.SetError(msg.gen, fmt.Errorf("failed to load receipts: %w", msg.err)) {
				m.refresh()
			}
			return nil
		}
		if m.view.AddReceipts(msg.gen, msg.session, msg.receipts) {
			m.refresh()
		}
		return nil

	case slashLoadedMsg:
		if msg.err != nil {
			m.logger.Warn("slash_commands_failed", "err", msg.err)
			return nil
		}
		m.suggest.commands = commandEntries(msg.commands)
		return nil

	case revealTickMsg:
		more := m.view.Tick(msg.gen, m.now())
		if msg.gen != m.view.Generation() {
			return nil
		}
		m.refresh()
		if more {
			return revealTick(m.opts.RevealInterval, msg.gen)
		}
		return nil

	case bannerClearMsg:
		m.view.ClearBanner(msg.gen)
		return nil

	case clearTransientNoticeMsg:
		if msg.id == m.transientNoticeID {
			m.transientNotice = ""
		}
		return nil

	case agentChosenMsg:
		m.picker = nil
		if msg.id == m.view.Agent() {
			return nil
		}
		return m.selectAgent(msg.id, "")

	case sessionChosenMsg:
		m.picker = nil
		if msg.id == m.view.Session() {
			return nil
		}
		return m.selectSession(msg.id)

	case pickerCancelMsg:
		m.picker = nil
		return nil
	}

	// Everything else (list filtering, cursor blink, mouse) goes to the
	// focused component
	if m.picker != nil {
		var cmd tea.Cmd
		m.picker, cmd = m.picker.Update(msg)
		return cmd
	}
	var cmds []tea.Cmd
	var cmd tea.Cmd
	m.textarea, cmd = m.textarea.Update(msg)
	cmds = append(cmds, cmd)
	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)
	m.follow = m.viewport.AtBottom()
	return tea.Batch(cmds...)
}

func (m *ChatTUI) handleKey(msg tea.KeyMsg) tea.Cmd {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m.quit()
	case key.Matches(msg, m.keys.Agents):
		return m.openAgentPicker()
	case key.Matches(msg, m.keys.Sessions):
		return m.openSessionPicker()
	case key.Matches(msg, m.keys.Jump):
		return m.jump()
	case key.Matches(msg, m.keys.PageUp), key.Matches(msg, m.keys.PageDown):
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		m.follow = m.viewport.AtBottom()
		return cmd
	}

	switch msg.Type {
	case tea.KeyEsc:
		if m.suggest.active() {
			m.suggest.hide()
			return nil
		}
		m.transientNotice = ""
		return nil

	case tea.KeyUp:
		if m.suggest.active() {
			m.suggest.up()
			return nil
		}

	case tea.KeyDown:
		if m.suggest.active() {
			m.suggest.down()
			return nil
		}

	case tea.KeyTab:
		if m.suggest.active() && chat.IsSlash(m.textarea.Value()) {
			m.acceptSuggestion()
			return nil
		}

	case tea.KeyEnter:
		return m.send()
	}

	var cmd tea.Cmd
	m.textarea, cmd = m.textarea.Update(msg)
	m.suggest.update(m.textarea.Value())
	m.adjustTextareaHeight()
	return cmd
}

// acceptSuggestion fills the compose box with the selected command. It never
// sends.
func (m *ChatTUI) acceptSuggestion() {
	m.textarea.SetValue(m.suggest.complete(m.textarea.Value()))
	m.suggest.hide()
	m.adjustTextareaHeight()
}

// send delivers the compose text to the selected agent. A failed send keeps
// the text in the box and adds nothing to the transcript. While the slash
// menu is open and the typed command is incomplete, enter accepts the
// selected suggestion instead of sending.
func (m *ChatTUI) send() tea.Cmd {
	text := strings.TrimSpace(m.textarea.Value())
	if text == "" {
		return nil
	}
	if m.suggest.active() && chat.IsSlash(text) && !m.suggest.isCommand(text) {
		m.acceptSuggestion()
		return nil
	}

	agent := m.view.Agent()
	if agent == "" {
		return m.showTransientNotice("Select an agent first (ctrl+a)")
	}
	if err := m.stream.SendCommand(text, agent); err != nil {
		m.logger.Warn("send_failed", "agent", agent, "err", err)
		return m.showTransientNotice(fmt.Sprintf("Not sent: %v. Your message was kept.", err))
	}
	m.logger.Debug("send", "agent", agent, "session", m.view.Session(), "text", trace.Truncate(text, 512))

	m.textarea.Reset()
	m.textarea.SetHeight(1)
	m.suggest.hide()

	m.view.Compose(text, m.now())
	m.follow = true
	m.refresh()
	return m.ensureSpinner()
}

func (m *ChatTUI) applyFrame(data []byte) tea.Cmd {
	ev, err := event.Decode(data)
	if err != nil {
		m.logger.Debug("frame_dropped", "err", err, "frame", trace.Truncate(string(data), 200))
		return nil
	}
	m.logger.Debug("frame", "kind", event.Classify(ev), "agent", ev.AgentName(), "session", ev.SessionName())
	return m.applyEffects(m.view.Apply(ev, m.now()))
}

func (m *ChatTUI) applyEffects(eff chat.Effects) tea.Cmd {
	var cmds []tea.Cmd
	if eff.Changed {
		m.refresh()
	}
	if eff.StartReveal {
		cmds = append(cmds, revealTick(m.opts.RevealInterval, m.view.Generation()))
	}
	if eff.ClearBanner {
		cmds = append(cmds, bannerClear(m.opts.BannerQuiet, eff.ClearBannerGen))
	}
	if eff.RefreshAgents {
		cmds = append(cmds, m.loadAgents())
	}
	if eff.AdoptSession != "" {
		m.logger.Info("session_adopt", "agent", m.view.Agent(), "session", eff.AdoptSession)
		cmds = append(cmds, m.selectSession(eff.AdoptSession))
	}
	if eff.RefreshSessions {
		cmds = append(cmds, m.loadSessions("", false))
	}
	cmds = append(cmds, m.ensureSpinner())
	return tea.Batch(cmds...)
}

// applyConnState records the socket state. After a reconnect the viewed
// session is fetched again; merging makes the refetch idempotent.
func (m *ChatTUI) applyConnState(st transport.ConnState) tea.Cmd {
	wasConnected := m.conn.Connected
	reconnected := st.Connected && !wasConnected && m.connSeen
	m.conn = st
	m.connSeen = true

	if st.Connected {
		m.logger.Info("socket_open")
	} else {
		m.logger.Info("socket_down", "attempt", st.Attempt, "retry", st.Retry, "err", st.Err)
	}

	if !reconnected || m.view.Session() == "" {
		return nil
	}
	gen, agent, session := m.view.Generation(), m.view.Agent(), m.view.Session()
	return tea.Batch(m.loadTranscript(gen, agent, session), m.loadReceipts(gen, agent, session))
}

func (m *ChatTUI) applyAgents(msg agentsLoadedMsg) tea.Cmd {
	if msg.err != nil {
		m.logger.Warn("agents_fetch_failed", "err", msg.err)
		m.view.SetError(m.view.Generation(), fmt.Errorf("failed to load agents: %w", msg.err))
		return nil
	}
	m.agents = msg.agents
	if p, ok := m.picker.(*AgentPicker); ok {
		p.SetAgents(m.agents, m.view.Agent())
	}

	if m.autoPicked || m.view.Agent() != "" {
		return nil
	}
	m.autoPicked = true
	switch len(m.agents) {
	case 0:
		return m.showTransientNotice("No agents configured on the gateway")
	case 1:
		return m.selectAgent(m.agents[0].ID, "")
	default:
		return m.openAgentPicker()
	}
}

func (m *ChatTUI) applySessions(msg sessionsLoadedMsg) tea.Cmd {
	if msg.agent != m.view.Agent() {
		return nil
	}
	if msg.err != nil {
		m.logger.Warn("sessions_fetch_failed", "agent", msg.agent, "err", msg.err)
		m.view.SetError(msg.gen, fmt.Errorf("failed to load sessions: %w", msg.err))
		return nil
	}
	m.sessions = msg.sessions
	if p, ok := m.picker.(*SessionPicker); ok {
		p.SetSessions(m.sessions, m.view.Session())
	}

	if !msg.pick || msg.gen != m.view.Generation() {
		return nil
	}
	target := msg.want
	if target == "" {
		target = chat.ChooseSession(msg.sessions, msg.current)
	}
	if target == "" || target == m.view.Session() {
		return nil
	}
	return m.selectSession(target)
}

// selectAgent switches agents and then picks session, or the backend's
// choice when session is empty.
func (m *ChatTUI) selectAgent(agent, session string) tea.Cmd {
	m.view.SelectAgent(agent)
	m.sessions = nil
	m.follow = true
	m.logger.Info("agent_select", "agent", agent)

	if m.opts.Config != nil {
		if err := m.opts.Config.SetDefaultAgent(agent); err != nil {
			m.logger.Warn("config_save_failed", "err", err)
		}
	}
	if m.opts.History != nil {
		if err := m.opts.History.Remember(agent, ""); err != nil {
			m.logger.Warn("history_save_failed", "err", err)
		}
	}
	m.refresh()
	return m.loadSessions(session, true)
}

func (m *ChatTUI) selectSession(session string) tea.Cmd {
	agent := m.view.Agent()
	gen := m.view.SelectSession(session)
	m.follow = true
	m.logger.Info("session_select", "agent", agent, "session", session, "gen", gen)

	if m.opts.History != nil {
		if err := m.opts.History.Remember(agent, session); err != nil {
			m.logger.Warn("history_save_failed", "err", err)
		}
	}
	m.refresh()
	return tea.Batch(m.loadTranscript(gen, agent, session), m.loadReceipts(gen, agent, session))
}

// jump follows the other-session banner: the session list is refreshed
// first, then the banner's session is selected.
func (m *ChatTUI) jump() tea.Cmd {
	target, ok := m.view.Jump()
	if !ok {
		return nil
	}
	m.logger.Info("banner_jump", "session", target)
	return m.loadSessions(target, true)
}

func (m *ChatTUI) openAgentPicker() tea.Cmd {
	m.suggest.hide()
	m.picker = NewAgentPicker(m.agents, m.view.Agent(), m.width, m.height)
	return m.loadAgents()
}

func (m *ChatTUI) openSessionPicker() tea.Cmd {
	if m.view.Agent() == "" {
		return m.showTransientNotice("Select an agent first (ctrl+a)")
	}
	m.suggest.hide()
	p := NewSessionPicker(m.view.Agent(), m.sessions, m.view.Session())
	p.width, p.height = m.width, m.height
	m.picker = p
	return m.loadSessions("", false)
}

func (m *ChatTUI) quit() tea.Cmd {
	m.logger.Info("app_quit")
	return tea.Quit
}

func (m *ChatTUI) busy() bool {
	return m.view.Typing() || len(m.view.Tools()) > 0
}

func (m *ChatTUI) ensureSpinner() tea.Cmd {
	if !m.busy() || m.spinning {
		return nil
	}
	m.spinning = true
	return m.spinner.Tick
}

func (m *ChatTUI) showTransientNotice(text string) tea.Cmd {
	m.transientNotice = strings.TrimSpace(text)
	m.transientNoticeID++
	currentID := m.transientNoticeID

	return tea.Tick(transientNoticeTTL, func(time.Time) tea.Msg {
		return clearTransientNoticeMsg{id: currentID}
	})
}

// refresh re-renders the transcript into the viewport
func (m *ChatTUI) refresh() {
	streaming, ok := m.view.Streaming()
	m.viewport.SetContent(m.render.transcript(m.view.Transcript(), streaming, ok))
	if m.follow {
		m.viewport.GotoBottom()
	}
}

// layout gives the viewport whatever height the header and bottom panel
// leave over.
func (m *ChatTUI) layout() {
	h := m.height - lipgloss.Height(m.headerView()) - lipgloss.Height(m.bottomView())
	if h < 1 {
		h = 1
	}
	m.viewport.Width = m.width
	m.viewport.Height = h
	if m.follow {
		m.viewport.GotoBottom()
	}
}

func (m *ChatTUI) adjustTextareaHeight() {
	content := m.textarea.Value()
	if content == "" {
		m.textarea.SetHeight(1)
		return
	}

	// Count lines needed considering word wrapping
	lines := 1
	currentLineLength := 0
	textareaWidth := m.width - 8 // borders, padding and prompt
	if textareaWidth < 1 {
		textareaWidth = 1
	}
	for _, char := range content {
		if char == '\n' {
			lines++
			currentLineLength = 0
		} else {
			currentLineLength++
			if currentLineLength >= textareaWidth {
				lines++
				currentLineLength = 0
			}
		}
	}

	if lines > maxTextareaHeight {
		lines = maxTextareaHeight
	}
	m.textarea.SetHeight(lines)
}

func (m *ChatTUI) View() string {
	if m.picker != nil {
		return m.picker.View()
	}
	return lipgloss.JoinVertical(lipgloss.Left, m.headerView(), m.viewport.View(), m.bottomView())
}

func (m *ChatTUI) headerView() string {
	agent := m.view.Agent()
	if agent == "" {
		agent = "no agent"
	}
	left := m.styles.Header.Render("Pinchy") + m.styles.Info.Render(" | Agent: "+agent)
	if s := m.view.Session(); s != "" {
		left += m.styles.Info.Render(" | Session: " + s)
	}
	right := connectionLabel(m.styles, m.conn, m.connSeen)

	gap := m.width - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 1 {
		return truncateToWidth(left+" "+right, m.width)
	}
	return left + strings.Repeat(" ", gap) + right
}

// bottomView is everything under the transcript: activity, banner, errors,
// the key hints, a transient notice, the compose box and the slash menu.
func (m *ChatTUI) bottomView() string {
	boxWidth := m.width - 2
	if boxWidth < 1 {
		boxWidth = 1
	}
	var lines []string

	if m.busy() {
		activity := "Thinking..."
		if tools := m.view.Tools(); len(tools) > 0 {
			activity = "Running " + strings.Join(tools, ", ") + "..."
		}
		lines = append(lines, truncateToWidth(fmt.Sprintf("%s %s", m.spinner.View(), activity), boxWidth))
	}

	if b := m.view.Banner(); b.Active() {
		text := fmt.Sprintf(" Session %s: %s  [%s] jump ", b.SessionID, b.Detail, m.keys.Jump.Help().Key)
		lines = append(lines, m.styles.Banner.Render(truncateToWidth(text, boxWidth)))
	}

	if errText := m.view.Err(); errText != "" {
		lines = append(lines, truncateToWidth(renderErrorMessage(m.styles, errText), boxWidth))
	}

	hints := make([]string, 0, len(m.keys.ShortHelp()))
	for _, b := range m.keys.ShortHelp() {
		hints = append(hints, b.Help().Key+" "+b.Help().Desc)
	}
	lines = append(lines, m.styles.Info.Render(truncateToWidth(strings.Join(hints, " | "), boxWidth-1)))

	if m.transientNotice != "" {
		lines = append(lines, m.styles.Notice.Render(truncateToWidth(m.transientNotice, boxWidth-1)))
	}

	lines = append(lines, m.styles.Input.Width(boxWidth).Render("> "+m.textarea.View()))

	if menu := m.suggest.view(m.styles, m.width); menu != "" {
		lines = append(lines, strings.TrimRight(menu, "\n"))
	}
	return strings.Join(lines, "\n")
}
