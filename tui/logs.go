package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nachoal/pinchy-tui/transport"
	"github.com/nachoal/pinchy-tui/tui/styles"
)

const logTailCapacity = 2000

// LogStream is the log socket as the tail view uses it
type LogStream interface {
	Frames() <-chan []byte
	States() <-chan transport.ConnState
}

var levelRank = map[string]int{
	"TRACE": 0,
	"DEBUG": 1,
	"INFO":  2,
	"WARN":  3,
	"ERROR": 4,
}

// ParseLevel validates a minimum level name for the tail filter
func ParseLevel(level string) (string, error) {
	up := strings.ToUpper(strings.TrimSpace(level))
	if up == "" {
		return "TRACE", nil
	}
	if up == "WARNING" {
		up = "WARN"
	}
	if _, ok := levelRank[up]; !ok {
		return "", fmt.Errorf("unknown log level %q (want trace, debug, info, warn or error)", level)
	}
	return up, nil
}

// CircularBuffer keeps the most recent lines up to a size limit
type CircularBuffer struct {
	lines    []string
	maxLines int
	total    int
}

// NewCircularBuffer creates a new circular buffer
func NewCircularBuffer(maxLines int) *CircularBuffer {
	return &CircularBuffer{
		lines:    make([]string, 0, maxLines),
		maxLines: maxLines,
	}
}

// Add appends a line, evicting the oldest one when full
func (cb *CircularBuffer) Add(line string) {
	cb.total++
	if len(cb.lines) < cb.maxLines {
		cb.lines = append(cb.lines, line)
		return
	}
	copy(cb.lines, cb.lines[1:])
	cb.lines[len(cb.lines)-1] = line
}

// GetLines returns current lines
func (cb *CircularBuffer) GetLines() []string {
	return cb.lines
}

// Dropped is how many lines were evicted
func (cb *CircularBuffer) Dropped() int {
	if cb.total <= cb.maxLines {
		return 0
	}
	return cb.total - cb.maxLines
}

type logFrameMsg struct{ data []byte }
type logStateMsg struct{ state transport.ConnState }
type logClosedMsg struct{}

// LogTail follows the gateway log stream
type LogTail struct {
	stream   LogStream
	minLevel string
	lines    *CircularBuffer
	filtered int

	viewport viewport.Model
	follow   bool
	styles   *styles.Styles

	conn     transport.ConnState
	connSeen bool
	width    int
	height   int
}

// NewLogTail creates a tail view showing lines at minLevel or above
func NewLogTail(stream LogStream, minLevel string) *LogTail {
	return &LogTail{
		stream:   stream,
		minLevel: minLevel,
		lines:    NewCircularBuffer(logTailCapacity),
		viewport: viewport.New(80, 20),
		follow:   true,
		styles:   styles.NewStyles(styles.Console),
		width:    80,
		height:   24,
	}
}

func (t *LogTail) Init() tea.Cmd {
	return tea.Batch(t.waitFrame(), t.waitState())
}

func (t *LogTail) waitFrame() tea.Cmd {
	return func() tea.Msg {
		data, ok := <-t.stream.Frames()
		if !ok {
			return logClosedMsg{}
		}
		return logFrameMsg{data: data}
	}
}

func (t *LogTail) waitState() tea.Cmd {
	return func() tea.Msg {
		st, ok := <-t.stream.States()
		if !ok {
			return nil
		}
		return logStateMsg{state: st}
	}
}

func (t *LogTail) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		t.width = msg.Width
		t.height = msg.Height
		t.layout()
		return t, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			return t, tea.Quit
		case "f", "end":
			t.follow = true
			t.viewport.GotoBottom()
			return t, nil
		}

	case logFrameMsg:
		t.add(msg.data)
		return t, t.waitFrame()

	case logStateMsg:
		t.conn = msg.state
		t.connSeen = true
		return t, t.waitState()

	case logClosedMsg:
		return t, nil
	}

	var cmd tea.Cmd
	t.viewport, cmd = t.viewport.Update(msg)
	t.follow = t.viewport.AtBottom()
	return t, cmd
}

func (t *LogTail) add(data []byte) {
	line, err := transport.DecodeLogLine(data)
	if err != nil {
		return
	}
	if rank, ok := levelRank[line.Level]; ok && rank < levelRank[t.minLevel] {
		t.filtered++
		return
	}
	t.lines.Add(t.format(line))
	t.viewport.SetContent(strings.Join(t.lines.GetLines(), "\n"))
	if t.follow {
		t.viewport.GotoBottom()
	}
}

func (t *LogTail) format(l transport.LogLine) string {
	level := fmt.Sprintf("%-5s", l.Level)
	switch l.Level {
	case "ERROR":
		level = t.styles.ToolError.Render(level)
	case "WARN":
		level = t.styles.ToolRunning.Render(level)
	case "INFO":
		level = t.styles.ToolSuccess.Render(level)
	default:
		level = t.styles.Label.Render(level)
	}

	parts := []string{t.styles.Timestamp.Render(shortTimestamp(l.Timestamp)), level}
	if l.Target != "" {
		parts = append(parts, t.styles.Info.Render(l.Target))
	}
	parts = append(parts, l.Message)
	for _, k := range l.FieldKeys() {
		parts = append(parts, t.styles.Label.Render(fmt.Sprintf("%s=%v", k, l.Fields[k])))
	}
	return strings.Join(parts, " ")
}

// shortTimestamp keeps the time of day of an RFC 3339 timestamp
func shortTimestamp(ts string) string {
	if i := strings.IndexByte(ts, 'T'); i >= 0 {
		ts = ts[i+1:]
	}
	if i := strings.IndexAny(ts, "Z+"); i >= 0 {
		ts = ts[:i]
	}
	if len(ts) > 12 {
		ts = ts[:12]
	}
	return ts
}

func (t *LogTail) layout() {
	h := t.height - lipgloss.Height(t.headerView())
	if h < 1 {
		h = 1
	}
	t.viewport.Width = t.width
	t.viewport.Height = h
	if t.follow {
		t.viewport.GotoBottom()
	}
}

func (t *LogTail) headerView() string {
	info := fmt.Sprintf("Gateway logs | level >= %s | %d lines", t.minLevel, len(t.lines.GetLines()))
	if t.filtered > 0 {
		info += fmt.Sprintf(" | %d filtered", t.filtered)
	}
	if n := t.lines.Dropped(); n > 0 {
		info += fmt.Sprintf(" | %d scrolled out", n)
	}
	if !t.follow {
		info += " | paused (f to follow)"
	}
	left := t.styles.Info.Render(info)
	right := connectionLabel(t.styles, t.conn, t.connSeen)
	gap := t.width - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 1 {
		return truncateToWidth(left+" "+right, t.width)
	}
	return left + strings.Repeat(" ", gap) + right
}

func (t *LogTail) View() string {
	return lipgloss.JoinVertical(lipgloss.Left, t.headerView(), t.viewport.View())
}
