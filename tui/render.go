package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/x/ansi"
	"github.com/dustin/go-humanize"
	"github.com/muesli/reflow/wordwrap"

	"github.com/nachoal/pinchy-tui/transcript"
	"github.com/nachoal/pinchy-tui/transport"
	"github.com/nachoal/pinchy-tui/tui/styles"
)

const (
	assistantMessageWrapWidth = 74
	maxToolArgDisplayLen      = 140
	minWrapWidth              = 20
)

// renderer turns transcript entries into terminal text. Assistant markdown
// goes through glamour and is cached by message key, since the transcript is
// re-rendered on every update.
type renderer struct {
	styles *styles.Styles
	md     *glamour.TermRenderer
	width  int
	cache  map[string]string
}

func newRenderer(s *styles.Styles, width int) *renderer {
	r := &renderer{styles: s}
	r.resize(width)
	return r
}

func (r *renderer) resize(width int) {
	wrap := width - 4
	if wrap > assistantMessageWrapWidth {
		wrap = assistantMessageWrapWidth
	}
	if wrap < minWrapWidth {
		wrap = minWrapWidth
	}
	if r.md != nil && wrap == r.width {
		return
	}
	r.width = wrap
	r.cache = make(map[string]string)
	// Non-colored markdown stays readable across terminal themes
	r.md, _ = glamour.NewTermRenderer(
		glamour.WithStandardStyle("notty"),
		glamour.WithWordWrap(wrap),
	)
}

func (r *renderer) transcript(entries []transcript.Entry, streaming string, isStreaming bool) string {
	blocks := make([]string, 0, len(entries)+1)
	for _, e := range entries {
		switch {
		case e.Message != nil:
			blocks = append(blocks, r.message(*e.Message))
		case e.Receipt != nil:
			blocks = append(blocks, r.receipt(*e.Receipt))
		}
	}
	if isStreaming {
		blocks = append(blocks, r.streaming(streaming))
	}
	return strings.Join(blocks, "\n\n")
}

func (r *renderer) message(m transcript.Message) string {
	switch {
	case m.IsTool():
		return r.styles.ToolMessage.Render(wordwrap.String(toolLine(m), r.width))
	case m.Role == transcript.RoleUser:
		return renderUserMessage(r.styles, wordwrap.String(m.Content, r.width))
	case m.Role == transcript.RoleAssistant:
		key := fmt.Sprintf("%s|%d", m.Key(), len(m.Content))
		if out, ok := r.cache[key]; ok {
			return out
		}
		out := renderAssistantMessage(r.styles, r.md, m.Content)
		r.cache[key] = out
		return out
	default:
		return renderCommandMessage(r.styles, wordwrap.String(m.Content, r.width))
	}
}

func (r *renderer) streaming(text string) string {
	body := r.styles.Streaming.Render(wordwrap.String(text, r.width) + "▍")
	return fmt.Sprintf("%s\n%s", r.styles.RenderRole("assistant"), body)
}

func (r *renderer) receipt(rc transcript.Receipt) string {
	lines := []string{r.styles.Receipt.Render(ReceiptSummary(rc))}
	for _, tc := range rc.ToolCalls {
		line := fmt.Sprintf("   %s %s %s", r.styles.RenderToolStatus(tc.Success), tc.Name, formatMillis(tc.DurationMS))
		if tc.ArgsSummary != "" {
			line += " " + r.styles.Label.Render(truncateToWidth(tc.ArgsSummary, maxToolArgDisplayLen))
		}
		if !tc.Success && tc.Error != "" {
			line += " " + r.styles.ToolError.Render(truncateToWidth(tc.Error, maxToolArgDisplayLen))
		}
		lines = append(lines, truncateToWidth(line, r.width+4))
	}
	if rc.ReplySummary != "" {
		lines = append(lines, r.styles.Label.Render(wordwrap.String("   ↳ "+rc.ReplySummary, r.width)))
	}
	return strings.Join(lines, "\n")
}

// ReceiptSummary is the one-line turn summary, e.g.
// "⎿ 3.2s · 1,234 tokens (1,000 in / 234 out) · 2 model calls · 3 tools (1 failed)"
func ReceiptSummary(rc transcript.Receipt) string {
	parts := []string{formatMillis(rc.DurationMS)}
	if rc.Tokens.Total > 0 {
		parts = append(parts, fmt.Sprintf("%s tokens (%s in / %s out)",
			humanize.Comma(rc.Tokens.Total),
			humanize.Comma(rc.Tokens.Prompt),
			humanize.Comma(rc.Tokens.Completion)))
	}
	if rc.ModelCalls > 0 {
		parts = append(parts, plural(rc.ModelCalls, "model call"))
	}
	if n := len(rc.ToolCalls); n > 0 {
		tools := plural(n, "tool")
		failed := 0
		for _, tc := range rc.ToolCalls {
			if !tc.Success {
				failed++
			}
		}
		if failed > 0 {
			tools += fmt.Sprintf(" (%d failed)", failed)
		}
		parts = append(parts, tools)
	}
	return "⎿ " + strings.Join(parts, " · ")
}

func toolLine(m transcript.Message) string {
	content := strings.Join(strings.Fields(m.Content), " ")
	if len(content) > maxToolArgDisplayLen {
		content = content[:maxToolArgDisplayLen-1] + "…"
	}
	if m.Kind == transcript.KindToolCall {
		return "🔧 Calling tool: " + content
	}
	return "↳ " + content
}

func formatMillis(ms int64) string {
	d := time.Duration(ms) * time.Millisecond
	switch {
	case d < time.Second:
		return d.String()
	case d < time.Minute:
		return d.Round(100 * time.Millisecond).String()
	default:
		return d.Round(time.Second).String()
	}
}

func plural(n int, word string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", word)
	}
	return fmt.Sprintf("%d %ss", n, word)
}

// connectionLabel is the header indicator for the operator socket
func connectionLabel(s *styles.Styles, st transport.ConnState, seen bool) string {
	switch {
	case st.Connected:
		return s.Connected.Render("● connected")
	case !seen:
		return s.Disconnected.Render("○ connecting…")
	case st.Retry > 0:
		return s.Disconnected.Render(fmt.Sprintf("○ reconnecting in %s (attempt %d)", st.Retry.Round(100*time.Millisecond), st.Attempt))
	default:
		return s.Disconnected.Render("○ disconnected")
	}
}

func renderUserMessage(s *styles.Styles, content string) string {
	return fmt.Sprintf("%s %s", s.RenderRole("user"), s.UserMessage.Render(content))
}

func renderAssistantMessage(s *styles.Styles, md *glamour.TermRenderer, content string) string {
	if md != nil {
		rendered, err := md.Render(content)
		if err == nil {
			return fmt.Sprintf("%s\n%s", s.RenderRole("assistant"), strings.Trim(rendered, "\n"))
		}
	}
	// Fallback without glamour
	return fmt.Sprintf("%s %s", s.RenderRole("assistant"), content)
}

func renderCommandMessage(s *styles.Styles, content string) string {
	return s.SystemMessage.Render(content)
}

func renderErrorMessage(s *styles.Styles, content string) string {
	return s.ErrorMessage.Render(fmt.Sprintf("❌ %s", content))
}

// truncateToWidth cuts s to max terminal cells, ANSI sequences included.
func truncateToWidth(s string, max int) string {
	if max <= 0 {
		return ""
	}
	return ansi.Truncate(s, max, "…")
}
