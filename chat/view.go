package chat

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nachoal/pinchy-tui/api"
	"github.com/nachoal/pinchy-tui/event"
	"github.com/nachoal/pinchy-tui/transcript"
)

// Effects tells the host which follow-up work an update requires.
type Effects struct {
	// Changed means the rendered state differs.
	Changed bool
	// StartReveal asks the host to start the reveal tick chain for Generation.
	StartReveal bool
	// ClearBanner asks the host to call ClearBanner(ClearBannerGen) after
	// BannerQuietPeriod.
	ClearBanner    bool
	ClearBannerGen uint64
	// RefreshAgents is set on agent_list; Agents carries the ids it listed.
	RefreshAgents bool
	Agents        []string
	// RefreshSessions is set when the selected agent created a session.
	RefreshSessions bool
	// AdoptSession is the new session the view should switch to, if any.
	AdoptSession string
}

// View owns the chat state for one selected agent and viewed session. It is
// not safe for concurrent use; the host applies every update from one loop.
type View struct {
	agent   string
	session string
	gen     uint64

	persisted []transcript.Message
	live      []transcript.Message
	receipts  *transcript.ReceiptBook
	stream    *transcript.Accumulator
	echo      *transcript.EchoFilter

	typing    bool
	awaiting  bool
	revealing bool
	tools     []string
	banner    Banner
	err       string
}

// NewView creates an empty view revealing budget runes per tick.
func NewView(budget int) *View {
	return &View{
		receipts: transcript.NewReceiptBook(),
		stream:   transcript.NewAccumulator(budget),
		echo:     transcript.NewEchoFilter(),
	}
}

// Agent returns the selected agent
func (v *View) Agent() string { return v.agent }

// Session returns the viewed session
func (v *View) Session() string { return v.session }

// Generation changes on every agent or session switch. Results of REST
// fetches and reveal ticks issued under an older generation are stale.
func (v *View) Generation() uint64 { return v.gen }

// SelectAgent switches to agent and forgets the previous agent's session.
func (v *View) SelectAgent(agent string) uint64 {
	v.agent = agent
	v.session = ""
	v.reset()
	return v.gen
}

// SelectSession switches the viewed session of the selected agent.
func (v *View) SelectSession(session string) uint64 {
	v.session = session
	v.reset()
	return v.gen
}

func (v *View) reset() {
	v.gen++
	v.persisted = nil
	v.live = nil
	v.receipts.Reset()
	v.stream.Reset()
	v.echo.Reset()
	v.typing = false
	v.awaiting = false
	v.revealing = false
	v.tools = nil
	v.banner.Dismiss()
	v.err = ""
}

// ChooseSession picks the session to show after an agent switch: the
// backend's current session if it is listed, else the most recently modified
// one, else none.
func ChooseSession(sessions []api.Session, current string) string {
	if current != "" {
		for _, s := range sessions {
			if s.SessionID == current {
				return current
			}
		}
	}
	best := ""
	var newest int64 = -1
	for _, s := range sessions {
		if s.Modified > newest {
			best, newest = s.SessionID, s.Modified
		}
	}
	return best
}

// SetPersisted installs the REST transcript for session. It is ignored when
// the view moved on since gen was issued.
func (v *View) SetPersisted(gen uint64, session string, msgs []transcript.Message) bool {
	if !v.current(gen, session) {
		return false
	}
	v.persisted = msgs
	return true
}

// AddReceipts merges persisted receipts for session, with the same stale guard
// as SetPersisted.
func (v *View) AddReceipts(gen uint64, session string, receipts []transcript.Receipt) bool {
	if !v.current(gen, session) {
		return false
	}
	for _, r := range receipts {
		v.receipts.Add(r)
	}
	return true
}

// SetError shows an inline error for a failed fetch. Live data stays visible.
func (v *View) SetError(gen uint64, err error) bool {
	if gen != v.gen {
		return false
	}
	if err == nil {
		v.err = ""
	} else {
		v.err = err.Error()
	}
	return true
}

func (v *View) current(gen uint64, session string) bool {
	return gen == v.gen && session == v.session
}

// IsSlash reports whether input is a slash command
func IsSlash(input string) bool {
	return strings.HasPrefix(strings.TrimSpace(input), "/")
}

// Compose records text the user just sent. Plain messages are appended at
// once and registered so their echo from the gateway is suppressed. Slash
// commands get no optimistic row.
func (v *View) Compose(text string, now time.Time) (transcript.Message, bool) {
	if IsSlash(text) {
		return transcript.Message{}, false
	}
	msg := transcript.Message{
		ID:        uuid.NewString(),
		Role:      transcript.RoleUser,
		Content:   text,
		Timestamp: now.UnixMilli(),
	}
	v.echo.Register(msg, now)
	v.live = append(v.live, msg)
	v.typing = true
	v.awaiting = true
	return msg, true
}

// Apply folds one inbound event into the view.
func (v *View) Apply(ev event.Event, now time.Time) Effects {
	var eff Effects
	kind := event.Classify(ev)
	switch kind {
	case event.KindIgnore:
		return eff
	case event.KindAgentList:
		eff.RefreshAgents = true
		eff.Agents = ev.Agents
		return eff
	}

	decision := Route(ev, v.agent, v.session)
	if decision == Drop {
		return eff
	}

	if kind == event.KindSessionCreated {
		eff.RefreshSessions = true
		if s := ev.SessionName(); s != "" && s != v.session && (v.session == "" || v.awaiting) {
			eff.AdoptSession = s
		}
		return eff
	}

	if decision == Foreign {
		gen, terminal := v.banner.Observe(ev)
		eff.Changed = true
		if terminal {
			eff.ClearBanner = true
			eff.ClearBannerGen = gen
		}
		return eff
	}

	eff.Changed = true
	switch kind {
	case event.KindTypingStart:
		v.typing = true
	case event.KindTypingStop:
		v.typing = false
		v.awaiting = false
		v.tools = nil
	case event.KindToolStart:
		v.tools = append(v.tools, ev.Tool)
	case event.KindToolEnd:
		v.removeTool(ev.Tool)
	case event.KindToolError:
		v.removeTool(ev.Tool)
		v.appendSystem(fmt.Sprintf("`%s` failed: %s", ev.Tool, ev.Error), now)
	case event.KindStreamDelta:
		if prev, ok := v.stream.Append(ev.Delta); ok {
			v.finalize(prev, now)
		}
		if ev.Done && v.stream.Finish() {
			return eff
		}
		if !v.revealing && v.stream.Active() {
			v.revealing = true
			eff.StartReveal = true
		}
	case event.KindSessionMessage:
		msg := transcript.FromEvent(ev)
		// the persisted copy of a reply that is still being revealed
		if msg.Role == transcript.RoleAssistant && v.stream.Active() && v.stream.Text() == msg.Content {
			eff.Changed = false
			return eff
		}
		if v.echo.Suppress(msg, now) {
			eff.Changed = false
			return eff
		}
		v.live = append(v.live, msg)
		if msg.Role == transcript.RoleAssistant {
			v.awaiting = false
		}
	case event.KindSlashResponse:
		v.appendSystem(ev.Response, now)
	case event.KindSlashError:
		v.appendSystem(fmt.Sprintf("%s failed: %s", ev.Command, ev.Error), now)
	case event.KindTurnReceipt:
		eff.Changed = v.receipts.Add(transcript.ReceiptFromEvent(ev))
		v.awaiting = false
	}
	return eff
}

// Tick advances the reveal loop for gen. It reports whether another tick
// should be scheduled. Ticks from an older generation are ignored.
func (v *View) Tick(gen uint64, now time.Time) bool {
	if gen != v.gen || !v.revealing {
		return false
	}
	msg, done := v.stream.Tick()
	if done {
		v.finalize(msg, now)
		v.revealing = false
		return false
	}
	if !v.stream.Active() {
		v.revealing = false
		return false
	}
	return true
}

// finalize adds a completed streamed reply to the live transcript and
// registers it so its persisted echo is not shown again.
func (v *View) finalize(msg transcript.Message, now time.Time) {
	msg.ID = uuid.NewString()
	msg.Timestamp = now.UnixMilli()
	v.echo.Register(msg, now)
	v.live = append(v.live, msg)
	v.awaiting = false
}

// ClearBanner hides the banner if nothing updated it since gen.
func (v *View) ClearBanner(gen uint64) bool {
	return v.banner.ClearIf(gen)
}

// Jump dismisses the banner and returns the session it pointed at. The host
// refreshes the session list and then calls SelectSession.
func (v *View) Jump() (string, bool) {
	if !v.banner.Active() {
		return "", false
	}
	target := v.banner.SessionID
	v.banner.Dismiss()
	return target, true
}

// Transcript returns the merged, receipt-interleaved transcript.
func (v *View) Transcript() []transcript.Entry {
	return transcript.Interleave(transcript.Merge(v.persisted, v.live), v.receipts.Receipts())
}

// Streaming returns the revealed prefix of the in-flight reply
func (v *View) Streaming() (string, bool) {
	if !v.stream.Active() {
		return "", false
	}
	return v.stream.Revealed(), true
}

// Banner returns the other-session banner
func (v *View) Banner() Banner { return v.banner }

// Typing reports whether the agent is working on a reply
func (v *View) Typing() bool { return v.typing }

// Tools returns the tools currently running
func (v *View) Tools() []string { return v.tools }

// Err returns the inline error, if any
func (v *View) Err() string { return v.err }

func (v *View) removeTool(name string) {
	for i, t := range v.tools {
		if t == name {
			v.tools = append(v.tools[:i], v.tools[i+1:]...)
			return
		}
	}
}

func (v *View) appendSystem(text string, now time.Time) {
	v.live = append(v.live, transcript.Message{
		ID:        uuid.NewString(),
		Role:      transcript.RoleSystem,
		Content:   text,
		Timestamp: now.UnixMilli(),
	})
}
