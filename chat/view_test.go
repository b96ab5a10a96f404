package chat

import (
	"strings"
	"testing"
	"time"

	"github.com/nachoal/pinchy-tui/api"
	"github.com/nachoal/pinchy-tui/event"
	"github.com/nachoal/pinchy-tui/transcript"
)

var t0 = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func mustDecode(t *testing.T, frame string) event.Event {
	t.Helper()
	ev, err := event.Decode([]byte(frame))
	if err != nil {
		t.Fatalf("decode %s: %v", frame, err)
	}
	return ev
}

func contents(entries []transcript.Entry) []string {
	var out []string
	for _, e := range entries {
		if e.Message != nil {
			out = append(out, string(e.Message.Role)+":"+e.Message.Content)
		}
	}
	return out
}

func newViewing(agent, session string) *View {
	v := NewView(4)
	v.SelectAgent(agent)
	v.SelectSession(session)
	return v
}

func TestRoute(t *testing.T) {
	cases := []struct {
		name   string
		frame  string
		viewed string
		want   Decision
	}{
		{"other agent", `{"type":"typing_start","agent":"other","session":"A"}`, "A", Drop},
		{"same session", `{"type":"typing_start","agent":"ops","session":"A"}`, "A", Deliver},
		{"no session tag", `{"type":"slash_response","agent":"ops","response":"ok"}`, "A", Deliver},
		{"agent_id alias", `{"type":"tool_start","agent_id":"ops","session_id":"B","tool":"x"}`, "A", Foreign},
		{"nothing viewed", `{"type":"typing_start","agent":"ops","session":"B"}`, "", Deliver},
		{"untagged", `{"type":"agent_list","agents":["ops"]}`, "A", Deliver},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Route(mustDecode(t, tc.frame), "ops", tc.viewed); got != tc.want {
				t.Fatalf("got %v want %v", got, tc.want)
			}
		})
	}
}

func TestForeignSessionOnlyUpdatesBanner(t *testing.T) {
	v := newViewing("ops", "A")
	v.SetPersisted(v.Generation(), "A", []transcript.Message{{Role: transcript.RoleUser, Content: "hello", Timestamp: t0.UnixMilli()}})

	frames := []string{
		`{"type":"typing_start","agent":"ops","session":"B"}`,
		`{"type":"tool_start","agent":"ops","session":"B","tool":"exec_shell"}`,
		`{"type":"stream_delta","agent":"ops","session":"B","delta":"secret"}`,
		`{"type":"session_message","agent":"ops","session":"B","role":"assistant","content":"secret","timestamp":1740830400}`,
	}
	for _, f := range frames {
		eff := v.Apply(mustDecode(t, f), t0)
		if eff.StartReveal {
			t.Fatalf("foreign delta must not start the reveal loop")
		}
	}

	got := contents(v.Transcript())
	if len(got) != 1 || got[0] != "user:hello" {
		t.Fatalf("foreign content leaked into transcript: %v", got)
	}
	if _, streaming := v.Streaming(); streaming {
		t.Fatalf("foreign delta must not stream into the viewed session")
	}
	b := v.Banner()
	if b.SessionID != "B" || b.Detail != "new message" {
		t.Fatalf("unexpected banner: %+v", b)
	}
	if len(v.Tools()) != 0 || v.Typing() {
		t.Fatalf("foreign activity must not touch the activity panel")
	}
}

func TestBannerClearsAfterTerminalEventOnly(t *testing.T) {
	v := newViewing("ops", "A")
	v.Apply(mustDecode(t, `{"type":"tool_start","agent":"ops","session":"B","tool":"web"}`), t0)
	if v.Banner().Detail != "running `web`" {
		t.Fatalf("unexpected detail %q", v.Banner().Detail)
	}

	eff := v.Apply(mustDecode(t, `{"type":"turn_receipt","agent":"ops","session":"B","started_at":1,"duration_ms":1}`), t0)
	if !eff.ClearBanner {
		t.Fatalf("terminal event should arm a clear")
	}
	stale := eff.ClearBannerGen

	// more foreign activity before the quiet period elapses
	v.Apply(mustDecode(t, `{"type":"typing_start","agent":"ops","session":"B"}`), t0)
	if v.ClearBanner(stale) {
		t.Fatalf("stale clear must not hide a banner updated since")
	}
	if !v.Banner().Active() {
		t.Fatalf("banner should still show")
	}

	eff = v.Apply(mustDecode(t, `{"type":"stream_delta","agent":"ops","session":"B","delta":"","done":true}`), t0)
	if !eff.ClearBanner || !v.ClearBanner(eff.ClearBannerGen) {
		t.Fatalf("current clear should hide the banner")
	}
	if v.Banner().Active() {
		t.Fatalf("banner should be hidden")
	}
}

func TestJumpSwitchesToBannerSession(t *testing.T) {
	v := newViewing("ops", "A")
	v.Apply(mustDecode(t, `{"type":"typing_start","agent":"ops","session":"B"}`), t0)

	target, ok := v.Jump()
	if !ok || target != "B" {
		t.Fatalf("unexpected jump target %q %v", target, ok)
	}
	if v.Banner().Active() {
		t.Fatalf("jump should clear the banner immediately")
	}
	v.SelectSession(target)
	if v.Session() != "B" {
		t.Fatalf("expected viewed session B")
	}
	if _, ok := v.Jump(); ok {
		t.Fatalf("no banner, no jump")
	}
}

func TestOptimisticEchoSuppressedWithinWindow(t *testing.T) {
	v := newViewing("ops", "A")
	if _, ok := v.Compose("status?", t0); !ok {
		t.Fatalf("plain text should produce an optimistic row")
	}
	if !v.Typing() {
		t.Fatalf("compose should show the typing indicator")
	}

	echo := `{"type":"session_message","agent":"ops","session":"A","role":"user","content":"status?","timestamp":1740830410000}`
	v.Apply(mustDecode(t, echo), t0.Add(10*time.Second))
	if got := contents(v.Transcript()); len(got) != 1 {
		t.Fatalf("echo within 30s should be suppressed: %v", got)
	}

	later := `{"type":"session_message","agent":"ops","session":"A","role":"user","content":"status?","timestamp":1740830445000}`
	v.Apply(mustDecode(t, later), t0.Add(45*time.Second))
	if got := contents(v.Transcript()); len(got) != 2 {
		t.Fatalf("a repeat after the window is a new message: %v", got)
	}
}

func TestOptimisticEchoAfter35sNotSuppressed(t *testing.T) {
	v := newViewing("ops", "A")
	v.Compose("status?", t0)
	echo := `{"type":"session_message","agent":"ops","session":"A","role":"user","content":"status?","timestamp":1740830435000}`
	v.Apply(mustDecode(t, echo), t0.Add(35*time.Second))
	if got := contents(v.Transcript()); len(got) != 2 {
		t.Fatalf("echo after 35s must not be suppressed: %v", got)
	}
}

func TestSlashInputHasNoOptimisticRow(t *testing.T) {
	v := newViewing("ops", "A")
	if _, ok := v.Compose("/status", t0); ok {
		t.Fatalf("slash commands are not echoed locally")
	}
	v.Apply(mustDecode(t, `{"type":"slash_response","agent":"ops","command":"/status","response":"all good"}`), t0)
	got := contents(v.Transcript())
	if len(got) != 1 || got[0] != "system:all good" {
		t.Fatalf("unexpected transcript %v", got)
	}
}

func runReveal(v *View, now time.Time) int {
	ticks := 0
	gen := v.Generation()
	for v.Tick(gen, now) {
		ticks++
		if ticks > 1000 {
			break
		}
	}
	return ticks
}

func TestStreamFinalizesIntoTranscript(t *testing.T) {
	v := newViewing("ops", "A")
	eff := v.Apply(mustDecode(t, `{"type":"stream_delta","agent":"ops","session":"A","delta":"Hel"}`), t0)
	if !eff.StartReveal {
		t.Fatalf("first delta should start the reveal loop")
	}
	eff = v.Apply(mustDecode(t, `{"type":"stream_delta","agent":"ops","session":"A","delta":"lo","done":true}`), t0)
	if eff.StartReveal {
		t.Fatalf("reveal loop already running")
	}

	// persisted copy arrives before the reveal caught up
	v.Apply(mustDecode(t, `{"type":"session_message","agent":"ops","session":"A","role":"assistant","content":"Hello","timestamp":1740830400000}`), t0)

	runReveal(v, t0)
	got := contents(v.Transcript())
	if len(got) != 1 || got[0] != "assistant:Hello" {
		t.Fatalf("unexpected transcript %v", got)
	}
	if _, streaming := v.Streaming(); streaming {
		t.Fatalf("stream should be finalized")
	}

	// the echo of the finalized reply is suppressed too
	v.Apply(mustDecode(t, `{"type":"session_message","agent":"ops","session":"A","role":"assistant","content":"Hello","timestamp":1740830401000}`), t0.Add(time.Second))
	if got := contents(v.Transcript()); len(got) != 1 {
		t.Fatalf("finalized reply echoed twice: %v", got)
	}
}

func TestSessionSwitchClearsStreamingState(t *testing.T) {
	v := newViewing("ops", "X")
	v.Apply(mustDecode(t, `{"type":"typing_start","agent":"ops","session":"X"}`), t0)
	v.Apply(mustDecode(t, `{"type":"tool_start","agent":"ops","session":"X","tool":"web"}`), t0)
	v.Apply(mustDecode(t, `{"type":"stream_delta","agent":"ops","session":"X","delta":"partial repl"}`), t0)
	oldGen := v.Generation()
	v.Tick(oldGen, t0)

	v.SelectSession("Y")
	if _, streaming := v.Streaming(); streaming {
		t.Fatalf("partial buffer from X survived the switch")
	}
	if v.Typing() || len(v.Tools()) != 0 || v.Banner().Active() {
		t.Fatalf("activity from X survived the switch")
	}
	if v.Tick(oldGen, t0) {
		t.Fatalf("stale reveal tick must stop")
	}
	if len(v.Transcript()) != 0 {
		t.Fatalf("Y should start empty")
	}

	// late X delta is now foreign
	v.Apply(mustDecode(t, `{"type":"stream_delta","agent":"ops","session":"X","delta":"y","done":true}`), t0)
	if _, streaming := v.Streaming(); streaming {
		t.Fatalf("X delta streamed into Y")
	}
}

func TestStaleFetchIgnored(t *testing.T) {
	v := newViewing("ops", "A")
	genA := v.Generation()
	v.SelectSession("B")

	msgs := []transcript.Message{{Role: transcript.RoleUser, Content: "from A"}}
	if v.SetPersisted(genA, "A", msgs) {
		t.Fatalf("fetch for A applied after switching to B")
	}
	if v.AddReceipts(genA, "A", []transcript.Receipt{{StartedAt: 1}}) {
		t.Fatalf("receipts for A applied after switching to B")
	}
	if !v.SetPersisted(v.Generation(), "B", []transcript.Message{{Role: transcript.RoleUser, Content: "from B"}}) {
		t.Fatalf("current fetch rejected")
	}
	got := contents(v.Transcript())
	if len(got) != 1 || got[0] != "user:from B" {
		t.Fatalf("unexpected transcript %v", got)
	}
}

func TestSessionCreatedAdoption(t *testing.T) {
	v := NewView(4)
	v.SelectAgent("ops")
	eff := v.Apply(mustDecode(t, `{"type":"session_created","agent":"ops","session":"N"}`), t0)
	if !eff.RefreshSessions || eff.AdoptSession != "N" {
		t.Fatalf("nothing viewed: new session should be adopted: %+v", eff)
	}

	v.SelectSession("A")
	eff = v.Apply(mustDecode(t, `{"type":"session_created","agent":"ops","session":"M"}`), t0)
	if eff.AdoptSession != "" || !eff.RefreshSessions {
		t.Fatalf("idle view should only refresh: %+v", eff)
	}

	v.Compose("start over please", t0)
	eff = v.Apply(mustDecode(t, `{"type":"session_created","agent":"ops","session":"M"}`), t0)
	if eff.AdoptSession != "M" {
		t.Fatalf("awaiting a reply: rotation should be followed: %+v", eff)
	}

	eff = v.Apply(mustDecode(t, `{"type":"session_created","agent":"other","session":"Z"}`), t0)
	if eff.RefreshSessions {
		t.Fatalf("other agent's session must be ignored")
	}
}

func TestReceiptsInterleaveLive(t *testing.T) {
	v := newViewing("ops", "A")
	v.Compose("hi", t0)
	v.Apply(mustDecode(t, `{"type":"stream_delta","agent":"ops","session":"A","delta":"hey","done":true}`), t0)
	runReveal(v, t0.Add(2*time.Second))
	v.Apply(mustDecode(t, `{"type":"turn_receipt","agent":"ops","session":"A","started_at":1740830400000,"duration_ms":1500,"tokens":{"prompt_tokens":5,"completion_tokens":1,"total_tokens":6}}`), t0.Add(2*time.Second))

	entries := v.Transcript()
	if len(entries) != 3 || entries[2].Receipt == nil {
		t.Fatalf("receipt should follow the reply: %+v", entries)
	}
	eff := v.Apply(mustDecode(t, `{"type":"turn_receipt","agent":"ops","session":"A","started_at":1740830400000,"duration_ms":1500}`), t0)
	if eff.Changed {
		t.Fatalf("duplicate receipt should not change the view")
	}
}

func TestAgentSwitchDropsPreviousAgentEvents(t *testing.T) {
	v := newViewing("ops", "A")
	v.SelectAgent("research")
	if v.Session() != "" {
		t.Fatalf("agent switch must forget the previous session")
	}
	eff := v.Apply(mustDecode(t, `{"type":"typing_start","agent":"ops","session":"A"}`), t0)
	if eff.Changed || v.Typing() {
		t.Fatalf("events for the previous agent must be dropped")
	}
}

func TestChooseSession(t *testing.T) {
	sessions := []api.Session{
		{SessionID: "old", Modified: 100},
		{SessionID: "new", Modified: 300},
		{SessionID: "mid", Modified: 200},
	}
	if got := ChooseSession(sessions, "mid"); got != "mid" {
		t.Fatalf("current session should win, got %q", got)
	}
	if got := ChooseSession(sessions, "gone"); got != "new" {
		t.Fatalf("missing current should fall back to newest, got %q", got)
	}
	if got := ChooseSession(nil, "x"); got != "" {
		t.Fatalf("no sessions, got %q", got)
	}
}

func TestToolErrorAddsSystemRow(t *testing.T) {
	v := newViewing("ops", "A")
	v.Apply(mustDecode(t, `{"type":"tool_start","agent":"ops","session":"A","tool":"exec_shell"}`), t0)
	v.Apply(mustDecode(t, `{"type":"tool_error","agent":"ops","session":"A","tool":"exec_shell","error":"exit 1"}`), t0)
	if len(v.Tools()) != 0 {
		t.Fatalf("failed tool should leave the activity panel")
	}
	got := contents(v.Transcript())
	if len(got) != 1 || got[0] != "system:`exec_shell` failed: exit 1" {
		t.Fatalf("unexpected transcript %v", got)
	}
}

func TestBackToBackStreamedTurnsStaySeparate(t *testing.T) {
	v := newViewing("ops", "A")
	gen := v.Generation()
	long := strings.Repeat("a", 60)

	v.Apply(mustDecode(t, `{"type":"stream_delta","agent":"ops","session":"A","delta":"`+long+`","done":true}`), t0)
	v.Tick(gen, t0)
	// a cron turn starts while the first reply is still being revealed
	v.Apply(mustDecode(t, `{"type":"stream_delta","agent":"ops","session":"A","delta":"second","done":true}`), t0.Add(time.Second))
	for i := 0; i < 10 && v.Tick(gen, t0.Add(2*time.Second)); i++ {
	}

	got := contents(v.Transcript())
	want := []string{"assistant:" + long, "assistant:second"}
	if len(got) != 2 || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("turns collapsed or lost: %v", got)
	}

	// persisted echoes of both replies are suppressed
	for _, content := range []string{long, "second"} {
		v.Apply(mustDecode(t, `{"type":"session_message","agent":"ops","session":"A","role":"assistant","content":"`+content+`"}`), t0.Add(3*time.Second))
	}
	if got := contents(v.Transcript()); len(got) != 2 {
		t.Fatalf("echo of a finalized reply rendered again: %v", got)
	}
}

func TestRepeatedSendsSuppressEachEcho(t *testing.T) {
	v := newViewing("ops", "A")
	v.Compose("status?", t0)
	v.Compose("status?", t0.Add(2*time.Second))

	for i := 0; i < 2; i++ {
		v.Apply(mustDecode(t, `{"type":"session_message","agent":"ops","session":"A","role":"user","content":"status?"}`), t0.Add(time.Duration(3+i)*time.Second))
	}

	got := contents(v.Transcript())
	if len(got) != 2 {
		t.Fatalf("expected the two optimistic rows only, got %v", got)
	}
}
