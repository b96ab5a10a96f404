package tui

import (
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nachoal/pinchy-tui/api"
)

func TestSessionPickerNewestFirst(t *testing.T) {
	sessions := []api.Session{
		{SessionID: "old", Size: 2048, Modified: t0.Add(-48 * time.Hour).Unix()},
		{SessionID: "new", Size: 512, Modified: t0.Add(-time.Hour).Unix()},
	}
	p := NewSessionPicker("ops", sessions, "old")
	p.now = func() time.Time { return t0 }

	if p.sessions[0].SessionID != "new" {
		t.Fatalf("expected newest first, got %q", p.sessions[0].SessionID)
	}
	if p.sessions[p.selected].SessionID != "old" {
		t.Fatalf("cursor should start on the viewed session")
	}

	view := stripANSI(p.View())
	for _, want := range []string{"Sessions of ops:", "old (viewing)", "2.0 kB", "1 hour ago", "2 days ago"} {
		if !strings.Contains(view, want) {
			t.Fatalf("view missing %q:\n%s", want, view)
		}
	}

	p.Update(tea.KeyMsg{Type: tea.KeyUp})
	_, cmd := p.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if cmd == nil {
		t.Fatalf("expected a selection command")
	}
	if msg, ok := cmd().(sessionChosenMsg); !ok || msg.id != "new" {
		t.Fatalf("unexpected selection: %#v", cmd())
	}
}

func TestSessionPickerEmpty(t *testing.T) {
	p := NewSessionPicker("ops", nil, "")
	if !strings.Contains(p.View(), "No sessions found for ops") {
		t.Fatalf("unexpected view: %q", p.View())
	}
	_, cmd := p.Update(tea.KeyMsg{Type: tea.KeyEsc})
	if _, ok := cmd().(pickerCancelMsg); !ok {
		t.Fatalf("esc should cancel")
	}
}

func TestAgentPickerSelectsCurrent(t *testing.T) {
	model := "claude-sonnet"
	beat := int64(300)
	agents := []api.Agent{
		{ID: "research"},
		{ID: "ops", Model: model, HeartbeatSecs: &beat, EnabledSkills: []string{"git"}, CronJobsCount: 2},
	}
	p := NewAgentPicker(agents, "research", 80, 20)

	_, cmd := p.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if cmd == nil {
		t.Fatalf("expected a selection command")
	}
	if msg, ok := cmd().(agentChosenMsg); !ok || msg.id != "research" {
		t.Fatalf("unexpected selection: %#v", cmd())
	}

	if got := describeAgent(agents[1]); got != "claude-sonnet · heartbeat 5m0s · 1 skill · 2 cron jobs" {
		t.Fatalf("unexpected description %q", got)
	}
	if got := describeAgent(agents[0]); got != "no details" {
		t.Fatalf("unexpected description %q", got)
	}
}

func TestAgentPickerNoAgents(t *testing.T) {
	p := NewAgentPicker(nil, "", 60, 10)
	if !strings.Contains(stripANSI(p.View()), "no agents configured") {
		t.Fatalf("expected empty state, got %q", stripANSI(p.View()))
	}
}
