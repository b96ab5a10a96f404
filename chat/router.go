package chat

import "github.com/nachoal/pinchy-tui/event"

// Decision is where an inbound event goes
type Decision int

const (
	// Drop discards events for other agents.
	Drop Decision = iota
	// Deliver applies the event to the viewed transcript.
	Deliver
	// Foreign marks activity in another session of the selected agent.
	Foreign
)

func (d Decision) String() string {
	switch d {
	case Drop:
		return "drop"
	case Deliver:
		return "deliver"
	case Foreign:
		return "foreign"
	}
	return "unknown"
}

// Route decides where ev belongs given the selected agent and the viewed
// session. Events without an agent tag are not filtered by agent, and events
// without a session tag always belong to the viewed session.
func Route(ev event.Event, selectedAgent, viewedSession string) Decision {
	if agent := ev.AgentName(); agent != "" && agent != selectedAgent {
		return Drop
	}
	session := ev.SessionName()
	if session == "" || viewedSession == "" || session == viewedSession {
		return Deliver
	}
	return Foreign
}
