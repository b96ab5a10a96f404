package transcript

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/nachoal/pinchy-tui/event"
)

// Role of a transcript message
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Kind distinguishes tool rows, which display like system rows
type Kind string

const (
	KindText       Kind = ""
	KindToolCall   Kind = "tool_call"
	KindToolResult Kind = "tool_result"
)

const (
	// keyPrefixLen is how much content participates in a dedup key.
	keyPrefixLen = 200

	// millisThreshold separates epoch milliseconds from epoch seconds.
	millisThreshold = 1_000_000_000_000
)

// Message is one turn in a conversation. Timestamp is epoch milliseconds,
// zero when unknown.
type Message struct {
	ID        string `json:"id,omitempty" yaml:"id,omitempty"`
	Role      Role   `json:"role" yaml:"role"`
	Kind      Kind   `json:"kind,omitempty" yaml:"kind,omitempty"`
	Content   string `json:"content" yaml:"content"`
	Timestamp int64  `json:"timestamp,omitempty" yaml:"timestamp,omitempty"`
}

// NormalizeTimestamp converts an epoch value in seconds or milliseconds to
// milliseconds. Values above 10^12 are already milliseconds.
func NormalizeTimestamp(v int64) int64 {
	if v <= 0 {
		return 0
	}
	if v > millisThreshold {
		return v
	}
	return v * 1000
}

// NormalizeRole maps wire roles onto display roles
func NormalizeRole(role string) (Role, Kind) {
	switch strings.ToLower(strings.TrimSpace(role)) {
	case "user":
		return RoleUser, KindText
	case "assistant":
		return RoleAssistant, KindText
	case "tool_call", "function_call":
		return RoleSystem, KindToolCall
	case "tool", "tool_result", "function":
		return RoleSystem, KindToolResult
	default:
		return RoleSystem, KindText
	}
}

// FromWire builds a message from the role/content/timestamp triple that both
// the REST session endpoint and session_message events carry.
func FromWire(role string, content json.RawMessage, timestamp int64) Message {
	r, k := NormalizeRole(role)
	return Message{
		Role:      r,
		Kind:      k,
		Content:   event.Text(content),
		Timestamp: NormalizeTimestamp(timestamp),
	}
}

// FromEvent builds a message from a session_message event
func FromEvent(ev event.Event) Message {
	return FromWire(ev.Role, ev.Content, ev.Timestamp)
}

// IsTool reports whether the message is a tool call or tool result row
func (m Message) IsTool() bool {
	return m.Kind == KindToolCall || m.Kind == KindToolResult
}

// BaseKey identifies a message by role and content prefix only.
func (m Message) BaseKey() string {
	role := string(m.Role)
	if m.Kind != KindText {
		role = string(m.Kind)
	}
	content := m.Content
	if r := []rune(content); len(r) > keyPrefixLen {
		content = string(r[:keyPrefixLen])
	}
	return role + "|" + content
}

// Key refines BaseKey with the timestamp when it is known.
func (m Message) Key() string {
	if m.Timestamp == 0 {
		return m.BaseKey()
	}
	return m.BaseKey() + "|" + strconv.FormatInt(m.Timestamp, 10)
}
