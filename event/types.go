package event

import (
	"encoding/json"
	"strings"
)

// Kind is the closed set of event kinds the console reacts to
type Kind string

const (
	KindTypingStart    Kind = "typing_start"
	KindTypingStop     Kind = "typing_stop"
	KindToolStart      Kind = "tool_start"
	KindToolEnd        Kind = "tool_end"
	KindToolError      Kind = "tool_error"
	KindStreamDelta    Kind = "stream_delta"
	KindSessionMessage Kind = "session_message"
	KindSlashResponse  Kind = "slash_response"
	KindSlashError     Kind = "slash_error"
	KindTurnReceipt    Kind = "turn_receipt"
	KindSessionCreated Kind = "session_created"
	KindAgentList      Kind = "agent_list"
	KindIgnore         Kind = "ignore"
)

// Event is one frame of the operator stream. Every variant's optional fields
// are listed explicitly; a field the backend starts sending has to be added here.
type Event struct {
	Type string `json:"type"`

	// Routing. The backend is inconsistent about the field names.
	Agent     string `json:"agent,omitempty"`
	AgentID   string `json:"agent_id,omitempty"`
	Session   string `json:"session,omitempty"`
	SessionID string `json:"session_id,omitempty"`
	Timestamp int64  `json:"timestamp,omitempty"`

	// tool_start, tool_end, tool_error
	Tool  string `json:"tool,omitempty"`
	Error string `json:"error,omitempty"`

	// stream_delta
	Delta string `json:"delta,omitempty"`
	Done  bool   `json:"done,omitempty"`

	// session_message
	Role    string          `json:"role,omitempty"`
	Content json.RawMessage `json:"content,omitempty"`

	// slash_response, slash_error
	Command  string `json:"command,omitempty"`
	Response string `json:"response,omitempty"`

	// agent_list
	Agents []string `json:"agents,omitempty"`

	// turn_receipt
	StartedAt    int64            `json:"started_at,omitempty"`
	DurationMS   int64            `json:"duration_ms,omitempty"`
	UserPrompt   string           `json:"user_prompt,omitempty"`
	ReplySummary string           `json:"reply_summary,omitempty"`
	ToolCalls    []ToolCallRecord `json:"tool_calls,omitempty"`
	Tokens       *TokenUsage      `json:"tokens,omitempty"`
	ModelCalls   int              `json:"model_calls,omitempty"`
}

// ToolCallRecord is one tool invocation inside a turn receipt
type ToolCallRecord struct {
	Tool        string `json:"tool"`
	Name        string `json:"name,omitempty"`
	ArgsSummary string `json:"args_summary,omitempty"`
	Success     bool   `json:"success"`
	DurationMS  int64  `json:"duration_ms"`
	Error       string `json:"error,omitempty"`
}

// TokenUsage accepts both the long and the short token field names.
type TokenUsage struct {
	PromptTokens     int64 `json:"prompt_tokens,omitempty"`
	CompletionTokens int64 `json:"completion_tokens,omitempty"`
	TotalTokens      int64 `json:"total_tokens,omitempty"`
	Prompt           int64 `json:"prompt,omitempty"`
	Completion       int64 `json:"completion,omitempty"`
	Total            int64 `json:"total,omitempty"`
}

// AgentName returns the agent the event is tagged with, if any
func (e Event) AgentName() string {
	if e.Agent != "" {
		return e.Agent
	}
	return e.AgentID
}

// SessionName returns the session the event is tagged with, if any
func (e Event) SessionName() string {
	if e.Session != "" {
		return e.Session
	}
	return e.SessionID
}

// Text returns the content as display text. String content is unquoted,
// structured content is returned as its JSON encoding.
func (e Event) Text() string {
	return Text(e.Content)
}

// Text renders a raw JSON content value for display.
func Text(raw json.RawMessage) string {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return trimmed
}
