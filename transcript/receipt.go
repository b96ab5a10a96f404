package transcript

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/nachoal/pinchy-tui/event"
)

// ReceiptSlack is how far past an assistant message's timestamp a receipt may
// end and still be attached to it.
const ReceiptSlack int64 = 5000

// Receipt summarises one completed agent turn
type Receipt struct {
	Agent        string     `json:"agent,omitempty" yaml:"agent,omitempty"`
	Session      string     `json:"session,omitempty" yaml:"session,omitempty"`
	StartedAt    int64      `json:"started_at" yaml:"started_at"`
	DurationMS   int64      `json:"duration_ms" yaml:"duration_ms"`
	Tokens       Tokens     `json:"tokens" yaml:"tokens"`
	ModelCalls   int        `json:"model_calls" yaml:"model_calls"`
	ToolCalls    []ToolCall `json:"tool_calls,omitempty" yaml:"tool_calls,omitempty"`
	UserPrompt   string     `json:"user_prompt,omitempty" yaml:"user_prompt,omitempty"`
	ReplySummary string     `json:"reply_summary,omitempty" yaml:"reply_summary,omitempty"`
}

// Tokens is the token usage of a turn
type Tokens struct {
	Prompt     int64 `json:"prompt" yaml:"prompt"`
	Completion int64 `json:"completion" yaml:"completion"`
	Total      int64 `json:"total" yaml:"total"`
}

// ToolCall is one tool invocation inside a turn
type ToolCall struct {
	Name        string `json:"name" yaml:"name"`
	Success     bool   `json:"success" yaml:"success"`
	DurationMS  int64  `json:"duration_ms" yaml:"duration_ms"`
	Error       string `json:"error,omitempty" yaml:"error,omitempty"`
	ArgsSummary string `json:"args_summary,omitempty" yaml:"args_summary,omitempty"`
}

// EndsAt is the epoch millisecond the turn finished
func (r Receipt) EndsAt() int64 {
	return r.StartedAt + r.DurationMS
}

// ParseReceipt normalizes a persisted receipt line. Persisted receipts and
// live turn_receipt events share a shape, so both decode through event.Event.
func ParseReceipt(raw json.RawMessage) (Receipt, error) {
	var ev event.Event
	if err := json.Unmarshal(raw, &ev); err != nil {
		return Receipt{}, fmt.Errorf("decode receipt: %w", err)
	}
	return ReceiptFromEvent(ev), nil
}

// ReceiptFromEvent normalizes a turn_receipt event
func ReceiptFromEvent(ev event.Event) Receipt {
	r := Receipt{
		Agent:        ev.AgentName(),
		Session:      ev.SessionName(),
		StartedAt:    NormalizeTimestamp(ev.StartedAt),
		DurationMS:   ev.DurationMS,
		ModelCalls:   ev.ModelCalls,
		UserPrompt:   ev.UserPrompt,
		ReplySummary: ev.ReplySummary,
	}
	if t := ev.Tokens; t != nil {
		r.Tokens = Tokens{
			Prompt:     firstNonZero(t.PromptTokens, t.Prompt),
			Completion: firstNonZero(t.CompletionTokens, t.Completion),
			Total:      firstNonZero(t.TotalTokens, t.Total),
		}
		if r.Tokens.Total == 0 {
			r.Tokens.Total = r.Tokens.Prompt + r.Tokens.Completion
		}
	}
	for _, tc := range ev.ToolCalls {
		name := tc.Tool
		if name == "" {
			name = tc.Name
		}
		r.ToolCalls = append(r.ToolCalls, ToolCall{
			Name:        name,
			Success:     tc.Success,
			DurationMS:  tc.DurationMS,
			Error:       tc.Error,
			ArgsSummary: tc.ArgsSummary,
		})
	}
	return r
}

func firstNonZero(vals ...int64) int64 {
	for _, v := range vals {
		if v != 0 {
			return v
		}
	}
	return 0
}

// ReceiptBook holds receipts from both origins, deduplicated by start time.
type ReceiptBook struct {
	receipts []Receipt
	seen     map[int64]struct{}
}

// NewReceiptBook creates an empty book
func NewReceiptBook() *ReceiptBook {
	return &ReceiptBook{seen: make(map[int64]struct{})}
}

// Add stores r unless a receipt with the same start time is already present.
func (b *ReceiptBook) Add(r Receipt) bool {
	if _, ok := b.seen[r.StartedAt]; ok {
		return false
	}
	b.seen[r.StartedAt] = struct{}{}
	b.receipts = append(b.receipts, r)
	return true
}

// Receipts returns the receipts sorted by start time
func (b *ReceiptBook) Receipts() []Receipt {
	out := append([]Receipt(nil), b.receipts...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].StartedAt < out[j].StartedAt })
	return out
}

// Len returns the number of receipts held
func (b *ReceiptBook) Len() int { return len(b.receipts) }

// Reset drops every receipt
func (b *ReceiptBook) Reset() {
	b.receipts = nil
	b.seen = make(map[int64]struct{})
}

// Entry is one row of the rendered transcript: a message or a receipt.
type Entry struct {
	Message *Message `json:"message,omitempty" yaml:"message,omitempty"`
	Receipt *Receipt `json:"receipt,omitempty" yaml:"receipt,omitempty"`
}

// Interleave places each receipt right after the assistant message it most
// likely describes. There is no receipt-to-message link on the wire, so the
// match is by time: a receipt belongs to the first assistant message (in
// timestamp order) that it ended no later than ReceiptSlack before.
// Receipts that match nothing trail the transcript.
func Interleave(messages []Message, receipts []Receipt) []Entry {
	ordered := orderByTime(messages)

	queue := append([]Receipt(nil), receipts...)
	sort.SliceStable(queue, func(i, j int) bool { return queue[i].EndsAt() < queue[j].EndsAt() })

	out := make([]Entry, 0, len(ordered)+len(queue))
	for _, tm := range ordered {
		msg := tm.msg
		out = append(out, Entry{Message: &msg})
		if msg.Role != RoleAssistant {
			continue
		}
		for len(queue) > 0 && queue[0].EndsAt() <= tm.at+ReceiptSlack {
			r := queue[0]
			queue = queue[1:]
			out = append(out, Entry{Receipt: &r})
		}
	}
	for i := range queue {
		r := queue[i]
		out = append(out, Entry{Receipt: &r})
	}
	return out
}

type timedMessage struct {
	msg Message
	at  int64
}

// orderByTime sorts stably by timestamp. Messages with an unknown timestamp
// keep their position by inheriting the previous message's time.
func orderByTime(messages []Message) []timedMessage {
	out := make([]timedMessage, len(messages))
	var last int64
	for i, m := range messages {
		at := m.Timestamp
		if at == 0 {
			at = last
		}
		last = at
		out[i] = timedMessage{msg: m, at: at}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].at < out[j].at })
	return out
}
