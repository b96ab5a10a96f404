package transcript

import (
	"encoding/json"
	"testing"

	"github.com/nachoal/pinchy-tui/event"
)

const persistedReceipt = `{
  "agent": "ops",
  "session": "s1",
  "started_at": 1700000001000,
  "duration_ms": 2500,
  "user_prompt": "status?",
  "tool_calls": [{"tool": "exec_shell", "args_summary": "{\"cmd\":\"uptime\"}", "success": true, "duration_ms": 120}],
  "tokens": {"prompt_tokens": 100, "completion_tokens": 20, "total_tokens": 120},
  "model_calls": 2,
  "reply_summary": "all good"
}`

func TestParseReceiptPersistedShape(t *testing.T) {
	r, err := ParseReceipt(json.RawMessage(persistedReceipt))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if r.Agent != "ops" || r.Session != "s1" || r.StartedAt != 1700000001000 || r.DurationMS != 2500 {
		t.Fatalf("unexpected receipt header: %+v", r)
	}
	if r.Tokens != (Tokens{Prompt: 100, Completion: 20, Total: 120}) {
		t.Fatalf("unexpected tokens: %+v", r.Tokens)
	}
	if len(r.ToolCalls) != 1 || r.ToolCalls[0].Name != "exec_shell" || !r.ToolCalls[0].Success {
		t.Fatalf("unexpected tool calls: %+v", r.ToolCalls)
	}
	if r.EndsAt() != 1700000003500 {
		t.Fatalf("unexpected end: %d", r.EndsAt())
	}
}

func TestReceiptFromLiveEventMatchesPersisted(t *testing.T) {
	ev, err := event.Decode([]byte(`{"type":"turn_receipt",` + persistedReceipt[1:]))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	live := ReceiptFromEvent(ev)
	stored, _ := ParseReceipt(json.RawMessage(persistedReceipt))

	book := NewReceiptBook()
	if !book.Add(stored) {
		t.Fatalf("first add should succeed")
	}
	if book.Add(live) {
		t.Fatalf("live copy of a persisted receipt must be deduplicated")
	}
	if book.Len() != 1 {
		t.Fatalf("expected one receipt, got %d", book.Len())
	}
}

func TestReceiptShortTokenNames(t *testing.T) {
	r, err := ParseReceipt(json.RawMessage(`{"started_at":1700000000,"tokens":{"prompt":7,"completion":3}}`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if r.StartedAt != 1700000000000 {
		t.Fatalf("started_at should be normalized to ms, got %d", r.StartedAt)
	}
	if r.Tokens.Total != 10 {
		t.Fatalf("total should be derived, got %+v", r.Tokens)
	}
}

func TestInterleavePlacesReceiptAfterAssistant(t *testing.T) {
	base := int64(1700000000000)
	msgs := []Message{
		{Role: RoleUser, Content: "q1", Timestamp: base},
		{Role: RoleAssistant, Content: "a1", Timestamp: base + 4000},
		{Role: RoleUser, Content: "q2", Timestamp: base + 60_000},
		{Role: RoleAssistant, Content: "a2", Timestamp: base + 70_000},
	}
	receipts := []Receipt{
		{StartedAt: base + 59_000, DurationMS: 12_000}, // ends 71s, within slack of a2
		{StartedAt: base, DurationMS: 3000},            // ends 3s, before a1
		{StartedAt: base + 200_000, DurationMS: 1000},  // no matching message
	}

	entries := Interleave(msgs, receipts)
	var shape []string
	for _, e := range entries {
		if e.Message != nil {
			shape = append(shape, e.Message.Content)
		} else {
			shape = append(shape, "R")
		}
	}
	want := []string{"q1", "a1", "R", "q2", "a2", "R", "R"}
	if len(shape) != len(want) {
		t.Fatalf("unexpected shape %v", shape)
	}
	for i := range want {
		if shape[i] != want[i] {
			t.Fatalf("unexpected shape %v, want %v", shape, want)
		}
	}
	if entries[6].Receipt.StartedAt != base+200_000 {
		t.Fatalf("leftover receipt should trail, got %+v", entries[6].Receipt)
	}
}

func TestInterleaveUntimedMessagesKeepPosition(t *testing.T) {
	base := int64(1700000000000)
	msgs := []Message{
		{Role: RoleUser, Content: "q", Timestamp: base},
		{Role: RoleSystem, Content: "slash output"},
		{Role: RoleAssistant, Content: "a", Timestamp: base + 10},
	}
	entries := Interleave(msgs, nil)
	if entries[1].Message.Content != "slash output" {
		t.Fatalf("untimed message moved: %+v", entries[1].Message)
	}
}
