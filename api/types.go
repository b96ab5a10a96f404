package api

import (
	"encoding/json"
	"time"

	"github.com/nachoal/pinchy-tui/transcript"
)

// Agent is one entry of GET /api/agents
type Agent struct {
	ID                string   `json:"id"`
	HasSoul           bool     `json:"has_soul"`
	HasTools          bool     `json:"has_tools"`
	HasHeartbeat      bool     `json:"has_heartbeat"`
	Model             string   `json:"model,omitempty"`
	HeartbeatSecs     *int64   `json:"heartbeat_secs,omitempty"`
	MaxToolIterations *int     `json:"max_tool_iterations,omitempty"`
	EnabledSkills     []string `json:"enabled_skills,omitempty"`
	CronJobsCount     int      `json:"cron_jobs_count,omitempty"`
}

// Session is one entry of GET /api/agents/:id/sessions. Modified is unix
// seconds.
type Session struct {
	File      string `json:"file"`
	SessionID string `json:"session_id"`
	Size      int64  `json:"size"`
	Modified  int64  `json:"modified"`
}

// ModifiedTime returns Modified as a time.Time
func (s Session) ModifiedTime() time.Time {
	return time.Unix(s.Modified, 0)
}

// SessionFile is the body of GET /api/agents/:id/sessions/:sid.
type SessionFile struct {
	File     string            `json:"file"`
	Messages []json.RawMessage `json:"messages"`
}

type wireMessage struct {
	Role      string          `json:"role"`
	Content   json.RawMessage `json:"content"`
	Timestamp int64           `json:"timestamp"`
}

// Transcript converts the persisted lines into normalized messages. Lines
// that are not message objects are skipped.
func (f SessionFile) Transcript() []transcript.Message {
	out := make([]transcript.Message, 0, len(f.Messages))
	for _, raw := range f.Messages {
		var wm wireMessage
		if err := json.Unmarshal(raw, &wm); err != nil || wm.Role == "" {
			continue
		}
		out = append(out, transcript.FromWire(wm.Role, wm.Content, wm.Timestamp))
	}
	return out
}

// ReceiptFile is the body of GET /api/agents/:id/receipts/:sid.
type ReceiptFile struct {
	File     string            `json:"file"`
	Receipts []json.RawMessage `json:"receipts"`
}

// Parsed decodes every receipt line, skipping malformed ones.
func (f ReceiptFile) Parsed() []transcript.Receipt {
	out := make([]transcript.Receipt, 0, len(f.Receipts))
	for _, raw := range f.Receipts {
		r, err := transcript.ParseReceipt(raw)
		if err != nil {
			continue
		}
		out = append(out, r)
	}
	return out
}

// SlashCommand describes a command from GET /api/slash/commands
type SlashCommand struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Usage       string `json:"usage,omitempty"`
}
