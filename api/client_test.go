package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nachoal/pinchy-tui/transcript"
)

func newTestClient(t *testing.T, h http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := NewClient(srv.URL, WithRetries(2, time.Millisecond))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return c
}

func TestNewClientRejectsBadScheme(t *testing.T) {
	if _, err := NewClient("ftp://host"); err == nil {
		t.Fatalf("expected error")
	}
}

func TestListAgentsAndSessions(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/agents", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"agents":[{"id":"ops","has_soul":true,"model":"gpt","heartbeat_secs":null,"enabled_skills":["web"],"cron_jobs_count":2}]}`))
	})
	mux.HandleFunc("/api/agents/ops/sessions", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"sessions":[{"file":"s2.jsonl","session_id":"s2","size":2048,"modified":1700000100},{"file":"s1.jsonl","session_id":"s1","size":10,"modified":1700000000}]}`))
	})
	mux.HandleFunc("/api/agents/ops/session/current", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"session_id":"s1"}`))
	})
	mux.HandleFunc("/api/agents/idle/session/current", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"session_id":null}`))
	})
	c := newTestClient(t, mux)
	ctx := context.Background()

	agents, err := c.ListAgents(ctx)
	if err != nil {
		t.Fatalf("agents: %v", err)
	}
	if len(agents) != 1 || agents[0].ID != "ops" || !agents[0].HasSoul || agents[0].HeartbeatSecs != nil || agents[0].CronJobsCount != 2 {
		t.Fatalf("unexpected agents: %+v", agents)
	}

	sessions, err := c.ListSessions(ctx, "ops")
	if err != nil {
		t.Fatalf("sessions: %v", err)
	}
	if len(sessions) != 2 || sessions[0].SessionID != "s2" || sessions[0].Size != 2048 {
		t.Fatalf("unexpected sessions: %+v", sessions)
	}

	cur, err := c.CurrentSession(ctx, "ops")
	if err != nil || cur != "s1" {
		t.Fatalf("current: %q %v", cur, err)
	}
	cur, err = c.CurrentSession(ctx, "idle")
	if err != nil || cur != "" {
		t.Fatalf("null current should be empty: %q %v", cur, err)
	}
}

func TestGetSessionTranscript(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/agents/ops/sessions/s1", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"file":"s1.jsonl","messages":[
			{"role":"user","content":"hi","timestamp":1700000000},
			{"role":"assistant","content":"hello","timestamp":1700000001000},
			{"unrelated":true}
		]}`))
	})
	c := newTestClient(t, mux)

	f, err := c.GetSession(context.Background(), "ops", "s1")
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	msgs := f.Transcript()
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %+v", msgs)
	}
	if msgs[0].Role != transcript.RoleUser || msgs[0].Timestamp != 1700000000000 {
		t.Fatalf("user message not normalized: %+v", msgs[0])
	}
	if msgs[1].Content != "hello" || msgs[1].Timestamp != 1700000001000 {
		t.Fatalf("unexpected assistant message: %+v", msgs[1])
	}
}

func TestGetReceiptsMissingFileIsEmpty(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/agents/ops/receipts/s1", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":"receipts not found","file":"s1.receipts.jsonl"}`))
	})
	mux.HandleFunc("/api/agents/ops/receipts/s2", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"file":"s2.receipts.jsonl","receipts":[{"started_at":1700000000000,"duration_ms":10,"tokens":{"prompt_tokens":1,"completion_tokens":2,"total_tokens":3}}]}`))
	})
	c := newTestClient(t, mux)

	f, err := c.GetReceipts(context.Background(), "ops", "s1")
	if err != nil {
		t.Fatalf("404 receipts should not error: %v", err)
	}
	if len(f.Parsed()) != 0 {
		t.Fatalf("expected empty receipts")
	}

	f, err = c.GetReceipts(context.Background(), "ops", "s2")
	if err != nil {
		t.Fatalf("receipts: %v", err)
	}
	parsed := f.Parsed()
	if len(parsed) != 1 || parsed[0].Tokens.Total != 3 {
		t.Fatalf("unexpected receipts: %+v", parsed)
	}
}

func TestAPIErrorCarriesMessage(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":"invalid path segment"}`))
	}))

	_, err := c.GetSession(context.Background(), "ops", "bad id")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %T %v", err, err)
	}
	if apiErr.Status != http.StatusBadRequest || apiErr.Message != "invalid path segment" {
		t.Fatalf("unexpected api error: %+v", apiErr)
	}
	if IsNotFound(err) {
		t.Fatalf("400 is not a not-found")
	}
}

func TestRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"commands":[{"name":"status","description":"show status","usage":"/status"}]}`))
	}))

	cmds, err := c.SlashCommands(context.Background())
	if err != nil {
		t.Fatalf("slash commands: %v", err)
	}
	if len(cmds) != 1 || cmds[0].Usage != "/status" {
		t.Fatalf("unexpected commands: %+v", cmds)
	}
	if calls.Load() != 3 {
		t.Fatalf("expected 3 calls, got %d", calls.Load())
	}
}

func TestDecodeErrorIsTyped(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`not json`))
	}))
	_, err := c.ListAgents(context.Background())
	var decErr *DecodeError
	if !errors.As(err, &decErr) || decErr.Path != "/api/agents" {
		t.Fatalf("expected decode error, got %v", err)
	}
}
