package transport

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

const (
	// EventsPath carries the operator event stream.
	EventsPath = "/ws"
	// LogsPath carries structured gateway log lines.
	LogsPath = "/ws/logs"
)

// ClientCommand is the only frame the console sends upstream.
type ClientCommand struct {
	Type        string `json:"type"`
	Command     string `json:"command"`
	TargetAgent string `json:"target_agent,omitempty"`
}

// SendCommand sends a user message or slash command to agent.
func (s *Socket) SendCommand(command, agent string) error {
	return s.Send(ClientCommand{Type: "client_command", Command: command, TargetAgent: agent})
}

// LogLine is one frame of the gateway log stream. Extra structured fields
// the gateway attaches are kept in Fields.
type LogLine struct {
	Timestamp string
	Level     string
	Target    string
	Message   string
	Fields    map[string]any
}

// DecodeLogLine parses a /ws/logs frame.
func DecodeLogLine(data []byte) (LogLine, error) {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return LogLine{}, fmt.Errorf("decode log line: %w", err)
	}
	line := LogLine{Fields: map[string]any{}}
	for k, v := range raw {
		switch k {
		case "ts", "timestamp":
			line.Timestamp = fmt.Sprint(v)
		case "level":
			line.Level = strings.ToUpper(fmt.Sprint(v))
		case "target":
			line.Target = fmt.Sprint(v)
		case "message", "msg":
			line.Message = fmt.Sprint(v)
		case "fields":
			if nested, ok := v.(map[string]any); ok {
				for nk, nv := range nested {
					if nk == "message" && line.Message == "" {
						line.Message = fmt.Sprint(nv)
						continue
					}
					line.Fields[nk] = nv
				}
				continue
			}
			line.Fields[k] = v
		default:
			line.Fields[k] = v
		}
	}
	return line, nil
}

// FieldKeys returns the extra field names in a stable order
func (l LogLine) FieldKeys() []string {
	keys := make([]string, 0, len(l.Fields))
	for k := range l.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
