package history

import (
	"time"
)

// Viewed records the session an operator last looked at for one agent
type Viewed struct {
	SessionID string    `json:"session_id"`
	ViewedAt  time.Time `json:"viewed_at"`
}

// MetaIndex is the on-disk index of viewed sessions
type MetaIndex struct {
	Version   string            `json:"version"`
	LastAgent string            `json:"last_agent,omitempty"`
	Agents    map[string]Viewed `json:"agents"`
}

// Entry is one row of the index, for listing
type Entry struct {
	Agent     string
	SessionID string
	ViewedAt  time.Time
}
