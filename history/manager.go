package history

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

const indexVersion = "1.0"

// ErrNoHistory is returned when nothing was viewed yet for an agent
var ErrNoHistory = errors.New("no viewed session recorded")

// Manager remembers which session was last viewed per agent so the console
// can reopen it with --continue.
type Manager struct {
	metaPath string
	mu       sync.RWMutex
}

// NewManager creates a history manager under ~/.pinchy-tui
func NewManager() (*Manager, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get home directory: %w", err)
	}
	return NewManagerAt(filepath.Join(homeDir, ".pinchy-tui"))
}

// NewManagerAt creates a history manager storing its index in dir
func NewManagerAt(dir string) (*Manager, error) {
	m := &Manager{
		metaPath: filepath.Join(dir, "history.json"),
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create history directory: %w", err)
	}

	// Initialize meta if not exists
	if _, err := os.Stat(m.metaPath); os.IsNotExist(err) {
		if err := m.saveMeta(&MetaIndex{
			Version: indexVersion,
			Agents:  make(map[string]Viewed),
		}); err != nil {
			return nil, fmt.Errorf("failed to initialize history index: %w", err)
		}
	}

	return m, nil
}

// Remember records session as the last one viewed for agent.
func (m *Manager) Remember(agent, session string) error {
	if agent == "" {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	meta, err := m.loadMeta()
	if err != nil {
		return fmt.Errorf("failed to load history: %w", err)
	}
	meta.LastAgent = agent
	if session != "" {
		meta.Agents[agent] = Viewed{SessionID: session, ViewedAt: time.Now()}
	}
	if err := m.saveMeta(meta); err != nil {
		return fmt.Errorf("failed to save history: %w", err)
	}
	return nil
}

// LastSession returns the last session viewed for agent
func (m *Manager) LastSession(agent string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	meta, err := m.loadMeta()
	if err != nil {
		return "", fmt.Errorf("failed to load history: %w", err)
	}
	v, ok := meta.Agents[agent]
	if !ok || v.SessionID == "" {
		return "", fmt.Errorf("%w for agent %s", ErrNoHistory, agent)
	}
	return v.SessionID, nil
}

// LastAgent returns the agent viewed most recently
func (m *Manager) LastAgent() (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	meta, err := m.loadMeta()
	if err != nil {
		return "", fmt.Errorf("failed to load history: %w", err)
	}
	if meta.LastAgent == "" {
		return "", ErrNoHistory
	}
	return meta.LastAgent, nil
}

// Entries lists all recorded agents, most recently viewed first
func (m *Manager) Entries() ([]Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	meta, err := m.loadMeta()
	if err != nil {
		return nil, fmt.Errorf("failed to load history: %w", err)
	}
	out := make([]Entry, 0, len(meta.Agents))
	for agent, v := range meta.Agents {
		out = append(out, Entry{Agent: agent, SessionID: v.SessionID, ViewedAt: v.ViewedAt})
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ViewedAt.After(out[j].ViewedAt)
	})
	return out, nil
}

// Private methods

func (m *Manager) loadMeta() (*MetaIndex, error) {
	data, err := os.ReadFile(m.metaPath)
	if err != nil {
		return nil, err
	}

	var meta MetaIndex
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, err
	}
	if meta.Agents == nil {
		meta.Agents = make(map[string]Viewed)
	}

	return &meta, nil
}

func (m *Manager) saveMeta(meta *MetaIndex) error {
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(m.metaPath, data, 0644)
}
