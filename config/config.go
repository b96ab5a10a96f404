package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// DefaultServerURL is where a local gateway listens
const DefaultServerURL = "http://127.0.0.1:3000"

// Config represents the persisted console configuration
type Config struct {
	ServerURL    string `json:"server_url,omitempty"`
	DefaultAgent string `json:"default_agent,omitempty"`
}

// Manager handles configuration persistence
type Manager struct {
	configPath string
	config     *Config
}

// HomeDir returns the console's state directory, ~/.pinchy-tui
func HomeDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, ".pinchy-tui"), nil
}

// NewManager creates a config manager for ~/.pinchy-tui/config.json
func NewManager() (*Manager, error) {
	dir, err := HomeDir()
	if err != nil {
		return nil, err
	}
	return NewManagerAt(dir)
}

// NewManagerAt creates a config manager storing config.json under dir
func NewManagerAt(dir string) (*Manager, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}

	m := &Manager{
		configPath: filepath.Join(dir, "config.json"),
		config:     &Config{},
	}

	// Load existing config if it exists
	if err := m.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return m, nil
}

// Path returns the config file location
func (m *Manager) Path() string { return m.configPath }

// Load reads the configuration from disk
func (m *Manager) Load() error {
	data, err := os.ReadFile(m.configPath)
	if err != nil {
		return err
	}

	if err := json.Unmarshal(data, m.config); err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}

	return nil
}

// Save writes the configuration to disk
func (m *Manager) Save() error {
	data, err := json.MarshalIndent(m.config, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(m.configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// GetServerURL returns the saved gateway URL, or the local default
func (m *Manager) GetServerURL() string {
	if m.config.ServerURL == "" {
		return DefaultServerURL
	}
	return m.config.ServerURL
}

// GetDefaultAgent returns the agent selected on startup, if any
func (m *Manager) GetDefaultAgent() string {
	return m.config.DefaultAgent
}

// SetServerURL saves the gateway URL
func (m *Manager) SetServerURL(url string) error {
	m.config.ServerURL = strings.TrimRight(url, "/")
	return m.Save()
}

// SetDefaultAgent remembers the last selected agent
func (m *Manager) SetDefaultAgent(agent string) error {
	if m.config.DefaultAgent == agent {
		return nil
	}
	m.config.DefaultAgent = agent
	return m.Save()
}
