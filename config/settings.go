package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/nachoal/pinchy-tui/transcript"
	"github.com/nachoal/pinchy-tui/transport"
)

// Setting keys shared by flags, environment (PINCHY_ prefix) and defaults.
const (
	KeyServer       = "server"
	KeyAgent        = "agent"
	KeyVerbose      = "verbose"
	KeyRevealBudget = "reveal_budget"
	KeyRevealEvery  = "reveal_interval"
	KeyRetryBase    = "reconnect_base"
	KeyRetryMax     = "reconnect_max"
	KeyBannerQuiet  = "banner_quiet"
)

// Settings are the resolved runtime settings
type Settings struct {
	ServerURL      string
	Agent          string
	Verbose        bool
	RevealBudget   int
	RevealInterval time.Duration
	ReconnectBase  time.Duration
	ReconnectMax   time.Duration
	BannerQuiet    time.Duration
}

// NewViper returns a viper instance reading PINCHY_* environment variables
// with the built-in defaults applied. Saved config values act as defaults
// that flags and environment override.
func NewViper(m *Manager) *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix("PINCHY")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault(KeyServer, DefaultServerURL)
	v.SetDefault(KeyRevealBudget, transcript.DefaultRevealBudget)
	v.SetDefault(KeyRevealEvery, transcript.DefaultRevealInterval)
	v.SetDefault(KeyRetryBase, transport.DefaultBaseDelay)
	v.SetDefault(KeyRetryMax, transport.DefaultMaxDelay)
	v.SetDefault(KeyBannerQuiet, 5*time.Second)

	if m != nil {
		v.SetDefault(KeyServer, m.GetServerURL())
		if agent := m.GetDefaultAgent(); agent != "" {
			v.SetDefault(KeyAgent, agent)
		}
	}
	return v
}

// Resolve reads and validates the settings from v.
func Resolve(v *viper.Viper) (Settings, error) {
	s := Settings{
		ServerURL:      strings.TrimRight(v.GetString(KeyServer), "/"),
		Agent:          v.GetString(KeyAgent),
		Verbose:        v.GetBool(KeyVerbose),
		RevealBudget:   v.GetInt(KeyRevealBudget),
		RevealInterval: v.GetDuration(KeyRevealEvery),
		ReconnectBase:  v.GetDuration(KeyRetryBase),
		ReconnectMax:   v.GetDuration(KeyRetryMax),
		BannerQuiet:    v.GetDuration(KeyBannerQuiet),
	}

	u, err := url.Parse(s.ServerURL)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return Settings{}, fmt.Errorf("invalid server url %q: expected http(s)://host:port", s.ServerURL)
	}
	if s.RevealBudget <= 0 {
		return Settings{}, fmt.Errorf("reveal budget must be positive, got %d", s.RevealBudget)
	}
	if s.RevealInterval <= 0 {
		return Settings{}, fmt.Errorf("reveal interval must be positive, got %s", s.RevealInterval)
	}
	if s.ReconnectBase <= 0 || s.ReconnectMax < s.ReconnectBase {
		return Settings{}, fmt.Errorf("invalid reconnect backoff base=%s max=%s", s.ReconnectBase, s.ReconnectMax)
	}
	if s.BannerQuiet <= 0 {
		s.BannerQuiet = 5 * time.Second
	}
	return s, nil
}
