package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"github.com/dustin/go-humanize"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/nachoal/pinchy-tui/api"
	"github.com/nachoal/pinchy-tui/chat"
	"github.com/nachoal/pinchy-tui/config"
	"github.com/nachoal/pinchy-tui/history"
	"github.com/nachoal/pinchy-tui/internal/trace"
	"github.com/nachoal/pinchy-tui/transcript"
	"github.com/nachoal/pinchy-tui/transport"
	"github.com/nachoal/pinchy-tui/tui"
)

const requestTimeout = 20 * time.Second

var (
	// Flags
	server       string
	agentID      string
	sessionID    string
	verbose      bool
	continueLast bool
	logLevel     string
	exportFormat string

	// Root command
	rootCmd = &cobra.Command{
		Use:   "pinchy-tui",
		Short: "Operator console for a Pinchy gateway",
		Long:  "pinchy-tui - watch and talk to the agents of a Pinchy gateway in realtime",
		Args:  cobra.NoArgs,
		RunE:  runTUI,
	}

	// Logs command tails the gateway log stream
	logsCmd = &cobra.Command{
		Use:   "logs",
		Short: "Tail the gateway log stream",
		Args:  cobra.NoArgs,
		RunE:  runLogs,
	}

	agentsCmd = &cobra.Command{
		Use:   "agents",
		Short: "List the gateway's agents",
		Args:  cobra.NoArgs,
		RunE:  listAgents,
	}

	sessionsCmd = &cobra.Command{
		Use:   "sessions <agent>",
		Short: "List an agent's sessions, newest first",
		Args:  cobra.ExactArgs(1),
		RunE:  listSessions,
	}

	// Transcript command prints a session without entering the TUI
	transcriptCmd = &cobra.Command{
		Use:   "transcript <agent> [session]",
		Short: "Print a session transcript with its receipts",
		Long:  "Print a session transcript with its turn receipts. Without a session the agent's current (or newest) session is used.",
		Args:  cobra.RangeArgs(1, 2),
		RunE:  exportTranscript,
	}
)

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&server, config.KeyServer, "", "Gateway URL (default "+config.DefaultServerURL+")")
	rootCmd.PersistentFlags().BoolVarP(&verbose, config.KeyVerbose, "v", false, "Write a debug trace to ~/.pinchy-tui/traces")

	// TUI-specific flags
	rootCmd.Flags().StringVar(&agentID, config.KeyAgent, "", "Agent to open")
	rootCmd.Flags().StringVar(&sessionID, "session", "", "Session to open (requires --agent or --continue)")
	rootCmd.Flags().BoolVarP(&continueLast, "continue", "c", false, "Reopen the last viewed agent and session")

	logsCmd.Flags().StringVar(&logLevel, "level", "info", "Minimum level to show (trace, debug, info, warn, error)")
	transcriptCmd.Flags().StringVarP(&exportFormat, "format", "f", "text", "Output format (text, json, yaml)")

	// Add subcommands
	rootCmd.AddCommand(logsCmd)
	rootCmd.AddCommand(agentsCmd)
	rootCmd.AddCommand(sessionsCmd)
	rootCmd.AddCommand(transcriptCmd)
}

func main() {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		if !os.IsNotExist(err) {
			fmt.Fprintf(os.Stderr, "Warning: Error loading .env file: %v\n", err)
		}
	}

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadSettings resolves flags over PINCHY_* environment over the saved config
func loadSettings(cmd *cobra.Command) (*config.Manager, config.Settings, error) {
	configManager, err := config.NewManager()
	if err != nil {
		return nil, config.Settings{}, fmt.Errorf("failed to create config manager: %w", err)
	}

	v := config.NewViper(configManager)
	if err := bindFlags(v, cmd); err != nil {
		return nil, config.Settings{}, err
	}
	settings, err := config.Resolve(v)
	if err != nil {
		return nil, config.Settings{}, err
	}
	return configManager, settings, nil
}

func bindFlags(v *viper.Viper, cmd *cobra.Command) error {
	for _, name := range []string{config.KeyServer, config.KeyAgent, config.KeyVerbose} {
		f := cmd.Flags().Lookup(name)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(name, f); err != nil {
			return fmt.Errorf("failed to bind --%s: %w", name, err)
		}
	}
	return nil
}

func openTracer(settings config.Settings) *trace.Tracer {
	if !trace.Enabled(settings.Verbose) {
		return trace.Disabled()
	}
	dir, err := trace.Dir()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: tracing disabled: %v\n", err)
		return trace.Disabled()
	}
	tracer, err := trace.Open(dir, true)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: tracing disabled: %v\n", err)
		return trace.Disabled()
	}
	return tracer
}

func openSocket(ctx context.Context, settings config.Settings, path string, logger *log.Logger) (*transport.Socket, error) {
	url, err := transport.StreamURL(settings.ServerURL, path)
	if err != nil {
		return nil, err
	}
	sock := transport.New(transport.Config{
		URL:     url,
		Backoff: transport.Backoff{Base: settings.ReconnectBase, Max: settings.ReconnectMax},
		Logger:  logger,
	})
	sock.Start(ctx)
	return sock, nil
}

func runTUI(cmd *cobra.Command, args []string) error {
	configManager, settings, err := loadSettings(cmd)
	if err != nil {
		return err
	}

	tracer := openTracer(settings)
	defer tracer.Close()
	logger := tracer.Logger
	logger.Debug("settings", "server", settings.ServerURL, "agent", settings.Agent,
		"reveal_budget", settings.RevealBudget, "reveal_interval", settings.RevealInterval)

	client, err := api.NewClient(settings.ServerURL, api.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("failed to create API client: %w", err)
	}

	historyManager, err := history.NewManager()
	if err != nil {
		return fmt.Errorf("failed to open view history: %w", err)
	}

	agent, session := settings.Agent, sessionID
	if continueLast {
		if !cmd.Flags().Changed(config.KeyAgent) {
			last, err := historyManager.LastAgent()
			if err != nil && !errors.Is(err, history.ErrNoHistory) {
				return fmt.Errorf("failed to read view history: %w", err)
			}
			if last != "" {
				agent = last
			}
		}
		if session == "" && agent != "" {
			last, err := historyManager.LastSession(agent)
			if err != nil && !errors.Is(err, history.ErrNoHistory) {
				return fmt.Errorf("failed to read view history: %w", err)
			}
			session = last
		}
	}
	if session != "" && agent == "" {
		return fmt.Errorf("--session needs an agent: pass --agent or --continue")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sock, err := openSocket(ctx, settings, transport.EventsPath, logger)
	if err != nil {
		return err
	}
	defer sock.Close()

	p := tea.NewProgram(
		tui.NewChatTUI(client, sock, tui.Options{
			Agent:          agent,
			Session:        session,
			RevealBudget:   settings.RevealBudget,
			RevealInterval: settings.RevealInterval,
			BannerQuiet:    settings.BannerQuiet,
			Config:         configManager,
			History:        historyManager,
			Logger:         logger,
		}),
		tea.WithAltScreen(),
	)

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}
	if tracer.Path != "" {
		fmt.Printf("Trace written to %s\n", tracer.Path)
	}
	return nil
}

func runLogs(cmd *cobra.Command, args []string) error {
	level, err := tui.ParseLevel(logLevel)
	if err != nil {
		return err
	}
	_, settings, err := loadSettings(cmd)
	if err != nil {
		return err
	}

	tracer := openTracer(settings)
	defer tracer.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sock, err := openSocket(ctx, settings, transport.LogsPath, tracer.Logger)
	if err != nil {
		return err
	}
	defer sock.Close()

	p := tea.NewProgram(tui.NewLogTail(sock, level), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running log tail: %w", err)
	}
	return nil
}

func newClient(cmd *cobra.Command) (*api.Client, error) {
	_, settings, err := loadSettings(cmd)
	if err != nil {
		return nil, err
	}
	return api.NewClient(settings.ServerURL)
}

func listAgents(cmd *cobra.Command, args []string) error {
	client, err := newClient(cmd)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	agents, err := client.ListAgents(ctx)
	if err != nil {
		return fmt.Errorf("failed to list agents: %w", err)
	}
	if len(agents) == 0 {
		fmt.Println("No agents configured on the gateway.")
		return nil
	}
	sort.Slice(agents, func(i, j int) bool { return agents[i].ID < agents[j].ID })

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "Agents:")
	for _, a := range agents {
		model := a.Model
		if model == "" {
			model = "-"
		}
		var flags []string
		if a.HasSoul {
			flags = append(flags, "soul")
		}
		if a.HasTools {
			flags = append(flags, "tools")
		}
		if a.HasHeartbeat {
			beat := "heartbeat"
			if a.HeartbeatSecs != nil {
				beat += " " + (time.Duration(*a.HeartbeatSecs) * time.Second).String()
			}
			flags = append(flags, beat)
		}
		if n := len(a.EnabledSkills); n > 0 {
			flags = append(flags, fmt.Sprintf("skills: %s", strings.Join(a.EnabledSkills, ", ")))
		}
		if a.CronJobsCount > 0 {
			flags = append(flags, fmt.Sprintf("%d cron", a.CronJobsCount))
		}
		fmt.Fprintf(out, "  %-20s %-28s %s\n", a.ID, model, strings.Join(flags, " · "))
	}
	return nil
}

func listSessions(cmd *cobra.Command, args []string) error {
	client, err := newClient(cmd)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	agent := args[0]
	sessions, err := client.ListSessions(ctx, agent)
	if err != nil {
		return fmt.Errorf("failed to list sessions: %w", err)
	}
	current, err := client.CurrentSession(ctx, agent)
	if err != nil {
		current = ""
	}
	if len(sessions) == 0 {
		fmt.Printf("No sessions found for %s.\n", agent)
		return nil
	}
	sort.SliceStable(sessions, func(i, j int) bool { return sessions[i].Modified > sessions[j].Modified })

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Sessions of %s:\n", agent)
	for _, s := range sessions {
		marker := " "
		if s.SessionID == current {
			marker = "*"
		}
		fmt.Fprintf(out, "%s %-40s %10s  %s\n",
			marker,
			s.SessionID,
			humanize.Bytes(uint64(max(s.Size, 0))),
			humanize.Time(s.ModifiedTime()))
	}
	return nil
}

func exportTranscript(cmd *cobra.Command, args []string) error {
	format := strings.ToLower(exportFormat)
	if format != "text" && format != "json" && format != "yaml" {
		return fmt.Errorf("unknown format %q (want text, json or yaml)", exportFormat)
	}

	client, err := newClient(cmd)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	agent := args[0]
	session := ""
	if len(args) > 1 {
		session = args[1]
	}
	if session == "" {
		sessions, err := client.ListSessions(ctx, agent)
		if err != nil {
			return fmt.Errorf("failed to list sessions: %w", err)
		}
		current, _ := client.CurrentSession(ctx, agent)
		session = chat.ChooseSession(sessions, current)
		if session == "" {
			return fmt.Errorf("agent %s has no sessions", agent)
		}
	}

	file, err := client.GetSession(ctx, agent, session)
	if err != nil {
		return fmt.Errorf("failed to load session %s: %w", session, err)
	}
	receipts, err := client.GetReceipts(ctx, agent, session)
	if err != nil {
		return fmt.Errorf("failed to load receipts of %s: %w", session, err)
	}
	entries := transcript.Interleave(transcript.Merge(file.Transcript(), nil), receipts.Parsed())

	out := cmd.OutOrStdout()
	switch format {
	case "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(entries)
	case "yaml":
		enc := yaml.NewEncoder(out)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(entries)
	default:
		return writeText(out, agent, session, entries)
	}
}

func writeText(w io.Writer, agent, session string, entries []transcript.Entry) error {
	if _, err := fmt.Fprintf(w, "# %s / %s\n\n", agent, session); err != nil {
		return err
	}
	for _, e := range entries {
		var err error
		switch {
		case e.Message != nil:
			m := e.Message
			stamp := ""
			if m.Timestamp > 0 {
				stamp = "[" + time.UnixMilli(m.Timestamp).Format("2006-01-02 15:04:05") + "] "
			}
			role := string(m.Role)
			if m.IsTool() {
				role = string(m.Kind)
			}
			_, err = fmt.Fprintf(w, "%s%s: %s\n\n", stamp, role, m.Content)
		case e.Receipt != nil:
			_, err = fmt.Fprintf(w, "  %s\n\n", tui.ReceiptSummary(*e.Receipt))
		}
		if err != nil {
			return err
		}
	}
	return nil
}
