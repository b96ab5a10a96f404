package trace

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"
)

// EnvVar turns tracing on when set to 1, true or yes.
const EnvVar = "PINCHY_TRACE"

// Tracer is the trace file logger. A disabled tracer logs to io.Discard.
type Tracer struct {
	Logger *log.Logger
	Path   string
	file   *os.File
}

// Enabled reports whether tracing was requested through the environment or
// the verbose flag.
func Enabled(verbose bool) bool {
	if verbose {
		return true
	}
	v := os.Getenv(EnvVar)
	return v == "1" || strings.EqualFold(v, "true") || strings.EqualFold(v, "yes")
}

// Dir returns the default trace directory
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".pinchy-tui", "traces"), nil
}

// Disabled returns a tracer that drops everything
func Disabled() *Tracer {
	return &Tracer{Logger: log.New(io.Discard)}
}

// Open starts a new trace file in dir. When enabled is false it returns a
// disabled tracer.
func Open(dir string, enabled bool) (*Tracer, error) {
	if !enabled {
		return Disabled(), nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create trace directory: %w", err)
	}

	name := fmt.Sprintf("trace_%s_%d.log", time.Now().Format("20060102_150405"), os.Getpid())
	path := filepath.Join(dir, name)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open trace file: %w", err)
	}

	logger := log.NewWithOptions(f, log.Options{
		Level:           log.DebugLevel,
		ReportTimestamp: true,
		TimeFormat:      time.RFC3339Nano,
		Formatter:       log.LogfmtFormatter,
	})
	logger.Debug("trace_start", "pid", os.Getpid())
	return &Tracer{Logger: logger, Path: path, file: f}, nil
}

// Close flushes and closes the trace file
func (t *Tracer) Close() error {
	if t.file == nil {
		return nil
	}
	t.Logger.Debug("trace_stop")
	err := t.file.Close()
	t.file = nil
	return err
}

// Truncate collapses whitespace and limits s to limit bytes for a trace line.
func Truncate(s string, limit int) string {
	clean := strings.Join(strings.Fields(s), " ")
	if len(clean) <= limit {
		return clean
	}
	if limit <= 1 {
		return clean[:limit]
	}
	return clean[:limit-1] + "…"
}
