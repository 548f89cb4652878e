package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/calder-systems/terminal-core/internal/infrastructure/config"
)

// serviceName tags every log line so terminal-wide log aggregation can
// separate core output from the other site services.
const serviceName = "termcore"

// Logger is the structured logger used throughout Terminal Core.
//
// It is a thin wrapper over slog so packages that declare their own
// small Logger interface (poller, blend, mqtt) accept it directly.
// All methods are safe for concurrent use.
type Logger struct {
	*slog.Logger
}

// New builds a Logger from the logging section of config.yaml.
//
// Format "text" is for bench work against live devices; anything else
// gets JSON for the site log pipeline. The level gate matters here: the
// polling layer emits debug lines per poll cycle, which at production
// register counts is far too chatty for anything above a bench setup.
func New(cfg config.LoggingConfig, version string) *Logger {
	return newWriterLogger(cfg, version, selectOutput(cfg.Output))
}

// Default returns a stdout JSON logger at info level for use during
// startup, before the configuration file has been read.
func Default() *Logger {
	return New(config.LoggingConfig{Level: "info", Format: "json", Output: "stdout"}, "dev")
}

// With returns a child logger carrying extra default attributes.
// Used to tag a subsystem's output, e.g. With("component", "poller").
func (l *Logger) With(args ...any) *Logger {
	return &Logger{Logger: l.Logger.With(args...)}
}

// newWriterLogger does the real construction; tests inject a buffer here.
func newWriterLogger(cfg config.LoggingConfig, version string, w io.Writer) *Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(cfg.Level)}

	var handler slog.Handler
	if strings.EqualFold(cfg.Format, "text") {
		handler = slog.NewTextHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}

	handler = handler.WithAttrs([]slog.Attr{
		slog.String("service", serviceName),
		slog.String("version", version),
	})

	return &Logger{Logger: slog.New(handler)}
}

func selectOutput(name string) io.Writer {
	if strings.EqualFold(name, "stderr") {
		return os.Stderr
	}
	return os.Stdout
}

// parseLevel maps a config level string to slog. Unrecognised values
// fall back to info rather than failing startup.
func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
