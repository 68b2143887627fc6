package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// timeFormat keeps log lines short and sortable
const timeFormat = "2006-01-02 15:04:05"

// Config holds logger configuration
type Config struct {
	Level string
	// Output defaults to stdout
	Output io.Writer
	// Service and Env are attached to every record when set
	Service string
	Env     string
}

// New builds a JSON logger for cfg without installing it
func New(cfg Config) *slog.Logger {
	out := cfg.Output
	if out == nil {
		out = os.Stdout
	}

	var handler slog.Handler = slog.NewJSONHandler(out, &slog.HandlerOptions{
		Level:       parseLevel(cfg.Level),
		ReplaceAttr: formatTime,
	})

	var attrs []slog.Attr
	if cfg.Service != "" {
		attrs = append(attrs, slog.String("service", cfg.Service))
	}
	if cfg.Env != "" {
		attrs = append(attrs, slog.String("env", cfg.Env))
	}
	if len(attrs) > 0 {
		handler = handler.WithAttrs(attrs)
	}
	return slog.New(handler)
}

// Setup installs the logger described by cfg as the process default
func Setup(cfg Config) {
	slog.SetDefault(New(cfg))
}

// Component returns the default logger tagged with a component name
func Component(name string) *slog.Logger {
	return slog.Default().With("component", name)
}

func formatTime(_ []string, a slog.Attr) slog.Attr {
	if a.Key == slog.TimeKey && a.Value.Kind() == slog.KindTime {
		return slog.String(a.Key, a.Value.Time().Format(timeFormat))
	}
	return a
}

func parseLevel(levelStr string) slog.Level {
	switch GetLevel(levelStr) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// GetLevel returns the normalized log level string. WARNING is accepted as WARN.
func GetLevel(levelStr string) string {
	level := strings.ToUpper(strings.TrimSpace(levelStr))
	switch level {
	case "DEBUG", "INFO", "WARN", "ERROR":
		return level
	case "WARNING":
		return "WARN"
	default:
		return "INFO"
	}
}
