// Package observability provides the diagnostic logger for avfailover.
//
// This is distinct from the structured event stream (see internal/events):
// this package's logger is a free-form slog stream for operational
// debugging, while the event stream is a fixed vocabulary of
// line-delimited JSON documents consumed by a parent supervisor.
package observability

import (
	"io"
	"log/slog"
	"os"
	"regexp"
	"time"

	"github.com/jmylchreest/avfailover/internal/config"
	"github.com/m-mizutani/masq"
)

// urlSensitiveParamPattern redacts credential-bearing query parameters that
// routinely appear in primary_url values (SRT passphrases, RTMP/RTSP
// tokens), so the primary URL never leaks a credential into the debug log.
var urlSensitiveParamPattern = regexp.MustCompile(`(?i)(password|secret|token|passphrase|credential)=([^&\s"']+)`)

// GlobalLogLevel allows the level to be adjusted at runtime without
// rebuilding the handler chain.
var GlobalLogLevel = &slog.LevelVar{}

// NewLogger builds the process logger from cfg, writing to stderr so the
// output sink (stdout) stays a pure container byte stream.
func NewLogger(cfg config.LoggingConfig) *slog.Logger {
	return NewLoggerWithWriter(cfg, os.Stderr)
}

// NewLoggerWithWriter is NewLogger with an explicit destination, used by
// tests.
func NewLoggerWithWriter(cfg config.LoggingConfig, w io.Writer) *slog.Logger {
	GlobalLogLevel.Set(parseLevel(cfg.Level))

	redactor := sensitiveFieldRedactor()

	opts := &slog.HandlerOptions{
		Level:     GlobalLogLevel,
		AddSource: cfg.AddSource,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			a = redactor(groups, a)
			if a.Value.Kind() == slog.KindString {
				if redacted := urlSensitiveParamPattern.ReplaceAllString(a.Value.String(), "$1=[REDACTED]"); redacted != a.Value.String() {
					a = slog.String(a.Key, redacted)
				}
			}
			if a.Key == slog.TimeKey && cfg.TimeFormat != "" {
				if t, ok := a.Value.Any().(time.Time); ok {
					return slog.String(slog.TimeKey, t.Format(cfg.TimeFormat))
				}
			}
			return a
		},
	}

	var handler slog.Handler
	switch cfg.Format {
	case "text":
		handler = slog.NewTextHandler(w, opts)
	default:
		handler = slog.NewJSONHandler(w, opts)
	}
	return slog.New(handler)
}

// sensitiveFieldRedactor masks any log attribute whose key names a
// credential, regardless of where in the attribute tree it appears.
func sensitiveFieldRedactor() func(groups []string, a slog.Attr) slog.Attr {
	return masq.New(
		masq.WithFieldName("password"),
		masq.WithFieldName("Password"),
		masq.WithFieldName("secret"),
		masq.WithFieldName("Secret"),
		masq.WithFieldName("token"),
		masq.WithFieldName("Token"),
		masq.WithFieldName("passphrase"),
		masq.WithFieldName("Passphrase"),
		masq.WithFieldName("credential"),
		masq.WithFieldName("Credential"),
	)
}

func parseLevel(level string) slog.Level {
	switch level {
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

// SetLogLevel changes the global log level at runtime.
func SetLogLevel(level string) {
	GlobalLogLevel.Set(parseLevel(level))
}

// WithComponent tags a logger with the subsystem emitting through it
// (mediaio, ingest, compositor, …).
func WithComponent(logger *slog.Logger, component string) *slog.Logger {
	return logger.With(slog.String("component", component))
}

// WithError attaches an error to a logger's attribute set, a no-op when err
// is nil so call sites don't need to guard it themselves.
func WithError(logger *slog.Logger, err error) *slog.Logger {
	if err == nil {
		return logger
	}
	return logger.With(slog.String("error", err.Error()))
}
