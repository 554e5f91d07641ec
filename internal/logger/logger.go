// Package logger configures the process-wide structured logger each
// runtime instance, the host ABI, and the guest shim all log through.
package logger

import (
	"io"
	"log/slog"
	"os"

	"github.com/google/uuid"
)

// Init builds the process-wide logger: level parsed from level, output
// tee'd to stdout and, if set, logFile, every record tagged with a fixed
// "instance" attribute so concurrent splitrt processes' logs can be told
// apart once aggregated.
func Init(level, logFile string, instance uuid.UUID) (*slog.Logger, error) {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	writers := []io.Writer{os.Stdout}
	if logFile != "" {
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, err
		}
		writers = append(writers, f)
	}

	handler := slog.NewTextHandler(io.MultiWriter(writers...), &slog.HandlerOptions{
		Level: logLevel,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				return slog.String("time", a.Value.Time().Format("15:04:05.000"))
			}
			return a
		},
	})

	log := slog.New(handler).With("instance", instance.String())
	slog.SetDefault(log)
	return log, nil
}
