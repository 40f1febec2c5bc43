package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

var levelVar = new(slog.LevelVar)

var L = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: levelVar}))

// SetLevel configures the global log level (debug, info, warn, error).
func SetLevel(lvl string) {
	switch strings.ToLower(lvl) {
	case "debug":
		levelVar.Set(slog.LevelDebug)
	case "warn":
		levelVar.Set(slog.LevelWarn)
	case "error":
		levelVar.Set(slog.LevelError)
	default:
		levelVar.Set(slog.LevelInfo)
	}
}

// SetOutput redirects the global logger. When file is non-empty, records go to
// stdout and to a rotating log file; the returned closer releases the file.
func SetOutput(file string) io.Closer {
	if file == "" {
		return nopCloser{}
	}
	rotator := &lumberjack.Logger{
		Filename:   file,
		MaxSize:    10, // MB
		MaxBackups: 3,
		MaxAge:     28,
		Compress:   true,
	}
	L = slog.New(slog.NewJSONHandler(io.MultiWriter(os.Stdout, rotator), &slog.HandlerOptions{Level: levelVar}))
	return rotator
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
