package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Log is the process-wide logger used by the simulator and the CLI.
var Log *Logger

type Logger struct {
	z zerolog.Logger
}

func init() {
	Log = newLogger(os.Stderr, "console")
}

// ParseLevel maps a case-insensitive level name to zerolog. Unknown names
// fall back to info.
func ParseLevel(level string) zerolog.Level {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return zerolog.DebugLevel
	case "WARN":
		return zerolog.WarnLevel
	case "ERROR":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// Setup configures the global logger to write to stderr.
func Setup(level string, format string) {
	SetupWriter(os.Stderr, level, format)
}

// SetupWriter configures the global logger with an explicit sink.
// format is "json" or anything else for the human console writer.
func SetupWriter(w io.Writer, level string, format string) {
	zerolog.SetGlobalLevel(ParseLevel(level))
	Log = newLogger(w, format)
}

func newLogger(w io.Writer, format string) *Logger {
	var z zerolog.Logger
	if strings.ToLower(format) == "json" {
		z = zerolog.New(w).With().Timestamp().Logger()
	} else {
		output := zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
		z = zerolog.New(output).With().Timestamp().Logger()
	}
	return &Logger{z: z}
}

// With returns a child logger that tags every line with component.
func (l *Logger) With(component string) *Logger {
	return &Logger{z: l.z.With().Str("component", component).Logger()}
}

// Info logs at Info level with variadic key-value pairs
func (l *Logger) Info(msg string, args ...interface{}) {
	e := l.z.Info()
	addFields(e, args...)
	e.Msg(msg)
}

// Debug logs at Debug level with variadic key-value pairs
func (l *Logger) Debug(msg string, args ...interface{}) {
	e := l.z.Debug()
	addFields(e, args...)
	e.Msg(msg)
}

// Warn logs at Warn level with variadic key-value pairs
func (l *Logger) Warn(msg string, args ...interface{}) {
	e := l.z.Warn()
	addFields(e, args...)
	e.Msg(msg)
}

// Error logs at Error level with variadic key-value pairs
func (l *Logger) Error(msg string, args ...interface{}) {
	e := l.z.Error()
	addFields(e, args...)
	e.Msg(msg)
}

// addFields adds variadic key-value pairs to the event. A trailing key
// without a value is dropped.
func addFields(e *zerolog.Event, args ...interface{}) {
	for i := 0; i+1 < len(args); i += 2 {
		key, ok := args[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", args[i])
		}
		switch v := args[i+1].(type) {
		case float64:
			e.Float64(key, v)
		case int:
			e.Int(key, v)
		case int64:
			e.Int64(key, v)
		case string:
			e.Str(key, v)
		case error:
			e.AnErr(key, v)
		case time.Duration:
			e.Dur(key, v)
		default:
			e.Interface(key, v)
		}
	}
}
