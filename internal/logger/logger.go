package logger

import (
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"codeberg.org/mutker/tdpctl/internal/errors"
	"github.com/rs/zerolog"
)

var (
	mu  sync.RWMutex
	log = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		With().Timestamp().Logger()
)

type LogLevel int8

const (
	DebugLevel LogLevel = iota
	InfoLevel
	WarnLevel
	ErrorLevel
	FatalLevel
)

type LogEvent struct {
	*zerolog.Event
}

func (e *LogEvent) Msg(msg string) {
	e.Event.Msg(msg)
}

func (e *LogEvent) Send() {
	e.Event.Send()
}

// Init initializes the logger for the given level name and output.
func Init(level string, isService bool, out io.Writer) error {
	lvl, err := ParseLevel(level)
	if err != nil {
		return err
	}

	if out == nil {
		out = os.Stdout
	}

	output := zerolog.ConsoleWriter{
		Out:        out,
		TimeFormat: time.RFC3339,
	}

	// journald adds its own timestamps and does not render colors
	if isService {
		output.NoColor = true
		output.TimeFormat = ""
		output.FormatTimestamp = func(_ interface{}) string {
			return ""
		}
	}

	mu.Lock()
	log = zerolog.New(output).With().Timestamp().Logger()
	mu.Unlock()

	SetLogLevel(lvl)

	return nil
}

// ParseLevel converts a configured level name into a LogLevel.
func ParseLevel(level string) (LogLevel, error) {
	switch strings.ToLower(level) {
	case "debug":
		return DebugLevel, nil
	case "info", "":
		return InfoLevel, nil
	case "warn", "warning":
		return WarnLevel, nil
	case "error":
		return ErrorLevel, nil
	default:
		return InfoLevel, errors.New().WithData(errors.ErrInvalidLogLevel, level)
	}
}

// SetLogLevel sets the global log level
func SetLogLevel(level LogLevel) {
	zerolog.SetGlobalLevel(zerolog.Level(level))
}

func current() *zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	l := log
	return &l
}

// Debug logs a debug message
func Debug() *LogEvent {
	return &LogEvent{current().Debug()}
}

// Info logs an info message
func Info() *LogEvent {
	return &LogEvent{current().Info()}
}

// Warn logs a warning message
func Warn() *LogEvent {
	return &LogEvent{current().Warn()}
}

// Error logs an error message
func Error() *LogEvent {
	return &LogEvent{current().Error()}
}

// Fatal logs a fatal message and exits the program
func Fatal() *LogEvent {
	return &LogEvent{current().Fatal()}
}

// ErrorWithCode logs an error message with a specific error code
func ErrorWithCode(err errors.Error) *LogEvent {
	return withCode(current().Error(), err)
}

// FatalWithCode logs a fatal message with a specific error code and exits the program
func FatalWithCode(err errors.Error) *LogEvent {
	return withCode(current().Fatal(), err)
}

func withCode(e *zerolog.Event, err errors.Error) *LogEvent {
	return &LogEvent{e.
		Str("error_code", string(err.Code())).
		Str("error_message", err.Error()).
		AnErr("error", err.Unwrap())}
}

// fieldLogger tags events with a fixed set of fields. Events are built
// against the current global logger so that Init after construction takes
// effect.
type fieldLogger struct {
	fields [][2]string
	nop    bool
}

// New returns a Logger for the named component.
func New(component string) Logger {
	return &fieldLogger{fields: [][2]string{{"component", component}}}
}

// Nop returns a Logger that discards everything.
func Nop() Logger {
	return &fieldLogger{nop: true}
}

func (l *fieldLogger) event(e *zerolog.Event) *LogEvent {
	for _, f := range l.fields {
		e = e.Str(f[0], f[1])
	}
	return &LogEvent{e}
}

func (l *fieldLogger) base() *zerolog.Logger {
	if l.nop {
		nop := zerolog.Nop()
		return &nop
	}
	return current()
}

func (l *fieldLogger) Debug() *LogEvent { return l.event(l.base().Debug()) }
func (l *fieldLogger) Info() *LogEvent  { return l.event(l.base().Info()) }
func (l *fieldLogger) Warn() *LogEvent  { return l.event(l.base().Warn()) }
func (l *fieldLogger) Error() *LogEvent { return l.event(l.base().Error()) }

func (l *fieldLogger) ErrorWithCode(err errors.Error) *LogEvent {
	ev := l.event(l.base().Error())
	return withCode(ev.Event, err)
}

func (l *fieldLogger) With(key, value string) Logger {
	fields := make([][2]string, 0, len(l.fields)+1)
	fields = append(fields, l.fields...)
	fields = append(fields, [2]string{key, value})

	return &fieldLogger{fields: fields, nop: l.nop}
}
