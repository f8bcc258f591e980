package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Logger - логгер с парами ключ/значение, передается в каждый слой через конструктор
type Logger interface {
	Debug(msg string, keysAndValues ...interface{})
	Info(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
	Fatal(msg string, keysAndValues ...interface{})
	With(keysAndValues ...interface{}) Logger
}

type zeroLogger struct {
	zl zerolog.Logger
}

// New возвращает JSON логгер в stdout с уровнем "debug", "info", "warn" или "error".
// Неизвестный уровень трактуется как info
func New(level string) Logger {
	return NewWithWriter(os.Stdout, level)
}

func NewWithWriter(w io.Writer, level string) Logger {
	zerolog.TimeFieldFormat = time.RFC3339Nano
	zl := zerolog.New(w).Level(ParseLevel(level)).With().Timestamp().Logger()
	return &zeroLogger{zl: zl}
}

// Nop ничего не пишет
func Nop() Logger {
	return &zeroLogger{zl: zerolog.Nop()}
}

func ParseLevel(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

func (l *zeroLogger) Debug(msg string, keysAndValues ...interface{}) {
	write(l.zl.Debug(), msg, keysAndValues)
}

func (l *zeroLogger) Info(msg string, keysAndValues ...interface{}) {
	write(l.zl.Info(), msg, keysAndValues)
}

func (l *zeroLogger) Warn(msg string, keysAndValues ...interface{}) {
	write(l.zl.Warn(), msg, keysAndValues)
}

func (l *zeroLogger) Error(msg string, keysAndValues ...interface{}) {
	write(l.zl.Error(), msg, keysAndValues)
}

func (l *zeroLogger) Fatal(msg string, keysAndValues ...interface{}) {
	write(l.zl.Fatal(), msg, keysAndValues)
}

func (l *zeroLogger) With(keysAndValues ...interface{}) Logger {
	return &zeroLogger{zl: l.zl.With().Fields(normalize(keysAndValues)).Logger()}
}

func write(e *zerolog.Event, msg string, keysAndValues []interface{}) {
	if e == nil {
		return
	}
	e.Fields(normalize(keysAndValues)).Msg(msg)
}

// normalize дополняет ключ без значения и заменяет нестроковые ключи
func normalize(keysAndValues []interface{}) []interface{} {
	if len(keysAndValues)%2 != 0 {
		keysAndValues = append(keysAndValues, "(MISSING)")
	}
	out := make([]interface{}, len(keysAndValues))
	for i := 0; i < len(keysAndValues); i += 2 {
		key, ok := keysAndValues[i].(string)
		if !ok {
			key = "!BADKEY"
		}
		out[i] = key
		out[i+1] = keysAndValues[i+1]
	}
	return out
}
