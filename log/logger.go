package log

import (
	"fmt"
	"io"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Logger interface {
	Log(format string, a ...interface{})
}

var (
	_ Logger = &logger{}
	_ Logger = &nopLogger{}
)

type logger struct {
	z *zap.SugaredLogger
}

// NewLogger returns a logger writing console-encoded lines to w. Writes are
// serialized, so one logger may be shared by concurrent generations.
func NewLogger(w io.Writer) (*logger, error) {
	if w == nil {
		return nil, fmt.Errorf("w is nil; NewLogger() needs a writer")
	}
	return newLogger(w, zapcore.DebugLevel), nil
}

// NewLoggerWithLevel is NewLogger with a minimum level such as "info" or "warn".
func NewLoggerWithLevel(w io.Writer, level string) (*logger, error) {
	if w == nil {
		return nil, fmt.Errorf("w is nil; NewLoggerWithLevel() needs a writer")
	}
	var lv zapcore.Level
	if level != "" {
		err := lv.UnmarshalText([]byte(level))
		if err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", level, err)
		}
	}
	return newLogger(w, lv), nil
}

func newLogger(w io.Writer, lv zapcore.Level) *logger {
	encCfg := zap.NewDevelopmentEncoderConfig()
	encCfg.TimeKey = ""
	encCfg.CallerKey = ""
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), zapcore.Lock(zapcore.AddSync(w)), lv)
	return &logger{
		z: zap.New(core).Sugar(),
	}
}

func (l *logger) Log(format string, a ...interface{}) {
	l.z.Infof(format, a...)
}

// Zap exposes the underlying logger for callers that want structured fields.
func (l *logger) Zap() *zap.Logger {
	return l.z.Desugar()
}

// Sync flushes buffered entries.
func (l *logger) Sync() error {
	return l.z.Sync()
}

type nopLogger struct {
}

func NewNopLogger() *nopLogger {
	return &nopLogger{}
}

func (l *nopLogger) Log(format string, a ...interface{}) {
}
