// Package logging builds the process logger. Everything below cmd/ logs
// through the one-method Logger seam with key=value messages; this package
// turns those into zap entries.
package logging

import (
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is the seam internal packages depend on. *log.Logger satisfies it.
type Logger interface {
	Printf(format string, v ...any)
}

// Format selects the encoder.
type Format string

const (
	FormatConsole Format = "console"
	FormatJSON    Format = "json"
)

// New returns a sugared logger writing to w. verbose enables debug entries.
func New(w io.Writer, format Format, verbose bool) (*zap.SugaredLogger, error) {
	encCfg := zapcore.EncoderConfig{
		TimeKey:        "ts",
		LevelKey:       "level",
		MessageKey:     "msg",
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
	}

	var enc zapcore.Encoder
	switch format {
	case FormatJSON:
		enc = zapcore.NewJSONEncoder(encCfg)
	case FormatConsole, "":
		encCfg.ConsoleSeparator = "\t"
		enc = zapcore.NewConsoleEncoder(encCfg)
	default:
		return nil, fmt.Errorf("logging: unknown format %q", format)
	}

	level := zapcore.InfoLevel
	if verbose {
		level = zapcore.DebugLevel
	}
	core := zapcore.NewCore(enc, zapcore.AddSync(w), level)
	return zap.New(core).Sugar(), nil
}

// Nop discards everything.
func Nop() Logger { return printfLogger{l: zap.NewNop().Sugar()} }

// Printf adapts l to Logger. A "level=warn", "level=error" or "level=debug"
// pair in the message selects that level; everything else is info.
func Printf(l *zap.SugaredLogger) Logger {
	if l == nil {
		return Nop()
	}
	return printfLogger{l: l}
}

type printfLogger struct {
	l *zap.SugaredLogger
}

func (p printfLogger) Printf(format string, v ...any) {
	msg := fmt.Sprintf(format, v...)
	switch levelOf(msg) {
	case zapcore.DebugLevel:
		p.l.Debug(msg)
	case zapcore.WarnLevel:
		p.l.Warn(msg)
	case zapcore.ErrorLevel:
		p.l.Error(msg)
	default:
		p.l.Info(msg)
	}
}

func levelOf(msg string) zapcore.Level {
	for _, f := range strings.Fields(msg) {
		switch f {
		case "level=debug":
			return zapcore.DebugLevel
		case "level=warn":
			return zapcore.WarnLevel
		case "level=error":
			return zapcore.ErrorLevel
		}
	}
	return zapcore.InfoLevel
}
