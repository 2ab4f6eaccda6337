package logger

import (
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
)

type ZerologLogger struct {
	logger zerolog.Logger
}

type ZerologOptions struct {
	Output     io.Writer // defaults to os.Stderr
	Level      string    // debug, info, warn, error; defaults to info
	JSON       bool      // raw JSON lines instead of the console writer
	TimeFormat string    // console timestamp format
}

// NewZerologLogger returns a Logger printing colored console lines at
// info level.
func NewZerologLogger() Logger {
	return NewZerologLoggerWithOptions(ZerologOptions{})
}

func NewZerologLoggerWithOptions(opts ZerologOptions) Logger {
	if opts.Output == nil {
		opts.Output = os.Stderr
	}
	if opts.TimeFormat == "" {
		opts.TimeFormat = "15:04:05"
	}

	out := opts.Output
	if !opts.JSON {
		out = zerolog.ConsoleWriter{
			Out:        opts.Output,
			TimeFormat: opts.TimeFormat,
		}
	}

	level, err := zerolog.ParseLevel(opts.Level)
	if err != nil || opts.Level == "" {
		level = zerolog.InfoLevel
	}

	return &ZerologLogger{
		logger: zerolog.New(out).Level(level).With().Timestamp().Logger(),
	}
}

func (l *ZerologLogger) Debug(msg string, args ...any) {
	l.logger.Debug().Msg(fmt.Sprintf(msg, args...))
}

func (l *ZerologLogger) Info(msg string, args ...any) {
	l.logger.Info().Msg(fmt.Sprintf(msg, args...))
}

func (l *ZerologLogger) Warn(msg string, args ...any) {
	l.logger.Warn().Msg(fmt.Sprintf(msg, args...))
}

func (l *ZerologLogger) Error(msg string, args ...any) {
	l.logger.Error().Msg(fmt.Sprintf(msg, args...))
}
