package core

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

type LoggerItem struct {
	Event    string
	Messages string
	Error    error       `json:"error,omitempty"`
	Data     interface{} `json:"data"`
}

type Logger interface {
	Infor(*LoggerItem)
}

type logger struct {
	zl zerolog.Logger
}

// NewLogger writes structured JSON events to w
func NewLogger(w io.Writer) Logger {
	return &logger{
		zl: zerolog.New(w).With().Timestamp().Str("component", "doffy-aop").Logger(),
	}
}

func InitLogger() Logger {
	return NewLogger(os.Stdout)
}

// Infor logs payload at info level, or error level when it carries an error
func (l *logger) Infor(payload *LoggerItem) {
	ev := l.zl.Info()
	if payload.Error != nil {
		ev = l.zl.Error().Err(payload.Error)
	}
	if payload.Data != nil {
		ev = ev.Interface("data", payload.Data)
	}
	ev.Str("event", payload.Event).Msg(payload.Messages)
}

// NopLogger discards everything
func NopLogger() Logger {
	return &logger{zl: zerolog.Nop()}
}

func DefaultLogger() Logger {
	logger := InitLogger()

	logger.Infor(&LoggerItem{
		Event:    "initLoggerSuccefully",
		Messages: "init logger successfully",
		Data: struct {
			CreatedAt time.Time `json:"create_at"`
		}{
			CreatedAt: time.Now().UTC(),
		},
	})

	return logger
}
