package queue

import (
	"context"
	"log/slog"
	"strings"
)

// nsqLogger routes go-nsq's line logger into slog. go-nsq prefixes each
// line with a three letter level (DBG, INF, WRN, ERR).
type nsqLogger struct {
	logger *slog.Logger
}

func newNSQLogger(logger *slog.Logger) nsqLogger {
	if logger == nil {
		logger = slog.Default()
	}
	return nsqLogger{logger: logger}
}

func (l nsqLogger) Output(calldepth int, s string) error {
	level := slog.LevelInfo
	msg := s
	if len(s) >= 3 {
		switch s[:3] {
		case "ERR":
			level = slog.LevelError
		case "WRN":
			level = slog.LevelWarn
		case "DBG":
			level = slog.LevelDebug
		}
		switch s[:3] {
		case "ERR", "WRN", "DBG", "INF":
			msg = strings.TrimSpace(s[3:])
		}
	}
	l.logger.Log(context.Background(), level, msg, "component", "nsq")
	return nil
}
