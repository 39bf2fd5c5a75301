package queue

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/nsqio/go-nsq"

	"trailmark/internal/config"
)

// ErrConnectExhausted is returned when the broker stays unreachable for
// every configured attempt. Callers treat it as fatal.
var ErrConnectExhausted = errors.New("nsq connect attempts exhausted")

// NewConsumer subscribes handler to topic/channel with one message in
// flight at a time. A nil return from the handler acknowledges the
// message; an error requeues it. Once a message has been delivered
// NSQMaxAttempts times it is passed to the handler's LogFailedMessage,
// if implemented, and finished.
func NewConsumer(cfg *config.Config, topic, channel string, handler nsq.Handler, logger *slog.Logger) (*nsq.Consumer, error) {
	nsqCfg := nsq.NewConfig()
	nsqCfg.MaxInFlight = 1
	nsqCfg.MaxAttempts = cfg.NSQMaxAttempts

	consumer, err := nsq.NewConsumer(topic, channel, nsqCfg)
	if err != nil {
		return nil, fmt.Errorf("nsq consumer error: %w", err)
	}
	consumer.SetLogger(newNSQLogger(logger), nsq.LogLevelWarning)
	consumer.AddHandler(handler)

	connect := func() error { return consumer.ConnectToNSQD(cfg.NSQDHost) }
	target := cfg.NSQDHost
	if cfg.NSQLookupd != "" {
		connect = func() error { return consumer.ConnectToNSQLookupd(cfg.NSQLookupd) }
		target = cfg.NSQLookupd
	}

	err = retry(cfg.NSQConnectAttempts, cfg.ConnectDelay(), func(attempt int) error {
		if err := connect(); err != nil {
			slog.Warn("failed to connect consumer, retrying...", "topic", topic, "channel", channel, "addr", target, "attempt", attempt, "error", err)
			return err
		}
		return nil
	})
	if err != nil {
		consumer.Stop()
		return nil, fmt.Errorf("%w: %s/%s via %s: %v", ErrConnectExhausted, topic, channel, target, err)
	}

	slog.Info("NSQ consumer connected", "topic", topic, "channel", channel, "addr", target)
	return consumer, nil
}
