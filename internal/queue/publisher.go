package queue

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nsqio/go-nsq"

	"trailmark/internal/config"
	"trailmark/internal/metrics"
)

// Producer is the subset of *nsq.Producer the publisher needs.
type Producer interface {
	Publish(topic string, body []byte) error
}

// Publisher is a long-lived, goroutine-safe handle for publishing to any
// topic. nsqd persists messages past its in-memory queue, so messages
// survive a broker restart when nsqd runs with --mem-queue-size=0.
type Publisher struct {
	producer Producer
}

func NewPublisher(p Producer) *Publisher {
	return &Publisher{producer: p}
}

func (p *Publisher) Publish(topic string, body []byte) error {
	if err := p.producer.Publish(topic, body); err != nil {
		return fmt.Errorf("publish to %s: %w", topic, err)
	}
	metrics.MessagesPublished.WithLabelValues(topic).Inc()
	return nil
}

func (p *Publisher) PublishJSON(topic string, v any) error {
	body, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s message: %w", topic, err)
	}
	return p.Publish(topic, body)
}

// NewProducer connects to nsqd, retrying the ping a bounded number of
// times before giving up.
func NewProducer(cfg *config.Config, logger *slog.Logger) (*nsq.Producer, error) {
	producer, err := nsq.NewProducer(cfg.NSQDHost, nsq.NewConfig())
	if err != nil {
		return nil, fmt.Errorf("nsq producer error: %w", err)
	}
	producer.SetLogger(newNSQLogger(logger), nsq.LogLevelWarning)

	err = retry(cfg.NSQConnectAttempts, cfg.ConnectDelay(), func(attempt int) error {
		if err := producer.Ping(); err != nil {
			slog.Warn("failed to ping nsqd, retrying...", "addr", cfg.NSQDHost, "attempt", attempt, "error", err)
			return err
		}
		return nil
	})
	if err != nil {
		producer.Stop()
		return nil, fmt.Errorf("%w: nsqd %s: %v", ErrConnectExhausted, cfg.NSQDHost, err)
	}
	return producer, nil
}

func retry(attempts int, delay time.Duration, fn func(attempt int) error) error {
	if attempts < 1 {
		attempts = 1
	}
	var err error
	for i := 0; i < attempts; i++ {
		if err = fn(i + 1); err == nil {
			return nil
		}
		if i < attempts-1 {
			time.Sleep(delay)
		}
	}
	return err
}
