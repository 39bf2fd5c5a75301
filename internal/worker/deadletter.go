package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nsqio/go-nsq"

	"trailmark/features/job"
	"trailmark/internal/config"
	"trailmark/internal/metrics"
)

// go-nsq finishes a message once LogFailedMessage returns, so saving the
// job is retried a few times before the message is given up.
var (
	parkAttempts   = 3
	parkRetryDelay = time.Second
)

// deadLetter parks messages that will never succeed. The job row is what
// an operator retries from; the dead topic lets other systems observe
// the failure.
type deadLetter struct {
	topic   string
	handler string
	jobs    FailedJobStore
	pub     TaskPublisher
}

// park stores body with the reason it failed. It only errors when the
// message could not be recorded anywhere, in which case the caller
// should requeue it.
func (d *deadLetter) park(ctx context.Context, body []byte, attempts uint16, cause error) error {
	return d.parkJob(ctx, d.newJob(body, attempts, cause))
}

func (d *deadLetter) newJob(body []byte, attempts uint16, cause error) *job.Job {
	return &job.Job{
		Topic:   d.topic,
		Handler: d.handler,
		Payload: json.RawMessage(append([]byte(nil), body...)),
		Error:   cause.Error(),
		Retries: int(attempts),
	}
}

func (d *deadLetter) parkJob(ctx context.Context, j *job.Job) error {
	metrics.MessagesProcessed.WithLabelValues(d.topic, "dead_letter").Inc()
	saveErr := d.jobs.Save(ctx, j)
	if saveErr != nil {
		slog.ErrorContext(ctx, "failed to save failed job", "topic", d.topic, "error", saveErr)
	} else {
		slog.WarnContext(ctx, "message parked as failed job", "topic", d.topic, "job_id", j.ID, "reason", j.Error)
	}

	envelope, err := json.Marshal(j)
	if err != nil {
		return errors.Join(saveErr, err)
	}
	pubErr := d.pub.Publish(config.TopicDeadLetter, envelope)
	if pubErr != nil {
		slog.ErrorContext(ctx, "failed to publish to dead letter topic", "topic", d.topic, "error", pubErr)
	}

	if saveErr != nil && pubErr != nil {
		return fmt.Errorf("dead letter %s: %w", d.topic, errors.Join(saveErr, pubErr))
	}
	return nil
}

// logFailed is the go-nsq FailedMessageLogger hook: the message has been
// delivered more than NSQMaxAttempts times and will be finished.
func (d *deadLetter) logFailed(m *nsq.Message) {
	ctx := context.Background()
	if msg, err := ParseMessage(m.Body); err == nil && msg.CorrelationID != "" {
		ctx = contextFor(msg.CorrelationID)
	}
	j := d.newJob(m.Body, m.Attempts, fmt.Errorf("giving up after %d attempts", m.Attempts))

	err := d.parkJob(ctx, j)
	for attempt := 1; err != nil && attempt < parkAttempts; attempt++ {
		slog.WarnContext(ctx, "retrying failed job save", "topic", d.topic, "attempt", attempt, "error", err)
		time.Sleep(parkRetryDelay)
		if err = d.jobs.Save(ctx, j); err == nil {
			slog.WarnContext(ctx, "message parked as failed job", "topic", d.topic, "job_id", j.ID, "reason", j.Error)
		}
	}
	if err != nil {
		slog.ErrorContext(ctx, "dropping message, dead letter unavailable", "topic", d.topic, "error", err)
	}
}
