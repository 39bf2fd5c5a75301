package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/nsqio/go-nsq"

	"trailmark/features/visit"
	"trailmark/internal/config"
	"trailmark/internal/metrics"
	"trailmark/internal/notify"
)

// PersistConsumer materializes processed actions and, when the visit was
// engaged enough, hands the resolved summary to the notifier.
type PersistConsumer struct {
	recorder VisitRecorder
	notifier notify.Notifier
	policy   notify.Policy
	dead     *deadLetter
}

func NewPersistConsumer(r VisitRecorder, n notify.Notifier, policy notify.Policy, p TaskPublisher, jobs FailedJobStore) *PersistConsumer {
	if n == nil {
		n = notify.Nop{}
	}
	return &PersistConsumer{
		recorder: r,
		notifier: n,
		policy:   policy,
		dead: &deadLetter{
			topic:   config.TopicProcessed,
			handler: "persist",
			jobs:    jobs,
			pub:     p,
		},
	}
}

// HandleMessage acknowledges only after the visit transaction commits.
// Persistence errors are returned so the message is redelivered.
func (h *PersistConsumer) HandleMessage(m *nsq.Message) error {
	start := time.Now()
	defer func() {
		metrics.HandleDuration.WithLabelValues(config.TopicProcessed).Observe(time.Since(start).Seconds())
	}()

	msg, err := ParseMessage(m.Body)
	if err != nil {
		ctx := contextFor("")
		slog.ErrorContext(ctx, "poison pill: invalid processed message", "error", err)
		return h.dead.park(ctx, m.Body, m.Attempts, err)
	}
	ctx := contextFor(msg.CorrelationID)

	action := msg.Action()
	res, err := h.recorder.Record(ctx, action)
	if err != nil {
		slog.ErrorContext(ctx, "failed to persist action, requeueing", "url", msg.URL, "attempts", m.Attempts, "error", err)
		metrics.MessagesProcessed.WithLabelValues(config.TopicProcessed, "requeue").Inc()
		return err
	}
	slog.InfoContext(ctx, "action persisted", "page_id", res.PageID, "visit_id", res.VisitID)
	metrics.MessagesProcessed.WithLabelValues(config.TopicProcessed, "ack").Inc()

	h.maybeNotify(ctx, action, res)
	return nil
}

// LogFailedMessage implements nsq.FailedMessageLogger.
func (h *PersistConsumer) LogFailedMessage(m *nsq.Message) {
	h.dead.logFailed(m)
}

func (h *PersistConsumer) maybeNotify(ctx context.Context, a visit.Action, res visit.Result) {
	duration, ok := visit.Duration(a.VisitStart, a.VisitEnd)
	if !ok || !h.policy.Qualifies(duration, a.ScrollDepth, res.Summary) {
		return
	}
	if err := h.notifier.Notify(ctx, res.Summary); err != nil {
		slog.WarnContext(ctx, "notification failed", "page_id", res.PageID, "error", err)
		return
	}
	slog.InfoContext(ctx, "notification dispatched", "page_id", res.PageID, "duration", duration)
}
