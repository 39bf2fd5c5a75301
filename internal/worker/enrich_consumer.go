package worker

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/nsqio/go-nsq"

	"trailmark/features/page"
	"trailmark/internal/config"
	"trailmark/internal/metrics"
	"trailmark/internal/middleware"
	"trailmark/internal/summarizer"
)

// EnrichConsumer turns raw user actions into processed ones: it attaches
// a summary and labels, served from the page cache when the content has
// been seen before and from the summarizer otherwise.
type EnrichConsumer struct {
	cache      PageCache
	summarizer Summarizer
	publisher  TaskPublisher
	roots      []string
	dead       *deadLetter
}

func NewEnrichConsumer(c PageCache, s Summarizer, p TaskPublisher, jobs FailedJobStore, roots []string) *EnrichConsumer {
	return &EnrichConsumer{
		cache:      c,
		summarizer: s,
		publisher:  p,
		roots:      roots,
		dead: &deadLetter{
			topic:   config.TopicRaw,
			handler: "enrich",
			jobs:    jobs,
			pub:     p,
		},
	}
}

func (h *EnrichConsumer) HandleMessage(m *nsq.Message) error {
	start := time.Now()
	defer func() {
		metrics.HandleDuration.WithLabelValues(config.TopicRaw).Observe(time.Since(start).Seconds())
	}()

	msg, err := ParseMessage(m.Body)
	if err != nil {
		ctx := contextFor("")
		slog.ErrorContext(ctx, "poison pill: invalid raw message", "error", err)
		return h.dead.park(ctx, m.Body, m.Attempts, err)
	}

	ctx := contextFor(msg.CorrelationID)
	msg.CorrelationID = middleware.GetCorrelationID(ctx)

	if err := h.enrich(ctx, msg); err != nil {
		metrics.MessagesProcessed.WithLabelValues(config.TopicRaw, "requeue").Inc()
		return err
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return h.dead.park(ctx, m.Body, m.Attempts, err)
	}
	if err := h.publisher.Publish(config.TopicProcessed, body); err != nil {
		slog.ErrorContext(ctx, "failed to publish processed message", "error", err)
		metrics.MessagesProcessed.WithLabelValues(config.TopicRaw, "requeue").Inc()
		return err
	}

	metrics.MessagesProcessed.WithLabelValues(config.TopicRaw, "ack").Inc()
	return nil
}

// LogFailedMessage implements nsq.FailedMessageLogger.
func (h *EnrichConsumer) LogFailedMessage(m *nsq.Message) {
	h.dead.logFailed(m)
}

// enrich sets msg.Summary and msg.Labels. Summarizer failures degrade to
// a truncated-text summary; only cache errors are returned.
func (h *EnrichConsumer) enrich(ctx context.Context, msg *Message) error {
	action := msg.Action()
	hash := action.ContentHash()

	cached, hit, err := h.cache.Lookup(ctx, hash)
	if err != nil {
		slog.ErrorContext(ctx, "page cache lookup failed", "url_hash", hash, "error", err)
		return err
	}
	if hit {
		metrics.CacheHits.Inc()
		slog.InfoContext(ctx, "page cache hit", "url_hash", hash)
		msg.Summary = &cached.Summary
		msg.Labels = cached.Labels
		return nil
	}

	metrics.CacheMisses.Inc()
	res, err := h.summarizer.Summarize(ctx, msg.Title, msg.Text, h.roots)
	if err != nil {
		slog.WarnContext(ctx, "summarizer failed, using fallback summary", "url_hash", hash, "error", err)
		metrics.SummarizerCalls.WithLabelValues("fallback").Inc()
		res = summarizer.Fallback(msg.Text)
	}

	p := &page.Page{
		URL:         msg.URL,
		ContentHash: hash,
		Title:       msg.Title,
		Summary:     &res.Summary,
		Labels:      res.Labels,
		SourceType:  page.SourceTypeFor(msg.URL),
	}
	if err := h.cache.StoreOrMerge(ctx, p); err != nil {
		slog.ErrorContext(ctx, "failed to write page cache", "url_hash", hash, "error", err)
		return err
	}

	slog.InfoContext(ctx, "page enriched", "url_hash", hash, "labels", len(res.Labels))
	msg.Summary = &res.Summary
	msg.Labels = res.Labels
	return nil
}

func contextFor(correlationID string) context.Context {
	ctx, _ := middleware.EnsureCorrelationID(context.Background(), correlationID)
	return ctx
}
