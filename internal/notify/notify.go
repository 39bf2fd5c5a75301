package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"trailmark/internal/metrics"
)

// Policy decides whether a persisted visit is worth a notification.
type Policy struct {
	MinDuration time.Duration
	MinScroll   float64
}

// Qualifies reports whether the visit was long and deep enough and the
// page has a summary to show.
func (p Policy) Qualifies(duration time.Duration, scroll *float64, summary string) bool {
	if summary == "" || scroll == nil {
		return false
	}
	return duration >= p.MinDuration && *scroll >= p.MinScroll
}

type Notifier interface {
	Notify(ctx context.Context, message string) error
}

// HTTPNotifier posts {"message": ...} to a webhook.
type HTTPNotifier struct {
	url        string
	httpClient *http.Client
}

func NewHTTPNotifier(url string) *HTTPNotifier {
	return &HTTPNotifier{
		url:        url,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

func (n *HTTPNotifier) Notify(ctx context.Context, message string) error {
	body, err := json.Marshal(map[string]string{"message": message})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create notify request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		metrics.NotificationsSent.WithLabelValues("error").Inc()
		return fmt.Errorf("notify request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 300 {
		metrics.NotificationsSent.WithLabelValues("error").Inc()
		return fmt.Errorf("notify endpoint returned status %d", resp.StatusCode)
	}
	metrics.NotificationsSent.WithLabelValues("sent").Inc()
	return nil
}

// Nop is used when no webhook is configured.
type Nop struct{}

func (Nop) Notify(ctx context.Context, message string) error {
	slog.DebugContext(ctx, "notification skipped, no endpoint configured")
	return nil
}
