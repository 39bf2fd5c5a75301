package queue

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"
)

// CreateTopics pre-creates topics through the nsqd HTTP API so that
// consumers discovering through lookupd do not see 404s before the first
// publish. Failures are logged; nsqd also creates topics lazily.
func CreateTopics(ctx context.Context, nsqdHTTP string, topics ...string) {
	client := &http.Client{Timeout: 5 * time.Second}
	for _, topic := range topics {
		u := fmt.Sprintf("http://%s/topic/create?topic=%s", nsqdHTTP, url.QueryEscape(topic))
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, nil)
		if err != nil {
			slog.Warn("failed to build NSQ topic request", "topic", topic, "error", err)
			continue
		}
		resp, err := client.Do(req) // #nosec G107 -- URL is built from internal NSQ config, not user input
		if err != nil {
			slog.Warn("failed to create NSQ topic", "topic", topic, "error", err)
			continue
		}
		if resp.StatusCode != http.StatusOK {
			slog.Warn("unexpected status creating NSQ topic", "topic", topic, "status", resp.StatusCode)
		}
		if closeErr := resp.Body.Close(); closeErr != nil {
			slog.Warn("failed to close NSQ topic creation response body", "error", closeErr)
		}
	}
}
