package worker_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trailmark/features/job"
	"trailmark/features/page"
	"trailmark/features/taxonomy"
	"trailmark/features/visit"
	"trailmark/internal/config"
	"trailmark/internal/queue"
	"trailmark/internal/summarizer"
	"trailmark/internal/testutils"
	"trailmark/internal/text"
	"trailmark/internal/worker"
)

type countingSummarizer struct {
	mu    sync.Mutex
	calls int
}

func (s *countingSummarizer) Summarize(ctx context.Context, title, body string, roots []string) (summarizer.Result, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	return summarizer.Result{
		Summary: "summary of " + title,
		Labels:  []taxonomy.Label{{Root: "Technology", Subs: []string{"Go"}}, {Root: "Unknown", Subs: []string{"x"}}},
	}, nil
}

func (s *countingSummarizer) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type recordingNotifier struct {
	mu       sync.Mutex
	messages []string
}

func (n *recordingNotifier) Notify(ctx context.Context, message string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = append(n.messages, message)
	return nil
}

func (n *recordingNotifier) Messages() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.messages...)
}

func TestPipelineIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	s := testutils.NewIntegrationSuite(t)
	s.Setup()
	defer s.Teardown()

	ctx := context.Background()
	require.NoError(t, taxonomy.NewPostgresRepo(s.DB).SeedRoots(ctx, taxonomy.DefaultRoots))

	cfg := &config.Config{
		NSQDHost:           s.NSQDAddr,
		NSQMaxAttempts:     5,
		NSQConnectAttempts: 3,
	}
	queue.CreateTopics(ctx, s.NSQDHTTP, config.TopicRaw, config.TopicProcessed, config.TopicDeadLetter)

	pub := queue.NewPublisher(s.NSQ)
	jobs := job.NewPostgresRepo(s.DB)
	sum := &countingSummarizer{}
	notifier := &recordingNotifier{}

	enrich := worker.NewEnrichConsumer(page.NewPostgresRepo(s.DB), sum, pub, jobs, taxonomy.DefaultRoots)
	persist := worker.NewPersistConsumer(visit.NewRecorder(s.DB), notifier, policy, pub, jobs)

	enrichC, err := queue.NewConsumer(cfg, config.TopicRaw, "enrich", enrich, nil)
	require.NoError(t, err)
	defer enrichC.Stop()
	persistC, err := queue.NewConsumer(cfg, config.TopicProcessed, "persist", persist, nil)
	require.NoError(t, err)
	defer persistC.Stop()

	body := []byte(`{"url":"http://x","title":"T","text":"body","user_id":"u1","session_id":"s1","scroll_depth":0.5,"visit_start":"2024-01-01T00:00:00Z","visit_end":"2024-01-01T00:01:00Z"}`)
	require.NoError(t, pub.Publish(config.TopicRaw, body))

	countVisits := func() int {
		var n int
		require.NoError(t, s.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM page_visits`).Scan(&n))
		return n
	}
	require.Eventually(t, func() bool { return countVisits() == 1 }, 30*time.Second, 200*time.Millisecond)

	var pages int
	require.NoError(t, s.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM pages WHERE url_hash = $1`, text.Hash("http://x")).Scan(&pages))
	assert.Equal(t, 1, pages)

	var scroll float64
	require.NoError(t, s.DB.QueryRowContext(ctx, `SELECT scroll_depth FROM page_visits`).Scan(&scroll))
	assert.InDelta(t, 0.5, scroll, 1e-9)

	var links int
	require.NoError(t, s.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM page_categories`).Scan(&links))
	assert.Equal(t, 1, links, "unknown root is skipped")

	require.Eventually(t, func() bool { return len(notifier.Messages()) == 1 }, 10*time.Second, 100*time.Millisecond)
	assert.Equal(t, "summary of T", notifier.Messages()[0])

	// Same content again: served from the cache, new visit row.
	require.NoError(t, pub.Publish(config.TopicRaw, body))
	require.Eventually(t, func() bool { return countVisits() == 2 }, 30*time.Second, 200*time.Millisecond)
	assert.Equal(t, 1, sum.Calls())

	// Poison pill lands in failed_jobs.
	require.NoError(t, pub.Publish(config.TopicRaw, []byte(`not json`)))
	require.Eventually(t, func() bool {
		n, err := jobs.Count(ctx)
		return err == nil && n == 1
	}, 30*time.Second, 200*time.Millisecond)
}
