package worker

import (
	"context"

	"trailmark/features/job"
	"trailmark/features/page"
	"trailmark/features/visit"
	"trailmark/internal/summarizer"
)

type PageCache interface {
	Lookup(ctx context.Context, contentHash string) (*page.Cached, bool, error)
	StoreOrMerge(ctx context.Context, p *page.Page) error
}

type Summarizer interface {
	Summarize(ctx context.Context, title, body string, roots []string) (summarizer.Result, error)
}

type TaskPublisher interface {
	Publish(topic string, body []byte) error
}

type FailedJobStore interface {
	Save(ctx context.Context, j *job.Job) error
}

type VisitRecorder interface {
	Record(ctx context.Context, a visit.Action) (visit.Result, error)
}
