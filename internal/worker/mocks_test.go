package worker_test

import (
	"context"

	"github.com/stretchr/testify/mock"

	"trailmark/features/job"
	"trailmark/features/page"
	"trailmark/features/visit"
	"trailmark/internal/summarizer"
)

// Mocks

type MockPageCache struct{ mock.Mock }

func (m *MockPageCache) Lookup(ctx context.Context, hash string) (*page.Cached, bool, error) {
	args := m.Called(ctx, hash)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).(*page.Cached), args.Bool(1), args.Error(2)
}

func (m *MockPageCache) StoreOrMerge(ctx context.Context, p *page.Page) error {
	args := m.Called(ctx, p)
	return args.Error(0)
}

type MockSummarizer struct{ mock.Mock }

func (m *MockSummarizer) Summarize(ctx context.Context, title, body string, roots []string) (summarizer.Result, error) {
	args := m.Called(ctx, title, body, roots)
	return args.Get(0).(summarizer.Result), args.Error(1)
}

type MockPublisher struct{ mock.Mock }

func (m *MockPublisher) Publish(topic string, body []byte) error {
	args := m.Called(topic, body)
	return args.Error(0)
}

type MockJobRepo struct{ mock.Mock }

func (m *MockJobRepo) Save(ctx context.Context, j *job.Job) error {
	args := m.Called(ctx, j)
	return args.Error(0)
}

type MockRecorder struct{ mock.Mock }

func (m *MockRecorder) Record(ctx context.Context, a visit.Action) (visit.Result, error) {
	args := m.Called(ctx, a)
	return args.Get(0).(visit.Result), args.Error(1)
}

type MockNotifier struct{ mock.Mock }

func (m *MockNotifier) Notify(ctx context.Context, message string) error {
	args := m.Called(ctx, message)
	return args.Error(0)
}
