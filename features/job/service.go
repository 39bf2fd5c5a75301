package job

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

var ErrPublishTimeout = errors.New("timeout waiting for NSQ publish")

const publishTimeout = 5 * time.Second

type EventPublisher interface {
	Publish(topic string, body []byte) error
}

type Service struct {
	repo   Repository
	pub    EventPublisher
	logger *slog.Logger
}

func NewService(repo Repository, pub EventPublisher, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, pub: pub, logger: logger}
}

func (s *Service) List(ctx context.Context) ([]Job, error) {
	return s.repo.List(ctx)
}

func (s *Service) Get(ctx context.Context, id string) (*Job, error) {
	return s.repo.Get(ctx, id)
}

// Discard drops a parked message without replaying it.
func (s *Service) Discard(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "job discarded", "id", id)
	return nil
}

// Retry republishes a parked message to its original topic and removes
// it from the store. The job is kept if the publish fails or times out.
func (s *Service) Retry(ctx context.Context, id string) error {
	job, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}

	done := make(chan error, 1)
	go func() {
		done <- s.pub.Publish(job.Topic, job.Payload)
	}()

	select {
	case err := <-done:
		if err != nil {
			return err
		}
	case <-time.After(publishTimeout):
		return ErrPublishTimeout
	case <-ctx.Done():
		return ctx.Err()
	}

	s.logger.InfoContext(ctx, "job republished", "id", id, "topic", job.Topic)
	return s.repo.Delete(ctx, id)
}

func (s *Service) Count(ctx context.Context) (int, error) {
	return s.repo.Count(ctx)
}
