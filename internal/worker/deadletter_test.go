package worker

import (
	"context"
	"errors"
	"testing"

	"github.com/nsqio/go-nsq"
	"github.com/stretchr/testify/assert"

	"trailmark/features/job"
)

type flakyJobStore struct {
	failures int
	calls    int
	saved    []*job.Job
}

func (s *flakyJobStore) Save(ctx context.Context, j *job.Job) error {
	s.calls++
	if s.calls <= s.failures {
		return errors.New("connection refused")
	}
	s.saved = append(s.saved, j)
	return nil
}

type downPublisher struct{ calls int }

func (p *downPublisher) Publish(topic string, body []byte) error {
	p.calls++
	return errors.New("not connected")
}

func withoutParkDelay(t *testing.T) {
	t.Helper()
	prev := parkRetryDelay
	parkRetryDelay = 0
	t.Cleanup(func() { parkRetryDelay = prev })
}

func TestLogFailed_RetriesSaveWhenEverythingIsDown(t *testing.T) {
	withoutParkDelay(t)

	jobs := &flakyJobStore{failures: 2}
	pub := &downPublisher{}
	d := &deadLetter{topic: "raw", handler: "enrich", jobs: jobs, pub: pub}

	d.logFailed(&nsq.Message{Body: []byte(`{"url":"http://x"}`), Attempts: 11})

	assert.Equal(t, 3, jobs.calls)
	assert.Equal(t, 1, pub.calls, "dead topic is only tried once")
	if assert.Len(t, jobs.saved, 1) {
		assert.Equal(t, "raw", jobs.saved[0].Topic)
		assert.Equal(t, 11, jobs.saved[0].Retries)
		assert.JSONEq(t, `{"url":"http://x"}`, string(jobs.saved[0].Payload))
	}
}

func TestLogFailed_GivesUpAfterBoundedAttempts(t *testing.T) {
	withoutParkDelay(t)

	jobs := &flakyJobStore{failures: 100}
	d := &deadLetter{topic: "processed", handler: "persist", jobs: jobs, pub: &downPublisher{}}

	d.logFailed(&nsq.Message{Body: []byte(`{}`), Attempts: 6})

	assert.Equal(t, parkAttempts, jobs.calls)
	assert.Empty(t, jobs.saved)
}

func TestLogFailed_NoRetryWhenDeadTopicAccepts(t *testing.T) {
	withoutParkDelay(t)

	jobs := &flakyJobStore{failures: 100}
	d := &deadLetter{topic: "raw", handler: "enrich", jobs: jobs, pub: &okPublisher{}}

	d.logFailed(&nsq.Message{Body: []byte(`{}`), Attempts: 6})

	assert.Equal(t, 1, jobs.calls)
}

type okPublisher struct{}

func (okPublisher) Publish(topic string, body []byte) error { return nil }
