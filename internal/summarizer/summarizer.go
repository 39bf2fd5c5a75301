// Package summarizer turns page text into a short summary and category labels
// by prompting a text-completion backend and parsing its JSON answer.
package summarizer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"trailmark/features/taxonomy"
	"trailmark/internal/metrics"
	"trailmark/internal/text"
)

var ErrEmptyResponse = errors.New("summarizer returned an empty response")

// Completer is a text-in/text-out model backend.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

type Result struct {
	Summary string           `json:"summary"`
	Labels  []taxonomy.Label `json:"labels"`
}

type Options struct {
	Timeout       time.Duration
	RatePerSecond float64
	// Consecutive failures before the breaker opens.
	FailureThreshold uint32
	OpenTimeout      time.Duration
}

func DefaultOptions() Options {
	return Options{
		Timeout:          60 * time.Second,
		RatePerSecond:    2,
		FailureThreshold: 5,
		OpenTimeout:      30 * time.Second,
	}
}

type Summarizer struct {
	backend Completer
	breaker *gobreaker.CircuitBreaker[string]
	limiter *rate.Limiter
	timeout time.Duration
}

const breakerName = "summarizer"

func New(backend Completer, opts Options) *Summarizer {
	metrics.CircuitBreakerState.WithLabelValues(breakerName).Set(0)

	cb := gobreaker.NewCircuitBreaker[string](gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     opts.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= opts.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Info("circuit breaker state transition", "name", name, "from", from.String(), "to", to.String())
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
		},
	})

	limit := rate.Inf
	if opts.RatePerSecond > 0 {
		limit = rate.Limit(opts.RatePerSecond)
	}

	return &Summarizer{
		backend: backend,
		breaker: cb,
		limiter: rate.NewLimiter(limit, 1),
		timeout: opts.Timeout,
	}
}

// Summarize asks the backend for a summary of body and labels drawn from
// roots. body is truncated to text.MaxInputChars first.
func (s *Summarizer) Summarize(ctx context.Context, title, body string, roots []string) (Result, error) {
	body = text.Truncate(body, text.MaxInputChars)
	prompt, err := BuildPrompt(title, body, roots)
	if err != nil {
		return Result{}, err
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return Result{}, fmt.Errorf("rate limiter: %w", err)
	}

	raw, err := s.breaker.Execute(func() (string, error) {
		callCtx := ctx
		if s.timeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(ctx, s.timeout)
			defer cancel()
		}
		out, err := s.backend.Complete(callCtx, prompt)
		if err != nil {
			return "", err
		}
		if strings.TrimSpace(out) == "" {
			return "", ErrEmptyResponse
		}
		return out, nil
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			metrics.SummarizerCalls.WithLabelValues("rejected").Inc()
		} else {
			metrics.SummarizerCalls.WithLabelValues("error").Inc()
		}
		return Result{}, err
	}

	res, err := Parse(raw)
	if err != nil {
		metrics.SummarizerCalls.WithLabelValues("error").Inc()
		return Result{}, err
	}
	metrics.SummarizerCalls.WithLabelValues("success").Inc()
	return res, nil
}

// Parse decodes a model answer, tolerating a surrounding code fence.
func Parse(raw string) (Result, error) {
	var res Result
	if err := json.Unmarshal([]byte(text.ExtractJSON(raw)), &res); err != nil {
		return Result{}, fmt.Errorf("parse summarizer response: %w", err)
	}
	if res.Labels == nil {
		res.Labels = []taxonomy.Label{}
	}
	return res, nil
}

// Fallback is used when the backend or its answer is unusable.
func Fallback(body string) Result {
	return Result{
		Summary: text.Truncate(body, text.FallbackSummaryChars),
		Labels:  []taxonomy.Label{},
	}
}

func stateToFloat(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}
