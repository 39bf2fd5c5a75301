package stats

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"trailmark/internal/middleware"
)

// Counter is satisfied by every repository that backs a stats field.
type Counter interface {
	Count(ctx context.Context) (int, error)
}

type Handler struct {
	pages      Counter
	visits     Counter
	categories Counter
	jobs       Counter
}

func NewHandler(pages, visits, categories, jobs Counter) *Handler {
	return &Handler{pages: pages, visits: visits, categories: categories, jobs: jobs}
}

type StatsResponse struct {
	Pages      int `json:"pages"`
	Visits     int `json:"visits"`
	Categories int `json:"categories"`
	FailedJobs int `json:"failed_jobs"`
}

func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var resp StatsResponse
	fields := []struct {
		name string
		src  Counter
		dst  *int
	}{
		{"pages", h.pages, &resp.Pages},
		{"visits", h.visits, &resp.Visits},
		{"categories", h.categories, &resp.Categories},
		{"failed jobs", h.jobs, &resp.FailedJobs},
	}

	for _, f := range fields {
		n, err := f.src.Count(ctx)
		if err != nil {
			slog.ErrorContext(ctx, "failed to count "+f.name, "error", err)
			writeError(ctx, w, "INTERNAL_ERROR", "failed to count "+f.name, http.StatusInternalServerError)
			return
		}
		*f.dst = n
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]any{"data": resp}); err != nil {
		slog.ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

func writeError(ctx context.Context, w http.ResponseWriter, code, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	resp := map[string]any{
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
		"correlationId": middleware.GetCorrelationID(ctx),
	}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.ErrorContext(ctx, "failed to encode error response", "error", err)
	}
}
