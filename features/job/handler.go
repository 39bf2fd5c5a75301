package job

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"trailmark/internal/middleware"
)

// Handler exposes the failed_jobs table for inspection and replay.
type Handler struct {
	service *Service
}

func NewHandler(s *Service) *Handler {
	return &Handler{service: s}
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	jobs, err := h.service.List(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "failed to list parked messages", "error", err)
		writeError(ctx, w, "INTERNAL_ERROR", err.Error(), http.StatusInternalServerError)
		return
	}

	if topic := r.URL.Query().Get("topic"); topic != "" {
		filtered := jobs[:0]
		for _, j := range jobs {
			if j.Topic == topic {
				filtered = append(filtered, j)
			}
		}
		jobs = filtered
	}
	if jobs == nil {
		jobs = []Job{}
	}

	writeJSON(ctx, w, http.StatusOK, map[string]any{
		"data": jobs,
		"meta": map[string]int{"count": len(jobs)},
	})
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	j, err := h.service.Get(ctx, id)
	if err != nil {
		h.fail(ctx, w, "failed to load parked message", id, err)
		return
	}
	writeJSON(ctx, w, http.StatusOK, map[string]any{"data": j})
}

// Retry replays a parked message onto the topic it originally failed on.
func (h *Handler) Retry(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	slog.InfoContext(ctx, "replaying parked message", "id", id)
	if err := h.service.Retry(ctx, id); err != nil {
		h.fail(ctx, w, "failed to replay parked message", id, err)
		return
	}
	writeJSON(ctx, w, http.StatusOK, map[string]any{"data": "job retried"})
}

func (h *Handler) Discard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	if err := h.service.Discard(ctx, id); err != nil {
		h.fail(ctx, w, "failed to discard parked message", id, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) fail(ctx context.Context, w http.ResponseWriter, msg, id string, err error) {
	switch {
	case errors.Is(err, sql.ErrNoRows):
		writeError(ctx, w, "NOT_FOUND", "Job not found", http.StatusNotFound)
	case errors.Is(err, ErrPublishTimeout):
		slog.WarnContext(ctx, msg, "id", id, "error", err)
		writeError(ctx, w, "UNAVAILABLE", err.Error(), http.StatusServiceUnavailable)
	default:
		slog.ErrorContext(ctx, msg, "id", id, "error", err)
		writeError(ctx, w, "INTERNAL_ERROR", err.Error(), http.StatusInternalServerError)
	}
}

// pathID rejects ids that are not UUIDs before they reach the database.
func pathID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := r.PathValue("id")
	if _, err := uuid.Parse(id); err != nil {
		writeError(r.Context(), w, "INVALID_ID", "id must be a UUID", http.StatusBadRequest)
		return "", false
	}
	return id, true
}

func writeJSON(ctx context.Context, w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

func writeError(ctx context.Context, w http.ResponseWriter, code, message string, status int) {
	writeJSON(ctx, w, status, map[string]any{
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
		"correlationId": middleware.GetCorrelationID(ctx),
	})
}
