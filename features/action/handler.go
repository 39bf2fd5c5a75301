package action

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"trailmark/internal/config"
	"trailmark/internal/middleware"
	"trailmark/internal/worker"
)

const maxBodyBytes = 1 << 20

type Publisher interface {
	Publish(topic string, body []byte) error
}

// Handler is the producer side of the pipeline: it accepts user actions
// and queues them on the raw topic.
type Handler struct {
	pub Publisher
}

func NewHandler(pub Publisher) *Handler {
	return &Handler{pub: pub}
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	correlationID := middleware.GetCorrelationID(ctx)

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		h.writeError(ctx, w, "VALIDATION_ERROR", "request body too large", http.StatusRequestEntityTooLarge)
		return
	}

	msg, err := worker.ParseMessage(body)
	if err != nil {
		if errors.Is(err, worker.ErrInvalidMessage) {
			h.writeError(ctx, w, "VALIDATION_ERROR", err.Error(), http.StatusBadRequest)
			return
		}
		h.writeError(ctx, w, "INTERNAL_ERROR", "Internal Server Error", http.StatusInternalServerError)
		return
	}
	if msg.CorrelationID == "" {
		msg.CorrelationID = correlationID
	}

	out, err := json.Marshal(msg)
	if err != nil {
		slog.ErrorContext(ctx, "failed to encode action", "error", err)
		h.writeError(ctx, w, "INTERNAL_ERROR", "Internal Server Error", http.StatusInternalServerError)
		return
	}
	if err := h.pub.Publish(config.TopicRaw, out); err != nil {
		slog.ErrorContext(ctx, "failed to queue action", "error", err, "correlationId", correlationID)
		h.writeError(ctx, w, "UNAVAILABLE", "queue unavailable", http.StatusServiceUnavailable)
		return
	}

	slog.InfoContext(ctx, "action queued", "url", msg.URL, "user_id", msg.UserID)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	if err := json.NewEncoder(w).Encode(map[string]string{"status": "queued"}); err != nil {
		slog.ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(ctx context.Context, w http.ResponseWriter, code, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	resp := map[string]interface{}{
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
		"correlationId": middleware.GetCorrelationID(ctx),
	}

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("failed to encode error response", "error", err)
	}
}
