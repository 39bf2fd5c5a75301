package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/nsqio/go-nsq"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"trailmark/features/action"
	"trailmark/features/job"
	"trailmark/features/page"
	"trailmark/features/stats"
	"trailmark/features/taxonomy"
	"trailmark/features/visit"
	"trailmark/internal/config"
	"trailmark/internal/database"
	"trailmark/internal/middleware"
	"trailmark/internal/notify"
	"trailmark/internal/queue"
	"trailmark/internal/worker"
)

// Database is what *sql.DB offers the repositories and the visit
// transaction.
type Database interface {
	database.DBTX
	database.TxBeginner
}

type App struct {
	Handler         http.Handler
	EnrichConsumer  *worker.EnrichConsumer
	PersistConsumer *worker.PersistConsumer

	cfg       *config.Config
	consumers []*nsq.Consumer
}

// New wires repositories, handlers and message consumers. sum may be nil
// when the enrich worker is disabled.
func New(
	cfg *config.Config,
	db Database,
	producer queue.Producer,
	sum worker.Summarizer,
	logger *slog.Logger,
) (*App, error) {
	if cfg.EnableEnrichWorker && sum == nil {
		return nil, errors.New("enrich worker enabled without a summarizer")
	}

	pub := queue.NewPublisher(producer)

	pageRepo := page.NewPostgresRepo(db)
	visitRepo := visit.NewPostgresRepo(db)

	// Feature: Job
	jobRepo := job.NewPostgresRepo(db)
	jobService := job.NewService(jobRepo, pub, logger)
	jobHandler := job.NewHandler(jobService)

	// Feature: Stats
	statsHandler := stats.NewHandler(pageRepo, visitRepo, taxonomy.NewPostgresRepo(db), jobRepo)

	// Feature: Action
	actionHandler := action.NewHandler(pub)

	// Middleware: CORS
	enableCORS := func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "POST, GET, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusOK)
				return
			}
			next(w, r)
		}
	}

	// Routes
	mux := http.NewServeMux()

	mux.Handle("POST /api/v1/user-actions", middleware.CorrelationID(enableCORS(actionHandler.Create)))

	mux.Handle("GET /jobs/failed", middleware.CorrelationID(enableCORS(jobHandler.List)))
	mux.Handle("GET /jobs/failed/{id}", middleware.CorrelationID(enableCORS(jobHandler.Get)))
	mux.Handle("DELETE /jobs/failed/{id}", middleware.CorrelationID(enableCORS(jobHandler.Discard)))
	mux.Handle("POST /jobs/{id}/retry", middleware.CorrelationID(enableCORS(jobHandler.Retry)))

	mux.Handle("GET /stats", middleware.CorrelationID(enableCORS(statsHandler.GetStats)))

	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})

	a := &App{Handler: mux, cfg: cfg}

	// Workers
	if cfg.EnableEnrichWorker {
		a.EnrichConsumer = worker.NewEnrichConsumer(pageRepo, sum, pub, jobRepo, taxonomy.DefaultRoots)
	}
	if cfg.EnablePersistWorker {
		var notifier notify.Notifier = notify.Nop{}
		if cfg.NotifyURL != "" {
			notifier = notify.NewHTTPNotifier(cfg.NotifyURL)
		}
		policy := notify.Policy{
			MinDuration: cfg.NotifyMinDuration(),
			MinScroll:   cfg.NotifyMinScroll,
		}
		a.PersistConsumer = worker.NewPersistConsumer(visit.NewRecorder(db), notifier, policy, pub, jobRepo)
	}

	return a, nil
}

// StartConsumers subscribes the enabled workers. It fails with
// queue.ErrConnectExhausted if the broker cannot be reached.
func (a *App) StartConsumers() error {
	type sub struct {
		topic, channel string
		handler        nsq.Handler
	}
	var subs []sub
	if a.EnrichConsumer != nil {
		subs = append(subs, sub{config.TopicRaw, a.cfg.EnrichChannel, a.EnrichConsumer})
	}
	if a.PersistConsumer != nil {
		subs = append(subs, sub{config.TopicProcessed, a.cfg.PersistChannel, a.PersistConsumer})
	}

	for _, s := range subs {
		c, err := queue.NewConsumer(a.cfg, s.topic, s.channel, s.handler, slog.Default())
		if err != nil {
			a.StopConsumers()
			return err
		}
		a.consumers = append(a.consumers, c)
	}
	return nil
}

// StopConsumers stops consuming and waits for in-flight messages.
func (a *App) StopConsumers() {
	for _, c := range a.consumers {
		c.Stop()
	}
	for _, c := range a.consumers {
		<-c.StopChan
	}
	a.consumers = nil
}

// Run serves HTTP when the API is enabled and blocks until ctx is done,
// then stops the consumers.
func (a *App) Run(ctx context.Context) error {
	defer a.StopConsumers()

	if !a.cfg.EnableAPI {
		<-ctx.Done()
		return nil
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.cfg.ServerPort),
		Handler:           a.Handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown failed", "error", err)
		}
	}()

	slog.Info("server starting", "port", a.cfg.ServerPort)
	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
