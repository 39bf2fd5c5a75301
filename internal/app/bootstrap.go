package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"
	"github.com/nsqio/go-nsq"

	"trailmark/features/taxonomy"
	"trailmark/internal/config"
	"trailmark/internal/queue"
)

type Dependencies struct {
	DB          *sql.DB
	NSQProducer *nsq.Producer
}

func (d *Dependencies) Close() {
	if d.NSQProducer != nil {
		d.NSQProducer.Stop()
	}
	if d.DB != nil {
		if err := d.DB.Close(); err != nil {
			slog.Warn("failed to close db", "error", err)
		}
	}
}

type Pinger interface {
	PingContext(ctx context.Context) error
}

// Bootstrap opens every long-lived connection the process needs. Any
// error here is fatal for the caller.
func Bootstrap(ctx context.Context, cfg *config.Config) (*Dependencies, error) {
	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}

	if err := PingWithRetry(ctx, db, cfg.BootstrapRetryAttempts, cfg.RetryDelay()); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping db: %w", err)
	}

	if err := Migrate(db, cfg.MigrationPath); err != nil {
		db.Close()
		return nil, err
	}
	slog.Info("migrations applied successfully")

	if err := taxonomy.NewPostgresRepo(db).SeedRoots(ctx, taxonomy.DefaultRoots); err != nil {
		db.Close()
		return nil, fmt.Errorf("seed root categories: %w", err)
	}

	producer, err := queue.NewProducer(cfg, slog.Default())
	if err != nil {
		db.Close()
		return nil, err
	}

	queue.CreateTopics(ctx, cfg.NSQDHTTP, config.TopicRaw, config.TopicProcessed, config.TopicDeadLetter)

	return &Dependencies{
		DB:          db,
		NSQProducer: producer,
	}, nil
}

func Migrate(db *sql.DB, path string) error {
	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("migration driver error: %w", err)
	}
	m, err := migrate.NewWithDatabaseInstance(path, "postgres", driver)
	if err != nil {
		return fmt.Errorf("migration instance error: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration up error: %w", err)
	}
	return nil
}

// PingWithRetry pings until the store answers or attempts run out.
func PingWithRetry(ctx context.Context, db Pinger, attempts int, delay time.Duration) error {
	if attempts < 1 {
		attempts = 1
	}
	var err error
	for i := 0; i < attempts; i++ {
		if err = db.PingContext(ctx); err == nil {
			return nil
		}
		slog.Warn("failed to ping db, retrying...", "attempt", i+1, "max_attempts", attempts)
		if i < attempts-1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}
	return err
}
